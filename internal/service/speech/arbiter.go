// Package speech selects a voice and keeps at most one utterance in flight.
package speech

import (
	"sync"

	"github.com/rs/zerolog"

	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
	"voice-command-service/internal/ports"
)

// Config holds voice preferences and the fixed prosody applied to every
// utterance.
type Config struct {
	Language        string
	GenderMarkers   []string
	PreferredVoices []string
	Pitch           float64
	Rate            float64
	Volume          float64
}

// DefaultConfig returns Turkish voice preferences.
func DefaultConfig() Config {
	return Config{
		Language:        "tr-TR",
		GenderMarkers:   []string{"female", "kadın", "yelda", "emel", "filiz", "seda"},
		PreferredVoices: []string{"Google Türkçe", "Microsoft Emel", "Yelda", "Filiz"},
		Pitch:           1.0,
		Rate:            1.0,
		Volume:          1.0,
	}
}

// Arbiter submits utterances to the output service. A new utterance cancels
// the one in flight.
type Arbiter struct {
	cfg        Config
	out        ports.OutputService
	strategies []Strategy
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu       sync.Mutex
	inFlight bool
}

// New creates an arbiter. A nil strategy list uses DefaultStrategies.
func New(cfg Config, out ports.OutputService, strategies []Strategy, m *metrics.Metrics) *Arbiter {
	if strategies == nil {
		strategies = DefaultStrategies(cfg)
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Arbiter{
		cfg:        cfg,
		out:        out,
		strategies: strategies,
		metrics:    m,
		log:        logging.WithComponent("speech"),
	}
}

// Speak cancels any utterance in flight and starts text. It is a no-op when
// text is empty or no voice is available.
func (a *Arbiter) Speak(text string) {
	if text == "" {
		a.metrics.RecordSpeechSkipped("empty_text")
		return
	}

	voice, strategy, ok := a.SelectVoice()
	if !ok {
		a.metrics.RecordSpeechSkipped("no_voice")
		a.log.Debug().Str("text", text).Msg("No voice available, skipping utterance")
		return
	}
	a.metrics.RecordVoiceSelection(strategy)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight {
		a.metrics.RecordPreemption()
	}
	// Cancel unconditionally: the platform may still be playing something
	// this arbiter did not start.
	a.out.Cancel()
	a.inFlight = false

	err := a.out.Speak(ports.Utterance{
		Text:   text,
		Voice:  voice,
		Pitch:  a.cfg.Pitch,
		Rate:   a.cfg.Rate,
		Volume: a.cfg.Volume,
	})
	a.metrics.RecordUtterance(err)
	if err != nil {
		a.log.Warn().Err(err).Str("voice", voice.Name).Msg("Failed to speak")
		return
	}
	a.inFlight = true

	a.log.Debug().
		Str("voice", voice.Name).
		Str("strategy", strategy).
		Str("text", text).
		Msg("Utterance started")
}

// Cancel stops the utterance in flight, if any.
func (a *Arbiter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Cancel()
	a.inFlight = false
}

// OnUtteranceEnd is called by the output service when playback finishes.
func (a *Arbiter) OnUtteranceEnd() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
}

// Speaking reports whether an utterance is in flight.
func (a *Arbiter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// SelectVoice runs the strategy chain against the current voice list and
// returns the chosen voice and the name of the strategy that chose it.
func (a *Arbiter) SelectVoice() (ports.Voice, string, bool) {
	voices := a.out.ListVoices()
	for _, s := range a.strategies {
		if v, ok := s.Select(voices); ok {
			return v, s.Name(), true
		}
	}
	return ports.Voice{}, "", false
}

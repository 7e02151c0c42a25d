// Package dispatch executes the outcome of a recognition turn.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/matcher"
	"voice-command-service/internal/models"
	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
)

// ErrNoAction is returned when a matched command has no bound action.
var ErrNoAction = errors.New("command has no action")

// Turn is the dispatcher's view of one recognition turn. All state changes go
// through it; callbacks passed to After are dropped if the session has moved on.
type Turn interface {
	// ID returns the turn identifier used as the event key.
	ID() string

	// Acknowledge records the matched command (empty for no match) and feedback.
	Acknowledge(command, feedback string)

	// After runs fn once d has elapsed, unless the turn has been invalidated.
	After(d time.Duration, fn func())

	// ClearFeedback clears the feedback text.
	ClearFeedback()

	// Complete ends the turn and returns the session to idle.
	Complete()

	// Fail ends the turn with an internal fault.
	Fail(err error)
}

// Speaker receives spoken feedback.
type Speaker interface {
	Speak(text string)
}

// Publisher receives dispatch events.
type Publisher interface {
	PublishDispatched(ctx context.Context, key string, event any) error
}

// Config holds dispatcher timing and message settings.
type Config struct {
	// SettleDelay is the pause between acknowledging a turn and acting on it.
	SettleDelay time.Duration
	// FeedbackWindow is how long feedback stays visible.
	FeedbackWindow time.Duration
	// AckPrefix is prepended to the command description in the acknowledgment.
	AckPrefix string
	// NotUnderstood is the feedback text for unmatched input.
	NotUnderstood string
	// FallbackPrompt is spoken for unmatched input.
	FallbackPrompt string
	// Principal identifies the service in published events.
	Principal string
	// PublishTimeout bounds each event publication.
	PublishTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		SettleDelay:    800 * time.Millisecond,
		FeedbackWindow: 3 * time.Second,
		AckPrefix:      "Anlaşıldı: ",
		NotUnderstood:  "Komut anlaşılamadı. Tekrar deneyin.",
		FallbackPrompt: "Üzgünüm, sizi anlayamadım. Lütfen tekrar söyleyin.",
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher acknowledges a match, invokes the bound action after the settle
// delay and schedules the feedback to clear.
type Dispatcher struct {
	cfg       Config
	speaker   Speaker
	publisher Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	pubMu   sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates a dispatcher. speaker and publisher may be nil.
func New(cfg Config, speaker Speaker, publisher Publisher, m *metrics.Metrics) *Dispatcher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Dispatcher{
		cfg:       cfg,
		speaker:   speaker,
		publisher: publisher,
		metrics:   m,
		log:       logging.WithComponent("dispatch"),
	}
}

// Dispatch acts on the result of one turn. It never invokes more than one
// action and never requests more than one utterance.
func (d *Dispatcher) Dispatch(turn Turn, result matcher.Result) {
	if !result.Matched() {
		d.log.Info().
			Str("turnId", turn.ID()).
			Msg("No command matched")
		turn.Acknowledge("", d.cfg.NotUnderstood)
		d.speak(d.cfg.FallbackPrompt)
		turn.After(d.cfg.SettleDelay, turn.Complete)
		turn.After(d.cfg.FeedbackWindow, turn.ClearFeedback)
		return
	}

	cmd := *result.Command
	d.log.Info().
		Str("turnId", turn.ID()).
		Str("command", cmd.Name).
		Str("matchType", result.Type.String()).
		Float64("score", result.Score).
		Msg("Command matched")

	turn.Acknowledge(cmd.Name, d.acknowledgment(cmd))
	d.speak(cmd.Response)
	turn.After(d.cfg.SettleDelay, func() { d.invoke(turn, cmd) })
	turn.After(d.cfg.FeedbackWindow, turn.ClearFeedback)
}

func (d *Dispatcher) acknowledgment(cmd catalog.Command) string {
	if cmd.Description != "" {
		return d.cfg.AckPrefix + cmd.Description
	}
	return d.cfg.AckPrefix + cmd.Name
}

func (d *Dispatcher) speak(text string) {
	if d.speaker == nil || text == "" {
		return
	}
	d.speaker.Speak(text)
}

func (d *Dispatcher) invoke(turn Turn, cmd catalog.Command) {
	start := time.Now()
	err := safeCall(cmd.Action)
	latency := time.Since(start)
	d.metrics.RecordDispatch(cmd.Name, err, latency.Seconds())

	if err != nil {
		d.log.Error().
			Err(err).
			Str("turnId", turn.ID()).
			Str("command", cmd.Name).
			Msg("Command action failed")
		turn.Fail(fmt.Errorf("action %s: %w", cmd.Name, err))
		return
	}

	d.log.Info().
		Str("turnId", turn.ID()).
		Str("command", cmd.Name).
		Dur("latency", latency).
		Msg("Command dispatched")

	d.publish(turn.ID(), models.DispatchEvent{
		EventType: models.EventTypeDispatched,
		TurnID:    turn.ID(),
		Principal: d.cfg.Principal,
		Timestamp: time.Now().UnixMilli(),
		Command:   cmd.Name,
		Category:  cmd.Category,
		Route:     cmd.Route,
		LatencyMs: latency.Milliseconds(),
	})
	turn.Complete()
}

// publish sends the event without holding up the session. Events produced
// after Close are dropped.
func (d *Dispatcher) publish(key string, event models.DispatchEvent) {
	if d.publisher == nil {
		return
	}
	d.pubMu.Lock()
	if d.closed {
		d.pubMu.Unlock()
		d.log.Warn().Str("turnId", key).Msg("Dispatch event dropped after close")
		return
	}
	d.pending.Add(1)
	d.pubMu.Unlock()

	go func() {
		defer d.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		defer cancel()
		if err := d.publisher.PublishDispatched(ctx, key, event); err != nil {
			d.log.Warn().Err(err).Str("turnId", key).Msg("Failed to publish dispatch event")
		}
	}()
}

// Close waits for in-flight event publications. It must be called before the
// publisher is closed.
func (d *Dispatcher) Close() {
	d.pubMu.Lock()
	d.closed = true
	d.pubMu.Unlock()
	d.pending.Wait()
}

// safeCall runs action, converting a panic into an error.
func safeCall(action catalog.Action) (err error) {
	if action == nil {
		return ErrNoAction
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action()
}

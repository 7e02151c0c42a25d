// Package mock provides a scripted capture service for development without a
// microphone or cloud credentials. Each Start plays one utterance: progressive
// interim transcripts, exactly one final transcript (or an error), then end.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/ports"
)

// ErrAlreadyRunning is returned by Start while an utterance is playing.
var ErrAlreadyRunning = errors.New("mock capture already running")

// Utterance is one scripted capture session.
type Utterance struct {
	Partials []string        // Progressive interim transcripts
	Final    string          // Final transcript text
	Error    ports.ErrorKind // When set, reported instead of the final transcript
}

// DefaultUtterances cycles through typical travel-site commands.
var DefaultUtterances = []Utterance{
	{Partials: []string{"ote", "otelle"}, Final: "oteller"},
	{Partials: []string{"tur", "turları"}, Final: "turları göster"},
	{Partials: []string{"uçu", "uçuş"}, Final: "uçuşlar"},
	{Partials: []string{"otel", "otelere"}, Final: "otelere bakalım"},
	{Partials: []string{"ana"}, Final: "ana sayfa"},
	{Partials: []string{"xyz"}, Final: "xyzxyz"},
	{Error: ports.ErrorNoSpeechDetected},
}

// Capture implements ports.CaptureService with scripted utterances.
type Capture struct {
	delay      time.Duration
	utterances []Utterance
	log        zerolog.Logger
	wg         sync.WaitGroup

	mu       sync.Mutex
	listener ports.CaptureListener
	queued   []Utterance
	next     int
	run      uint64
	cancel   context.CancelFunc
}

// New creates a mock capture that waits delay between events. A nil
// utterance list uses DefaultUtterances.
func New(utterances []Utterance, delay time.Duration) *Capture {
	if utterances == nil {
		utterances = DefaultUtterances
	}
	return &Capture{
		delay:      delay,
		utterances: utterances,
		log:        logging.WithComponent("capture.mock"),
	}
}

// SetListener implements ports.CaptureService.
func (c *Capture) SetListener(l ports.CaptureListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// Queue schedules utterances to be played before the default cycle resumes.
func (c *Capture) Queue(u ...Utterance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued = append(c.queued, u...)
}

// Start plays the next utterance in the background.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	if c.listener == nil {
		return &ports.CaptureError{Kind: ports.ErrorCaptureDeviceDenied, Err: errors.New("no listener registered")}
	}

	var utt Utterance
	if len(c.queued) > 0 {
		utt = c.queued[0]
		c.queued = c.queued[1:]
	} else {
		if len(c.utterances) == 0 {
			return &ports.CaptureError{Kind: ports.ErrorNoSpeechDetected}
		}
		utt = c.utterances[c.next%len(c.utterances)]
		c.next++
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.run++
	c.cancel = cancel

	c.wg.Add(1)
	go c.play(runCtx, c.listener, utt, c.run)
	return nil
}

// Stop cancels the utterance in progress. It does not wait: the listener may
// itself be calling Stop from inside a capture callback.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

// Wait blocks until every playback goroutine has exited.
func (c *Capture) Wait() {
	c.wg.Wait()
}

func (c *Capture) finish(run uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == run && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Capture) play(ctx context.Context, l ports.CaptureListener, utt Utterance, run uint64) {
	defer c.wg.Done()
	defer c.finish(run)

	if !c.wait(ctx) {
		return
	}
	l.OnStart()

	for _, p := range utt.Partials {
		if !c.wait(ctx) {
			return
		}
		l.OnInterimResult(p)
	}

	if !c.wait(ctx) {
		return
	}
	if utt.Error != ports.ErrorNone {
		c.log.Debug().Str("kind", utt.Error.String()).Msg("Simulating capture error")
		l.OnError(utt.Error)
	} else {
		c.log.Debug().Str("text", utt.Final).Msg("Simulating final transcript")
		l.OnFinalResult(utt.Final)
	}

	if ctx.Err() != nil {
		return
	}
	l.OnEnd()
}

// wait sleeps for the configured delay and reports whether the run is still live.
func (c *Capture) wait(ctx context.Context) bool {
	if c.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

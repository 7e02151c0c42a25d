package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/matcher"
	"voice-command-service/internal/models"
	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
	"voice-command-service/internal/ports"
	"voice-command-service/internal/service/dispatch"
)

// subscriberBuffer is the number of states buffered per subscriber before the
// oldest is dropped.
const subscriberBuffer = 16

// Matcher finds the command for a transcript.
type Matcher interface {
	Match(raw string, commands []catalog.Command) matcher.Result
}

// Dispatcher acts on the result of a turn.
type Dispatcher interface {
	Dispatch(turn dispatch.Turn, result matcher.Result)
}

// Speaker receives spoken feedback. Cancel silences the utterance in flight.
type Speaker interface {
	Speak(text string)
	Cancel()
}

// Publisher receives recognition events.
type Publisher interface {
	PublishRecognized(ctx context.Context, key string, event any) error
}

// Deps are the collaborators of a Machine. Speaker and Publisher may be nil.
type Deps struct {
	Catalog    *catalog.Catalog
	Matcher    Matcher
	Dispatcher Dispatcher
	Capture    ports.CaptureService
	Speaker    Speaker
	Publisher  Publisher
	Scheduler  Scheduler
	Metrics    *metrics.Metrics
	Turns      *TurnIDs
	Principal  string
}

// Machine is the single recognition session. Events are processed one at a
// time in arrival order: whichever goroutine posts into an idle machine drains
// the queue, and events posted meanwhile are appended for it to pick up.
// Effects run outside the lock.
//
// Machine implements ports.CaptureListener.
type Machine struct {
	ctx      context.Context
	rules    Rules
	deps     Deps
	commands []catalog.Command
	log      zerolog.Logger

	mu       sync.Mutex
	snap     Snapshot
	queue    []Event
	draining bool
	timers   map[uint64]func() bool
	timerSeq uint64

	subMu  sync.Mutex
	subs   map[uint64]chan RecognitionState
	subSeq uint64

	pubMu     sync.Mutex
	closed    bool
	publishes sync.WaitGroup
}

var _ ports.CaptureListener = (*Machine)(nil)

// New creates an idle machine and registers it as the capture listener.
func New(ctx context.Context, deps Deps, rules Rules) *Machine {
	if deps.Scheduler == nil {
		deps.Scheduler = RealScheduler{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Turns == nil {
		deps.Turns = NewTurnIDs(deps.Principal)
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}

	m := &Machine{
		ctx:      ctx,
		rules:    rules,
		deps:     deps,
		commands: deps.Catalog.Commands(),
		log:      logging.WithComponent("session"),
		timers:   make(map[uint64]func() bool),
		subs:     make(map[uint64]chan RecognitionState),
	}
	deps.Metrics.SetPhase(PhaseIdle.String())
	if deps.Capture != nil {
		deps.Capture.SetListener(m)
	}
	return m
}

// Start begins listening. It is a no-op while listening or processing.
// The returned state reflects the request once it has been processed, or the
// state at return if another goroutine is still draining.
func (m *Machine) Start() RecognitionState {
	m.post(StartRequested{})
	return m.State()
}

// Stop cancels the current session and returns to idle. Pending callbacks
// are invalidated.
func (m *Machine) Stop() RecognitionState {
	m.post(StopRequested{})
	return m.State()
}

// State returns a copy of the current state.
func (m *Machine) State() RecognitionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.State
}

// Snapshot returns the current state and epoch.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Catalog returns the command catalog.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.deps.Catalog
}

// Subscribe returns a channel that receives the current state and every
// subsequent change. A slow subscriber loses the oldest buffered states.
// The cancel function closes the channel.
func (m *Machine) Subscribe() (<-chan RecognitionState, func()) {
	ch := make(chan RecognitionState, subscriberBuffer)

	m.subMu.Lock()
	m.subSeq++
	id := m.subSeq
	m.subs[id] = ch
	ch <- m.State()
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close stops pending timers, waits for in-flight event publications and
// closes all subscriptions.
func (m *Machine) Close() {
	m.cancelTimers()

	m.pubMu.Lock()
	m.closed = true
	m.pubMu.Unlock()
	m.publishes.Wait()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// OnStart implements ports.CaptureListener.
func (m *Machine) OnStart() {
	m.post(CaptureStarted{})
}

// OnInterimResult implements ports.CaptureListener.
func (m *Machine) OnInterimResult(text string) {
	m.deps.Metrics.RecordTranscript(false)
	m.post(InterimReceived{Text: text})
}

// OnFinalResult implements ports.CaptureListener.
func (m *Machine) OnFinalResult(text string) {
	m.deps.Metrics.RecordTranscript(true)
	m.post(FinalReceived{Text: text})
}

// OnError implements ports.CaptureListener.
func (m *Machine) OnError(kind ports.ErrorKind) {
	m.deps.Metrics.RecordCaptureError(kind.String())
	m.post(CaptureFailed{Kind: kind})
}

// OnEnd implements ports.CaptureListener.
func (m *Machine) OnEnd() {
	m.post(CaptureEnded{})
}

// post queues e and drains the queue unless another goroutine already is.
func (m *Machine) post(e Event) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true

	for len(m.queue) > 0 {
		ev := m.queue[0]
		m.queue = m.queue[1:]

		prev := m.snap
		stale := IsStale(prev, ev)
		next, effects := m.rules.Transition(prev, ev)
		m.snap = next
		m.mu.Unlock()

		m.observe(prev, next, ev, stale)
		m.run(effects)

		m.mu.Lock()
	}

	m.draining = false
	m.mu.Unlock()
}

// postFront queues e ahead of everything else. Only called while draining.
func (m *Machine) postFront(e Event) {
	m.mu.Lock()
	m.queue = append([]Event{e}, m.queue...)
	m.mu.Unlock()
}

func (m *Machine) observe(prev, next Snapshot, ev Event, stale bool) {
	if stale {
		m.deps.Metrics.RecordStaleCallback()
		m.log.Debug().
			Str("event", fmt.Sprintf("%T", ev)).
			Uint64("epoch", next.Epoch).
			Msg("Dropped stale callback")
		return
	}

	if failed, ok := ev.(TurnFailed); ok && prev.State.Phase == PhaseProcessing {
		m.deps.Metrics.RecordInternalFault()
		m.log.Error().
			Err(failed.Err).
			Uint64("epoch", failed.Epoch).
			Msg("Turn failed")
	}

	if next.State == prev.State {
		return
	}
	if next.State.Phase != prev.State.Phase {
		m.deps.Metrics.SetPhase(next.State.Phase.String())
		m.log.Debug().
			Str("from", prev.State.Phase.String()).
			Str("to", next.State.Phase.String()).
			Uint64("epoch", next.Epoch).
			Msg("Phase changed")
	}
	m.notify(next.State)
}

func (m *Machine) notify(s RecognitionState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// Drop the oldest state to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (m *Machine) run(effects []Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case StartCapture:
			m.deps.Metrics.RecordSessionStart()
			m.startCapture(e.Epoch)
		case StopCapture:
			m.deps.Metrics.RecordSessionStop()
			m.stopCapture()
		case CancelTimers:
			m.cancelTimers()
		case Recognize:
			m.recognize(e)
		case Speak:
			if m.deps.Speaker != nil {
				m.deps.Speaker.Speak(e.Text)
			}
		case SilenceSpeech:
			if m.deps.Speaker != nil {
				m.deps.Speaker.Cancel()
			}
		case Run:
			m.runDeferred(e.Fn)
		case Post:
			m.postFront(e.Event)
		case Schedule:
			m.schedule(e.Delay, e.Event)
		}
	}
}

func (m *Machine) startCapture(epoch uint64) {
	if m.deps.Capture == nil {
		m.post(CaptureFailed{Kind: ports.ErrorCaptureDeviceDenied})
		return
	}
	if err := m.deps.Capture.Start(m.ctx); err != nil {
		kind := ports.KindOf(err)
		m.deps.Metrics.RecordCaptureError(kind.String())
		m.log.Warn().
			Err(err).
			Uint64("epoch", epoch).
			Str("kind", kind.String()).
			Msg("Failed to start capture")
		m.post(CaptureFailed{Kind: kind})
	}
}

func (m *Machine) stopCapture() {
	if m.deps.Capture == nil {
		return
	}
	if err := m.deps.Capture.Stop(); err != nil {
		m.log.Warn().Err(err).Msg("Failed to stop capture")
	}
}

// recognize matches the transcript and hands the result to the dispatcher.
// A panic in either becomes a failed turn.
func (m *Machine) recognize(e Recognize) {
	t := &turn{m: m, id: m.deps.Turns.Next(), epoch: e.Epoch}
	log := logging.WithTurn(t.id, e.Epoch)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic during recognition")
			t.Fail(fmt.Errorf("recognition panicked: %v", r))
		}
	}()

	start := time.Now()
	result := m.deps.Matcher.Match(e.Transcript, m.commands)
	m.deps.Metrics.RecordMatch(result.Type.String(), result.Score, time.Since(start).Seconds())

	event := models.RecognitionEvent{
		EventType:  models.EventTypeRecognized,
		TurnID:     t.id,
		Principal:  m.deps.Principal,
		Timestamp:  time.Now().UnixMilli(),
		Transcript: e.Transcript,
		MatchType:  result.Type.String(),
		Score:      result.Score,
		Pattern:    result.Pattern,
	}
	if result.Matched() {
		event.Command = result.Command.Name
	}

	log.Info().
		Str("transcript", e.Transcript).
		Str("matchType", event.MatchType).
		Float64("score", result.Score).
		Str("command", event.Command).
		Msg("Transcript recognized")

	m.publish(t.id, event)
	m.deps.Dispatcher.Dispatch(t, result)
}

func (m *Machine) publish(key string, event models.RecognitionEvent) {
	if m.deps.Publisher == nil {
		return
	}
	m.pubMu.Lock()
	if m.closed {
		m.pubMu.Unlock()
		m.log.Warn().Str("turnId", key).Msg("Recognition event dropped after close")
		return
	}
	m.publishes.Add(1)
	m.pubMu.Unlock()

	go func() {
		defer m.publishes.Done()
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		if err := m.deps.Publisher.PublishRecognized(ctx, key, event); err != nil {
			m.log.Warn().Err(err).Str("turnId", key).Msg("Failed to publish recognition event")
		}
	}()
}

func (m *Machine) runDeferred(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("Recovered from panic in deferred callback")
		}
	}()
	fn()
}

// schedule posts e after d.
func (m *Machine) schedule(d time.Duration, e Event) {
	m.mu.Lock()
	m.timerSeq++
	id := m.timerSeq
	m.timers[id] = nil
	m.mu.Unlock()

	stop := m.deps.Scheduler.AfterFunc(d, func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
		m.post(e)
	})

	// The timer may already have fired or been cancelled.
	m.mu.Lock()
	if _, ok := m.timers[id]; ok {
		m.timers[id] = stop
	}
	m.mu.Unlock()
}

func (m *Machine) cancelTimers() {
	m.mu.Lock()
	timers := m.timers
	m.timers = make(map[uint64]func() bool)
	m.mu.Unlock()

	for _, stop := range timers {
		if stop != nil {
			stop()
		}
	}
}

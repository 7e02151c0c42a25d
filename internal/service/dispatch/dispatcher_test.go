package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/matcher"
	"voice-command-service/internal/models"
	"voice-command-service/internal/observability/metrics"
)

type deferred struct {
	delay time.Duration
	fn    func()
}

type fakeTurn struct {
	command   string
	feedback  string
	acks      int
	cleared   int
	completed int
	failures  []error
	pending   []deferred
}

func (t *fakeTurn) ID() string { return "test-turn-1" }

func (t *fakeTurn) Acknowledge(command, feedback string) {
	t.acks++
	t.command = command
	t.feedback = feedback
}

func (t *fakeTurn) After(d time.Duration, fn func()) {
	t.pending = append(t.pending, deferred{delay: d, fn: fn})
}

func (t *fakeTurn) ClearFeedback() { t.cleared++ }
func (t *fakeTurn) Complete()      { t.completed++ }
func (t *fakeTurn) Fail(err error) { t.failures = append(t.failures, err) }

// runAll fires pending callbacks in delay order.
func (t *fakeTurn) runAll() {
	for len(t.pending) > 0 {
		next := 0
		for i, p := range t.pending {
			if p.delay < t.pending[next].delay {
				next = i
			}
		}
		p := t.pending[next]
		t.pending = append(t.pending[:next], t.pending[next+1:]...)
		p.fn()
	}
}

type recordingSpeaker struct {
	texts []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.texts = append(s.texts, text)
}

type chanPublisher struct {
	events chan any
}

func (p *chanPublisher) PublishDispatched(_ context.Context, _ string, event any) error {
	p.events <- event
	return nil
}

func newTestDispatcher(speaker Speaker, publisher Publisher) *Dispatcher {
	return New(DefaultConfig(), speaker, publisher, metrics.NewMetrics(prometheus.NewRegistry()))
}

func matched(cmd catalog.Command) matcher.Result {
	return matcher.Result{Command: &cmd, Type: matcher.MatchExact, Score: 1, Pattern: cmd.Patterns[0]}
}

func TestDispatch_MatchInvokesActionOnceAfterSettle(t *testing.T) {
	calls := 0
	cmd := catalog.Command{
		Name:        "hotels",
		Patterns:    []string{"oteller"},
		Description: "Otelleri göster",
		Action:      func() error { calls++; return nil },
	}
	turn := &fakeTurn{}
	d := newTestDispatcher(&recordingSpeaker{}, nil)

	d.Dispatch(turn, matched(cmd))

	if calls != 0 {
		t.Fatalf("expected action to wait for the settle delay, got %d calls", calls)
	}
	if turn.command != "hotels" {
		t.Errorf("expected command 'hotels', got %q", turn.command)
	}
	if turn.feedback != "Anlaşıldı: Otelleri göster" {
		t.Errorf("expected acknowledgment feedback, got %q", turn.feedback)
	}
	if len(turn.pending) != 2 {
		t.Fatalf("expected 2 scheduled callbacks, got %d", len(turn.pending))
	}
	if turn.pending[0].delay != DefaultConfig().SettleDelay {
		t.Errorf("expected settle delay %v, got %v", DefaultConfig().SettleDelay, turn.pending[0].delay)
	}
	if turn.pending[1].delay != DefaultConfig().FeedbackWindow {
		t.Errorf("expected feedback window %v, got %v", DefaultConfig().FeedbackWindow, turn.pending[1].delay)
	}

	turn.runAll()

	if calls != 1 {
		t.Errorf("expected action invoked exactly once, got %d", calls)
	}
	if turn.completed != 1 {
		t.Errorf("expected turn completed once, got %d", turn.completed)
	}
	if turn.cleared != 1 {
		t.Errorf("expected feedback cleared once, got %d", turn.cleared)
	}
	if len(turn.failures) != 0 {
		t.Errorf("expected no failures, got %v", turn.failures)
	}
}

func TestDispatch_AcknowledgmentFallsBackToName(t *testing.T) {
	turn := &fakeTurn{}
	cmd := catalog.Command{Name: "tours", Patterns: []string{"turlar"}, Action: func() error { return nil }}

	newTestDispatcher(nil, nil).Dispatch(turn, matched(cmd))

	if turn.feedback != "Anlaşıldı: tours" {
		t.Errorf("expected feedback with command name, got %q", turn.feedback)
	}
}

func TestDispatch_SpeaksResponseOnly(t *testing.T) {
	speaker := &recordingSpeaker{}
	d := newTestDispatcher(speaker, nil)

	withResponse := catalog.Command{Name: "hotels", Patterns: []string{"oteller"}, Response: "Oteller açılıyor", Action: func() error { return nil }}
	d.Dispatch(&fakeTurn{}, matched(withResponse))

	silent := catalog.Command{Name: "tours", Patterns: []string{"turlar"}, Action: func() error { return nil }}
	d.Dispatch(&fakeTurn{}, matched(silent))

	if len(speaker.texts) != 1 || speaker.texts[0] != "Oteller açılıyor" {
		t.Errorf("expected only the configured response to be spoken, got %v", speaker.texts)
	}
}

func TestDispatch_NoMatch(t *testing.T) {
	speaker := &recordingSpeaker{}
	turn := &fakeTurn{}
	d := newTestDispatcher(speaker, nil)

	d.Dispatch(turn, matcher.Result{Type: matcher.MatchNone})

	if turn.command != "" {
		t.Errorf("expected no command, got %q", turn.command)
	}
	if turn.feedback != DefaultConfig().NotUnderstood {
		t.Errorf("expected not-understood feedback, got %q", turn.feedback)
	}
	if len(speaker.texts) != 1 || speaker.texts[0] != DefaultConfig().FallbackPrompt {
		t.Errorf("expected fallback prompt spoken once, got %v", speaker.texts)
	}

	turn.runAll()

	if turn.completed != 1 {
		t.Errorf("expected turn completed once, got %d", turn.completed)
	}
	if turn.cleared != 1 {
		t.Errorf("expected feedback cleared once, got %d", turn.cleared)
	}
}

func TestDispatch_ActionErrorFailsTurn(t *testing.T) {
	navErr := errors.New("route not found")
	turn := &fakeTurn{}
	cmd := catalog.Command{Name: "hotels", Patterns: []string{"oteller"}, Action: func() error { return navErr }}

	newTestDispatcher(nil, nil).Dispatch(turn, matched(cmd))
	turn.runAll()

	if len(turn.failures) != 1 || !errors.Is(turn.failures[0], navErr) {
		t.Fatalf("expected navigation error to fail the turn, got %v", turn.failures)
	}
	if turn.completed != 0 {
		t.Errorf("expected failed turn not to complete, got %d", turn.completed)
	}
}

func TestDispatch_ActionPanicFailsTurn(t *testing.T) {
	turn := &fakeTurn{}
	cmd := catalog.Command{Name: "hotels", Patterns: []string{"oteller"}, Action: func() error { panic("boom") }}

	newTestDispatcher(nil, nil).Dispatch(turn, matched(cmd))
	turn.runAll()

	if len(turn.failures) != 1 {
		t.Fatalf("expected panic to fail the turn, got %v", turn.failures)
	}
	if !strings.Contains(turn.failures[0].Error(), "boom") {
		t.Errorf("expected panic value in error, got %v", turn.failures[0])
	}
}

func TestDispatch_NilActionFailsTurn(t *testing.T) {
	turn := &fakeTurn{}
	cmd := catalog.Command{Name: "hotels", Patterns: []string{"oteller"}}

	newTestDispatcher(nil, nil).Dispatch(turn, matched(cmd))
	turn.runAll()

	if len(turn.failures) != 1 || !errors.Is(turn.failures[0], ErrNoAction) {
		t.Errorf("expected ErrNoAction, got %v", turn.failures)
	}
}

func TestDispatch_PublishesDispatchEvent(t *testing.T) {
	publisher := &chanPublisher{events: make(chan any, 1)}
	turn := &fakeTurn{}
	cmd := catalog.Command{
		Name:     "flights",
		Patterns: []string{"uçuşlar"},
		Category: "navigation",
		Route:    "/flights",
		Action:   func() error { return nil },
	}

	newTestDispatcher(nil, publisher).Dispatch(turn, matched(cmd))
	turn.runAll()

	select {
	case ev := <-publisher.events:
		got, ok := ev.(models.DispatchEvent)
		if !ok {
			t.Fatalf("expected DispatchEvent, got %T", ev)
		}
		if got.Command != "flights" || got.Route != "/flights" || got.TurnID != "test-turn-1" {
			t.Errorf("unexpected event: %+v", got)
		}
		if got.EventType != models.EventTypeDispatched {
			t.Errorf("expected event type %s, got %s", models.EventTypeDispatched, got.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dispatch event to be published")
	}
}

type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) PublishDispatched(context.Context, string, any) error {
	p.started <- struct{}{}
	<-p.release
	return nil
}

func TestClose_WaitsForDispatchEvents(t *testing.T) {
	publisher := &blockingPublisher{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := newTestDispatcher(nil, publisher)
	cmd := catalog.Command{
		Name:     "hotels",
		Patterns: []string{"oteller"},
		Route:    "/hotels",
		Action:   func() error { return nil },
	}

	turn := &fakeTurn{}
	d.Dispatch(turn, matched(cmd))
	turn.runAll()

	select {
	case <-publisher.started:
	case <-time.After(time.Second):
		t.Fatal("expected dispatch event to be published")
	}

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("expected Close to wait for the publication in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(publisher.release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected Close to return once the publication finished")
	}

	// The action still runs after Close but its event is dropped.
	late := &fakeTurn{}
	d.Dispatch(late, matched(cmd))
	late.runAll()
	if late.completed != 1 {
		t.Errorf("expected turn completed after close, got %d", late.completed)
	}
	select {
	case <-publisher.started:
		t.Error("expected no publication after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-command-service/internal/ports"
)

// testListener implements ports.CaptureListener for testing
type testListener struct {
	mu       sync.Mutex
	events   []string
	interims []string
	finals   []string
	errors   []ports.ErrorKind
}

func (l *testListener) record(e string) {
	l.events = append(l.events, e)
}

func (l *testListener) OnStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("start")
}

func (l *testListener) OnInterimResult(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("interim")
	l.interims = append(l.interims, text)
}

func (l *testListener) OnFinalResult(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("final")
	l.finals = append(l.finals, text)
}

func (l *testListener) OnError(kind ports.ErrorKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("error")
	l.errors = append(l.errors, kind)
}

func (l *testListener) OnEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("end")
}

func (l *testListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestCapture_PlaysUtterance(t *testing.T) {
	c := New([]Utterance{{Partials: []string{"ote", "otelle"}, Final: "oteller"}}, 0)
	l := &testListener{}
	c.SetListener(l)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	expected := []string{"start", "interim", "interim", "final", "end"}
	events := l.Events()
	if len(events) != len(expected) {
		t.Fatalf("expected events %v, got %v", expected, events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Errorf("event %d: expected %s, got %s", i, expected[i], events[i])
		}
	}
	if len(l.finals) != 1 || l.finals[0] != "oteller" {
		t.Errorf("expected exactly one final 'oteller', got %v", l.finals)
	}
}

func TestCapture_ScriptedError(t *testing.T) {
	c := New([]Utterance{{Error: ports.ErrorPermissionDenied}}, 0)
	l := &testListener{}
	c.SetListener(l)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	if len(l.errors) != 1 || l.errors[0] != ports.ErrorPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED, got %v", l.errors)
	}
	if len(l.finals) != 0 {
		t.Errorf("expected no final transcript, got %v", l.finals)
	}
}

func TestCapture_QueueTakesPriority(t *testing.T) {
	c := New([]Utterance{{Final: "oteller"}}, 0)
	l := &testListener{}
	c.SetListener(l)
	c.Queue(Utterance{Final: "turlar"})

	for i := 0; i < 2; i++ {
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Wait()
	}

	if len(l.finals) != 2 || l.finals[0] != "turlar" || l.finals[1] != "oteller" {
		t.Errorf("expected [turlar oteller], got %v", l.finals)
	}
}

func TestCapture_CyclesUtterances(t *testing.T) {
	c := New([]Utterance{{Final: "a"}, {Final: "b"}}, 0)
	l := &testListener{}
	c.SetListener(l)

	for i := 0; i < 3; i++ {
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Wait()
	}

	expected := []string{"a", "b", "a"}
	for i := range expected {
		if l.finals[i] != expected[i] {
			t.Errorf("final %d: expected %s, got %s", i, expected[i], l.finals[i])
		}
	}
}

func TestCapture_StartWhileRunning(t *testing.T) {
	c := New(nil, time.Hour)
	c.SetListener(&testListener{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		c.Stop()
		c.Wait()
	}()

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestCapture_StopSuppressesEvents(t *testing.T) {
	c := New(nil, time.Hour)
	l := &testListener{}
	c.SetListener(l)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	if events := l.Events(); len(events) != 0 {
		t.Errorf("expected no events after stop, got %v", events)
	}

	// A stopped capture can start again.
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("expected restart to succeed, got %v", err)
	}
	c.Stop()
	c.Wait()
}

func TestCapture_NoListener(t *testing.T) {
	c := New(nil, 0)

	err := c.Start(context.Background())
	if ports.KindOf(err) != ports.ErrorCaptureDeviceDenied {
		t.Errorf("expected CAPTURE_DEVICE_DENIED, got %v", err)
	}
}

func TestCapture_StopWhenIdle(t *testing.T) {
	if err := New(nil, 0).Stop(); err != nil {
		t.Errorf("expected no error stopping idle capture, got %v", err)
	}
}

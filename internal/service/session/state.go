// Package session owns the recognition state and drives each turn from
// capture events through matching to dispatch.
package session

import (
	"fmt"
	"time"

	"voice-command-service/internal/ports"
)

// Phase is the coarse state of the recognition session.
type Phase int

const (
	// PhaseIdle - not listening.
	PhaseIdle Phase = iota
	// PhaseListening - capture is running, transcripts may arrive.
	PhaseListening
	// PhaseProcessing - a final transcript is being matched and dispatched.
	PhaseProcessing
	// PhaseError - capture or dispatch failed. Always followed by PhaseIdle.
	PhaseError
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseListening:
		return "LISTENING"
	case PhaseProcessing:
		return "PROCESSING"
	case PhaseError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseListening, PhaseProcessing, PhaseError} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// IsActive returns true while a capture session or turn is in progress.
func (p Phase) IsActive() bool {
	return p == PhaseListening || p == PhaseProcessing
}

// RecognitionState is what the session exposes to the UI.
type RecognitionState struct {
	Phase              Phase           `json:"phase"`
	ErrorKind          ports.ErrorKind `json:"errorKind"`
	Transcript         string          `json:"transcript"`
	LastMatchedCommand string          `json:"lastMatchedCommand,omitempty"`
	FeedbackText       string          `json:"feedbackText"`
}

// Snapshot is the full machine state: the exposed state plus the epoch that
// scheduled callbacks are checked against.
type Snapshot struct {
	State RecognitionState
	Epoch uint64
}

// Messages holds the user-facing feedback strings.
type Messages struct {
	Listening        string
	NoSpeech         string
	DeviceDenied     string
	PermissionDenied string
	Unknown          string
}

// DefaultMessages returns the Turkish feedback strings.
func DefaultMessages() Messages {
	return Messages{
		Listening:        "Dinliyorum...",
		NoSpeech:         "Ses algılanamadı. Tekrar deneyin.",
		DeviceDenied:     "Mikrofon bulunamadı.",
		PermissionDenied: "Mikrofon izni reddedildi.",
		Unknown:          "Bir hata oluştu.",
	}
}

// For returns the feedback for an error kind.
func (m Messages) For(kind ports.ErrorKind) string {
	switch kind {
	case ports.ErrorNoSpeechDetected:
		return m.NoSpeech
	case ports.ErrorCaptureDeviceDenied:
		return m.DeviceDenied
	case ports.ErrorPermissionDenied:
		return m.PermissionDenied
	default:
		return m.Unknown
	}
}

// Event is an input to the state machine.
type Event interface {
	isEvent()
}

// Events from the public API.
type (
	StartRequested struct{}
	StopRequested  struct{}
)

// Events from the capture service.
type (
	CaptureStarted  struct{}
	InterimReceived struct{ Text string }
	FinalReceived   struct{ Text string }
	CaptureFailed   struct{ Kind ports.ErrorKind }
	CaptureEnded    struct{}
)

// Events from a turn or a timer. Each carries the epoch it was created in.
type (
	Acknowledged struct {
		Epoch    uint64
		Command  string
		Feedback string
	}
	FeedbackCleared struct{ Epoch uint64 }
	TurnCompleted   struct{ Epoch uint64 }
	TurnFailed      struct {
		Epoch uint64
		Err   error
	}
	Deferred struct {
		Epoch uint64
		Fn    func()
	}
	Recovered struct{ Epoch uint64 }
)

func (StartRequested) isEvent()  {}
func (StopRequested) isEvent()   {}
func (CaptureStarted) isEvent()  {}
func (InterimReceived) isEvent() {}
func (FinalReceived) isEvent()   {}
func (CaptureFailed) isEvent()   {}
func (CaptureEnded) isEvent()    {}
func (Acknowledged) isEvent()    {}
func (FeedbackCleared) isEvent() {}
func (TurnCompleted) isEvent()   {}
func (TurnFailed) isEvent()      {}
func (Deferred) isEvent()        {}
func (Recovered) isEvent()       {}

// epochOf returns the epoch an event was tagged with, if any.
func epochOf(e Event) (uint64, bool) {
	switch ev := e.(type) {
	case Acknowledged:
		return ev.Epoch, true
	case FeedbackCleared:
		return ev.Epoch, true
	case TurnCompleted:
		return ev.Epoch, true
	case TurnFailed:
		return ev.Epoch, true
	case Deferred:
		return ev.Epoch, true
	case Recovered:
		return ev.Epoch, true
	default:
		return 0, false
	}
}

// IsStale reports whether e was tagged in an earlier epoch than s.
func IsStale(s Snapshot, e Event) bool {
	epoch, tagged := epochOf(e)
	return tagged && epoch != s.Epoch
}

// Effect is an action the machine shell performs after a transition.
type Effect interface {
	isEffect()
}

type (
	// StartCapture starts the capture service.
	StartCapture struct{ Epoch uint64 }
	// StopCapture stops the capture service.
	StopCapture struct{}
	// CancelTimers stops every pending timer.
	CancelTimers struct{}
	// Recognize matches the transcript and dispatches the result.
	Recognize struct {
		Epoch      uint64
		Transcript string
	}
	// Speak sends text to the speech output arbiter.
	Speak struct{ Text string }
	// SilenceSpeech cancels the utterance in flight.
	SilenceSpeech struct{}
	// Run calls a deferred callback.
	Run struct{ Fn func() }
	// Post feeds an event back in ahead of anything already queued.
	Post struct{ Event Event }
	// Schedule posts Event once Delay has elapsed.
	Schedule struct {
		Delay time.Duration
		Event Event
	}
)

func (StartCapture) isEffect()  {}
func (StopCapture) isEffect()   {}
func (CancelTimers) isEffect()  {}
func (Recognize) isEffect()     {}
func (Speak) isEffect()         {}
func (SilenceSpeech) isEffect() {}
func (Run) isEffect()           {}
func (Post) isEffect()          {}
func (Schedule) isEffect()      {}

// Rules is the pure transition function of the session.
//
// Transitions:
//
//	IDLE/ERROR --Start--> LISTENING            (no-op while LISTENING or PROCESSING)
//	LISTENING --Interim--> LISTENING           (transcript updated)
//	LISTENING --Final--> PROCESSING            (recognize)
//	LISTENING --CaptureEnded--> IDLE
//	LISTENING --CaptureFailed--> ERROR --> IDLE
//	PROCESSING --TurnCompleted--> IDLE
//	PROCESSING --TurnFailed--> ERROR --> IDLE
//	any non-IDLE --Stop--> IDLE                (epoch bumped, timers invalidated, speech cancelled)
type Rules struct {
	Messages Messages
	// FeedbackWindow is how long error feedback stays visible.
	FeedbackWindow time.Duration
	// SpeakErrors speaks error feedback through the arbiter.
	SpeakErrors bool
}

// DefaultRules returns the default transition rules.
func DefaultRules() Rules {
	return Rules{
		Messages:       DefaultMessages(),
		FeedbackWindow: 3 * time.Second,
		SpeakErrors:    true,
	}
}

// Transition returns the next snapshot and the effects to run. It never
// mutates its input.
func (r Rules) Transition(s Snapshot, e Event) (Snapshot, []Effect) {
	if IsStale(s, e) {
		return s, nil
	}

	st := s.State
	switch ev := e.(type) {
	case StartRequested:
		if st.Phase.IsActive() {
			return s, nil
		}
		s.Epoch++
		s.State = RecognitionState{
			Phase:              PhaseListening,
			LastMatchedCommand: st.LastMatchedCommand,
			FeedbackText:       r.Messages.Listening,
		}
		return s, []Effect{CancelTimers{}, StartCapture{Epoch: s.Epoch}}

	case StopRequested:
		if st.Phase == PhaseIdle {
			return s, nil
		}
		s.Epoch++
		s.State = RecognitionState{
			Phase:              PhaseIdle,
			LastMatchedCommand: st.LastMatchedCommand,
		}
		return s, []Effect{CancelTimers{}, StopCapture{}, SilenceSpeech{}}

	case CaptureStarted:
		return s, nil

	case InterimReceived:
		if st.Phase != PhaseListening {
			return s, nil
		}
		s.State.Transcript = ev.Text
		return s, nil

	case FinalReceived:
		if st.Phase != PhaseListening {
			return s, nil
		}
		s.State.Phase = PhaseProcessing
		s.State.Transcript = ev.Text
		return s, []Effect{Recognize{Epoch: s.Epoch, Transcript: ev.Text}}

	case CaptureEnded:
		if st.Phase != PhaseListening {
			return s, nil
		}
		s.State.Phase = PhaseIdle
		s.State.FeedbackText = ""
		return s, nil

	case CaptureFailed:
		if st.Phase != PhaseListening {
			return s, nil
		}
		kind := ev.Kind
		if kind == ports.ErrorNone {
			kind = ports.ErrorUnknown
		}
		return r.fail(s, kind)

	case TurnFailed:
		if st.Phase != PhaseProcessing {
			return s, nil
		}
		return r.fail(s, ports.ErrorUnknown)

	case Recovered:
		if st.Phase != PhaseError {
			return s, nil
		}
		s.State.Phase = PhaseIdle
		s.State.ErrorKind = ports.ErrorNone
		return s, nil

	case Acknowledged:
		if st.Phase != PhaseProcessing {
			return s, nil
		}
		if ev.Command != "" {
			s.State.LastMatchedCommand = ev.Command
		}
		s.State.FeedbackText = ev.Feedback
		return s, nil

	case TurnCompleted:
		if st.Phase != PhaseProcessing {
			return s, nil
		}
		s.State.Phase = PhaseIdle
		return s, nil

	case FeedbackCleared:
		s.State.FeedbackText = ""
		return s, nil

	case Deferred:
		return s, []Effect{Run{Fn: ev.Fn}}
	}

	return s, nil
}

// fail moves to ERROR with feedback for kind, then straight back to IDLE.
func (r Rules) fail(s Snapshot, kind ports.ErrorKind) (Snapshot, []Effect) {
	feedback := r.Messages.For(kind)
	s.State.Phase = PhaseError
	s.State.ErrorKind = kind
	s.State.FeedbackText = feedback

	effects := make([]Effect, 0, 3)
	if r.SpeakErrors {
		effects = append(effects, Speak{Text: feedback})
	}
	effects = append(effects,
		Post{Event: Recovered{Epoch: s.Epoch}},
		Schedule{Delay: r.FeedbackWindow, Event: FeedbackCleared{Epoch: s.Epoch}},
	)
	return s, effects
}

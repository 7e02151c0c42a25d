package google

import (
	"errors"
	"fmt"
	"sync"
)

// streamState is the lifecycle state of one recognition stream.
type streamState int

const (
	// stateOpen - audio accepted, interim results may be reported.
	stateOpen streamState = iota
	// stateFinalReported - the single final transcript has been reported.
	stateFinalReported
	// stateClosed - the stream ended normally.
	stateClosed
	// stateDropped - the stream was abandoned. Nothing more is reported.
	stateDropped
)

func (s streamState) String() string {
	switch s {
	case stateOpen:
		return "OPEN"
	case stateFinalReported:
		return "FINAL_REPORTED"
	case stateClosed:
		return "CLOSED"
	case stateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

func (s streamState) isTerminal() bool {
	return s == stateClosed || s == stateDropped
}

var (
	errStreamClosed        = errors.New("stream is closed")
	errFinalAlreadyEmitted = errors.New("final already reported for this stream")
	errInterimAfterFinal   = errors.New("cannot report interim after final")
)

// lifecycle enforces at most one final transcript per stream and silence
// after a drop.
//
//	OPEN → FINAL_REPORTED → CLOSED
//	  └──────────┴────────→ DROPPED
type lifecycle struct {
	mu    sync.Mutex
	state streamState
}

func (l *lifecycle) current() streamState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) interim() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case stateOpen:
		return nil
	case stateFinalReported:
		return errInterimAfterFinal
	default:
		return errStreamClosed
	}
}

func (l *lifecycle) final() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case stateOpen:
		l.state = stateFinalReported
		return nil
	case stateFinalReported:
		return errFinalAlreadyEmitted
	default:
		return errStreamClosed
	}
}

// close ends the stream and reports whether a final was ever reported.
func (l *lifecycle) close() (hadFinal bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hadFinal = l.state == stateFinalReported
	if !l.state.isTerminal() {
		l.state = stateClosed
	}
	return hadFinal
}

// drop abandons the stream. Returns false if it had already ended.
func (l *lifecycle) drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.isTerminal() {
		return false
	}
	l.state = stateDropped
	return true
}

package session

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TurnIDs generates unique turn identifiers.
type TurnIDs struct {
	prefix  string
	counter uint64
}

// NewTurnIDs creates a generator whose IDs start with prefix.
func NewTurnIDs(prefix string) *TurnIDs {
	return &TurnIDs{prefix: prefix}
}

// Next returns the next turn ID. Safe for concurrent use.
func (g *TurnIDs) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-turn-%d", g.prefix, n)
}

// turn binds one recognition turn to the machine and the epoch it started in.
// Everything it posts is dropped once the epoch moves on.
type turn struct {
	m     *Machine
	id    string
	epoch uint64
}

func (t *turn) ID() string {
	return t.id
}

func (t *turn) Acknowledge(command, feedback string) {
	t.m.post(Acknowledged{Epoch: t.epoch, Command: command, Feedback: feedback})
}

func (t *turn) After(d time.Duration, fn func()) {
	t.m.schedule(d, Deferred{Epoch: t.epoch, Fn: fn})
}

func (t *turn) ClearFeedback() {
	t.m.post(FeedbackCleared{Epoch: t.epoch})
}

func (t *turn) Complete() {
	t.m.post(TurnCompleted{Epoch: t.epoch})
}

func (t *turn) Fail(err error) {
	t.m.post(TurnFailed{Epoch: t.epoch, Err: err})
}

package pending

import (
	"fmt"
	"sync"
	"time"

	"github.com/zelara-ai/app-mobile/internal/proto"
)

// ErrExpired completes a call whose deadline elapsed before a response arrived.
var ErrExpired = fmt.Errorf("pending request expired")

// timerAfterFunc lets tests fire expiry deterministically.
var timerAfterFunc = time.AfterFunc

// Outcome is the terminal result of one registered request: either a decoded
// response or an error. Exactly one Outcome is delivered per Call.
type Outcome struct {
	Resp proto.TaskResponse
	Err  error
}

// Call is the waiter handle returned by Register. The caller receives exactly
// one value from Done.
type Call struct {
	id   string
	done chan Outcome
}

func (c *Call) ID() string { return c.id }

func (c *Call) Done() <-chan Outcome { return c.done }

type entry struct {
	call  *Call
	timer *time.Timer
}

// Table correlates in-flight request ids to their waiters. Resolve and expiry
// race freely; whichever removes the entry first wins and the other is a no-op.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Register creates a waiter for id that expires after timeout. Registering an
// id that is already in flight is a programmer error.
func (t *Table) Register(id string, timeout time.Duration) (*Call, error) {
	if id == "" {
		return nil, fmt.Errorf("empty request id")
	}
	call := &Call{id: id, done: make(chan Outcome, 1)}
	t.mu.Lock()
	if _, ok := t.entries[id]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("duplicate request id %s", id)
	}
	e := &entry{call: call}
	e.timer = timerAfterFunc(timeout, func() { t.expire(id) })
	t.entries[id] = e
	t.mu.Unlock()
	return call, nil
}

// Resolve completes the waiter for id with resp and removes it. Unknown ids
// (late, duplicate, or foreign responses) are a no-op.
func (t *Table) Resolve(id string, resp proto.TaskResponse) bool {
	e, ok := t.remove(id)
	if !ok {
		return false
	}
	e.call.done <- Outcome{Resp: resp}
	return true
}

// Fail completes the waiter for id with err and removes it.
func (t *Table) Fail(id string, err error) bool {
	e, ok := t.remove(id)
	if !ok {
		return false
	}
	e.call.done <- Outcome{Err: err}
	return true
}

// Cancel removes the waiter for id without completing it. Used when the send
// that followed Register failed and the caller surfaces that failure itself.
func (t *Table) Cancel(id string) bool {
	_, ok := t.remove(id)
	return ok
}

// FailAll completes every outstanding waiter with err. Used when the transport
// closes underneath the in-flight requests.
func (t *Table) FailAll(err error) {
	t.mu.Lock()
	drained := make([]*entry, 0, len(t.entries))
	for id, e := range t.entries {
		e.timer.Stop()
		drained = append(drained, e)
		delete(t.entries, id)
	}
	t.mu.Unlock()
	for _, e := range drained {
		e.call.done <- Outcome{Err: err}
	}
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) expire(id string) {
	e, ok := t.remove(id)
	if !ok {
		return
	}
	e.call.done <- Outcome{Err: ErrExpired}
}

// remove deletes and returns the entry for id. Deletion under the lock is what
// guarantees at most one of resolve/fail/expire completes a given call.
func (t *Table) remove(id string) (*entry, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.timer.Stop()
	return e, true
}

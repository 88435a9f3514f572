package resolver

import (
	"sync"
	"time"
)

type outcome struct {
	resp response
	err  error
}

// pendingCall is completed at most once: only the goroutine that removes it
// from the table may send on done.
type pendingCall struct {
	done    chan outcome
	timer   *time.Timer
	started time.Time
}

type pendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

// add registers a call and arms its expiry timer. The timer is created under
// the lock so onExpire cannot observe the table before the entry exists.
func (t *pendingTable) add(id string, timeout time.Duration, onExpire func()) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	call := &pendingCall{
		done:    make(chan outcome, 1),
		started: time.Now(),
	}
	call.timer = time.AfterFunc(timeout, onExpire)
	t.calls[id] = call
	return call
}

// take removes and returns the call for id. It succeeds for exactly one caller.
func (t *pendingTable) take(id string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[id]
	if !ok {
		return nil, false
	}
	delete(t.calls, id)
	call.timer.Stop()
	return call, true
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

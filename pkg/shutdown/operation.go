package shutdown

import (
	"sync/atomic"
	"time"
)

// operationTracker counts in-flight operations so a shutdown's
// DrainConnections phase can wait for them to finish before proceeding.
type operationTracker struct {
	active atomic.Int64
}

func newOperationTracker() *operationTracker {
	return &operationTracker{}
}

func (t *operationTracker) begin() { t.active.Add(1) }

func (t *operationTracker) end() { t.active.Add(-1) }

// waitAllComplete blocks until no operation is in flight, or timeout
// elapses. It polls at a short fixed interval rather than using a
// condition variable, which keeps a timed-out caller from leaving a
// goroutine parked on a broadcast that may never come.
func (t *operationTracker) waitAllComplete(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = 5 * time.Millisecond
	for {
		if t.active.Load() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// ActiveOperationGuard tracks one in-flight operation against a
// Coordinator's tracker for the duration the guard is held. Shutdown's
// DrainConnections phase waits for every outstanding guard to be
// released before moving on.
type ActiveOperationGuard struct {
	tracker *operationTracker
	valid   bool
}

// NewActiveOperationGuard registers one in-flight operation against c.
// If a shutdown of c has already begun (StopAccepting or any later
// phase), the guard is returned invalid and
// the caller should refuse to start the operation rather than race a
// shutdown already in progress.
func NewActiveOperationGuard(c *Coordinator) *ActiveOperationGuard {
	if c.InProgress() && c.CurrentPhase() >= StopAccepting {
		return &ActiveOperationGuard{tracker: c.ops, valid: false}
	}
	c.ops.begin()
	return &ActiveOperationGuard{tracker: c.ops, valid: true}
}

// Valid reports whether the guard represents a tracked operation.
func (g *ActiveOperationGuard) Valid() bool { return g.valid }

// Release ends the tracked operation. Calling it more than once is a
// no-op.
func (g *ActiveOperationGuard) Release() {
	if !g.valid {
		return
	}
	g.valid = false
	g.tracker.end()
}

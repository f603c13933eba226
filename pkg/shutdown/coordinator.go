package shutdown

import (
	"sync"
	"time"

	"edgesql/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Phase is one stage of an orderly shutdown, executed in declaration
// order.
type Phase int

const (
	StopAccepting Phase = iota
	DrainConnections
	FlushWAL
	CloseFiles
	Cleanup
	Done
)

func (p Phase) String() string {
	switch p {
	case StopAccepting:
		return "STOP_ACCEPTING"
	case DrainConnections:
		return "DRAIN_CONNECTIONS"
	case FlushWAL:
		return "FLUSH_WAL"
	case CloseFiles:
		return "CLOSE_FILES"
	case Cleanup:
		return "CLEANUP"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

var allPhases = []Phase{StopAccepting, DrainConnections, FlushWAL, CloseFiles, Cleanup, Done}

// Callback is one unit of shutdown work registered against a phase.
type Callback func() error

// Coordinator drives an engine through StopAccepting -> DrainConnections
// -> FlushWAL -> CloseFiles -> Cleanup -> Done, running each phase's
// callbacks concurrently and logging (rather than aborting on) any
// individual callback's error, then waiting out DrainConnections for
// in-flight operations tracked by an ActiveOperationGuard.
type Coordinator struct {
	mu        sync.Mutex
	callbacks map[Phase][]Callback

	started  bool
	complete bool
	current  Phase

	ops *operationTracker
}

// New creates a Coordinator with no registered callbacks.
func New() *Coordinator {
	return &Coordinator{
		callbacks: make(map[Phase][]Callback),
		ops:       newOperationTracker(),
	}
}

// Register adds callback to run during phase, in the order registered
// relative to other callbacks in the same phase (though callbacks within
// a phase run concurrently with each other, not sequentially).
func (c *Coordinator) Register(phase Phase, callback Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[phase] = append(c.callbacks[phase], callback)
}

// Tracker returns the operation tracker new ActiveOperationGuards should
// register against.
func (c *Coordinator) Tracker() *operationTracker { return c.ops }

// InProgress reports whether Initiate has been called.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// CurrentPhase returns the phase currently executing, or most recently
// completed if shutdown has finished.
func (c *Coordinator) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Initiate runs every phase in order, waiting for in-flight operations
// to drain during DrainConnections. It returns false if timeout elapses
// before Done completes; a second call while shutdown is already running
// just waits for the first call's completion.
func (c *Coordinator) Initiate(timeout time.Duration) bool {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c.WaitForPhase(Done, timeout)
	}
	c.started = true
	c.mu.Unlock()

	log := logging.WithComponent("shutdown")
	log.Info("initiating graceful shutdown")
	deadline := time.Now().Add(timeout)

	for _, phase := range allPhases {
		if time.Now().After(deadline) {
			log.Error("shutdown timeout", "phase", phase)
			return false
		}

		c.executePhase(phase)

		if phase == DrainConnections {
			remaining := time.Until(deadline)
			if remaining > 0 && !c.ops.waitAllComplete(remaining) {
				log.Error("timeout waiting for active operations to complete")
			}
		}
	}

	c.mu.Lock()
	c.complete = true
	c.mu.Unlock()

	log.Info("shutdown complete")
	return true
}

func (c *Coordinator) executePhase(phase Phase) {
	log := logging.WithComponent("shutdown")
	log.Info("shutdown phase starting", "phase", phase)

	c.mu.Lock()
	c.current = phase
	callbacks := append([]Callback(nil), c.callbacks[phase]...)
	c.mu.Unlock()

	if len(callbacks) > 0 {
		var eg errgroup.Group
		for _, cb := range callbacks {
			cb := cb
			eg.Go(func() error {
				if err := cb(); err != nil {
					log.Error("shutdown callback failed", "phase", phase, "error", err)
				}
				return nil
			})
		}
		eg.Wait()
	}
}

// WaitForPhase blocks until phase has started (or shutdown has
// completed), or timeout elapses. It polls rather than parking on the
// phase condition variable indefinitely, so a caller that times out
// never leaves a goroutine waiting on a broadcast that may never come.
func (c *Coordinator) WaitForPhase(phase Phase, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = 5 * time.Millisecond

	for {
		c.mu.Lock()
		reached := c.current >= phase || c.complete
		c.mu.Unlock()
		if reached {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

package shutdown

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestInitiateRunsPhasesInOrder(t *testing.T) {
	c := New()
	var order []Phase

	record := func(p Phase) Callback {
		return func() error {
			order = append(order, p)
			return nil
		}
	}
	for _, p := range allPhases {
		c.Register(p, record(p))
	}

	if !c.Initiate(time.Second) {
		t.Fatal("Initiate reported failure")
	}
	if len(order) != len(allPhases) {
		t.Fatalf("ran %d phase callbacks, want %d", len(order), len(allPhases))
	}
	for i, p := range allPhases {
		if order[i] != p {
			t.Fatalf("phase %d ran as %v, want %v", i, order[i], p)
		}
	}
}

func TestInitiateIsIdempotent(t *testing.T) {
	c := New()
	var calls atomic.Int64
	c.Register(StopAccepting, func() error {
		calls.Add(1)
		return nil
	})

	done := make(chan bool, 2)
	go func() { done <- c.Initiate(time.Second) }()
	go func() { done <- c.Initiate(time.Second) }()

	for i := 0; i < 2; i++ {
		if !<-done {
			t.Fatal("Initiate reported failure")
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("StopAccepting callback ran %d times, want 1", calls.Load())
	}
}

func TestInitiateContinuesAfterCallbackError(t *testing.T) {
	c := New()
	var ranCleanup atomic.Bool
	c.Register(FlushWAL, func() error {
		return errTestCallback
	})
	c.Register(Cleanup, func() error {
		ranCleanup.Store(true)
		return nil
	})

	if !c.Initiate(time.Second) {
		t.Fatal("Initiate reported failure")
	}
	if !ranCleanup.Load() {
		t.Fatal("a later phase's callback should still run after an earlier callback errors")
	}
}

func TestDrainConnectionsWaitsForActiveOperations(t *testing.T) {
	c := New()
	guard := NewActiveOperationGuard(c)
	if !guard.Valid() {
		t.Fatal("guard should be valid before shutdown starts")
	}

	releaseAfter := 30 * time.Millisecond
	go func() {
		time.Sleep(releaseAfter)
		guard.Release()
	}()

	start := time.Now()
	if !c.Initiate(time.Second) {
		t.Fatal("Initiate reported failure")
	}
	if time.Since(start) < releaseAfter {
		t.Fatal("shutdown completed before the active operation released")
	}
}

func TestActiveOperationGuardRejectsNewWorkDuringShutdown(t *testing.T) {
	c := New()
	c.Register(StopAccepting, func() error {
		g := NewActiveOperationGuard(c)
		if g.Valid() {
			t.Error("a guard acquired after StopAccepting should be invalid")
		}
		return nil
	})
	c.Initiate(time.Second)
}

var errTestCallback = errors.New("callback failed")

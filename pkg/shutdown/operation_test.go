package shutdown

import (
	"testing"
	"time"
)

func TestOperationTrackerWaitAllCompleteReturnsImmediatelyWhenIdle(t *testing.T) {
	tr := newOperationTracker()
	if !tr.waitAllComplete(10 * time.Millisecond) {
		t.Fatal("an idle tracker should report complete immediately")
	}
}

func TestOperationTrackerWaitAllCompleteTimesOut(t *testing.T) {
	tr := newOperationTracker()
	tr.begin()
	defer tr.end()

	if tr.waitAllComplete(20 * time.Millisecond) {
		t.Fatal("waitAllComplete should time out while an operation is still active")
	}
}

func TestActiveOperationGuardReleaseIsIdempotent(t *testing.T) {
	c := New()
	g := NewActiveOperationGuard(c)
	g.Release()
	g.Release()
	if !c.ops.waitAllComplete(10 * time.Millisecond) {
		t.Fatal("releasing twice should not leave the tracker thinking an operation is still active")
	}
}

package memory

import (
	"edgesql/pkg/dberrors"
	"testing"
)

func TestQueryAllocatorEnforcesBudget(t *testing.T) {
	arena := NewArena(1024)
	qa := NewQueryAllocator(100, arena)

	if _, err := qa.Allocate(60); err != nil {
		t.Fatalf("Allocate(60) failed: %v", err)
	}
	if _, err := qa.Allocate(60); err == nil {
		t.Fatal("expected second allocation to exceed the budget")
	} else if dberrors.CategoryOf(err) != dberrors.Budget {
		t.Fatalf("CategoryOf(err) = %v, want Budget", dberrors.CategoryOf(err))
	}
	if qa.BytesUsed() != 60 {
		t.Fatalf("BytesUsed() = %d, want 60 (rejected allocation must not count)", qa.BytesUsed())
	}
}

func TestQueryAllocatorRemaining(t *testing.T) {
	arena := NewArena(1024)
	qa := NewQueryAllocator(100, arena)
	qa.Allocate(30)
	if qa.Remaining() != 70 {
		t.Fatalf("Remaining() = %d, want 70", qa.Remaining())
	}
}

func TestQueryAllocatorResetDoesNotTouchArena(t *testing.T) {
	arena := NewArena(1024)
	qa := NewQueryAllocator(100, arena)
	qa.Allocate(50)
	before := arena.BytesAllocated()
	qa.Reset()
	if qa.BytesUsed() != 0 {
		t.Fatalf("BytesUsed() = %d, want 0 after Reset", qa.BytesUsed())
	}
	if arena.BytesAllocated() != before {
		t.Fatalf("Reset must not affect the underlying arena's allocation count")
	}
}

package execctx

import (
	"strings"
	"testing"
	"time"

	"edgesql/pkg/memory"
)

func newTestContext(t *testing.T, budget Budget) *Context {
	t.Helper()
	arena := memory.NewArena(4096)
	alloc := memory.NewQueryAllocator(budget.MaxMemoryBytes, arena)
	ctx := New(budget, alloc)
	ctx.Start()
	return ctx
}

func TestCheckBudgetReturnsNoneWithinLimits(t *testing.T) {
	ctx := newTestContext(t, DefaultBudget())
	if v := ctx.CheckBudget(); v != None {
		t.Fatalf("CheckBudget() = %v, want None", v)
	}
}

func TestCheckBudgetDetectsAbort(t *testing.T) {
	ctx := newTestContext(t, DefaultBudget())
	ctx.Abort()
	if v := ctx.CheckBudget(); v != Aborted {
		t.Fatalf("CheckBudget() = %v, want Aborted", v)
	}
}

func TestCheckBudgetDetectsInstructionsExceeded(t *testing.T) {
	budget := DefaultBudget()
	budget.MaxInstructions = 10
	ctx := newTestContext(t, budget)
	ctx.RecordInstructions(10)
	if v := ctx.CheckBudget(); v != InstructionsExceeded {
		t.Fatalf("CheckBudget() = %v, want InstructionsExceeded", v)
	}
}

func TestCheckBudgetDetectsRowsExceeded(t *testing.T) {
	budget := DefaultBudget()
	budget.MaxResultRows = 1
	ctx := newTestContext(t, budget)
	ctx.RecordRowReturned()
	if v := ctx.CheckBudget(); v != RowsExceeded {
		t.Fatalf("CheckBudget() = %v, want RowsExceeded", v)
	}
}

func TestCheckBudgetDetectsTimeout(t *testing.T) {
	budget := DefaultBudget()
	budget.MaxTime = time.Nanosecond
	ctx := newTestContext(t, budget)
	time.Sleep(time.Millisecond)
	if v := ctx.CheckBudget(); v != Timeout {
		t.Fatalf("CheckBudget() = %v, want Timeout", v)
	}
}

func TestCheckBudgetDetectsMemoryExceeded(t *testing.T) {
	budget := DefaultBudget()
	budget.MaxMemoryBytes = 8
	ctx := newTestContext(t, budget)
	if _, err := ctx.Allocator.Allocate(8); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if v := ctx.CheckBudget(); v != MemoryExceeded {
		t.Fatalf("CheckBudget() = %v, want MemoryExceeded", v)
	}
}

func TestCheckBudgetPriorityAbortBeforeOthers(t *testing.T) {
	budget := DefaultBudget()
	budget.MaxInstructions = 1
	ctx := newTestContext(t, budget)
	ctx.RecordInstructions(5)
	ctx.Abort()
	if v := ctx.CheckBudget(); v != Aborted {
		t.Fatalf("CheckBudget() = %v, want Aborted to take priority", v)
	}
}

func TestShouldStopMatchesCheckBudget(t *testing.T) {
	ctx := newTestContext(t, DefaultBudget())
	if ctx.ShouldStop() {
		t.Fatal("a fresh context should not signal stop")
	}
	ctx.Abort()
	if !ctx.ShouldStop() {
		t.Fatal("an aborted context should signal stop")
	}
}

func TestFinalizeStampsElapsed(t *testing.T) {
	ctx := newTestContext(t, DefaultBudget())
	ctx.Finalize()
	if ctx.Stats().Elapsed < 0 {
		t.Fatal("expected a non-negative elapsed duration")
	}
}

func TestFailRecordsViolationAndReturnsItsError(t *testing.T) {
	ctx := newTestContext(t, DefaultBudget())
	ctx.Start()
	err := ctx.Fail(MemoryExceeded)
	if err == nil {
		t.Fatal("Fail must return a non-nil error")
	}
	if ctx.Violation() != MemoryExceeded {
		t.Fatalf("Violation() = %v, want MemoryExceeded", ctx.Violation())
	}
	if ctx.Stats().Violation != MemoryExceeded {
		t.Fatalf("Stats().Violation = %v, want MemoryExceeded", ctx.Stats().Violation)
	}
}

func TestTimeoutErrorMessageMatchesSpecWording(t *testing.T) {
	err := Timeout.Err()
	if err == nil || !strings.Contains(err.Error(), "Query timeout") {
		t.Fatalf("Timeout.Err() = %v, want a message containing \"Query timeout\"", err)
	}
}

package execctx

import (
	"fmt"
	"sync/atomic"
	"time"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/memory"
)

// Violation names the reason a query's budget check failed.
type Violation int

const (
	// None means the budget has not been violated.
	None Violation = iota
	// Aborted means the caller called Abort before the budget itself was exceeded.
	Aborted
	// Timeout means MaxTime elapsed.
	Timeout
	// InstructionsExceeded means MaxInstructions was reached.
	InstructionsExceeded
	// RowsExceeded means MaxResultRows was reached.
	RowsExceeded
	// MemoryExceeded means the query allocator's budget was exhausted.
	MemoryExceeded
)

func (v Violation) String() string {
	switch v {
	case None:
		return "none"
	case Aborted:
		return "aborted"
	case Timeout:
		return "timeout"
	case InstructionsExceeded:
		return "instructions_exceeded"
	case RowsExceeded:
		return "rows_exceeded"
	case MemoryExceeded:
		return "memory_exceeded"
	default:
		return "unknown"
	}
}

// Budget caps the resources a single query may consume.
type Budget struct {
	MaxMemoryBytes  uint64
	MaxInstructions uint64
	MaxTime         time.Duration
	MaxResultRows   uint64
}

// DefaultBudget is a conservative cap suitable for an interactive query
// with no caller-supplied override.
func DefaultBudget() Budget {
	return Budget{
		MaxMemoryBytes:  16 * 1024 * 1024,
		MaxInstructions: 10_000_000,
		MaxTime:         5 * time.Second,
		MaxResultRows:   100_000,
	}
}

// Context is the per-query execution context: the budget, the live
// counters operators report against it, and the allocator rows are
// materialized through. It is not safe for concurrent use except for
// Abort, which may be called from another goroutine to cancel the query.
type Context struct {
	Budget    Budget
	Allocator *memory.QueryAllocator

	startTime time.Time
	started   bool
	elapsed   time.Duration

	instructions uint64
	rowsScanned  uint64
	rowsReturned uint64

	aborted   atomic.Bool
	violation Violation
}

// New creates a Context bound to budget and allocator. allocator must
// already be sized to budget.MaxMemoryBytes.
func New(budget Budget, allocator *memory.QueryAllocator) *Context {
	return &Context{Budget: budget, Allocator: allocator}
}

// Start stamps the query's start time. It must be called before the first
// CheckBudget call; calling it again re-stamps the start time.
func (c *Context) Start() {
	c.startTime = time.Now()
	c.started = true
}

// RecordInstructions adds n to the instruction counter. Operators report
// work proportional to rows processed: a scan reports at least 5 per row,
// a sort at least 10 per row materialized, open/close report 10 each.
func (c *Context) RecordInstructions(n uint64) {
	c.instructions += n
}

// RecordRowScanned increments the rows-scanned counter.
func (c *Context) RecordRowScanned() {
	c.rowsScanned++
}

// RecordRowReturned increments the rows-returned counter.
func (c *Context) RecordRowReturned() {
	c.rowsReturned++
}

// Abort cooperatively cancels the query. The next CheckBudget or
// ShouldStop call observes it. Safe to call from another goroutine.
func (c *Context) Abort() {
	c.aborted.Store(true)
}

// CheckBudget evaluates every cap in priority order (aborted, timeout,
// instructions, rows, memory) and returns the first violation found, or
// None if the query is still within budget. On a violation it records
// the tag and stamps the elapsed time; the caller (an operator) must
// treat this as an ordinary error return, not panic.
func (c *Context) CheckBudget() Violation {
	if c.aborted.Load() {
		return c.violate(Aborted)
	}
	if c.started && c.Budget.MaxTime > 0 && time.Since(c.startTime) > c.Budget.MaxTime {
		return c.violate(Timeout)
	}
	if c.Budget.MaxInstructions > 0 && c.instructions >= c.Budget.MaxInstructions {
		return c.violate(InstructionsExceeded)
	}
	if c.Budget.MaxResultRows > 0 && c.rowsReturned >= c.Budget.MaxResultRows {
		return c.violate(RowsExceeded)
	}
	if c.Allocator != nil && c.Allocator.MemoryLimit() > 0 && c.Allocator.BytesUsed() >= c.Allocator.MemoryLimit() {
		return c.violate(MemoryExceeded)
	}
	return None
}

func (c *Context) violate(v Violation) Violation {
	c.violation = v
	c.elapsed = time.Since(c.startTime)
	return v
}

// Fail records v as this query's violation and returns its error. Use it
// for a violation an operator detects directly rather than through
// CheckBudget, such as a QueryAllocator refusing an allocation: the
// violation must still be recorded so Stats and Violation reflect why the
// query stopped.
func (c *Context) Fail(v Violation) error {
	c.violate(v)
	return v.Err()
}

// ShouldStop is a cheap, allocation-free variant of CheckBudget for tight
// loops that only need a yes/no answer.
func (c *Context) ShouldStop() bool {
	return c.CheckBudget() != None
}

// Finalize stamps the final elapsed time. Call once after the query
// finishes, successfully or not.
func (c *Context) Finalize() {
	if c.started {
		c.elapsed = time.Since(c.startTime)
	}
}

// Violation returns the most recently recorded violation, or None.
func (c *Context) Violation() Violation { return c.violation }

// Stats snapshots the context's counters for reporting.
func (c *Context) Stats() Stats {
	return Stats{
		Instructions: c.instructions,
		RowsScanned:  c.rowsScanned,
		RowsReturned: c.rowsReturned,
		Elapsed:      c.elapsed,
		Violation:    c.violation,
	}
}

// Err returns a *dberrors.Error carrying v as a Budget-category failure,
// or nil if v is None. Operators call this to turn a CheckBudget result
// into the ordinary error return the executor expects.
func (v Violation) Err() error {
	if v == None {
		return nil
	}
	if v == Timeout {
		return dberrors.New(dberrors.Budget, "QUERY_BUDGET_EXCEEDED", "Query timeout")
	}
	return dberrors.New(dberrors.Budget, "QUERY_BUDGET_EXCEEDED", fmt.Sprintf("query budget exceeded: %s", v))
}

// Stats is a point-in-time snapshot of a Context's counters.
type Stats struct {
	Instructions uint64
	RowsScanned  uint64
	RowsReturned uint64
	Elapsed      time.Duration
	Violation    Violation
}

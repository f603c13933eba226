package exec

import "edgesql/pkg/execctx"

// Operator is a pull-based query operator: Open prepares it, repeated
// Next calls pull rows, and Close releases any resources. Implementations
// must call ctx.CheckBudget (directly or via RecordInstructions-then-check
// in the caller) proportional to the work they do.
type Operator interface {
	Open(ctx *execctx.Context) error
	// Next returns the next row, or ok=false once the operator is
	// exhausted. A non-nil error aborts execution (including a budget
	// violation, surfaced as a *dberrors.Error with category Budget).
	Next(ctx *execctx.Context) (row Row, ok bool, err error)
	Close() error
	ColumnNames() []string
}

package exec

import "edgesql/pkg/execctx"

// Limit skips Offset rows from the child, then yields at most Limit more.
// A negative Limit means unbounded.
type Limit struct {
	Child  Operator
	Limit  int
	Offset int

	skipped  int
	returned int
}

// NewLimit wraps child, applying the given offset and limit.
func NewLimit(child Operator, limit, offset int) *Limit {
	return &Limit{Child: child, Limit: limit, Offset: offset}
}

func (l *Limit) Open(ctx *execctx.Context) error {
	l.skipped = 0
	l.returned = 0
	return l.Child.Open(ctx)
}

func (l *Limit) Next(ctx *execctx.Context) (Row, bool, error) {
	if l.Limit >= 0 && l.returned >= l.Limit {
		return nil, false, nil
	}

	for l.skipped < l.Offset {
		if v := ctx.CheckBudget(); v != execctx.None {
			return nil, false, v.Err()
		}
		_, ok, err := l.Child.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		l.skipped++
	}

	if v := ctx.CheckBudget(); v != execctx.None {
		return nil, false, v.Err()
	}
	row, ok, err := l.Child.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	l.returned++
	return row, true, nil
}

func (l *Limit) Close() error { return l.Child.Close() }

func (l *Limit) ColumnNames() []string { return l.Child.ColumnNames() }

package exec

import "edgesql/pkg/execctx"

// Filter yields the child's rows for which Predicate evaluates to TRUE.
// NULL and FALSE both exclude the row.
type Filter struct {
	Child     Operator
	Predicate Expr
}

// NewFilter wraps child, keeping only rows matching predicate.
func NewFilter(child Operator, predicate Expr) *Filter {
	return &Filter{Child: child, Predicate: predicate}
}

func (f *Filter) Open(ctx *execctx.Context) error {
	return f.Child.Open(ctx)
}

func (f *Filter) Next(ctx *execctx.Context) (Row, bool, error) {
	for {
		if v := ctx.CheckBudget(); v != execctx.None {
			return nil, false, v.Err()
		}
		row, ok, err := f.Child.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		ctx.RecordInstructions(2)
		match, err := f.Predicate.Eval(row)
		if err != nil {
			return nil, false, err
		}
		if !match.IsNull() && match.Bool {
			return row, true, nil
		}
	}
}

func (f *Filter) Close() error { return f.Child.Close() }

func (f *Filter) ColumnNames() []string { return f.Child.ColumnNames() }

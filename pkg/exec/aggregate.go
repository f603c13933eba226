package exec

import (
	"fmt"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/execctx"
	"edgesql/pkg/storage/record"
)

// Aggregate accumulates Specs across every row the child produces and
// emits exactly one output row. Grouping is out of scope.
type Aggregate struct {
	Child Operator
	Specs []AggregateSpec

	emitted bool
	names   []string
}

// NewAggregate wraps child, computing specs over its entire output.
func NewAggregate(child Operator, specs []AggregateSpec) *Aggregate {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.OutputName
	}
	return &Aggregate{Child: child, Specs: specs, names: names}
}

func (a *Aggregate) Open(ctx *execctx.Context) error {
	a.emitted = false
	return a.Child.Open(ctx)
}

func (a *Aggregate) Next(ctx *execctx.Context) (Row, bool, error) {
	if a.emitted {
		return nil, false, nil
	}

	accs := make([]*aggAccumulator, len(a.Specs))
	for i, spec := range a.Specs {
		accs[i] = newAggAccumulator(spec)
	}

	for {
		if v := ctx.CheckBudget(); v != execctx.None {
			return nil, false, v.Err()
		}
		row, ok, err := a.Child.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		ctx.RecordInstructions(5)
		for i, spec := range a.Specs {
			var v record.Value
			if spec.Arg != nil {
				v, err = spec.Arg.Eval(row)
				if err != nil {
					return nil, false, err
				}
			}
			if err := accs[i].add(v); err != nil {
				return nil, false, err
			}
		}
	}

	out := make(Row, len(accs))
	for i, acc := range accs {
		out[i] = acc.result()
	}
	a.emitted = true
	return out, true, nil
}

func (a *Aggregate) Close() error { return a.Child.Close() }

func (a *Aggregate) ColumnNames() []string { return a.names }

// aggAccumulator accumulates a single aggregate function's running state.
type aggAccumulator struct {
	spec AggregateSpec

	count            int64
	sum              float64
	sawFloat         bool
	min, max         record.Value
	haveMin, haveMax bool
	seen             map[string]bool
}

func newAggAccumulator(spec AggregateSpec) *aggAccumulator {
	acc := &aggAccumulator{spec: spec}
	if spec.Distinct {
		acc.seen = make(map[string]bool)
	}
	return acc
}

func (a *aggAccumulator) add(v record.Value) error {
	// COUNT(*) has no Arg, so every row counts regardless of NULL-ness.
	if a.spec.Func == AggCount && a.spec.Arg == nil {
		a.count++
		return nil
	}
	if v.IsNull() {
		return nil
	}
	if a.spec.Distinct {
		key := distinctKey(v)
		if a.seen[key] {
			return nil
		}
		a.seen[key] = true
	}

	switch a.spec.Func {
	case AggCount:
		a.count++
	case AggSum, AggAvg:
		f, ok := asNumeric(v)
		if !ok {
			return dberrors.New(dberrors.Validation, "AGGREGATE_REQUIRES_NUMERIC",
				fmt.Sprintf("%s requires a numeric argument, got %s", aggFuncName(a.spec.Func), v.Type))
		}
		a.sum += f
		a.count++
		if v.Type == record.Float {
			a.sawFloat = true
		}
	case AggMin:
		if !a.haveMin {
			a.min, a.haveMin = v, true
			return nil
		}
		cmp, err := compareValues(v, a.min)
		if err != nil {
			return err
		}
		if cmp < 0 {
			a.min = v
		}
	case AggMax:
		if !a.haveMax {
			a.max, a.haveMax = v, true
			return nil
		}
		cmp, err := compareValues(v, a.max)
		if err != nil {
			return err
		}
		if cmp > 0 {
			a.max = v
		}
	default:
		return dberrors.New(dberrors.Validation, "UNKNOWN_AGGREGATE", fmt.Sprintf("unknown aggregate function %v", a.spec.Func))
	}
	return nil
}

func (a *aggAccumulator) result() record.Value {
	switch a.spec.Func {
	case AggCount:
		return record.IntValue(a.count)
	case AggSum:
		if a.count == 0 {
			return record.NullValue()
		}
		if a.sawFloat {
			return record.FloatValue(a.sum)
		}
		return record.IntValue(int64(a.sum))
	case AggAvg:
		if a.count == 0 {
			return record.NullValue()
		}
		return record.FloatValue(a.sum / float64(a.count))
	case AggMin:
		if !a.haveMin {
			return record.NullValue()
		}
		return a.min
	case AggMax:
		if !a.haveMax {
			return record.NullValue()
		}
		return a.max
	default:
		return record.NullValue()
	}
}

func distinctKey(v record.Value) string {
	return fmt.Sprintf("%d:%v", v.Type, v)
}

func aggFuncName(f AggFunc) string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	default:
		return "UNKNOWN"
	}
}

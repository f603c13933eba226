package exec

import (
	"sort"

	"edgesql/pkg/execctx"
	"edgesql/pkg/storage/record"
)

// Sort materializes its child on the first Next call and streams the
// result back ordered by Keys. NULL compares lower than any non-NULL
// value, so NULLs come first for an ascending key and last for a
// descending one.
type Sort struct {
	Child Operator
	Keys  []SortKey

	rows  []Row
	pos   int
	ready bool
}

// NewSort wraps child, ordering its rows by keys.
func NewSort(child Operator, keys []SortKey) *Sort {
	return &Sort{Child: child, Keys: keys}
}

func (s *Sort) Open(ctx *execctx.Context) error {
	s.rows = nil
	s.pos = 0
	s.ready = false
	return s.Child.Open(ctx)
}

func (s *Sort) materialize(ctx *execctx.Context) error {
	for {
		if v := ctx.CheckBudget(); v != execctx.None {
			return v.Err()
		}
		row, ok, err := s.Child.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if ctx.Allocator != nil {
			if _, err := ctx.Allocator.Allocate(row.EstimatedSize()); err != nil {
				return ctx.Fail(execctx.MemoryExceeded)
			}
		}
		s.rows = append(s.rows, row)
		ctx.RecordInstructions(10)
	}

	var sortErr error
	sort.SliceStable(s.rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := s.less(s.rows[i], s.rows[j])
		if err != nil {
			sortErr = err
		}
		return less
	})
	s.ready = true
	return sortErr
}

func (s *Sort) less(a, b Row) (bool, error) {
	for _, key := range s.Keys {
		av, err := key.Expr.Eval(a)
		if err != nil {
			return false, err
		}
		bv, err := key.Expr.Eval(b)
		if err != nil {
			return false, err
		}

		cmp, eq := compareForSort(av, bv)
		if eq {
			continue
		}
		if !key.Ascending {
			cmp = -cmp
		}
		return cmp < 0, nil
	}
	return false, nil
}

// compareForSort orders NULL before any non-NULL value, and otherwise
// defers to compareValues for same-type operands. Cross-type keys are
// treated as incomparable-but-equal so sort falls through to the next key
// rather than erroring: ORDER BY is expected to tolerate heterogeneous
// columns that comparison expressions do not.
func compareForSort(a, b record.Value) (cmp int, equal bool) {
	if a.IsNull() && b.IsNull() {
		return 0, true
	}
	if a.IsNull() {
		return -1, false
	}
	if b.IsNull() {
		return 1, false
	}
	c, err := compareValues(a, b)
	if err != nil {
		return 0, true
	}
	return c, c == 0
}

func (s *Sort) Next(ctx *execctx.Context) (Row, bool, error) {
	if !s.ready {
		if err := s.materialize(ctx); err != nil {
			return nil, false, err
		}
	}
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func (s *Sort) Close() error { return s.Child.Close() }

func (s *Sort) ColumnNames() []string { return s.Child.ColumnNames() }

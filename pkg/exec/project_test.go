package exec

import (
	"testing"

	"edgesql/pkg/storage/record"
)

func TestProjectEvaluatesExprsPerRow(t *testing.T) {
	child := newSliceOperator([]string{"a", "b"}, []Row{
		{record.IntValue(2), record.IntValue(3)},
	})
	sum := BinaryExpr{Left: ColumnRef{Index: 0}, Right: ColumnRef{Index: 1}, Arith: OpAdd}
	p := NewProject(child, []Expr{sum, ColumnRef{Index: 0}}, []string{"sum", "a"})

	ctx := newTestContext()
	ctx.Start()
	if err := p.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	row, ok, err := p.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next failed: err=%v ok=%v", err, ok)
	}
	if row[0].Int != 5 || row[1].Int != 2 {
		t.Fatalf("got %+v, want [5 2]", row)
	}
	if names := p.ColumnNames(); len(names) != 2 || names[0] != "sum" {
		t.Fatalf("ColumnNames = %v", names)
	}
}

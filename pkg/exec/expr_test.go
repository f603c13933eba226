package exec

import (
	"testing"

	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/record"
)

func mustEval(t *testing.T, e Expr, row Row) record.Value {
	t.Helper()
	v, err := e.Eval(row)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	return v
}

func TestBinaryExprComparison(t *testing.T) {
	e := BinaryExpr{Left: literalInt(3), Right: literalInt(5), IsComparison: true, Cmp: primitives.OpLessThan}
	v := mustEval(t, e, nil)
	if v.Type != record.Boolean || !v.Bool {
		t.Fatalf("3 < 5 = %+v, want true", v)
	}
}

func TestBinaryExprComparisonNullPropagates(t *testing.T) {
	e := BinaryExpr{Left: Literal{Value: record.NullValue()}, Right: literalInt(5), IsComparison: true, Cmp: primitives.OpEquals}
	v := mustEval(t, e, nil)
	if !v.IsNull() {
		t.Fatalf("expected NULL, got %+v", v)
	}
}

func TestBinaryExprCrossTypeComparisonErrors(t *testing.T) {
	e := BinaryExpr{Left: literalInt(1), Right: literalText("1"), IsComparison: true, Cmp: primitives.OpEquals}
	if _, err := e.Eval(nil); err == nil {
		t.Fatal("expected an error comparing INTEGER with TEXT")
	}
}

func TestBinaryExprArithmeticPromotesToFloat(t *testing.T) {
	e := BinaryExpr{Left: literalInt(1), Right: Literal{Value: record.FloatValue(0.5)}, Arith: OpAdd}
	v := mustEval(t, e, nil)
	if v.Type != record.Float || v.F64 != 1.5 {
		t.Fatalf("1 + 0.5 = %+v, want FLOAT 1.5", v)
	}
}

func TestBinaryExprDivideByZeroIsNull(t *testing.T) {
	e := BinaryExpr{Left: literalInt(1), Right: literalInt(0), Arith: OpDiv}
	v := mustEval(t, e, nil)
	if !v.IsNull() {
		t.Fatalf("1 / 0 = %+v, want NULL", v)
	}
}

func TestBinaryExprConcatRequiresText(t *testing.T) {
	e := BinaryExpr{Left: literalText("a"), Right: literalInt(1), Arith: OpConcat}
	if _, err := e.Eval(nil); err == nil {
		t.Fatal("expected an error concatenating TEXT with INTEGER")
	}
}

func TestBinaryExprThreeValuedAnd(t *testing.T) {
	falseVal := Literal{Value: record.BoolValue(false)}
	nullVal := Literal{Value: record.NullValue()}

	v := mustEval(t, BinaryExpr{Left: falseVal, Right: nullVal, Arith: OpAnd}, nil)
	if v.Type != record.Boolean || v.Bool {
		t.Fatalf("FALSE AND NULL = %+v, want FALSE", v)
	}

	trueVal := Literal{Value: record.BoolValue(true)}
	v = mustEval(t, BinaryExpr{Left: trueVal, Right: nullVal, Arith: OpAnd}, nil)
	if !v.IsNull() {
		t.Fatalf("TRUE AND NULL = %+v, want NULL", v)
	}
}

func TestBinaryExprThreeValuedOr(t *testing.T) {
	trueVal := Literal{Value: record.BoolValue(true)}
	nullVal := Literal{Value: record.NullValue()}

	v := mustEval(t, BinaryExpr{Left: trueVal, Right: nullVal, Arith: OpOr}, nil)
	if v.Type != record.Boolean || !v.Bool {
		t.Fatalf("TRUE OR NULL = %+v, want TRUE", v)
	}
}

func TestColumnRefOutOfRangeErrors(t *testing.T) {
	ref := ColumnRef{Index: 5, Name: "x"}
	if _, err := ref.Eval(Row{record.IntValue(1)}); err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestUnaryExprNegateAndNot(t *testing.T) {
	neg := mustEval(t, UnaryExpr{Op: OpNeg, Operand: literalInt(3)}, nil)
	if neg.Int != -3 {
		t.Fatalf("-3 = %+v", neg)
	}
	not := mustEval(t, UnaryExpr{Op: OpNot, Operand: Literal{Value: record.BoolValue(true)}}, nil)
	if not.Bool {
		t.Fatalf("NOT TRUE = %+v, want FALSE", not)
	}
}

func TestFunctionCallLength(t *testing.T) {
	v := mustEval(t, FunctionCall{Name: "LENGTH", Args: []Expr{literalText("hello")}}, nil)
	if v.Int != 5 {
		t.Fatalf("LENGTH('hello') = %+v, want 5", v)
	}
}

func TestFunctionCallUnknownErrors(t *testing.T) {
	if _, err := (FunctionCall{Name: "NOPE", Args: nil}).Eval(nil); err == nil {
		t.Fatal("expected an error for an unknown function")
	}
}

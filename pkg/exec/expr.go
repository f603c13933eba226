package exec

import (
	"fmt"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/record"
)

// Expr is a side-effect-free scalar expression evaluated against one Row.
type Expr interface {
	Eval(row Row) (record.Value, error)
}

// Literal wraps a constant value.
type Literal struct {
	Value record.Value
}

// Eval returns the literal's value unchanged.
func (l Literal) Eval(Row) (record.Value, error) { return l.Value, nil }

// ColumnRef refers to a column by its position in the row the planner
// built this expression against.
type ColumnRef struct {
	Index int
	Name  string // for diagnostics only
}

// Eval returns the row's value at Index.
func (c ColumnRef) Eval(row Row) (record.Value, error) {
	if c.Index < 0 || c.Index >= len(row) {
		return record.Value{}, dberrors.New(dberrors.Validation, "COLUMN_INDEX_OUT_OF_RANGE",
			fmt.Sprintf("column reference %q (index %d) out of range for a %d-column row", c.Name, c.Index, len(row)))
	}
	return row[c.Index], nil
}

// ArithOp enumerates the non-comparison binary operators.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpConcat
	OpAnd
	OpOr
)

// BinaryExpr is either a comparison (Cmp set) or an arithmetic/logical
// operator (Arith set); exactly one of the two is meaningful, signaled by
// IsComparison.
type BinaryExpr struct {
	Left, Right  Expr
	IsComparison bool
	Cmp          primitives.ComparisonOp
	Arith        ArithOp
}

// Eval evaluates both operands with NULL-propagation (any NULL operand
// makes the result NULL for arithmetic and comparison; AND/OR use
// three-valued logic instead) and dispatches to the typed implementation.
func (b BinaryExpr) Eval(row Row) (record.Value, error) {
	left, err := b.Left.Eval(row)
	if err != nil {
		return record.Value{}, err
	}
	right, err := b.Right.Eval(row)
	if err != nil {
		return record.Value{}, err
	}

	if !b.IsComparison && (b.Arith == OpAnd || b.Arith == OpOr) {
		return evalThreeValuedLogic(b.Arith, left, right)
	}
	if left.IsNull() || right.IsNull() {
		return record.NullValue(), nil
	}
	if b.IsComparison {
		return evalComparison(b.Cmp, left, right)
	}
	return evalArith(b.Arith, left, right)
}

func evalThreeValuedLogic(op ArithOp, left, right record.Value) (record.Value, error) {
	// NULL AND FALSE = FALSE, NULL AND TRUE = NULL, NULL OR TRUE = TRUE, NULL OR FALSE = NULL.
	lv, lNull := boolOrNull(left)
	rv, rNull := boolOrNull(right)

	if op == OpAnd {
		if !lNull && !lv {
			return record.BoolValue(false), nil
		}
		if !rNull && !rv {
			return record.BoolValue(false), nil
		}
		if lNull || rNull {
			return record.NullValue(), nil
		}
		return record.BoolValue(lv && rv), nil
	}

	// OpOr
	if !lNull && lv {
		return record.BoolValue(true), nil
	}
	if !rNull && rv {
		return record.BoolValue(true), nil
	}
	if lNull || rNull {
		return record.NullValue(), nil
	}
	return record.BoolValue(lv || rv), nil
}

func boolOrNull(v record.Value) (value bool, isNull bool) {
	if v.IsNull() {
		return false, true
	}
	return v.Bool, false
}

func evalComparison(op primitives.ComparisonOp, left, right record.Value) (record.Value, error) {
	cmp, err := compareValues(left, right)
	if err != nil {
		return record.Value{}, err
	}
	switch op {
	case primitives.OpEquals:
		return record.BoolValue(cmp == 0), nil
	case primitives.OpNotEquals:
		return record.BoolValue(cmp != 0), nil
	case primitives.OpLessThan:
		return record.BoolValue(cmp < 0), nil
	case primitives.OpLessThanOrEqual:
		return record.BoolValue(cmp <= 0), nil
	case primitives.OpGreaterThan:
		return record.BoolValue(cmp > 0), nil
	case primitives.OpGreaterThanOrEqual:
		return record.BoolValue(cmp >= 0), nil
	default:
		return record.Value{}, dberrors.New(dberrors.Validation, "UNKNOWN_COMPARISON_OP",
			fmt.Sprintf("unknown comparison operator %v", op))
	}
}

// compareValues returns -1/0/1 for same-type operands. Cross-type
// comparison (e.g. INTEGER vs TEXT) is a Validation error: spec.md leaves
// this undefined and calls for a deterministic choice, and erroring is the
// one that can never silently mislead a caller about ordering.
func compareValues(a, b record.Value) (int, error) {
	if a.Type != b.Type {
		return 0, dberrors.New(dberrors.Validation, "CROSS_TYPE_COMPARISON",
			fmt.Sprintf("cannot compare %s with %s", a.Type, b.Type))
	}
	switch a.Type {
	case record.Integer:
		return compareInt64(a.Int, b.Int), nil
	case record.Float:
		return compareFloat64(a.F64, b.F64), nil
	case record.Text:
		return compareString(a.Str, b.Str), nil
	case record.Boolean:
		return compareBool(a.Bool, b.Bool), nil
	case record.Blob:
		return compareBytes(a.Bin, b.Bin), nil
	default:
		return 0, dberrors.New(dberrors.Validation, "UNCOMPARABLE_TYPE",
			fmt.Sprintf("values of type %s are not comparable", a.Type))
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return compareInt64(int64(len(a)), int64(len(b)))
}

func evalArith(op ArithOp, left, right record.Value) (record.Value, error) {
	if op == OpConcat {
		if left.Type != record.Text || right.Type != record.Text {
			return record.Value{}, dberrors.New(dberrors.Validation, "CONCAT_REQUIRES_TEXT",
				"|| requires both operands to be TEXT")
		}
		return record.TextValue(left.Str + right.Str), nil
	}

	lf, lok := asNumeric(left)
	rf, rok := asNumeric(right)
	if !lok || !rok {
		return record.Value{}, dberrors.New(dberrors.Validation, "ARITHMETIC_REQUIRES_NUMERIC",
			fmt.Sprintf("arithmetic requires INTEGER or FLOAT operands, got %s and %s", left.Type, right.Type))
	}

	if op == OpDiv && rf == 0 {
		return record.NullValue(), nil
	}

	// INTEGER/FLOAT promotion: if either side is FLOAT, the result is FLOAT.
	if left.Type == record.Float || right.Type == record.Float {
		return record.FloatValue(applyArith(op, lf, rf)), nil
	}
	return record.IntValue(int64(applyArith(op, lf, rf))), nil
}

func asNumeric(v record.Value) (float64, bool) {
	switch v.Type {
	case record.Integer:
		return float64(v.Int), true
	case record.Float:
		return v.F64, true
	default:
		return 0, false
	}
}

func applyArith(op ArithOp, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

// UnaryOp enumerates the unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

// UnaryExpr negates a boolean (OpNot) or numeric (OpNeg) operand.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

// Eval evaluates Operand, propagating NULL unchanged.
func (u UnaryExpr) Eval(row Row) (record.Value, error) {
	v, err := u.Operand.Eval(row)
	if err != nil {
		return record.Value{}, err
	}
	if v.IsNull() {
		return record.NullValue(), nil
	}
	switch u.Op {
	case OpNot:
		if v.Type != record.Boolean {
			return record.Value{}, dberrors.New(dberrors.Validation, "NOT_REQUIRES_BOOLEAN", "NOT requires a BOOLEAN operand")
		}
		return record.BoolValue(!v.Bool), nil
	case OpNeg:
		switch v.Type {
		case record.Integer:
			return record.IntValue(-v.Int), nil
		case record.Float:
			return record.FloatValue(-v.F64), nil
		default:
			return record.Value{}, dberrors.New(dberrors.Validation, "NEGATION_REQUIRES_NUMERIC", "unary - requires an INTEGER or FLOAT operand")
		}
	default:
		return record.Value{}, dberrors.New(dberrors.Validation, "UNKNOWN_UNARY_OP", fmt.Sprintf("unknown unary operator %v", u.Op))
	}
}

// FunctionCall evaluates a named scalar function over its arguments.
// Only a minimal builtin set is implemented; anything else is a
// Validation error.
type FunctionCall struct {
	Name string
	Args []Expr
}

// Eval dispatches to the named builtin.
func (f FunctionCall) Eval(row Row) (record.Value, error) {
	args := make([]record.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(row)
		if err != nil {
			return record.Value{}, err
		}
		args[i] = v
	}
	switch f.Name {
	case "LENGTH":
		if len(args) != 1 {
			return record.Value{}, dberrors.New(dberrors.Validation, "LENGTH_ARITY", "LENGTH takes exactly one argument")
		}
		if args[0].IsNull() {
			return record.NullValue(), nil
		}
		if args[0].Type != record.Text {
			return record.Value{}, dberrors.New(dberrors.Validation, "LENGTH_REQUIRES_TEXT", "LENGTH requires a TEXT argument")
		}
		return record.IntValue(int64(len(args[0].Str))), nil
	default:
		return record.Value{}, dberrors.New(dberrors.Validation, "UNKNOWN_FUNCTION", fmt.Sprintf("unknown function %q", f.Name))
	}
}

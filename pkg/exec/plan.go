package exec

import "edgesql/pkg/catalog"

// PlanNode is a node in the plan tree the (excluded) planner hands to the
// Executor. Query nodes (TableScan/Filter/Project/Sort/Limit/Aggregate)
// build an operator tree; DDL/DML nodes (Insert/CreateTable/DropTable)
// are handled directly by the Executor without going through operators.
type PlanNode interface {
	NodeKind() string
}

// TableScanNode scans every live row of a table in page order.
type TableScanNode struct {
	Table string
}

func (*TableScanNode) NodeKind() string { return "TableScan" }

// FilterNode yields the child's rows for which Predicate evaluates true.
type FilterNode struct {
	Child     PlanNode
	Predicate Expr
}

func (*FilterNode) NodeKind() string { return "Filter" }

// ProjectNode evaluates Exprs against each child row, producing a row
// with OutputNames as its column names.
type ProjectNode struct {
	Child       PlanNode
	Exprs       []Expr
	OutputNames []string
}

func (*ProjectNode) NodeKind() string { return "Project" }

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr      Expr
	Ascending bool
}

// SortNode materializes the child and streams it back in sorted order.
type SortNode struct {
	Child PlanNode
	Keys  []SortKey
}

func (*SortNode) NodeKind() string { return "Sort" }

// LimitNode skips Offset child rows, then yields at most Limit more.
// A negative Limit means unbounded.
type LimitNode struct {
	Child  PlanNode
	Limit  int
	Offset int
}

func (*LimitNode) NodeKind() string { return "Limit" }

// AggFunc enumerates the supported aggregate functions.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

// AggregateSpec is one aggregate expression in an AggregateNode's output.
type AggregateSpec struct {
	Func       AggFunc
	Arg        Expr // nil for COUNT(*)
	Distinct   bool
	OutputName string
}

// AggregateNode accumulates Specs across every child row and emits
// exactly one row. Grouping is out of scope.
type AggregateNode struct {
	Child PlanNode
	Specs []AggregateSpec
}

func (*AggregateNode) NodeKind() string { return "Aggregate" }

// InsertNode inserts Rows into Table. The Executor applies this directly
// against the catalog, buffer pool and WAL rather than through operators.
type InsertNode struct {
	Table string
	Rows  [][]Expr
}

func (*InsertNode) NodeKind() string { return "Insert" }

// CreateTableNode registers a new table.
type CreateTableNode struct {
	Table   string
	Columns []catalog.ColumnInfo
}

func (*CreateTableNode) NodeKind() string { return "CreateTable" }

// DropTableNode removes a table's catalog entry and backing storage.
type DropTableNode struct {
	Table string
}

func (*DropTableNode) NodeKind() string { return "DropTable" }

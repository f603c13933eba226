// Package exec implements the pull-based query operators (TableScan,
// Filter, Project, Limit, Sort, Aggregate), the expression evaluator
// predicates and projections run on, and the Executor that drives a plan
// tree to completion under an execctx.Context budget.
package exec

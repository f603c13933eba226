// Package execctx holds the per-query execution context: the resource
// budget a query must stay within, the running counters operators report
// against it, and the cooperative-cancellation flag operators check
// between rows. A Context is owned by exactly one goroutine for
// the lifetime of one query.
package execctx

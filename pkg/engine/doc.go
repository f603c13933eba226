// Package engine wires storage, the write-ahead log, recovery, the
// catalog, transactions and the executor into one embeddable database.
// It owns the process's fixed worker pool: every query, regardless of
// which caller goroutine submitted it, actually runs on one of a small
// number of long-lived workers.
package engine

// Package txn implements the single-writer/multiple-reader concurrency
// model: a writer-preferring read-write lock guards every table, and a
// Coordinator hands out Transaction handles that auto-abort if dropped
// while still active.
package txn

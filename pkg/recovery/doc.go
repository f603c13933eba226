// Package recovery replays the write-ahead log against the buffer pool
// after a restart, and drives the checkpoint that lets replay start later
// than the beginning of the log next time.
package recovery

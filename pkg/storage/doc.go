// Package storage is the parent of the on-disk storage engine: the page
// and record formats, the buffer pool that pages tables in and out of
// memory, and the segment-based alternative table layout.
package storage

package engine

import (
	"time"

	"edgesql/pkg/execctx"
	"edgesql/pkg/storage/page"
)

// Config is the complete set of knobs engine.Open needs. It has the same
// shape as the original storage/memory/budget configuration blocks: no
// TOML/JSON parsing lives here, a caller builds this by value.
type Config struct {
	// DataDir is where table files, the catalog snapshot, and the WAL
	// live.
	DataDir string
	// PageSize must equal page.Size; the engine supports exactly one page
	// size, so this exists to catch a caller's config mismatch early
	// rather than to parameterize anything.
	PageSize int
	// WALSync requires every mutation to fsync its WAL record before
	// applying to a page. The engine always does this regardless of this
	// flag's value: deferring the sync would violate the WAL-before-page
	// ordering recovery depends on, so false is rejected by Open.
	WALSync bool
	// WALBufferSize is not read by Open: the WAL writes each record
	// straight to its file, with no in-memory write buffer.
	WALBufferSize int

	// MaxPages bounds how many pages the buffer pool keeps resident.
	MaxPages int

	// GlobalMemoryLimitBytes bounds total memory reserved across every
	// concurrent query.
	GlobalMemoryLimitBytes uint64
	// DefaultQueryMemoryLimitBytes is not read by the engine: each
	// query's allocator limit and global reservation come from
	// DefaultBudget.MaxMemoryBytes.
	DefaultQueryMemoryLimitBytes uint64
	// ArenaBlockSize is the block size each query's Arena grows by.
	ArenaBlockSize int

	// DefaultBudget is the per-query resource budget used when a caller
	// does not override it.
	DefaultBudget execctx.Budget

	// WorkerCount sizes the fixed worker pool that executes queries.
	// Zero means the spec.md §5 default of 4.
	WorkerCount int

	// ShutdownTimeout bounds how long Close waits for a graceful
	// shutdown before giving up.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with every field set to its
// specification default, rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:                      dataDir,
		PageSize:                     page.Size,
		WALSync:                      true,
		WALBufferSize:                1024 * 1024,
		MaxPages:                     1024,
		GlobalMemoryLimitBytes:       512 * 1024 * 1024,
		DefaultQueryMemoryLimitBytes: 64 * 1024 * 1024,
		ArenaBlockSize:               64 * 1024,
		DefaultBudget: execctx.Budget{
			MaxMemoryBytes:  64 * 1024 * 1024,
			MaxInstructions: 1_000_000,
			MaxTime:         5 * time.Second,
			MaxResultRows:   execctx.DefaultBudget().MaxResultRows,
		},
		WorkerCount: 4,
		ShutdownTimeout:              30 * time.Second,
	}
}

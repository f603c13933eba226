package recovery

import (
	"sync"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/logging"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/page"
	"edgesql/pkg/wal"
)

// DefaultSizeThreshold is the WAL file size, in bytes, past which
// ShouldCheckpoint recommends taking a checkpoint.
const DefaultSizeThreshold = 64 * 1024 * 1024

// CheckpointManager flushes a page.Store and records a CHECKPOINT WAL
// record marking everything before it as durable on the page files, so a
// future recovery can start there instead of at the beginning of the log.
// It works against either the buffer pool or the segment manager.
type CheckpointManager struct {
	wal  *wal.WAL
	pool page.Store

	mu                sync.Mutex
	lastCheckpointLSN primitives.LSN
}

// NewCheckpointManager creates a CheckpointManager over w and pool.
func NewCheckpointManager(w *wal.WAL, pool page.Store) *CheckpointManager {
	return &CheckpointManager{wal: w, pool: pool}
}

// Checkpoint flushes every dirty page, appends a CHECKPOINT record and
// syncs the WAL so the checkpoint itself is durable.
func (c *CheckpointManager) Checkpoint() (primitives.LSN, error) {
	log := logging.WithComponent("checkpoint")
	log.Info("starting checkpoint")

	flushed, err := c.pool.FlushAll()
	if err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "CHECKPOINT_FLUSH_FAILED", "Checkpoint", "CheckpointManager")
	}
	log.Info("flushed dirty pages", "count", flushed)

	lsn, err := c.wal.Checkpoint()
	if err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "CHECKPOINT_WAL_WRITE_FAILED", "Checkpoint", "CheckpointManager")
	}
	if err := c.wal.Sync(); err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "CHECKPOINT_WAL_SYNC_FAILED", "Checkpoint", "CheckpointManager")
	}

	c.mu.Lock()
	c.lastCheckpointLSN = lsn
	c.mu.Unlock()

	log.Info("checkpoint complete", "lsn", lsn)
	return lsn, nil
}

// ShouldCheckpoint reports whether the WAL file's total size exceeds
// threshold bytes. A checkpoint does not truncate the file, so records
// from before the last checkpoint still count toward that size.
func (c *CheckpointManager) ShouldCheckpoint(threshold int64) (bool, error) {
	size, err := c.wal.FileSize()
	if err != nil {
		return false, err
	}
	return size > threshold, nil
}

// LastCheckpointLSN returns the LSN of the most recent checkpoint this
// manager has taken.
func (c *CheckpointManager) LastCheckpointLSN() primitives.LSN {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCheckpointLSN
}

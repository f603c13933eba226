package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"edgesql/pkg/catalog"
	"edgesql/pkg/dberrors"
	"edgesql/pkg/exec"
	"edgesql/pkg/execctx"
	"edgesql/pkg/logging"
	"edgesql/pkg/memory"
	"edgesql/pkg/recovery"
	"edgesql/pkg/shutdown"
	"edgesql/pkg/storage/buffer"
	"edgesql/pkg/storage/page"
	"edgesql/pkg/storage/record"
	"edgesql/pkg/txn"
	"edgesql/pkg/wal"
)

const catalogSnapshotFile = "catalog.json"
const walFile = "wal.log"

// Database is one open instance of the engine over a data directory.
// All exported methods are safe for concurrent use.
type Database struct {
	cfg Config

	catalog    *catalog.Catalog
	pool       *buffer.Pool
	wal        *wal.WAL
	recovery   *recovery.Manager
	checkpoint *recovery.CheckpointManager
	txns       *txn.Coordinator
	shutdown   *shutdown.Coordinator
	memory     *memory.Tracker
	executor   *exec.Executor

	work chan job
	grp  *errgroup.Group
}

// job is one unit of work dispatched to the worker pool.
type job struct {
	fn   func()
	done chan struct{}
}

// Open opens (creating if necessary) the database rooted at cfg.DataDir,
// replays the WAL and loads the catalog snapshot, then starts the fixed
// worker pool. A caller must eventually call Close.
func Open(cfg Config) (*Database, error) {
	if cfg.PageSize != page.Size {
		return nil, dberrors.New(dberrors.Validation, "UNSUPPORTED_PAGE_SIZE",
			fmt.Sprintf("configured page size %d does not match the engine's fixed page size %d", cfg.PageSize, page.Size))
	}
	if !cfg.WALSync {
		return nil, dberrors.New(dberrors.Validation, "WAL_SYNC_REQUIRED",
			"the engine always fsyncs the WAL before applying a page mutation; WALSync=false is not supported")
	}
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "DATA_DIR_CREATE_FAILED", "Open", "Database")
	}

	w, err := wal.Open(filepath.Join(cfg.DataDir, walFile))
	if err != nil {
		return nil, err
	}

	pool := buffer.New(cfg.DataDir, cfg.MaxPages)
	if err := pool.Open(); err != nil {
		w.Close()
		return nil, err
	}

	cat := catalog.New()
	if _, err := cat.Load(filepath.Join(cfg.DataDir, catalogSnapshotFile)); err != nil {
		w.Close()
		return nil, err
	}

	recMgr := recovery.New(w, pool)
	log := logging.WithComponent("engine")
	if ok, err := recMgr.Recover(); err != nil {
		w.Close()
		return nil, err
	} else if !ok {
		log.Warn("recovery completed with errors", "stats", recMgr.Stats())
	}

	db := &Database{
		cfg:        cfg,
		catalog:    cat,
		pool:       pool,
		wal:        w,
		recovery:   recMgr,
		checkpoint: recovery.NewCheckpointManager(w, pool),
		txns:       txn.NewCoordinator(),
		shutdown:   shutdown.New(),
		memory:     memory.NewTracker(cfg.GlobalMemoryLimitBytes),
		executor:   exec.New(cat, pool, w),
		work:       make(chan job),
	}
	db.startWorkers(workerCount)
	db.registerShutdownCallbacks()

	log.Info("database opened", "data_dir", cfg.DataDir, "workers", workerCount)
	return db, nil
}

// startWorkers launches the fixed-size worker pool. Every query runs on
// one of these goroutines; there is no per-query goroutine creation and
// no work-stealing between workers.
func (db *Database) startWorkers(count int) {
	grp := &errgroup.Group{}
	grp.SetLimit(count)
	db.grp = grp
	for i := 0; i < count; i++ {
		grp.Go(func() error {
			for j := range db.work {
				j.fn()
				close(j.done)
			}
			return nil
		})
	}
}

// submit runs fn on the worker pool and blocks until it completes.
func (db *Database) submit(fn func()) {
	j := job{fn: fn, done: make(chan struct{})}
	db.work <- j
	<-j.done
}

func (db *Database) registerShutdownCallbacks() {
	db.shutdown.Register(shutdown.FlushWAL, func() error {
		return db.wal.Sync()
	})
	db.shutdown.Register(shutdown.CloseFiles, func() error {
		if _, err := db.checkpoint.Checkpoint(); err != nil {
			return err
		}
		if err := db.pool.Close(); err != nil {
			return err
		}
		return db.wal.Close()
	})
	db.shutdown.Register(shutdown.Cleanup, func() error {
		return db.catalog.Save(filepath.Join(db.cfg.DataDir, catalogSnapshotFile))
	})
}

// Close drains in-flight work, flushes the WAL, checkpoints, and closes
// every open file. It blocks until the shutdown sequence completes or
// cfg.ShutdownTimeout elapses.
func (db *Database) Close() error {
	ok := db.shutdown.Initiate(db.cfg.ShutdownTimeout)
	close(db.work)
	db.grp.Wait()
	if !ok {
		return dberrors.New(dberrors.IO, "SHUTDOWN_TIMED_OUT", "shutdown did not complete before the configured timeout")
	}
	return nil
}

// newContext builds a fresh per-query execution context sized to the
// database's default budget and memory limit. The query's memory limit
// is also reserved against the process-wide global Tracker; the caller
// must release it once the query finishes.
func (db *Database) newContext() (*execctx.Context, error) {
	limit := db.cfg.DefaultBudget.MaxMemoryBytes
	if !db.memory.TryReserve(limit) {
		return nil, dberrors.New(dberrors.Budget, "GLOBAL_MEMORY_EXCEEDED",
			"the process-wide memory limit does not have room for another query's budget")
	}
	arena := memory.NewArena(db.cfg.ArenaBlockSize)
	allocator := memory.NewQueryAllocator(limit, arena)
	ctx := execctx.New(db.cfg.DefaultBudget, allocator)
	ctx.Start()
	return ctx, nil
}

// run acquires an active-operation guard and dispatches fn to the worker
// pool, refusing to start once a shutdown has begun.
func (db *Database) run(fn func() (*exec.ExecutionResult, error)) (*exec.ExecutionResult, error) {
	guard := shutdown.NewActiveOperationGuard(db.shutdown)
	if !guard.Valid() {
		return nil, dberrors.New(dberrors.Concurrency, "SHUTTING_DOWN", "the database is shutting down and cannot accept new work")
	}
	defer guard.Release()

	var result *exec.ExecutionResult
	var err error
	db.submit(func() {
		result, err = fn()
	})
	return result, err
}

// CreateTable registers a new table and its backing storage.
func (db *Database) CreateTable(name string, columns []catalog.ColumnInfo) (*exec.ExecutionResult, error) {
	return db.run(func() (*exec.ExecutionResult, error) {
		ec, err := db.newContext()
		if err != nil {
			return nil, err
		}
		defer db.memory.Release(db.cfg.DefaultBudget.MaxMemoryBytes)
		guard := txn.NewGuard(db.txns, db.txns.BeginWrite())
		defer guard.Release()

		result, err := db.executor.Execute(&exec.CreateTableNode{Table: name, Columns: columns}, ec)
		if err != nil {
			guard.Abort()
			return nil, err
		}
		guard.Commit()
		if err := db.catalog.Save(filepath.Join(db.cfg.DataDir, catalogSnapshotFile)); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// DropTable removes a table's catalog entry and backing storage.
func (db *Database) DropTable(name string) (*exec.ExecutionResult, error) {
	return db.run(func() (*exec.ExecutionResult, error) {
		ec, err := db.newContext()
		if err != nil {
			return nil, err
		}
		defer db.memory.Release(db.cfg.DefaultBudget.MaxMemoryBytes)
		guard := txn.NewGuard(db.txns, db.txns.BeginWrite())
		defer guard.Release()

		result, err := db.executor.Execute(&exec.DropTableNode{Table: name}, ec)
		if err != nil {
			guard.Abort()
			return nil, err
		}
		guard.Commit()
		if err := db.catalog.Save(filepath.Join(db.cfg.DataDir, catalogSnapshotFile)); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// Insert appends rows, each a slice of column values in table column
// order, to the named table.
func (db *Database) Insert(table string, rows [][]record.Value) (*exec.ExecutionResult, error) {
	return db.run(func() (*exec.ExecutionResult, error) {
		ec, err := db.newContext()
		if err != nil {
			return nil, err
		}
		defer db.memory.Release(db.cfg.DefaultBudget.MaxMemoryBytes)
		guard := txn.NewGuard(db.txns, db.txns.BeginWrite())
		defer guard.Release()

		exprRows := make([][]exec.Expr, len(rows))
		for i, row := range rows {
			exprRow := make([]exec.Expr, len(row))
			for j, v := range row {
				exprRow[j] = exec.Literal{Value: v}
			}
			exprRows[i] = exprRow
		}

		result, err := db.executor.Execute(&exec.InsertNode{Table: table, Rows: exprRows}, ec)
		if err != nil {
			guard.Abort()
			return nil, err
		}
		guard.Commit()
		return result, nil
	})
}

// Query runs a read-only plan under a reader lock and returns its rows.
func (db *Database) Query(plan exec.PlanNode) (*exec.ExecutionResult, error) {
	return db.run(func() (*exec.ExecutionResult, error) {
		ec, err := db.newContext()
		if err != nil {
			return nil, err
		}
		defer db.memory.Release(db.cfg.DefaultBudget.MaxMemoryBytes)
		guard := txn.NewGuard(db.txns, db.txns.BeginRead())
		defer guard.Release()

		result, err := db.executor.Execute(plan, ec)
		if err != nil {
			guard.Abort()
			return nil, err
		}
		guard.Commit()
		return result, nil
	})
}

// Checkpoint forces a WAL checkpoint and flushes all dirty pages now,
// rather than waiting for the buffer pool or a scheduled interval.
func (db *Database) Checkpoint(_ context.Context) error {
	_, err := db.checkpoint.Checkpoint()
	return err
}

// Stats reports live counters useful for monitoring.
type Stats struct {
	ActiveTransactions  int64
	PageCount           int
	DirtyPageCount      int
	MemoryReservedBytes uint64
}

// Stats returns a snapshot of the database's current counters.
func (db *Database) Stats() Stats {
	return Stats{
		ActiveTransactions: db.txns.ActiveTransactions(),
		PageCount:          db.pool.PageCount(),
		DirtyPageCount:     db.pool.DirtyCount(),
		MemoryReservedBytes: db.memory.Used(),
	}
}

// RecoveryStats reports what the WAL replay that ran during Open did:
// how many records it read starting at the last checkpoint (the
// CHECKPOINT record itself included, counted as skipped) and how many it
// applied. A database reopened after a clean Close applies nothing.
func (db *Database) RecoveryStats() recovery.Stats {
	return db.recovery.Stats()
}

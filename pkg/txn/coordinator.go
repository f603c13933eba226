package txn

import (
	"sync/atomic"
	"time"

	"edgesql/pkg/logging"
)

// Coordinator enforces the engine's single-writer/multiple-reader model:
// any number of read transactions may run concurrently, but a write
// transaction holds the database exclusively. There is exactly one
// Coordinator per Database.
type Coordinator struct {
	lock        *RWLock
	nextID      atomic.Int64
	activeCount atomic.Int64
}

// NewCoordinator creates a Coordinator with no active transactions.
func NewCoordinator() *Coordinator {
	return &Coordinator{lock: NewRWLock()}
}

// BeginRead blocks until no writer holds or is waiting for the lock, then
// returns a read-only transaction handle.
func (c *Coordinator) BeginRead() *Transaction {
	c.lock.LockRead()
	return c.newTransaction(true)
}

// BeginWrite blocks until the lock is free, then returns an exclusive
// write transaction handle.
func (c *Coordinator) BeginWrite() *Transaction {
	c.lock.LockWrite()
	return c.newTransaction(false)
}

// TryBeginWrite returns an exclusive write transaction handle only if the
// lock is immediately available, or nil otherwise.
func (c *Coordinator) TryBeginWrite() *Transaction {
	if !c.lock.TryLockWrite() {
		return nil
	}
	return c.newTransaction(false)
}

func (c *Coordinator) newTransaction(readOnly bool) *Transaction {
	id := ID(c.nextID.Add(1))
	c.activeCount.Add(1)
	return &Transaction{id: id, readOnly: readOnly, state: Active, startTime: time.Now()}
}

// Commit marks txn committed and releases whichever lock it held.
func (c *Coordinator) Commit(txn *Transaction) {
	txn.state = Committed
	c.endTransaction(txn)
}

// Abort marks txn aborted and releases whichever lock it held.
func (c *Coordinator) Abort(txn *Transaction) {
	txn.state = Aborted
	c.endTransaction(txn)
}

func (c *Coordinator) endTransaction(txn *Transaction) {
	c.activeCount.Add(-1)
	if txn.readOnly {
		c.lock.UnlockRead()
	} else {
		c.lock.UnlockWrite()
	}
	logging.WithTx(int(txn.id)).Debug("transaction ended", "state", txn.state, "elapsed", txn.Elapsed())
}

// ActiveTransactions returns the number of transactions currently open.
func (c *Coordinator) ActiveTransactions() int64 { return c.activeCount.Load() }

// Guard wraps a Transaction so that letting it go out of scope without an
// explicit Commit aborts it automatically, mirroring a dropped handle.
type Guard struct {
	coordinator *Coordinator
	txn         *Transaction
	done        bool
}

// NewGuard wraps txn for automatic cleanup via Release.
func NewGuard(c *Coordinator, txn *Transaction) *Guard {
	return &Guard{coordinator: c, txn: txn}
}

// Txn returns the wrapped transaction.
func (g *Guard) Txn() *Transaction { return g.txn }

// Commit commits the wrapped transaction. Calling it more than once, or
// after Release, is a no-op.
func (g *Guard) Commit() {
	if g.done {
		return
	}
	g.done = true
	g.coordinator.Commit(g.txn)
}

// Abort aborts the wrapped transaction. Calling it more than once, or
// after Release, is a no-op.
func (g *Guard) Abort() {
	if g.done {
		return
	}
	g.done = true
	g.coordinator.Abort(g.txn)
}

// Release aborts the transaction if it is still Active, matching the
// "dropped while Active aborts" rule. Callers defer this immediately
// after acquiring a Guard.
func (g *Guard) Release() {
	if g.done {
		return
	}
	if g.txn.state == Active {
		g.Abort()
	}
}

package txn

import "sync"

// RWLock is a writer-preferring read-write lock: once a writer is
// waiting, no new reader is admitted until it has run, which keeps a
// steady stream of readers from starving writers out indefinitely.
type RWLock struct {
	mu             sync.Mutex
	readCond       *sync.Cond
	writeCond      *sync.Cond
	readers        int
	writer         bool
	waitingWriters int
}

// NewRWLock creates an unlocked RWLock.
func NewRWLock() *RWLock {
	l := &RWLock{}
	l.readCond = sync.NewCond(&l.mu)
	l.writeCond = sync.NewCond(&l.mu)
	return l
}

// LockRead blocks until no writer holds or is waiting for the lock, then
// registers as a reader.
func (l *RWLock) LockRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer || l.waitingWriters > 0 {
		l.readCond.Wait()
	}
	l.readers++
}

// UnlockRead releases a reader's hold, waking a waiting writer once the
// last reader leaves.
func (l *RWLock) UnlockRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
	if l.readers == 0 {
		l.writeCond.Signal()
	}
}

// LockWrite blocks until no reader or writer holds the lock, then takes
// exclusive ownership. Registering as a waiting writer before blocking is
// what makes new readers queue behind it instead of starving it out.
func (l *RWLock) LockWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitingWriters++
	for l.readers > 0 || l.writer {
		l.writeCond.Wait()
	}
	l.waitingWriters--
	l.writer = true
}

// UnlockWrite releases exclusive ownership, preferring to wake a waiting
// writer over the pool of waiting readers.
func (l *RWLock) UnlockWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = false
	if l.waitingWriters > 0 {
		l.writeCond.Signal()
	} else {
		l.readCond.Broadcast()
	}
}

// TryLockRead acquires the read lock only if it is immediately available.
func (l *RWLock) TryLockRead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer || l.waitingWriters > 0 {
		return false
	}
	l.readers++
	return true
}

// TryLockWrite acquires the write lock only if it is immediately
// available.
func (l *RWLock) TryLockWrite() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers > 0 || l.writer {
		return false
	}
	l.writer = true
	return true
}

package memory

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// DefaultGlobalLimit is the global memory ceiling used when a Config does
// not override it.
const DefaultGlobalLimit = 512 * 1024 * 1024

// Tracker tracks memory usage across every query in the process and
// enforces a single global limit. All fields are accessed through atomics
// so Tracker needs no lock.
type Tracker struct {
	limit       atomic.Uint64
	used        atomic.Uint64
	peak        atomic.Uint64
	allocCount  atomic.Uint64
	failedCount atomic.Uint64
}

// NewTracker creates a Tracker with the given global limit in bytes.
func NewTracker(limit uint64) *Tracker {
	t := &Tracker{}
	t.limit.Store(limit)
	return t
}

// SetLimit changes the global memory limit.
func (t *Tracker) SetLimit(limit uint64) { t.limit.Store(limit) }

// Limit returns the current global memory limit.
func (t *Tracker) Limit() uint64 { return t.limit.Load() }

// Used returns the currently reserved bytes.
func (t *Tracker) Used() uint64 { return t.used.Load() }

// Peak returns the highest Used value observed since the last ResetStats.
func (t *Tracker) Peak() uint64 { return t.peak.Load() }

// WouldExceed reports whether reserving size more bytes would exceed the
// current limit.
func (t *Tracker) WouldExceed(size uint64) bool {
	return t.used.Load()+size > t.limit.Load()
}

// TryReserve attempts to reserve size bytes against the global limit. It
// retries a compare-and-swap until it either succeeds or observes that the
// reservation would exceed the limit.
func (t *Tracker) TryReserve(size uint64) bool {
	for {
		used := t.used.Load()
		limit := t.limit.Load()
		if used+size > limit {
			t.failedCount.Add(1)
			return false
		}
		next := used + size
		if t.used.CompareAndSwap(used, next) {
			t.allocCount.Add(1)
			t.bumpPeak(next)
			return true
		}
	}
}

func (t *Tracker) bumpPeak(candidate uint64) {
	for {
		peak := t.peak.Load()
		if candidate <= peak {
			return
		}
		if t.peak.CompareAndSwap(peak, candidate) {
			return
		}
	}
}

// Release gives back size bytes previously obtained through TryReserve.
// Releasing more than is currently used clamps at zero rather than
// underflowing.
func (t *Tracker) Release(size uint64) {
	for {
		used := t.used.Load()
		next := used - size
		if size > used {
			next = 0
		}
		if t.used.CompareAndSwap(used, next) {
			return
		}
	}
}

// ResetStats zeroes used, peak and the allocation counters. It does not
// change the configured limit.
func (t *Tracker) ResetStats() {
	t.used.Store(0)
	t.peak.Store(0)
	t.allocCount.Store(0)
	t.failedCount.Store(0)
}

// AllocationCount returns the number of successful TryReserve calls since
// the last ResetStats.
func (t *Tracker) AllocationCount() uint64 { return t.allocCount.Load() }

// FailedAllocationCount returns the number of TryReserve calls that were
// rejected since the last ResetStats.
func (t *Tracker) FailedAllocationCount() uint64 { return t.failedCount.Load() }

// String renders a human-readable usage summary, e.g. "42 MB / 512 MB used
// (peak 103 MB)", for inclusion in log lines.
func (t *Tracker) String() string {
	return humanize.Bytes(t.Used()) + " / " + humanize.Bytes(t.Limit()) + " used (peak " + humanize.Bytes(t.Peak()) + ")"
}

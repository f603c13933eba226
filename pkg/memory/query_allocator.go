package memory

// QueryAllocator layers a per-query byte budget on top of an Arena. Every
// operator in a query shares one QueryAllocator so the budget is enforced
// across the whole execution, not per-operator.
type QueryAllocator struct {
	limit uint64
	used  uint64
	arena *Arena
}

// NewQueryAllocator creates a QueryAllocator that allows up to limit bytes
// to be drawn from arena before failing with a budget error.
func NewQueryAllocator(limit uint64, arena *Arena) *QueryAllocator {
	return &QueryAllocator{limit: limit, arena: arena}
}

// WouldExceed reports whether allocating size more bytes would exceed the
// remaining budget.
func (q *QueryAllocator) WouldExceed(size uint64) bool {
	return q.used+size > q.limit
}

// Allocate draws size bytes from the underlying arena, counting them
// against the query's budget. It returns a Budget-category error instead
// of allocating once the budget is exhausted.
func (q *QueryAllocator) Allocate(size uint64) ([]byte, error) {
	if q.WouldExceed(size) {
		return nil, budgetExceededError(size, q.used, q.limit)
	}
	b := q.arena.Allocate(int(size))
	q.used += size
	return b, nil
}

// AllocateZeroed is Allocate with the returned slice explicitly zeroed.
func (q *QueryAllocator) AllocateZeroed(size uint64) ([]byte, error) {
	b, err := q.Allocate(size)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// BytesUsed returns the bytes drawn from the arena so far this query.
func (q *QueryAllocator) BytesUsed() uint64 { return q.used }

// MemoryLimit returns the configured budget.
func (q *QueryAllocator) MemoryLimit() uint64 { return q.limit }

// Remaining returns the unused portion of the budget.
func (q *QueryAllocator) Remaining() uint64 {
	if q.limit > q.used {
		return q.limit - q.used
	}
	return 0
}

// Reset zeroes the budget counter without returning memory to the arena;
// callers that want the underlying bytes back must Reset the arena itself.
func (q *QueryAllocator) Reset() { q.used = 0 }

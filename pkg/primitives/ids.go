// Package primitives defines the small value types shared across the
// storage, log and execution layers: log sequence numbers, page and table
// identifiers, transaction identifiers and comparison operators.
package primitives

import (
	"fmt"
	"sync/atomic"
)

// LSN (Log Sequence Number) uniquely identifies a WAL record. It is
// monotonically increasing and is also stamped into a page's header once
// the mutation the record describes has been applied.
type LSN uint64

// InvalidLSN is the sentinel for "no LSN" (e.g. a page that has never been
// touched, or a record that failed to append).
const InvalidLSN LSN = 0

// TableID identifies a table. It is a process-monotone counter; zero is
// reserved to mean "no table" so a freshly zeroed struct is recognizably
// invalid.
type TableID uint32

// InvalidTableID is the sentinel returned when table resolution fails.
const InvalidTableID TableID = 0

// SlotID identifies a record's position within a page's slot directory.
type SlotID uint16

// PageNumber identifies a page within a table, starting at 0.
type PageNumber uint32

// PageID identifies a page uniquely across the whole database: the table
// it belongs to plus its page number within that table's file.
type PageID struct {
	TableID TableID
	PageNum PageNumber
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(table=%d,page=%d)", p.TableID, p.PageNum)
}

// tidCounter backs NewTransactionID; it is process-wide and monotone.
var tidCounter uint64

// TransactionID identifies a transaction. Values are assigned in increasing
// order starting from 1 so zero can serve as "no transaction".
type TransactionID uint64

// NewTransactionID allocates the next transaction id.
func NewTransactionID() TransactionID {
	return TransactionID(atomic.AddUint64(&tidCounter, 1))
}

func (t TransactionID) String() string {
	return fmt.Sprintf("TID-%d", uint64(t))
}

// ComparisonOp enumerates the relational operators used by predicate
// evaluation in the executor.
type ComparisonOp int

const (
	OpEquals ComparisonOp = iota
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

func (op ComparisonOp) String() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	default:
		return "UNKNOWN"
	}
}

package exec

import "edgesql/pkg/storage/record"

// Row is one tuple flowing through the operator tree: an ordered slice of
// typed column values, positionally aligned with an operator's
// ColumnNames.
type Row []record.Value

// Clone returns a copy of r whose backing array is independent of r's.
// Sort needs this because it must materialize every row from the child
// before streaming any of them back out.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// valueOverheadBytes approximates the fixed cost of one record.Value slot
// (its Type tag plus the widest scalar field) for budget accounting; it
// does not need to be exact, only proportional to what an operator that
// buffers the row would actually retain.
const valueOverheadBytes = 16

// EstimatedSize approximates the number of bytes r occupies once
// materialized, for charging against a query's memory budget: a fixed
// per-column overhead plus the length of any variable-length Text or Blob
// payload.
func (r Row) EstimatedSize() uint64 {
	var size uint64
	for _, v := range r {
		size += valueOverheadBytes
		size += uint64(len(v.Str))
		size += uint64(len(v.Bin))
	}
	return size
}

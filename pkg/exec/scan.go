package exec

import (
	"fmt"

	"edgesql/pkg/catalog"
	"edgesql/pkg/dberrors"
	"edgesql/pkg/execctx"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/buffer"
	"edgesql/pkg/storage/record"
)

// TableScan walks a table page by page, slot by slot, decoding every live
// record. It stops the first time the buffer pool reports no page at the
// next page number, which is how "ran off the end of the table" looks.
type TableScan struct {
	pool  *buffer.Pool
	table *catalog.TableInfo

	pageNum primitives.PageNumber
	slot    primitives.SlotID
	done    bool
}

// NewTableScan creates a scan over table, reading pages through pool.
func NewTableScan(pool *buffer.Pool, table *catalog.TableInfo) *TableScan {
	return &TableScan{pool: pool, table: table}
}

// Open resets the scan to the first page and slot.
func (s *TableScan) Open(ctx *execctx.Context) error {
	s.pageNum = 0
	s.slot = 0
	s.done = false
	ctx.RecordInstructions(10)
	return nil
}

// Next returns the next live row, decoding it against no schema (records
// are self-describing); ColumnNames comes from the catalog separately.
func (s *TableScan) Next(ctx *execctx.Context) (Row, bool, error) {
	if s.done {
		return nil, false, nil
	}

	for {
		if v := ctx.CheckBudget(); v != execctx.None {
			return nil, false, v.Err()
		}

		pg, err := s.pool.GetPage(primitives.PageID{TableID: s.table.ID, PageNum: s.pageNum})
		if err != nil {
			s.done = true
			return nil, false, nil
		}

		for s.slot < pg.SlotCount() {
			data, ok := pg.GetRecord(s.slot)
			slot := s.slot
			s.slot++
			ctx.RecordInstructions(5)
			ctx.RecordRowScanned()
			if !ok {
				continue
			}
			rec, err := record.Decode(data)
			if err != nil {
				return nil, false, dberrors.Wrap(err, dberrors.Corruption, "SCAN_DECODE_FAILED", "TableScan.Next",
					fmt.Sprintf("table %d page %d slot %d", s.table.ID, s.pageNum, slot))
			}
			return Row(rec.Values), true, nil
		}

		s.pageNum++
		s.slot = 0
	}
}

// Close is a no-op: the scan holds no resources beyond the buffer pool,
// which outlives it.
func (s *TableScan) Close() error { return nil }

// ColumnNames returns the table's column names in declaration order.
func (s *TableScan) ColumnNames() []string {
	names := make([]string, len(s.table.Columns))
	for i, c := range s.table.Columns {
		names[i] = c.Name
	}
	return names
}

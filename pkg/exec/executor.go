package exec

import (
	"fmt"

	"edgesql/pkg/catalog"
	"edgesql/pkg/dberrors"
	"edgesql/pkg/execctx"
	"edgesql/pkg/logging"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/buffer"
	"edgesql/pkg/storage/record"
	"edgesql/pkg/wal"
)

// ExecutionResult is what Executor.Execute returns for any plan, query or
// DDL/DML alike.
type ExecutionResult struct {
	Success      bool
	ColumnNames  []string
	Rows         []Row
	RowsAffected int
	Stats        execctx.Stats
}

// Executor turns a PlanNode into results. Query nodes build an operator
// tree and pull it dry; Insert/CreateTable/DropTable bypass operators
// entirely and mutate the catalog, buffer pool and WAL directly.
type Executor struct {
	catalog *catalog.Catalog
	pool    *buffer.Pool
	wal     *wal.WAL
}

// New creates an Executor wired against the given catalog, buffer pool and
// write-ahead log.
func New(cat *catalog.Catalog, pool *buffer.Pool, w *wal.WAL) *Executor {
	return &Executor{catalog: cat, pool: pool, wal: w}
}

// Execute runs plan to completion under ctx's budget.
func (e *Executor) Execute(plan PlanNode, ctx *execctx.Context) (*ExecutionResult, error) {
	ctx.Start()
	defer ctx.Finalize()

	switch node := plan.(type) {
	case *InsertNode:
		return e.executeInsert(node, ctx)
	case *CreateTableNode:
		return e.executeCreateTable(node, ctx)
	case *DropTableNode:
		return e.executeDropTable(node, ctx)
	default:
		return e.executeQuery(plan, ctx)
	}
}

func (e *Executor) executeQuery(plan PlanNode, ctx *execctx.Context) (*ExecutionResult, error) {
	op, err := e.build(plan)
	if err != nil {
		return nil, err
	}
	if err := op.Open(ctx); err != nil {
		return nil, err
	}
	defer op.Close()

	var rows []Row
	for {
		row, ok, err := op.Next(ctx)
		if err != nil {
			return &ExecutionResult{Success: false, Stats: ctx.Stats()}, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
		ctx.RecordRowReturned()
		if v := ctx.CheckBudget(); v != execctx.None {
			return &ExecutionResult{Success: false, ColumnNames: op.ColumnNames(), Rows: rows, Stats: ctx.Stats()}, v.Err()
		}
	}

	return &ExecutionResult{
		Success:     true,
		ColumnNames: op.ColumnNames(),
		Rows:        rows,
		Stats:       ctx.Stats(),
	}, nil
}

// build recursively turns a query PlanNode into an Operator tree.
func (e *Executor) build(plan PlanNode) (Operator, error) {
	switch node := plan.(type) {
	case *TableScanNode:
		table, ok := e.catalog.GetTableByName(node.Table)
		if !ok {
			return nil, dberrors.New(dberrors.Validation, "TABLE_NOT_FOUND", fmt.Sprintf("table %q not found", node.Table))
		}
		return NewTableScan(e.pool, table), nil

	case *FilterNode:
		child, err := e.build(node.Child)
		if err != nil {
			return nil, err
		}
		return NewFilter(child, node.Predicate), nil

	case *ProjectNode:
		child, err := e.build(node.Child)
		if err != nil {
			return nil, err
		}
		return NewProject(child, node.Exprs, node.OutputNames), nil

	case *SortNode:
		child, err := e.build(node.Child)
		if err != nil {
			return nil, err
		}
		return NewSort(child, node.Keys), nil

	case *LimitNode:
		child, err := e.build(node.Child)
		if err != nil {
			return nil, err
		}
		return NewLimit(child, node.Limit, node.Offset), nil

	case *AggregateNode:
		child, err := e.build(node.Child)
		if err != nil {
			return nil, err
		}
		return NewAggregate(child, node.Specs), nil

	default:
		return nil, dberrors.New(dberrors.Validation, "UNSUPPORTED_PLAN_NODE", fmt.Sprintf("%T is not a query operator node", plan))
	}
}

func (e *Executor) executeCreateTable(node *CreateTableNode, ctx *execctx.Context) (*ExecutionResult, error) {
	table, err := e.catalog.CreateTable(node.Table, node.Columns)
	if err != nil {
		return nil, err
	}
	if err := e.pool.CreateTableFile(table.ID); err != nil {
		return nil, err
	}

	rec := &wal.Record{
		Type:    wal.CreateTable,
		TableID: table.ID,
		Payload: []byte(node.Table),
	}
	if _, err := e.wal.Append(rec); err != nil {
		return nil, err
	}
	if err := e.wal.Sync(); err != nil {
		return nil, err
	}

	ctx.RecordInstructions(10)
	return &ExecutionResult{Success: true, RowsAffected: 0, Stats: ctx.Stats()}, nil
}

func (e *Executor) executeDropTable(node *DropTableNode, ctx *execctx.Context) (*ExecutionResult, error) {
	table, ok := e.catalog.GetTableByName(node.Table)
	if !ok {
		return nil, dberrors.New(dberrors.Validation, "TABLE_NOT_FOUND", fmt.Sprintf("table %q not found", node.Table))
	}
	if err := e.catalog.DropTable(table.ID); err != nil {
		return nil, err
	}
	if err := e.pool.DeleteTableFile(table.ID); err != nil {
		return nil, err
	}

	rec := &wal.Record{
		Type:    wal.DropTable,
		TableID: table.ID,
	}
	if _, err := e.wal.Append(rec); err != nil {
		return nil, err
	}
	if err := e.wal.Sync(); err != nil {
		return nil, err
	}

	ctx.RecordInstructions(10)
	return &ExecutionResult{Success: true, RowsAffected: 0, Stats: ctx.Stats()}, nil
}

// executeInsert places each row on its target page first, so the WAL
// record can be stamped with the PageID/SlotID it actually landed at,
// then appends and syncs every record before returning: a crash before
// the sync is recoverable because recovery replays the same placement,
// a crash after leaves the rows already durable on the page.
func (e *Executor) executeInsert(node *InsertNode, ctx *execctx.Context) (*ExecutionResult, error) {
	table, ok := e.catalog.GetTableByName(node.Table)
	if !ok {
		return nil, dberrors.New(dberrors.Validation, "TABLE_NOT_FOUND", fmt.Sprintf("table %q not found", node.Table))
	}
	log := logging.WithTable(table.Name)

	type placed struct {
		data    []byte
		pageNum primitives.PageNumber
		slot    primitives.SlotID
	}
	rows := make([]placed, 0, len(node.Rows))

	emptyRow := Row(nil)
	for _, exprs := range node.Rows {
		if v := ctx.CheckBudget(); v != execctx.None {
			return nil, v.Err()
		}
		rec := record.New(len(exprs))
		for i, expr := range exprs {
			val, err := expr.Eval(emptyRow)
			if err != nil {
				return nil, err
			}
			rec.Values[i] = val
		}
		data := rec.Encode()

		pageNum, slot, err := e.insertIntoPage(table.ID, data)
		if err != nil {
			return nil, err
		}
		rows = append(rows, placed{data: data, pageNum: pageNum, slot: slot})
		ctx.RecordInstructions(10)
	}

	applied := 0
	for _, p := range rows {
		lsn, err := e.wal.Append(&wal.Record{
			Type:    wal.Insert,
			TableID: table.ID,
			PageID:  p.pageNum,
			SlotID:  p.slot,
			Payload: p.data,
		})
		if err != nil {
			return nil, err
		}
		id := primitives.PageID{TableID: table.ID, PageNum: p.pageNum}
		pg, err := e.pool.GetPage(id)
		if err != nil {
			return nil, err
		}
		pg.SetLSN(lsn)
		e.pool.MarkDirty(id)
		applied++
	}
	if err := e.wal.Sync(); err != nil {
		return nil, err
	}

	e.catalog.IncrementRowCount(table.ID, int64(applied))
	log.Info("rows inserted", "table_id", table.ID, "count", applied)

	return &ExecutionResult{Success: true, RowsAffected: applied, Stats: ctx.Stats()}, nil
}

// insertIntoPage finds the first table page with room for data, or
// allocates a new one, and returns where it landed so the caller can
// stamp the WAL record with the real placement.
func (e *Executor) insertIntoPage(tableID primitives.TableID, data []byte) (primitives.PageNumber, primitives.SlotID, error) {
	for pageNum := primitives.PageNumber(0); ; pageNum++ {
		pg, err := e.pool.GetPage(primitives.PageID{TableID: tableID, PageNum: pageNum})
		if err != nil {
			break
		}
		if slot, insertErr := pg.InsertRecord(data); insertErr == nil {
			e.pool.MarkDirty(primitives.PageID{TableID: tableID, PageNum: pageNum})
			return pageNum, slot, nil
		}
	}

	pg, err := e.pool.AllocatePage(tableID)
	if err != nil {
		return 0, 0, err
	}
	slot, err := pg.InsertRecord(data)
	if err != nil {
		return 0, 0, err
	}
	e.pool.MarkDirty(primitives.PageID{TableID: tableID, PageNum: pg.PageNum()})
	return pg.PageNum(), slot, nil
}

package exec

import (
	"path/filepath"
	"testing"

	"edgesql/pkg/catalog"
	"edgesql/pkg/execctx"
	"edgesql/pkg/memory"
	"edgesql/pkg/storage/buffer"
	"edgesql/pkg/storage/record"
	"edgesql/pkg/wal"
)

func newTestFixture(t *testing.T) (*catalog.Catalog, *buffer.Pool, *wal.WAL) {
	t.Helper()
	dir := t.TempDir()

	w, err := wal.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("wal.Open failed: %v", err)
	}
	pool := buffer.New(filepath.Join(dir, "pages"), 16)
	if err := pool.Open(); err != nil {
		t.Fatalf("pool.Open failed: %v", err)
	}
	return catalog.New(), pool, w
}

func newTestContext() *execctx.Context {
	alloc := memory.NewQueryAllocator(1<<20, memory.NewArena(4096))
	return execctx.New(execctx.DefaultBudget(), alloc)
}

func createTestTable(t *testing.T, cat *catalog.Catalog, pool *buffer.Pool, name string, columns []catalog.ColumnInfo) *catalog.TableInfo {
	t.Helper()
	table, err := cat.CreateTable(name, columns)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := pool.CreateTableFile(table.ID); err != nil {
		t.Fatalf("CreateTableFile failed: %v", err)
	}
	return table
}

func insertTestRow(t *testing.T, ex *Executor, ctx *execctx.Context, table string, values []Expr) {
	t.Helper()
	res, err := ex.Execute(&InsertNode{Table: table, Rows: [][]Expr{values}}, ctx)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !res.Success || res.RowsAffected != 1 {
		t.Fatalf("insert result = %+v, want one row affected", res)
	}
}

func literalText(s string) Expr { return Literal{Value: record.TextValue(s)} }
func literalInt(v int64) Expr   { return Literal{Value: record.IntValue(v)} }

package engine

import (
	"context"
	"testing"

	"edgesql/pkg/catalog"
	"edgesql/pkg/exec"
	"edgesql/pkg/storage/record"
)

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxPages = 32
	return cfg
}

func widgetColumns() []catalog.ColumnInfo {
	return []catalog.ColumnInfo{
		{Name: "id", Type: record.Integer, Index: 0},
		{Name: "name", Type: record.Text, Index: 1},
	}
}

func TestOpenCreateInsertQueryClose(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	rows := [][]record.Value{
		{record.IntValue(1), record.TextValue("a")},
		{record.IntValue(2), record.TextValue("b")},
	}
	if _, err := db.Insert("widgets", rows); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	result, err := db.Query(&exec.TableScanNode{Table: "widgets"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !result.Success || len(result.Rows) != 2 {
		t.Fatalf("Query result = %+v", result)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReopenRecoversSchemaAndRows(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.Insert("widgets", [][]record.Value{{record.IntValue(1), record.TextValue("a")}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	result, err := reopened.Query(&exec.TableScanNode{Table: "widgets"})
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if !result.Success || len(result.Rows) != 1 {
		t.Fatalf("Query after reopen result = %+v, want 1 row", result)
	}
}

// TestCrashAfterCheckpointRecoversAllRows simulates a crash that happens
// after a checkpoint has flushed an earlier insert but before a later
// one ever reaches disk: the first Database instance is abandoned
// without calling Close, so its second insert's row only exists as a
// synced WAL record. Reopening from the same data directory must
// replay that record and land it on the page it was originally placed
// on, not page 0, or it disappears.
func TestCrashAfterCheckpointRecoversAllRows(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.Insert("widgets", [][]record.Value{{record.IntValue(1), record.TextValue("a")}}); err != nil {
		t.Fatalf("Insert row A: %v", err)
	}
	if err := db.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if _, err := db.Insert("widgets", [][]record.Value{{record.IntValue(2), record.TextValue("b")}}); err != nil {
		t.Fatalf("Insert row B: %v", err)
	}
	// No db.Close() here: row B's page mutation never reaches disk, only
	// its already-synced WAL record does. That is the crash.

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	result, err := reopened.Query(&exec.TableScanNode{Table: "widgets"})
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if !result.Success || len(result.Rows) != 2 {
		t.Fatalf("Query after reopen result = %+v, want both rows recovered", result)
	}

	ids := map[int64]bool{}
	for _, row := range result.Rows {
		ids[row[0].Int] = true
	}
	if !ids[1] || !ids[2] {
		t.Fatalf("recovered rows = %+v, want ids 1 and 2 both present", result.Rows)
	}

	stats := reopened.RecoveryStats()
	if stats.RecordsApplied < 1 {
		t.Fatalf("RecoveryStats().RecordsApplied = %d, want at least 1", stats.RecordsApplied)
	}
}

func TestDropTableRemovesSchema(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.DropTable("widgets"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := db.Query(&exec.TableScanNode{Table: "widgets"}); err == nil {
		t.Fatal("querying a dropped table should fail")
	}
}

func TestQueryRejectedAfterClose(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := db.Query(&exec.TableScanNode{Table: "widgets"}); err == nil {
		t.Fatal("a query submitted after Close should be rejected")
	}
}

func TestStatsReflectsActivity(t *testing.T) {
	db, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.CreateTable("widgets", widgetColumns()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.Insert("widgets", [][]record.Value{{record.IntValue(1), record.TextValue("a")}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats := db.Stats()
	if stats.PageCount == 0 {
		t.Fatal("expected at least one resident page after an insert")
	}
	if stats.ActiveTransactions != 0 {
		t.Fatalf("ActiveTransactions = %d, want 0 once every call has returned", stats.ActiveTransactions)
	}
}

func TestOpenRejectsMismatchedPageSize(t *testing.T) {
	cfg := testConfig(t)
	cfg.PageSize = 4096
	if _, err := Open(cfg); err == nil {
		t.Fatal("Open should reject a page size that does not match the engine's fixed page size")
	}
}

package catalog

import (
	"path/filepath"
	"testing"

	"edgesql/pkg/storage/record"
)

func sampleColumns() []ColumnInfo {
	return []ColumnInfo{
		{Name: "id", Type: record.Integer, NotNull: true, PrimaryKey: true, Index: 0},
		{Name: "name", Type: record.Text, Index: 1},
	}
}

func TestCreateTableAssignsMonotoneIDs(t *testing.T) {
	c := New()
	t1, err := c.CreateTable("users", sampleColumns())
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	t2, err := c.CreateTable("orders", sampleColumns())
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if t2.ID <= t1.ID {
		t.Fatalf("expected monotone table ids, got %d then %d", t1.ID, t2.ID)
	}
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	c := New()
	if _, err := c.CreateTable("users", sampleColumns()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := c.CreateTable("Users", sampleColumns()); err == nil {
		t.Fatal("expected a case-insensitive duplicate name to be rejected")
	}
}

func TestDropTableRemovesEntry(t *testing.T) {
	c := New()
	info, _ := c.CreateTable("users", sampleColumns())
	if err := c.DropTable(info.ID); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	if _, ok := c.GetTable(info.ID); ok {
		t.Fatal("expected GetTable to fail after DropTable")
	}
}

func TestGetTableByNameIsCaseInsensitive(t *testing.T) {
	c := New()
	c.CreateTable("Users", sampleColumns())
	if _, ok := c.GetTableByName("users"); !ok {
		t.Fatal("expected a case-insensitive name lookup to succeed")
	}
}

func TestIncrementRowCountClampsAtZero(t *testing.T) {
	c := New()
	info, _ := c.CreateTable("users", sampleColumns())
	c.IncrementRowCount(info.ID, 5)
	c.IncrementRowCount(info.ID, -10)
	got, _ := c.GetTable(info.ID)
	if got.RowCount != 0 {
		t.Fatalf("RowCount = %d, want 0 (clamped)", got.RowCount)
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	c := New()
	info, _ := c.CreateTable("users", sampleColumns())
	c.SetRowCount(info.ID, 42)

	path := filepath.Join(t.TempDir(), "catalog.snapshot")
	if err := c.Persist(path); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded := New()
	if err := loaded.LoadSnapshot(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, ok := loaded.GetTableByName("users")
	if !ok {
		t.Fatal("expected table to survive the round trip")
	}
	if got.RowCount != 42 {
		t.Fatalf("RowCount = %d, want 42", got.RowCount)
	}
	if len(got.Columns) != 2 || got.Columns[0].Name != "id" || !got.Columns[0].PrimaryKey {
		t.Fatalf("columns did not round-trip: %+v", got.Columns)
	}

	next, err := loaded.CreateTable("orders", sampleColumns())
	if err != nil {
		t.Fatalf("CreateTable after Load failed: %v", err)
	}
	if next.ID <= got.ID {
		t.Fatalf("expected next_table_id to survive the round trip, got id %d after %d", next.ID, got.ID)
	}
}

func TestLoadWithMissingFileLeavesCatalogEmpty(t *testing.T) {
	c := New()
	if err := c.LoadSnapshot(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Fatalf("Load on a missing file should not error: %v", err)
	}
	if len(c.ListTables()) != 0 {
		t.Fatal("expected an empty catalog")
	}
}

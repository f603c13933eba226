package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/logging"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/record"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string
	Type       record.Type
	NotNull    bool
	PrimaryKey bool
	// Index is the column's ordinal position within its table, not a
	// secondary index structure.
	Index uint32
}

// TableInfo describes one table: its identity, its columns in declared
// order, and a row-count estimate the optimizer may use.
type TableInfo struct {
	ID       primitives.TableID
	Name     string
	Columns  []ColumnInfo
	RowCount uint64
}

// ColumnByName returns the column named name, case-sensitively, or
// ok=false if no such column exists.
func (t *TableInfo) ColumnByName(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// Catalog is the in-memory table directory for one database. All methods
// are safe for concurrent use.
type Catalog struct {
	mu          sync.Mutex
	tables      map[primitives.TableID]*TableInfo
	nextTableID primitives.TableID
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{
		tables:      make(map[primitives.TableID]*TableInfo),
		nextTableID: 1,
	}
}

// CreateTable registers a new table with the given name and columns,
// assigning it the next process-monotone table id. It is an error to
// create a table whose name already exists.
func (c *Catalog) CreateTable(name string, columns []ColumnInfo) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.tables {
		if strings.EqualFold(t.Name, name) {
			return nil, dberrors.New(dberrors.Validation, "TABLE_ALREADY_EXISTS",
				fmt.Sprintf("table %q already exists", name))
		}
	}

	info := &TableInfo{
		ID:      c.nextTableID,
		Name:    name,
		Columns: append([]ColumnInfo(nil), columns...),
	}
	c.tables[info.ID] = info
	c.nextTableID++

	logging.WithTable(name).Info("table created", "table_id", info.ID, "columns", len(columns))
	return info, nil
}

// DropTable removes a table's catalog entry. It is an error to drop a
// table id that does not exist.
func (c *Catalog) DropTable(tableID primitives.TableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.tables[tableID]
	if !ok {
		return dberrors.New(dberrors.Validation, "TABLE_NOT_FOUND",
			fmt.Sprintf("table id %d not found", tableID))
	}
	delete(c.tables, tableID)
	logging.WithTable(info.Name).Info("table dropped", "table_id", tableID)
	return nil
}

// GetTable returns the table with the given id.
func (c *Catalog) GetTable(tableID primitives.TableID) (*TableInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.tables[tableID]
	return info, ok
}

// GetTableByName returns the table with the given name, matched
// case-insensitively.
func (c *Catalog) GetTableByName(name string) (*TableInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// ListTables returns every registered table, in no particular order.
func (c *Catalog) ListTables() []*TableInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*TableInfo, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	return out
}

// SetRowCount updates tableID's row-count estimate.
func (c *Catalog) SetRowCount(tableID primitives.TableID, rowCount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.tables[tableID]; ok {
		info.RowCount = rowCount
	}
}

// IncrementRowCount bumps tableID's row-count estimate by delta, which may
// be negative (a decrement).
func (c *Catalog) IncrementRowCount(tableID primitives.TableID, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.tables[tableID]
	if !ok {
		return
	}
	if delta < 0 && uint64(-delta) > info.RowCount {
		info.RowCount = 0
		return
	}
	info.RowCount = uint64(int64(info.RowCount) + delta)
}

// snapshot is the on-disk form of a Catalog: just enough to rebuild the
// tables map and nextTableID, since the WAL's CREATE_TABLE/DROP_TABLE
// records carry no column list and so cannot reconstruct schema alone.
type snapshot struct {
	Tables      []*TableInfo
	NextTableID primitives.TableID
}

// Save writes the catalog's current state to path as a JSON snapshot.
// It is called after every schema change so a reopen can skip replaying
// the WAL just to recover table definitions.
func (c *Catalog) Save(path string) error {
	c.mu.Lock()
	snap := snapshot{NextTableID: c.nextTableID}
	for _, t := range c.tables {
		snap.Tables = append(snap.Tables, t)
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_ENCODE_FAILED", "Save", "Catalog")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_WRITE_FAILED", "Save", "Catalog")
	}
	if err := os.Rename(tmp, path); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_WRITE_FAILED", "Save", "Catalog")
	}
	return nil
}

// Load replaces the catalog's contents with the snapshot at path. It is
// a no-op, returning ok=false, when path does not exist yet.
func (c *Catalog) Load(path string) (ok bool, err error) {
	data, readErr := os.ReadFile(path)
	if os.IsNotExist(readErr) {
		return false, nil
	}
	if readErr != nil {
		return false, dberrors.Wrap(readErr, dberrors.IO, "CATALOG_READ_FAILED", "Load", "Catalog")
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, dberrors.Wrap(err, dberrors.Corruption, "CATALOG_DECODE_FAILED", "Load", "Catalog")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[primitives.TableID]*TableInfo, len(snap.Tables))
	for _, t := range snap.Tables {
		c.tables[t.ID] = t
	}
	c.nextTableID = snap.NextTableID
	if c.nextTableID == 0 {
		c.nextTableID = 1
	}
	return true, nil
}

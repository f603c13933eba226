package catalog

import (
	"encoding/binary"
	"fmt"
	"os"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/record"
)

// columnFlags bit positions within a persisted column's flags byte.
const (
	columnFlagNotNull    uint8 = 0x01
	columnFlagPrimaryKey uint8 = 0x02
)

// Persist writes the catalog as a flat binary snapshot to path:
//
//	u32 table_count
//	u32 next_table_id
//	per table: u32 id, u32 name_len, name, u32 col_count, u64 row_count
//	  per column: u32 name_len, name, u8 type, u8 flags, u32 index
//
// The whole file is written to a temporary path and renamed into place so
// a crash mid-write leaves the previous snapshot intact.
func (c *Catalog) Persist(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, 0, 4096)
	buf = appendU32(buf, uint32(len(c.tables)))
	buf = appendU32(buf, uint32(c.nextTableID))

	for _, t := range c.tables {
		buf = appendU32(buf, uint32(t.ID))
		buf = appendString(buf, t.Name)
		buf = appendU32(buf, uint32(len(t.Columns)))
		buf = appendU64(buf, t.RowCount)

		for _, col := range t.Columns {
			buf = appendString(buf, col.Name)
			buf = append(buf, byte(col.Type))
			var flags uint8
			if col.NotNull {
				flags |= columnFlagNotNull
			}
			if col.PrimaryKey {
				flags |= columnFlagPrimaryKey
			}
			buf = append(buf, flags)
			buf = appendU32(buf, col.Index)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0o640); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_SNAPSHOT_WRITE_FAILED", "Persist", "Catalog")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_SNAPSHOT_RENAME_FAILED", "Persist", "Catalog")
	}
	return nil
}

// LoadSnapshot replaces the catalog's contents with the binary snapshot at
// path. If path does not exist, LoadSnapshot leaves the catalog empty and
// returns nil: a database with no prior snapshot starts with no tables.
func (c *Catalog) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "CATALOG_SNAPSHOT_READ_FAILED", "Load", "Catalog")
	}

	tables, nextTableID, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = tables
	c.nextTableID = nextTableID
	return nil
}

func decodeSnapshot(data []byte) (map[primitives.TableID]*TableInfo, primitives.TableID, error) {
	r := &reader{buf: data}

	tableCount, err := r.u32()
	if err != nil {
		return nil, 0, err
	}
	nextTableID, err := r.u32()
	if err != nil {
		return nil, 0, err
	}

	tables := make(map[primitives.TableID]*TableInfo, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		id, err := r.u32()
		if err != nil {
			return nil, 0, err
		}
		name, err := r.str()
		if err != nil {
			return nil, 0, err
		}
		colCount, err := r.u32()
		if err != nil {
			return nil, 0, err
		}
		rowCount, err := r.u64()
		if err != nil {
			return nil, 0, err
		}

		columns := make([]ColumnInfo, colCount)
		for j := uint32(0); j < colCount; j++ {
			colName, err := r.str()
			if err != nil {
				return nil, 0, err
			}
			typ, err := r.u8()
			if err != nil {
				return nil, 0, err
			}
			flags, err := r.u8()
			if err != nil {
				return nil, 0, err
			}
			index, err := r.u32()
			if err != nil {
				return nil, 0, err
			}
			columns[j] = ColumnInfo{
				Name:       colName,
				Type:       record.Type(typ),
				NotNull:    flags&columnFlagNotNull != 0,
				PrimaryKey: flags&columnFlagPrimaryKey != 0,
				Index:      index,
			}
		}

		tables[primitives.TableID(id)] = &TableInfo{
			ID:       primitives.TableID(id),
			Name:     name,
			Columns:  columns,
			RowCount: rowCount,
		}
	}

	return tables, primitives.TableID(nextTableID), nil
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks a snapshot buffer sequentially, returning a Corruption
// error the first time it runs past the end.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, r.truncated()
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, r.truncated()
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, r.truncated()
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", r.truncated()
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) truncated() error {
	return dberrors.New(dberrors.Corruption, "CATALOG_SNAPSHOT_TRUNCATED",
		fmt.Sprintf("catalog snapshot truncated at byte offset %d", r.pos))
}

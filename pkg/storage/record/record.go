// Package record implements the self-describing row format stored inside
// page slots: an 8-byte header followed by a sequence of typed column
// values. Records carry their own column count and flags so a page scan
// can decode them without consulting the catalog, though the catalog's
// schema is still needed to interpret column names and constraints.
package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
)

// HeaderSize is the size in bytes of the fixed record header.
const HeaderSize = 8

// Flag bits stored in the record header.
const (
	FlagDeleted  uint16 = 0x0001
	FlagOverflow uint16 = 0x0002
)

// Type enumerates the column value kinds a Record can hold.
type Type uint8

const (
	Null Type = iota
	Integer
	Float
	Text
	Blob
	Boolean
)

func (t Type) String() string {
	switch t {
	case Null:
		return "NULL"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	case Boolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Value is a single typed column value. Exactly one of the typed fields is
// meaningful, selected by Type.
type Value struct {
	Type Type
	Int  int64
	F64  float64
	Str  string
	Bin  []byte
	Bool bool
}

// NullValue returns the NULL value.
func NullValue() Value { return Value{Type: Null} }

// IntValue returns an INTEGER value.
func IntValue(v int64) Value { return Value{Type: Integer, Int: v} }

// FloatValue returns a FLOAT value.
func FloatValue(v float64) Value { return Value{Type: Float, F64: v} }

// TextValue returns a TEXT value.
func TextValue(v string) Value { return Value{Type: Text, Str: v} }

// BlobValue returns a BLOB value.
func BlobValue(v []byte) Value { return Value{Type: Blob, Bin: v} }

// BoolValue returns a BOOLEAN value.
func BoolValue(v bool) Value { return Value{Type: Boolean, Bool: v} }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.Type == Null }

// Record is a row: a header plus an ordered sequence of column values.
type Record struct {
	Flags  uint16
	Values []Value
}

// New creates a Record with columnCount NULL values.
func New(columnCount int) *Record {
	return &Record{Values: make([]Value, columnCount)}
}

// ColumnCount returns the number of columns in the record.
func (r *Record) ColumnCount() int { return len(r.Values) }

// IsDeleted reports whether the record's tombstone flag is set. Records
// read out of a live slot are never deleted; this flag exists for formats
// that keep deleted records in place rather than tombstoning the slot.
func (r *Record) IsDeleted() bool { return r.Flags&FlagDeleted != 0 }

// Encode serializes the record to its on-disk byte representation:
// an 8-byte header (size, column_count, flags) followed by each column as
// a type tag byte and its type-specific payload (TEXT and BLOB are
// length-prefixed with a u32).
func (r *Record) Encode() []byte {
	body := make([]byte, 0, 64)
	for _, v := range r.Values {
		body = append(body, byte(v.Type))
		switch v.Type {
		case Null:
		case Integer:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
			body = append(body, b[:]...)
		case Float:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
			body = append(body, b[:]...)
		case Text:
			body = appendLengthPrefixed(body, []byte(v.Str))
		case Blob:
			body = appendLengthPrefixed(body, v.Bin)
		case Boolean:
			if v.Bool {
				body = append(body, 1)
			} else {
				body = append(body, 0)
			}
		}
	}

	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(out)))
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(r.Values)))
	binary.LittleEndian.PutUint16(out[6:8], r.Flags)
	copy(out[HeaderSize:], body)
	return out
}

func appendLengthPrefixed(dst, data []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, data...)
}

// Decode parses a record serialized by Encode.
func Decode(buf []byte) (*Record, error) {
	if len(buf) < HeaderSize {
		return nil, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "record shorter than its header")
	}
	size := binary.LittleEndian.Uint32(buf[0:4])
	columnCount := binary.LittleEndian.Uint16(buf[4:6])
	flags := binary.LittleEndian.Uint16(buf[6:8])
	if int(size) != len(buf) {
		return nil, dberrors.New(dberrors.Corruption, "RECORD_SIZE_MISMATCH",
			fmt.Sprintf("header declares size %d, buffer is %d bytes", size, len(buf)))
	}

	r := &Record{Flags: flags, Values: make([]Value, columnCount)}
	pos := HeaderSize
	for i := 0; i < int(columnCount); i++ {
		if pos >= len(buf) {
			return nil, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "ran out of bytes decoding columns")
		}
		typ := Type(buf[pos])
		pos++
		switch typ {
		case Null:
			r.Values[i] = NullValue()
		case Integer:
			if pos+8 > len(buf) {
				return nil, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "truncated INTEGER column")
			}
			r.Values[i] = IntValue(int64(binary.LittleEndian.Uint64(buf[pos : pos+8])))
			pos += 8
		case Float:
			if pos+8 > len(buf) {
				return nil, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "truncated FLOAT column")
			}
			r.Values[i] = FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(buf[pos : pos+8])))
			pos += 8
		case Text:
			s, next, err := readLengthPrefixed(buf, pos)
			if err != nil {
				return nil, err
			}
			r.Values[i] = TextValue(string(s))
			pos = next
		case Blob:
			b, next, err := readLengthPrefixed(buf, pos)
			if err != nil {
				return nil, err
			}
			r.Values[i] = BlobValue(append([]byte(nil), b...))
			pos = next
		case Boolean:
			if pos+1 > len(buf) {
				return nil, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "truncated BOOLEAN column")
			}
			r.Values[i] = BoolValue(buf[pos] != 0)
			pos++
		default:
			return nil, dberrors.New(dberrors.Corruption, "RECORD_BAD_COLUMN_TYPE",
				fmt.Sprintf("unknown column type tag %d", typ))
		}
	}
	return r, nil
}

func readLengthPrefixed(buf []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(buf) {
		return nil, 0, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
	pos += 4
	if pos+n > len(buf) {
		return nil, 0, dberrors.New(dberrors.Corruption, "RECORD_TRUNCATED", "truncated variable-length column")
	}
	return buf[pos : pos+n], pos + n, nil
}

// RowID addresses a record by the page it lives on and its slot within
// that page.
type RowID struct {
	Page primitives.PageID
	Slot primitives.SlotID
}

// InvalidRowID is the sentinel for "no row".
var InvalidRowID = RowID{
	Page: primitives.PageID{TableID: primitives.InvalidTableID, PageNum: 0xFFFFFFFF},
	Slot: 0xFFFF,
}

// IsValid reports whether id differs from InvalidRowID.
func (id RowID) IsValid() bool { return id != InvalidRowID }

package wal

import (
	"encoding/binary"
	"hash/crc32"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
)

// HeaderSize is the fixed size in bytes of a WAL record header.
const HeaderSize = 32

// RecordType enumerates the kinds of mutation a WAL record can carry.
type RecordType uint8

const (
	Invalid RecordType = iota
	Insert
	Update
	Delete
	CreateTable
	DropTable
	Checkpoint
	Commit
	Rollback
)

// Record is one WAL entry: a fixed header plus an opaque payload whose
// shape depends on Type.
type Record struct {
	LSN     primitives.LSN
	Type    RecordType
	TableID primitives.TableID
	PageID  primitives.PageNumber
	SlotID  primitives.SlotID
	Payload []byte
}

// SerializedSize returns how many bytes Serialize will produce.
func (r *Record) SerializedSize() int { return HeaderSize + len(r.Payload) }

// Serialize encodes the record as header+payload, computing length and the
// payload's CRC32 checksum.
func (r *Record) Serialize() []byte {
	buf := make([]byte, r.SerializedSize())
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.LSN))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[12:16], crc32.ChecksumIEEE(r.Payload))
	buf[16] = byte(r.Type)
	// buf[17:20] reserved, left zero
	binary.LittleEndian.PutUint32(buf[20:24], uint32(r.TableID))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(r.PageID))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(r.SlotID))
	// buf[30:32] padding, left zero
	copy(buf[HeaderSize:], r.Payload)
	return buf
}

// DecodeHeader parses just the fixed 32-byte header, returning the
// record's declared length and checksum alongside the partially filled
// Record so the caller can validate the payload before trusting it.
func DecodeHeader(buf []byte) (r *Record, length uint32, crc uint32, err error) {
	if len(buf) < HeaderSize {
		return nil, 0, 0, dberrors.New(dberrors.Corruption, "WAL_HEADER_TRUNCATED", "WAL record header shorter than 32 bytes")
	}
	r = &Record{
		LSN:     primitives.LSN(binary.LittleEndian.Uint64(buf[0:8])),
		Type:    RecordType(buf[16]),
		TableID: primitives.TableID(binary.LittleEndian.Uint32(buf[20:24])),
		PageID:  primitives.PageNumber(binary.LittleEndian.Uint32(buf[24:28])),
		SlotID:  primitives.SlotID(binary.LittleEndian.Uint16(buf[28:30])),
	}
	length = binary.LittleEndian.Uint32(buf[8:12])
	crc = binary.LittleEndian.Uint32(buf[12:16])
	return r, length, crc, nil
}

// attachPayload checks the payload's CRC32 against the header's stored
// value and attaches it to r.
func (r *Record) attachPayload(payload []byte, expectedCRC uint32) error {
	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return dberrors.New(dberrors.Corruption, "WAL_CRC_MISMATCH", "WAL record payload failed CRC32 validation")
	}
	r.Payload = payload
	return nil
}

// Package page implements the on-disk page format: a fixed 8 KiB slotted
// page with a 24-byte header, a slot directory that grows downward from
// the header, and records that grow upward from the end of the page.
//
//	+------------------------+  byte 0
//	| Header (24 bytes)      |
//	+------------------------+
//	| SlotEntry[0]           |  4 bytes each, grows toward higher offsets
//	| SlotEntry[1]           |
//	| ...                    |
//	+------------------------+
//	| free space             |
//	+------------------------+
//	| Record N               |
//	| ...                    |
//	| Record 0               |  grows toward lower offsets
//	+------------------------+  byte Size-1
package page

import (
	"encoding/binary"
	"fmt"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
)

// Size is the fixed page size in bytes.
const Size = 8192

// Magic identifies a buffer as a valid page; it is the little-endian
// encoding of the ASCII bytes "EDBG".
const Magic uint32 = 0x45444247

// HeaderSize is the size in bytes of the fixed page header.
const HeaderSize = 24

// SlotSize is the size in bytes of one slot directory entry.
const SlotSize = 4

// Flag bits stored in the page header.
const (
	FlagLeaf     uint16 = 0x0001
	FlagInternal uint16 = 0x0002
	FlagOverflow uint16 = 0x0004
	FlagDirty    uint16 = 0x0008
)

// deletedOffset marks a slot whose record has been deleted. The slot entry
// stays in the directory (so later slots keep their indices) but no longer
// points at live data.
const deletedOffset = 0xFFFF

// Page is a fixed Size-byte buffer holding a header, a slot directory and
// the page's records. It carries no synchronization of its own; callers
// (the buffer pool) serialize access.
type Page struct {
	buf [Size]byte
}

// New allocates a freshly initialized page for pageID with the given flags.
func New(pageID primitives.PageID, flags uint16) *Page {
	p := &Page{}
	p.Init(pageID, flags)
	return p
}

// Init (re)initializes the page in place: zeroes it, stamps the magic
// number and page id, and resets the slot directory and free space to an
// empty page.
func (p *Page) Init(pageID primitives.PageID, flags uint16) {
	for i := range p.buf {
		p.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(p.buf[0:4], Magic)
	binary.LittleEndian.PutUint32(p.buf[4:8], uint32(pageID.PageNum))
	binary.LittleEndian.PutUint64(p.buf[8:16], 0) // lsn
	binary.LittleEndian.PutUint16(p.buf[16:18], 0)
	binary.LittleEndian.PutUint16(p.buf[18:20], uint16(Size-HeaderSize))
	binary.LittleEndian.PutUint16(p.buf[20:22], uint16(Size))
	binary.LittleEndian.PutUint16(p.buf[22:24], flags)
}

// Bytes returns the page's raw buffer, for writing to or reading from disk.
func (p *Page) Bytes() []byte { return p.buf[:] }

// FromBytes wraps an existing Size-byte buffer as a Page without copying.
// The caller must not mutate buf through any other reference afterward.
func FromBytes(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, dberrors.New(dberrors.Corruption, "PAGE_BAD_LENGTH",
			fmt.Sprintf("page buffer is %d bytes, want %d", len(buf), Size))
	}
	p := &Page{}
	copy(p.buf[:], buf)
	return p, nil
}

// IsValid reports whether the page's magic number is intact.
func (p *Page) IsValid() bool {
	return binary.LittleEndian.Uint32(p.buf[0:4]) == Magic
}

// PageNum returns the page number stamped into the header.
func (p *Page) PageNum() primitives.PageNumber {
	return primitives.PageNumber(binary.LittleEndian.Uint32(p.buf[4:8]))
}

// LSN returns the log sequence number of the last WAL record applied to
// this page.
func (p *Page) LSN() primitives.LSN {
	return primitives.LSN(binary.LittleEndian.Uint64(p.buf[8:16]))
}

// SetLSN stamps the page with the LSN of the record that last modified it.
func (p *Page) SetLSN(lsn primitives.LSN) {
	binary.LittleEndian.PutUint64(p.buf[8:16], uint64(lsn))
}

// SlotCount returns the number of entries in the slot directory, including
// deleted slots.
func (p *Page) SlotCount() primitives.SlotID {
	return primitives.SlotID(binary.LittleEndian.Uint16(p.buf[16:18]))
}

func (p *Page) setSlotCount(n primitives.SlotID) {
	binary.LittleEndian.PutUint16(p.buf[16:18], uint16(n))
}

// FreeSpace returns the number of unallocated bytes between the slot
// directory and the first record.
func (p *Page) FreeSpace() uint16 {
	return binary.LittleEndian.Uint16(p.buf[18:20])
}

func (p *Page) setFreeSpace(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[18:20], n)
}

// dataStart returns the offset of the lowest-addressed byte currently used
// by a record; records are appended below this offset.
func (p *Page) dataStart() uint16 {
	return binary.LittleEndian.Uint16(p.buf[20:22])
}

func (p *Page) setDataStart(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[20:22], n)
}

// Flags returns the page's flag bits.
func (p *Page) Flags() uint16 {
	return binary.LittleEndian.Uint16(p.buf[22:24])
}

func (p *Page) setFlags(f uint16) {
	binary.LittleEndian.PutUint16(p.buf[22:24], f)
}

// IsLeaf, IsInternal, IsOverflow and IsDirty test individual flag bits.
func (p *Page) IsLeaf() bool     { return p.Flags()&FlagLeaf != 0 }
func (p *Page) IsInternal() bool { return p.Flags()&FlagInternal != 0 }
func (p *Page) IsOverflow() bool { return p.Flags()&FlagOverflow != 0 }
func (p *Page) IsDirty() bool    { return p.Flags()&FlagDirty != 0 }

// SetDirty sets or clears the dirty flag.
func (p *Page) SetDirty(dirty bool) {
	if dirty {
		p.setFlags(p.Flags() | FlagDirty)
	} else {
		p.setFlags(p.Flags() &^ FlagDirty)
	}
}

func (p *Page) slotOffset(slot primitives.SlotID) int {
	return HeaderSize + int(slot)*SlotSize
}

// slot entry accessors; offset == deletedOffset marks a deleted record.

func (p *Page) slotEntryOffset(slot primitives.SlotID) uint16 {
	o := p.slotOffset(slot)
	return binary.LittleEndian.Uint16(p.buf[o : o+2])
}

func (p *Page) slotEntryLength(slot primitives.SlotID) uint16 {
	o := p.slotOffset(slot)
	return binary.LittleEndian.Uint16(p.buf[o+2 : o+4])
}

func (p *Page) setSlotEntry(slot primitives.SlotID, offset, length uint16) {
	o := p.slotOffset(slot)
	binary.LittleEndian.PutUint16(p.buf[o:o+2], offset)
	binary.LittleEndian.PutUint16(p.buf[o+2:o+4], length)
}

func (p *Page) slotDirectoryEnd() uint16 {
	return uint16(HeaderSize) + uint16(p.SlotCount())*SlotSize
}

// GetRecord returns the bytes stored at slot, or ok=false if the slot is
// out of range, empty or has been deleted.
func (p *Page) GetRecord(slot primitives.SlotID) (data []byte, ok bool) {
	if slot >= p.SlotCount() {
		return nil, false
	}
	offset := p.slotEntryOffset(slot)
	length := p.slotEntryLength(slot)
	if offset == deletedOffset || (offset == 0 && length == 0) {
		return nil, false
	}
	return p.buf[offset : offset+length], true
}

// InsertRecord appends data as a new record, growing the slot directory by
// one entry. It returns the new slot index, or an error if the page does
// not have enough free space.
func (p *Page) InsertRecord(data []byte) (primitives.SlotID, error) {
	length := len(data)
	if length > 0xFFFF {
		return 0, dberrors.New(dberrors.Validation, "RECORD_TOO_LARGE",
			fmt.Sprintf("record is %d bytes, exceeds the 65535-byte slot limit", length))
	}
	required := uint16(length) + SlotSize
	if p.FreeSpace() < required {
		return 0, dberrors.New(dberrors.Corruption, "PAGE_FULL",
			fmt.Sprintf("page has %d bytes free, record needs %d", p.FreeSpace(), required))
	}

	recordOffset := p.dataStart() - uint16(length)
	slotDirEnd := p.slotDirectoryEnd() + SlotSize
	if recordOffset < slotDirEnd {
		return 0, dberrors.New(dberrors.Corruption, "PAGE_FULL",
			"record would overlap the slot directory")
	}

	copy(p.buf[recordOffset:recordOffset+uint16(length)], data)

	slot := p.SlotCount()
	p.setSlotEntry(slot, recordOffset, uint16(length))
	p.setSlotCount(slot + 1)
	p.setDataStart(recordOffset)
	p.setFreeSpace(p.FreeSpace() - required)
	p.SetDirty(true)

	return slot, nil
}

// DeleteRecord marks a slot's record as deleted. The space is not
// reclaimed; a page is only compacted by rewriting it from its live
// records, which this package leaves to its caller.
func (p *Page) DeleteRecord(slot primitives.SlotID) error {
	if slot >= p.SlotCount() {
		return dberrors.New(dberrors.Validation, "SLOT_OUT_OF_RANGE", "slot index out of range")
	}
	offset := p.slotEntryOffset(slot)
	length := p.slotEntryLength(slot)
	if offset == deletedOffset || (offset == 0 && length == 0) {
		return dberrors.New(dberrors.Validation, "SLOT_ALREADY_EMPTY", "slot has no live record")
	}
	p.setSlotEntry(slot, deletedOffset, 0)
	p.SetDirty(true)
	return nil
}

// UpdateRecord overwrites a slot's record in place. It only succeeds if
// the new data is no longer than the existing record; a growing update
// must delete and re-insert instead, which may leave wasted space behind.
func (p *Page) UpdateRecord(slot primitives.SlotID, data []byte) error {
	if slot >= p.SlotCount() {
		return dberrors.New(dberrors.Validation, "SLOT_OUT_OF_RANGE", "slot index out of range")
	}
	offset := p.slotEntryOffset(slot)
	length := p.slotEntryLength(slot)
	if offset == deletedOffset || (offset == 0 && length == 0) {
		return dberrors.New(dberrors.Validation, "SLOT_ALREADY_EMPTY", "slot has no live record")
	}
	if len(data) > int(length) {
		return dberrors.New(dberrors.Corruption, "UPDATE_WOULD_GROW",
			"in-place update must not grow the record; delete and re-insert instead")
	}
	copy(p.buf[offset:offset+uint16(len(data))], data)
	p.setSlotEntry(slot, offset, uint16(len(data)))
	p.SetDirty(true)
	return nil
}

// Store is the minimal interface recovery and checkpointing need against
// any on-disk page layout: fetch-or-create a page by id, flag it dirty,
// and flush every dirty page back to disk. Both the single-file-per-table
// buffer pool and the append-only segment manager implement it, so
// recovery and checkpoint logic runs unchanged against either.
type Store interface {
	EnsurePage(id primitives.PageID) (*Page, error)
	MarkDirty(id primitives.PageID)
	FlushAll() (int, error)
}

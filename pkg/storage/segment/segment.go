// Package segment implements the append-only alternative to the
// single-file-per-table buffer pool layout: a table's pages are spread
// across a sequence of segment_<table>_<segment>.seg files, each capped at
// a configured page count, with only the highest-numbered segment (the
// active one) ever appended to. Reads and writes are positional, via
// golang.org/x/sys/unix's pread/pwrite, so concurrent access doesn't race
// on a shared file offset.
package segment

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/page"
)

// Magic identifies a buffer as a valid segment header.
const Magic uint32 = 0x53454745

// headerSize is the on-disk size of SegmentHeader's fields. The header
// occupies one full page-sized block; the remaining bytes up to
// page.Size are padding.
const headerSize = 4 + 4 + 4 + 4 + 8 + 8

// Config bounds how large a segment is allowed to grow before the
// SegmentManager rotates to a new one.
type Config struct {
	MaxPages        int
	TargetSizeBytes int64
}

// DefaultConfig matches the original deployment's defaults: 1024 pages or
// roughly 8 MiB, whichever comes first.
func DefaultConfig() Config {
	return Config{MaxPages: 1024, TargetSizeBytes: 8 * 1024 * 1024}
}

// Header is the fixed metadata block at the start of a segment file.
type Header struct {
	Magic      uint32
	SegmentID  uint32
	TableID    primitives.TableID
	PageCount  uint32
	CreatedLSN primitives.LSN
	MaxLSN     primitives.LSN
}

func (h Header) encode() []byte {
	buf := make([]byte, page.Size)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.SegmentID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.TableID))
	binary.LittleEndian.PutUint32(buf[12:16], h.PageCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedLSN))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.MaxLSN))
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, dberrors.New(dberrors.Corruption, "SEGMENT_HEADER_TRUNCATED", "segment header shorter than expected")
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		SegmentID:  binary.LittleEndian.Uint32(buf[4:8]),
		TableID:    primitives.TableID(binary.LittleEndian.Uint32(buf[8:12])),
		PageCount:  binary.LittleEndian.Uint32(buf[12:16]),
		CreatedLSN: primitives.LSN(binary.LittleEndian.Uint64(buf[16:24])),
		MaxLSN:     primitives.LSN(binary.LittleEndian.Uint64(buf[24:32])),
	}
	if h.Magic != Magic {
		return Header{}, dberrors.New(dberrors.Corruption, "SEGMENT_BAD_MAGIC", "segment header failed magic validation")
	}
	return h, nil
}

// Segment is a single append-only file holding pages for one table.
type Segment struct {
	path      string
	tableID   primitives.TableID
	segmentID uint32

	mu         sync.Mutex
	file       *os.File
	pageCount  uint32
	createdLSN primitives.LSN
	maxLSN     primitives.LSN
}

// Create makes a new, empty segment file at path and writes its header.
func Create(path string, tableID primitives.TableID, segmentID uint32, createdLSN primitives.LSN) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "SEGMENT_CREATE_FAILED", "Create", "Segment")
	}
	s := &Segment{path: path, tableID: tableID, segmentID: segmentID, file: f, createdLSN: createdLSN}
	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing segment file and validates its header.
func Open(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o640)
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "SEGMENT_OPEN_FAILED", "Open", "Segment")
	}

	buf := make([]byte, page.Size)
	if _, err := unix.Pread(int(f.Fd()), buf, 0); err != nil {
		f.Close()
		return nil, dberrors.Wrap(err, dberrors.IO, "SEGMENT_HEADER_READ_FAILED", "Open", "Segment")
	}
	h, err := decodeHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Segment{
		path:       path,
		tableID:    h.TableID,
		segmentID:  h.SegmentID,
		file:       f,
		pageCount:  h.PageCount,
		createdLSN: h.CreatedLSN,
		maxLSN:     h.MaxLSN,
	}, nil
}

// Close releases the segment's file handle.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Segment) writeHeader() error {
	h := Header{Magic: Magic, SegmentID: s.segmentID, TableID: s.tableID, PageCount: s.pageCount, CreatedLSN: s.createdLSN, MaxLSN: s.maxLSN}
	if _, err := unix.Pwrite(int(s.file.Fd()), h.encode(), 0); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_HEADER_WRITE_FAILED", "writeHeader", "Segment")
	}
	return nil
}

func (s *Segment) pageOffset(pageOffset uint32) int64 {
	return int64(page.Size) + int64(pageOffset)*int64(page.Size)
}

// ReadPage reads the page stored at pageOffset within the segment (0 is
// the first page after the header block).
func (s *Segment) ReadPage(pageOffset uint32) (*page.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pageOffset >= s.pageCount {
		return nil, dberrors.New(dberrors.Validation, "SEGMENT_PAGE_OUT_OF_RANGE",
			fmt.Sprintf("page offset %d out of range, segment has %d pages", pageOffset, s.pageCount))
	}

	buf := make([]byte, page.Size)
	if _, err := unix.Pread(int(s.file.Fd()), buf, s.pageOffset(pageOffset)); err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "SEGMENT_PAGE_READ_FAILED", "ReadPage", "Segment")
	}
	return page.FromBytes(buf)
}

// WritePage overwrites the page already stored at pageOffset.
func (s *Segment) WritePage(pageOffset uint32, pg *page.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pageOffset >= s.pageCount {
		return dberrors.New(dberrors.Validation, "SEGMENT_PAGE_OUT_OF_RANGE",
			fmt.Sprintf("page offset %d out of range, segment has %d pages", pageOffset, s.pageCount))
	}
	if _, err := unix.Pwrite(int(s.file.Fd()), pg.Bytes(), s.pageOffset(pageOffset)); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_PAGE_WRITE_FAILED", "WritePage", "Segment")
	}
	if pg.LSN() > s.maxLSN {
		s.maxLSN = pg.LSN()
	}
	return nil
}

// AppendPage writes pg as a new page at the end of the segment and returns
// its page offset.
func (s *Segment) AppendPage(pg *page.Page) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.pageCount
	if _, err := unix.Pwrite(int(s.file.Fd()), pg.Bytes(), s.pageOffset(offset)); err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "SEGMENT_APPEND_FAILED", "AppendPage", "Segment")
	}
	s.pageCount++
	if pg.LSN() > s.maxLSN {
		s.maxLSN = pg.LSN()
	}
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return offset, nil
}

// Sync flushes the segment file to stable storage.
func (s *Segment) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := unix.Fsync(int(s.file.Fd())); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_SYNC_FAILED", "Sync", "Segment")
	}
	return nil
}

// SegmentID returns the segment's id, unique within its table.
func (s *Segment) SegmentID() uint32 { return s.segmentID }

// TableID returns the table this segment belongs to.
func (s *Segment) TableID() primitives.TableID { return s.tableID }

// PageCount returns how many pages the segment currently holds.
func (s *Segment) PageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// IsFull reports whether the segment has reached cfg's rotation threshold,
// either by page count or by projected byte size.
func (s *Segment) IsFull(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(s.pageCount) >= cfg.MaxPages {
		return true
	}
	projected := int64(page.Size) + int64(s.pageCount)*int64(page.Size)
	return projected >= cfg.TargetSizeBytes
}

// Path returns the segment's backing file path.
func (s *Segment) Path() string { return s.path }

// Package wal implements the write-ahead log: an append-only file of
// CRC32-checked, monotonically-LSN-ordered records that every durable page
// mutation must precede. A record is only guaranteed to survive a crash
// once Append has returned and Sync has completed; recovery scans the file
// from the start and treats the first malformed or truncated record as the
// end of valid data, not as an error.
package wal

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
)

// FileMagic identifies a buffer as a valid WAL file header.
const FileMagic uint32 = 0x57414C45

// CurrentVersion is the only WAL file format version this package writes.
const CurrentVersion uint32 = 1

// FileHeaderSize is the fixed size in bytes of the WAL file header.
const FileHeaderSize = 24

// FileHeader is the fixed metadata block at the start of a WAL file.
type FileHeader struct {
	Magic             uint32
	Version           uint32
	FirstLSN          primitives.LSN
	LastCheckpointLSN primitives.LSN
}

func (h FileHeader) encode() []byte {
	buf := make([]byte, FileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.FirstLSN))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.LastCheckpointLSN))
	return buf
}

func decodeFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < FileHeaderSize {
		return FileHeader{}, dberrors.New(dberrors.Corruption, "WAL_FILE_HEADER_TRUNCATED", "WAL file header shorter than 24 bytes")
	}
	h := FileHeader{
		Magic:             binary.LittleEndian.Uint32(buf[0:4]),
		Version:           binary.LittleEndian.Uint32(buf[4:8]),
		FirstLSN:          primitives.LSN(binary.LittleEndian.Uint64(buf[8:16])),
		LastCheckpointLSN: primitives.LSN(binary.LittleEndian.Uint64(buf[16:24])),
	}
	if h.Magic != FileMagic || h.Version != CurrentVersion {
		return FileHeader{}, dberrors.New(dberrors.Corruption, "WAL_FILE_HEADER_INVALID", "WAL file header failed magic/version validation")
	}
	return h, nil
}

// WAL is the write-ahead log for one data directory.
type WAL struct {
	path string

	mu                sync.Mutex
	file              *os.File
	currentLSN        primitives.LSN
	lastCheckpointLSN primitives.LSN
}

// Open opens the WAL file at path, creating it with a fresh header if it
// does not exist, or validating the existing header and scanning forward
// to find the next LSN to assign. A corrupted file header is fatal: the
// caller cannot trust anything else in the file.
func Open(path string) (*WAL, error) {
	w := &WAL{path: path, currentLSN: 1}

	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640)
		if err != nil {
			return nil, dberrors.Wrap(err, dberrors.IO, "WAL_CREATE_FAILED", "Open", "WAL")
		}
		w.file = f
		if _, err := f.Write(FileHeader{Magic: FileMagic, Version: CurrentVersion, FirstLSN: 1}.encode()); err != nil {
			f.Close()
			return nil, dberrors.Wrap(err, dberrors.IO, "WAL_CREATE_FAILED", "Open", "WAL")
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, dberrors.Wrap(err, dberrors.IO, "WAL_CREATE_FAILED", "Open", "WAL")
		}
		return w, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o640)
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "WAL_OPEN_FAILED", "Open", "WAL")
	}
	w.file = f

	hdrBuf := make([]byte, FileHeaderSize)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		f.Close()
		return nil, dberrors.Wrap(err, dberrors.Corruption, "WAL_FILE_HEADER_UNREADABLE", "Open", "WAL")
	}
	hdr, err := decodeFileHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.lastCheckpointLSN = hdr.LastCheckpointLSN

	highest, err := scanHighestLSN(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.currentLSN = highest + 1
	// Drop any malformed tail so new records follow the last valid one.
	end, err := f.Seek(0, io.SeekCurrent)
	if err == nil {
		err = f.Truncate(end)
	}
	if err != nil {
		f.Close()
		return nil, dberrors.Wrap(err, dberrors.IO, "WAL_OPEN_FAILED", "Open", "WAL")
	}
	return w, nil
}

// scanHighestLSN walks every well-formed record from the current file
// position and returns the highest LSN seen, leaving the file position at
// the first invalid/truncated record (the valid tail's end).
func scanHighestLSN(f *os.File) (primitives.LSN, error) {
	var highest primitives.LSN
	for {
		hdrBuf := make([]byte, HeaderSize)
		n, err := io.ReadFull(f, hdrBuf)
		if err != nil || n < HeaderSize {
			f.Seek(int64(-n), io.SeekCurrent)
			break
		}
		rec, length, crc, err := DecodeHeader(hdrBuf)
		if err != nil || length < HeaderSize {
			f.Seek(-int64(n), io.SeekCurrent)
			break
		}
		payload := make([]byte, length-HeaderSize)
		n2, err := io.ReadFull(f, payload)
		if err != nil || n2 != len(payload) {
			f.Seek(-int64(n+n2), io.SeekCurrent)
			break
		}
		if err := rec.attachPayload(payload, crc); err != nil {
			f.Seek(-int64(n+n2), io.SeekCurrent)
			break
		}
		if rec.LSN > highest {
			highest = rec.LSN
		}
	}
	return highest, nil
}

// Close flushes and closes the WAL file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Append assigns the next LSN to rec, serializes it and writes it to the
// end of the file. It returns the assigned LSN. The caller must call Sync
// before treating the record as durable.
func (w *WAL) Append(rec *Record) (primitives.LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec.LSN = w.currentLSN
	w.currentLSN++

	if _, err := w.file.Write(rec.Serialize()); err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "WAL_APPEND_FAILED", "Append", "WAL")
	}
	return rec.LSN, nil
}

// Sync fsyncs the WAL file so every Append so far is durable.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "WAL_SYNC_FAILED", "Sync", "WAL")
	}
	return nil
}

// CurrentLSN returns the LSN that will be assigned to the next Append.
func (w *WAL) CurrentLSN() primitives.LSN {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentLSN
}

// Checkpoint appends a CHECKPOINT record (table_id=0, page_id=0, slot_id=0)
// and returns its LSN. The caller is responsible for syncing afterward.
func (w *WAL) Checkpoint() (primitives.LSN, error) {
	lsn, err := w.Append(&Record{Type: Checkpoint})
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.lastCheckpointLSN = lsn
	w.mu.Unlock()
	return lsn, nil
}

// LastCheckpointLSN returns the LSN of the most recent checkpoint this WAL
// instance has appended or read from its header.
func (w *WAL) LastCheckpointLSN() primitives.LSN {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCheckpointLSN
}

// ReadAll scans every well-formed record from just after the file header.
// A record whose header is out of range or whose payload cannot be read in
// full ends the scan there without returning an error: a truncated tail is
// how a crash mid-append is expected to look.
func (w *WAL) ReadAll() ([]*Record, error) {
	return w.ReadFrom(0)
}

// ReadFrom scans every well-formed record and returns those with
// LSN >= startLSN, in file order.
func (w *WAL) ReadFrom(startLSN primitives.LSN) ([]*Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(FileHeaderSize, io.SeekStart); err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "WAL_READ_FAILED", "ReadFrom", "WAL")
	}

	var out []*Record
	for {
		hdrBuf := make([]byte, HeaderSize)
		if _, err := io.ReadFull(w.file, hdrBuf); err != nil {
			break
		}
		rec, length, crc, err := DecodeHeader(hdrBuf)
		if err != nil || length < HeaderSize {
			break
		}
		payload := make([]byte, length-HeaderSize)
		if _, err := io.ReadFull(w.file, payload); err != nil {
			break
		}
		if err := rec.attachPayload(payload, crc); err != nil {
			break
		}
		if rec.LSN >= startLSN {
			out = append(out, rec)
		}
	}

	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "WAL_READ_FAILED", "ReadFrom", "WAL")
	}
	return out, nil
}

// FileSize returns the WAL file's current size in bytes.
func (w *WAL) FileSize() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return 0, dberrors.Wrap(err, dberrors.IO, "WAL_STAT_FAILED", "FileSize", "WAL")
	}
	return info.Size(), nil
}

package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/page"
)

// Manager tracks the segments belonging to every table under one data
// directory and decides when to rotate a table onto a fresh segment.
type Manager struct {
	dataDir string
	cfg     Config

	mu            sync.Mutex
	segments      map[primitives.TableID][]*Segment
	activeSegment map[primitives.TableID]uint32

	// pageCache and dirty back page.Store's EnsurePage/MarkDirty/FlushAll:
	// unlike the buffer pool, the segment manager keeps every touched page
	// in memory rather than evicting, since it is the alternative layout
	// exercised by recovery/checkpoint rather than the engine's working set.
	pageCache map[primitives.PageID]*page.Page
	dirty     map[primitives.PageID]bool
}

// New creates a Manager rooted at dataDir using cfg's rotation thresholds.
func New(dataDir string, cfg Config) *Manager {
	return &Manager{
		dataDir:       dataDir,
		cfg:           cfg,
		segments:      make(map[primitives.TableID][]*Segment),
		activeSegment: make(map[primitives.TableID]uint32),
		pageCache:     make(map[primitives.PageID]*page.Page),
		dirty:         make(map[primitives.PageID]bool),
	}
}

// Open creates the data directory if needed and loads any existing
// segment files it finds into memory.
func (m *Manager) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dataDir, 0o750); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_MANAGER_OPEN_FAILED", "Open", "SegmentManager")
	}

	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_MANAGER_OPEN_FAILED", "Open", "SegmentManager")
	}

	tables := map[primitives.TableID]bool{}
	for _, e := range entries {
		tableID, _, ok := parseSegmentFilename(e.Name())
		if ok {
			tables[tableID] = true
		}
	}
	for tableID := range tables {
		if err := m.loadTableSegments(tableID); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable starts a fresh, empty segment sequence for tableID.
func (m *Manager) CreateTable(tableID primitives.TableID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.segments[tableID]; exists {
		return dberrors.New(dberrors.Validation, "SEGMENT_TABLE_EXISTS",
			fmt.Sprintf("table %d already has segments", tableID))
	}

	seg, err := Create(m.segmentPath(tableID, 0), tableID, 0, primitives.InvalidLSN)
	if err != nil {
		return err
	}
	m.segments[tableID] = []*Segment{seg}
	m.activeSegment[tableID] = 0
	return nil
}

// DropTable closes and deletes every segment file belonging to tableID.
func (m *Manager) DropTable(tableID primitives.TableID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, seg := range m.segments[tableID] {
		seg.Close()
		os.Remove(seg.Path())
	}
	delete(m.segments, tableID)
	delete(m.activeSegment, tableID)
	return nil
}

// GetActiveSegment returns the highest-numbered (currently writable)
// segment for tableID.
func (m *Manager) GetActiveSegment(tableID primitives.TableID) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSegmentLocked(tableID)
}

func (m *Manager) activeSegmentLocked(tableID primitives.TableID) (*Segment, error) {
	segs := m.segments[tableID]
	activeID, ok := m.activeSegment[tableID]
	if !ok || len(segs) == 0 {
		return nil, dberrors.New(dberrors.Validation, "SEGMENT_NO_ACTIVE",
			fmt.Sprintf("table %d has no active segment", tableID))
	}
	for _, seg := range segs {
		if seg.SegmentID() == activeID {
			return seg, nil
		}
	}
	return nil, dberrors.New(dberrors.Corruption, "SEGMENT_ACTIVE_MISSING",
		fmt.Sprintf("table %d's recorded active segment %d is not loaded", tableID, activeID))
}

// GetSegment returns a specific segment of tableID by its segment id.
func (m *Manager) GetSegment(tableID primitives.TableID, segmentID uint32) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seg := range m.segments[tableID] {
		if seg.SegmentID() == segmentID {
			return seg, nil
		}
	}
	return nil, dberrors.New(dberrors.Validation, "SEGMENT_NOT_FOUND",
		fmt.Sprintf("table %d has no segment %d", tableID, segmentID))
}

// RotateSegment closes writes to the current active segment and starts a
// new one, numbered one higher.
func (m *Manager) RotateSegment(tableID primitives.TableID) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.activeSegmentLocked(tableID)
	if err != nil {
		return nil, err
	}
	nextID := current.SegmentID() + 1
	seg, err := Create(m.segmentPath(tableID, nextID), tableID, nextID, current.maxLSN)
	if err != nil {
		return nil, err
	}
	m.segments[tableID] = append(m.segments[tableID], seg)
	m.activeSegment[tableID] = nextID
	return seg, nil
}

// AppendPage writes pg to tableID's active segment, rotating first if the
// active segment has reached its rotation threshold.
func (m *Manager) AppendPage(tableID primitives.TableID, pg *page.Page) (segmentID, pageOffset uint32, err error) {
	m.mu.Lock()
	active, err := m.activeSegmentLocked(tableID)
	m.mu.Unlock()
	if err != nil {
		return 0, 0, err
	}

	if active.IsFull(m.cfg) {
		rotated, err := m.RotateSegment(tableID)
		if err != nil {
			return 0, 0, err
		}
		active = rotated
	}

	offset, err := active.AppendPage(pg)
	if err != nil {
		return 0, 0, err
	}
	return active.SegmentID(), offset, nil
}

// FlushAllSegments syncs every loaded segment across every table.
func (m *Manager) FlushAllSegments() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, segs := range m.segments {
		for _, seg := range segs {
			seg.Sync()
		}
	}
}

// FlushAll writes every dirty cached page back to its segment and syncs
// every loaded segment to stable storage, returning how many pages were
// written. It satisfies page.Store alongside the buffer pool, so
// recovery and checkpoint logic runs unchanged against either.
func (m *Manager) FlushAll() (int, error) {
	m.mu.Lock()
	dirtyIDs := make([]primitives.PageID, 0, len(m.dirty))
	for id := range m.dirty {
		dirtyIDs = append(dirtyIDs, id)
	}
	m.dirty = make(map[primitives.PageID]bool)
	m.mu.Unlock()

	for _, id := range dirtyIDs {
		m.mu.Lock()
		pg := m.pageCache[id]
		m.mu.Unlock()
		if pg == nil {
			continue
		}
		segmentID, offset := m.pageLocation(id.PageNum)
		seg, err := m.GetSegment(id.TableID, segmentID)
		if err != nil {
			return len(dirtyIDs), err
		}
		if err := seg.WritePage(offset, pg); err != nil {
			return len(dirtyIDs), err
		}
	}

	m.FlushAllSegments()
	return len(dirtyIDs), nil
}

// pageLocation maps a flat page number onto a (segment, offset) pair
// using the fixed MaxPages-per-segment rotation threshold: every
// non-active segment is always full, so the mapping is deterministic.
func (m *Manager) pageLocation(pageNum primitives.PageNumber) (segmentID, offset uint32) {
	perSegment := uint32(m.cfg.MaxPages)
	if perSegment == 0 {
		perSegment = 1
	}
	return uint32(pageNum) / perSegment, uint32(pageNum) % perSegment
}

// EnsurePage returns the page at id from the in-memory cache, loading it
// from its segment (creating the segment and padding with blank pages as
// needed) on first touch. This is the same contract buffer.Pool.EnsurePage
// offers: recovery uses it to materialize the exact page a WAL record
// addresses, then mutates the returned pointer and calls MarkDirty.
func (m *Manager) EnsurePage(id primitives.PageID) (*page.Page, error) {
	m.mu.Lock()
	if pg, ok := m.pageCache[id]; ok {
		m.mu.Unlock()
		return pg, nil
	}
	_, tableExists := m.segments[id.TableID]
	m.mu.Unlock()

	if !tableExists {
		if err := m.CreateTable(id.TableID); err != nil {
			return nil, err
		}
	}

	segmentID, offset := m.pageLocation(id.PageNum)
	if err := m.growToSegment(id.TableID, segmentID); err != nil {
		return nil, err
	}
	seg, err := m.GetSegment(id.TableID, segmentID)
	if err != nil {
		return nil, err
	}

	var pg *page.Page
	if offset < seg.PageCount() {
		pg, err = seg.ReadPage(offset)
		if err != nil {
			return nil, err
		}
	} else {
		for seg.PageCount() <= offset {
			pg = page.New(id, page.FlagLeaf)
			if _, err := seg.AppendPage(pg); err != nil {
				return nil, err
			}
		}
	}

	m.mu.Lock()
	m.pageCache[id] = pg
	m.mu.Unlock()
	return pg, nil
}

// growToSegment rotates tableID forward until its active segment reaches
// segmentID, for the case where EnsurePage addresses a page in a segment
// that does not exist yet.
func (m *Manager) growToSegment(tableID primitives.TableID, segmentID uint32) error {
	for {
		active, err := m.GetActiveSegment(tableID)
		if err != nil {
			return err
		}
		if active.SegmentID() >= segmentID {
			return nil
		}
		if _, err := m.RotateSegment(tableID); err != nil {
			return err
		}
	}
}

// MarkDirty flags id's cached page as needing a write-back on the next
// FlushAll.
func (m *Manager) MarkDirty(id primitives.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty[id] = true
}

func (m *Manager) segmentPath(tableID primitives.TableID, segmentID uint32) string {
	return filepath.Join(m.dataDir, fmt.Sprintf("segment_%d_%d.seg", tableID, segmentID))
}

func (m *Manager) loadTableSegments(tableID primitives.TableID) error {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "SEGMENT_LOAD_FAILED", "loadTableSegments", "SegmentManager")
	}

	var segs []*Segment
	for _, e := range entries {
		gotTable, segmentID, ok := parseSegmentFilename(e.Name())
		if !ok || gotTable != tableID {
			continue
		}
		seg, err := Open(filepath.Join(m.dataDir, e.Name()))
		if err != nil {
			return err
		}
		_ = segmentID
		segs = append(segs, seg)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].SegmentID() < segs[j].SegmentID() })
	if len(segs) == 0 {
		return nil
	}

	m.segments[tableID] = segs
	m.activeSegment[tableID] = segs[len(segs)-1].SegmentID()
	return nil
}

// parseSegmentFilename extracts the table and segment id from a
// "segment_<table>_<segment>.seg" filename.
func parseSegmentFilename(name string) (tableID primitives.TableID, segmentID uint32, ok bool) {
	if !strings.HasPrefix(name, "segment_") || !strings.HasSuffix(name, ".seg") {
		return 0, 0, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, "segment_"), ".seg")
	parts := strings.SplitN(body, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	t, err1 := strconv.ParseUint(parts[0], 10, 32)
	s, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return primitives.TableID(t), uint32(s), true
}

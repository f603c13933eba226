// Package buffer implements the buffer pool: a fixed-capacity, LRU-evicted
// cache of pages keyed by (table, page number), backed by one file per
// table at data_dir/table_<id>.dat. A single mutex serializes every
// operation; the transaction coordinator already serializes writers
// against readers, so the pool's hit path staying short matters more than
// fine-grained locking here.
package buffer

import (
	"fmt"
	"os"
	"path/filepath"

	"edgesql/pkg/dberrors"
	"edgesql/pkg/primitives"
	"edgesql/pkg/storage/page"

	"sync"
)

// node is one entry in the pool's doubly-linked LRU list.
type node struct {
	id    primitives.PageID
	page  *page.Page
	dirty bool
	prev  *node
	next  *node
}

// Pool is the buffer pool / page manager.
type Pool struct {
	dataDir    string
	maxPages   int
	mu         sync.Mutex
	entries    map[primitives.PageID]*node
	head, tail *node // head.next = MRU, tail.prev = LRU
	nextPageID map[primitives.TableID]primitives.PageNumber
}

// New creates a Pool rooted at dataDir with room for at most maxPages
// pages. Call Open before use.
func New(dataDir string, maxPages int) *Pool {
	head, tail := &node{}, &node{}
	head.next = tail
	tail.prev = head
	return &Pool{
		dataDir:    dataDir,
		maxPages:   maxPages,
		entries:    make(map[primitives.PageID]*node),
		head:       head,
		tail:       tail,
		nextPageID: make(map[primitives.TableID]primitives.PageNumber),
	}
}

// Open creates the data directory if it does not already exist.
func (p *Pool) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := os.MkdirAll(p.dataDir, 0o750); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "BUFFER_POOL_OPEN_FAILED", "Open", "BufferPool")
	}
	return nil
}

// Close flushes every dirty page and drops the pool's contents. It is safe
// to call even if the pool is empty.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, n := range p.entries {
		if n.dirty {
			if err := p.writePage(id, n.page); err != nil {
				return err
			}
		}
	}
	p.entries = make(map[primitives.PageID]*node)
	p.head.next = p.tail
	p.tail.prev = p.head
	return nil
}

func (p *Pool) addToFront(n *node) {
	n.prev = p.head
	n.next = p.head.next
	p.head.next.prev = n
	p.head.next = n
}

func (p *Pool) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (p *Pool) moveToFront(n *node) {
	p.removeNode(n)
	p.addToFront(n)
}

// GetPage returns the page at id, loading it from disk on a cache miss and
// evicting the least-recently-used page first if the pool is full. On a
// hit it promotes the page to most-recently-used.
func (p *Pool) GetPage(id primitives.PageID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n, ok := p.entries[id]; ok {
		p.moveToFront(n)
		return n.page, nil
	}
	return p.loadPage(id)
}

// AllocatePage creates a brand new page for tableID, assigning it the next
// page number in that table's sequence, and inserts it at MRU marked
// dirty.
func (p *Pool) AllocatePage(tableID primitives.TableID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.entries) >= p.maxPages {
		if err := p.evictOne(); err != nil {
			return nil, err
		}
	}

	pageNum := p.nextPageID[tableID]
	p.nextPageID[tableID] = pageNum + 1

	id := primitives.PageID{TableID: tableID, PageNum: pageNum}
	pg := page.New(id, page.FlagLeaf)

	n := &node{id: id, page: pg, dirty: true}
	p.entries[id] = n
	p.addToFront(n)
	return pg, nil
}

// EnsurePage returns the page at id, creating it in place if it has never
// been written (the table file is shorter than id's offset requires).
// Recovery uses this to materialize the exact page a WAL record addresses
// rather than appending to the end of the table.
func (p *Pool) EnsurePage(id primitives.PageID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n, ok := p.entries[id]; ok {
		p.moveToFront(n)
		return n.page, nil
	}

	pg, err := p.loadPage(id)
	if err == nil {
		return pg, nil
	}

	for len(p.entries) >= p.maxPages {
		if evictErr := p.evictOne(); evictErr != nil {
			return nil, evictErr
		}
	}

	pg = page.New(id, page.FlagLeaf)
	n := &node{id: id, page: pg, dirty: true}
	p.entries[id] = n
	p.addToFront(n)
	if id.PageNum+1 > p.nextPageID[id.TableID] {
		p.nextPageID[id.TableID] = id.PageNum + 1
	}
	return pg, nil
}

// MarkDirty flags id's page as needing a write-back before eviction or
// close. It is a no-op if id is not currently in the pool.
func (p *Pool) MarkDirty(id primitives.PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.entries[id]; ok {
		n.dirty = true
		n.page.SetDirty(true)
	}
}

// FlushPage writes id's page to disk if dirty. It is a no-op, not an
// error, if the page is absent or already clean.
func (p *Pool) FlushPage(id primitives.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.entries[id]
	if !ok || !n.dirty {
		return nil
	}
	if err := p.writePage(id, n.page); err != nil {
		return err
	}
	n.dirty = false
	n.page.SetDirty(false)
	return nil
}

// FlushAll writes back every dirty page and returns how many were flushed.
// It is idempotent: a second call flushes nothing.
func (p *Pool) FlushAll() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for id, n := range p.entries {
		if !n.dirty {
			continue
		}
		if err := p.writePage(id, n.page); err != nil {
			return count, err
		}
		n.dirty = false
		n.page.SetDirty(false)
		count++
	}
	return count, nil
}

// PageCount returns the number of pages currently resident in the pool.
func (p *Pool) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// DirtyCount returns the number of resident pages awaiting write-back.
func (p *Pool) DirtyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, n := range p.entries {
		if n.dirty {
			count++
		}
	}
	return count
}

// CreateTableFile creates an empty backing file for tableID and resets its
// page number sequence to zero.
func (p *Pool) CreateTableFile(tableID primitives.TableID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Create(p.tableFilePath(tableID))
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "TABLE_FILE_CREATE_FAILED", "CreateTableFile", "BufferPool")
	}
	f.Close()
	p.nextPageID[tableID] = 0
	return nil
}

// DeleteTableFile drops every resident page belonging to tableID and
// removes its backing file.
func (p *Pool) DeleteTableFile(tableID primitives.TableID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, n := range p.entries {
		if id.TableID != tableID {
			continue
		}
		p.removeNode(n)
		delete(p.entries, id)
	}
	delete(p.nextPageID, tableID)

	if err := os.Remove(p.tableFilePath(tableID)); err != nil && !os.IsNotExist(err) {
		return dberrors.Wrap(err, dberrors.IO, "TABLE_FILE_DELETE_FAILED", "DeleteTableFile", "BufferPool")
	}
	return nil
}

func (p *Pool) loadPage(id primitives.PageID) (*page.Page, error) {
	for len(p.entries) >= p.maxPages {
		if err := p.evictOne(); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(p.tableFilePath(id.TableID))
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "PAGE_LOAD_FAILED", "GetPage", "BufferPool")
	}
	defer f.Close()

	buf := make([]byte, page.Size)
	off := int64(id.PageNum) * int64(page.Size)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, dberrors.Wrap(err, dberrors.IO, "PAGE_LOAD_FAILED", "GetPage", "BufferPool")
	}

	pg, err := page.FromBytes(buf)
	if err != nil {
		return nil, err
	}
	if !pg.IsValid() {
		return nil, dberrors.New(dberrors.Corruption, "PAGE_BAD_MAGIC",
			fmt.Sprintf("page %s failed magic validation", id))
	}

	n := &node{id: id, page: pg, dirty: false}
	p.entries[id] = n
	p.addToFront(n)
	return pg, nil
}

func (p *Pool) writePage(id primitives.PageID, pg *page.Page) error {
	path := p.tableFilePath(id.TableID)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o640)
	if err != nil {
		return dberrors.Wrap(err, dberrors.IO, "PAGE_WRITE_FAILED", "writePage", "BufferPool")
	}
	defer f.Close()

	off := int64(id.PageNum) * int64(page.Size)
	if _, err := f.WriteAt(pg.Bytes(), off); err != nil {
		return dberrors.Wrap(err, dberrors.IO, "PAGE_WRITE_FAILED", "writePage", "BufferPool")
	}
	return f.Sync()
}

// evictOne removes the least-recently-used page (the tail of the LRU
// list) from the pool, writing it back first if it is dirty. The caller
// must hold p.mu.
func (p *Pool) evictOne() error {
	n := p.tail.prev
	if n == p.head {
		return dberrors.New(dberrors.Corruption, "BUFFER_POOL_EMPTY_EVICT", "evict called on an empty pool")
	}
	if n.dirty {
		if err := p.writePage(n.id, n.page); err != nil {
			return err
		}
	}
	p.removeNode(n)
	delete(p.entries, n.id)
	return nil
}

func (p *Pool) tableFilePath(tableID primitives.TableID) string {
	return filepath.Join(p.dataDir, fmt.Sprintf("table_%d.dat", tableID))
}

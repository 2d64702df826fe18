package pagestore

import (
	"os"
	"sync"

	"github.com/doquedb/fulltext2go/pagestore/rawmmap"
)

// growChunk is the number of pages a FileStore grows by when the bitmap and
// backing file run out of room, mirroring the segment-growth shape of a
// page-allocating spill buffer.
const growChunk = 1024

// filePage is a pinned view into one page slot of a FileStore's mapping.
type filePage struct {
	store *FileStore
	id    PageID
	dirty bool
	refs  int32
}

func (p *filePage) ID() PageID { return p.id }

func (p *filePage) Data() []byte {
	off := int64(p.id) * int64(p.store.pageSize)
	return p.store.region.Bytes()[off : off+int64(p.store.pageSize)]
}

func (p *filePage) MarkDirty() {
	p.store.mu.Lock()
	p.dirty = true
	p.store.dirty[p.id] = struct{}{}
	p.store.mu.Unlock()
}

func (p *filePage) Unpin() {
	p.store.mu.Lock()
	p.refs--
	if p.refs <= 0 {
		delete(p.store.pinned, p.id)
	}
	p.store.mu.Unlock()
}

// FileStore is the reference PagePool: one mmap-backed file of fixed-size
// pages, a bitmap tracking which page slots are live, a page-cache map from
// PageID to the pinned filePage instance (the "recycled instance list" of
// design note §9, minus the free-list optimisation), and a shadow snapshot
// used to implement Recover at page granularity.
type FileStore struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	region   *rawmmap.Region
	pageSize uint32
	bitmap   *slotBitmap
	pinned   map[PageID]*filePage
	dirty    map[PageID]struct{}
	shadow   []byte // last-flushed bytes, same length as region
}

// NewFileStore constructs an unopened FileStore; call Create or Open.
func NewFileStore() *FileStore {
	return &FileStore{pinned: map[PageID]*filePage{}, dirty: map[PageID]struct{}{}}
}

func (s *FileStore) Create(path string, pageSize uint32) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	size := int64(growChunk) * int64(pageSize)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return s.attachFile(path, f, pageSize, growChunk)
}

func (s *FileStore) Open(path string, pageSize uint32) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	numPages := uint32(fi.Size() / int64(pageSize))
	return s.attachFile(path, f, pageSize, numPages)
}

func (s *FileStore) attachFile(path string, f *os.File, pageSize, numPages uint32) error {
	region, err := rawmmap.Map(int(f.Fd()), int(numPages)*int(pageSize), true)
	if err != nil {
		f.Close()
		return err
	}
	shadow := make([]byte, len(region.Bytes()))
	copy(shadow, region.Bytes())

	s.mu.Lock()
	s.path, s.file, s.region, s.pageSize = path, f, region, pageSize
	s.bitmap = newSlotBitmap(numPages)
	s.shadow = shadow
	s.mu.Unlock()

	// Slot 0 is reserved: PageID 0 doubles as InvalidPageID (no
	// prev/next/LastLocationPageID), so it must never be handed out by
	// Allocate. A fresh store reserves it; Open re-reserves it against a
	// store created the same way.
	s.mu.Lock()
	if !s.bitmap.isSet(0) {
		s.bitmap.allocate()
	}
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Allocate() (Page, error) {
	s.mu.Lock()
	slot, ok := s.bitmap.allocate()
	if !ok {
		if err := s.growLocked(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		slot, ok = s.bitmap.allocate()
		if !ok {
			s.mu.Unlock()
			return nil, ErrPageNotFound
		}
	}
	id := PageID(slot)
	off := int64(id) * int64(s.pageSize)
	clear(s.region.Bytes()[off : off+int64(s.pageSize)])
	p := &filePage{store: s, id: id, refs: 1, dirty: true}
	s.pinned[id] = p
	s.dirty[id] = struct{}{}
	s.mu.Unlock()
	return p, nil
}

// growLocked extends both the bitmap and the backing mapping by one chunk.
// Caller holds s.mu.
func (s *FileStore) growLocked() error {
	newNumPages := s.bitmap.numSlots + growChunk
	newSize := int64(newNumPages) * int64(s.pageSize)
	if err := s.file.Truncate(newSize); err != nil {
		return err
	}
	if err := s.region.Remap(int(newSize)); err != nil {
		return err
	}
	shadow := make([]byte, newSize)
	copy(shadow, s.shadow)
	s.shadow = shadow
	s.bitmap.grow(newNumPages)
	return nil
}

func (s *FileStore) Attach(id PageID) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pinned[id]; ok {
		p.refs++
		return p, nil
	}
	if !s.bitmap.isSet(uint32(id)) {
		return nil, ErrPageNotFound
	}
	p := &filePage{store: s, id: id, refs: 1}
	s.pinned[id] = p
	return p, nil
}

func (s *FileStore) Free(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitmap.free(uint32(id))
	delete(s.dirty, id)
	off := int64(id) * int64(s.pageSize)
	clear(s.region.Bytes()[off : off+int64(s.pageSize)])
	return nil
}

// PageCount returns the number of live pages visible to callers. Slot 0 is
// reserved internally (see attachFile) and is never counted.
func (s *FileStore) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bitmap.count() - 1
}

func (s *FileStore) AttachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pinned)
}

// Flush commits dirty pages: msync the mapping, then refresh the shadow
// snapshot from the committed bytes.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	if err := s.region.Sync(); err != nil {
		return err
	}
	copy(s.shadow, s.region.Bytes())
	s.dirty = map[PageID]struct{}{}
	for _, p := range s.pinned {
		p.dirty = false
	}
	return nil
}

// Recover discards dirty pages by restoring the shadow snapshot over the
// mapping (recoverAllPages on abort, spec §7).
func (s *FileStore) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.region.Bytes(), s.shadow)
	s.dirty = map[PageID]struct{}{}
	for _, p := range s.pinned {
		p.dirty = false
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.region != nil {
		if err := s.region.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Path returns the path Create or Open was given.
func (s *FileStore) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *FileStore) Remove() error {
	path := s.path
	if err := s.Close(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return os.Remove(path)
}

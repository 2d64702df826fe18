// Package pagestore provides the reference implementation of the page
// buffer pool that spec §1 treats as an external collaborator: page
// pin/unpin, the dirty flag, allocate/free, and the latch guarding the page
// cache map and free list (spec §5 — "critical sections guard the page
// cache map lookup and instance-list recycling only").
//
// InvertedUnit and its sub-files (B-tree, Leaf, Overflow) are written
// against the PagePool interface so a host database can plug in its own
// pool; FileStore is the concrete mmap-backed pool used standalone and by
// this module's tests.
package pagestore

import "errors"

// PageID addresses one fixed-size page within a sub-file.
type PageID uint32

// InvalidPageID marks the absence of a page.
const InvalidPageID PageID = 0

// ErrPageNotFound is returned by Attach for an unknown, unallocated page.
var ErrPageNotFound = errors.New("pagestore: page not found")

// Page is a pinned, reference-counted view of one page's bytes. Callers
// must call Unpin exactly once per Attach/Allocate that returned it.
type Page interface {
	// ID returns this page's address within the owning file.
	ID() PageID
	// Data returns the page's raw bytes, including its header.
	Data() []byte
	// MarkDirty flags the page for inclusion in the next Flush.
	MarkDirty()
	// Unpin releases this reference. The page may be evicted once its
	// reference count reaches zero.
	Unpin()
}

// PagePool is the external collaborator contract for one sub-file (B-tree,
// Leaf, or Overflow). All mutation happens while the caller holds a pin;
// the pool itself only serializes its cache-map lookup and free list.
type PagePool interface {
	// Create initializes the backing storage at path for the given page
	// size, truncating any existing contents.
	Create(path string, pageSize uint32) error
	// Open attaches to existing backing storage at path.
	Open(path string, pageSize uint32) error
	// Allocate reserves a new page, zero-filled, and returns it pinned.
	Allocate() (Page, error)
	// Attach pins and returns the page named by id.
	Attach(id PageID) (Page, error)
	// Free releases a page back to the pool. The caller must not be
	// holding a pin on it.
	Free(id PageID) error
	// PageCount returns the number of live (allocated, not-yet-freed)
	// pages, used by InvertedUnit.getUsedSize.
	PageCount() int
	// AttachedCount returns the number of currently-pinned pages, used by
	// saveAllPages's ≈1000/100 threshold (spec §4.1.1).
	AttachedCount() int
	// Flush commits all dirty pages to stable storage (flushAllPages on
	// transaction commit).
	Flush() error
	// Recover discards all dirty pages, reverting to the last flushed
	// state (recoverAllPages on transaction abort).
	Recover() error
	// Close releases the pool's resources without deleting the backing
	// storage.
	Close() error
	// Remove closes and deletes the backing storage (used by
	// InvertedUnit.destroy / the rollback path of create()).
	Remove() error
	// Path returns the backing storage location passed to Create/Open,
	// used by InvertedUnit.move to relocate a sub-file.
	Path() string
}

package fulltext2

import (
	"os"

	"github.com/doquedb/fulltext2go/ftfail"
	"github.com/doquedb/fulltext2go/ftlog"
	"github.com/doquedb/fulltext2go/pagestore"
)

// checkpointThreshold is InvertedUnit's periodic save trigger (spec
// §4.1.1's "~1000/100 attached pages"): once either sub-file has this many
// pages simultaneously pinned, saveAllPages forces a checkpoint rather
// than waiting for the owning transaction to commit.
const checkpointThreshold = 1000

// InvertedUnit owns one complete inverted-index unit: the B-tree, Leaf,
// and Overflow sub-files, and the ListManager/SearchOnlyListManager built
// on top of them (spec §1/§5). It also tracks staged-but-not-yet-applied
// expunges (deleteIdBlock/expungeFirstDocumentID in original_source's
// InvertedUnit) so a caller can undo an expunge before the owning
// transaction commits.
type InvertedUnit struct {
	newPagePool func() pagestore.PagePool

	leafPool     pagestore.PagePool
	overflowPool pagestore.PagePool
	leaf         *LeafFile
	overflow     *OverflowFile
	btree        BtreeFile
	lm           *ListManager
	solm         *SearchOnlyListManager
	profile      listProfile

	mounted  bool
	pageSize uint32

	pendingDeletes map[string][]uint32
}

// NewInvertedUnit constructs an unmounted unit with the given feature
// profile and page-pool factory (pagestore.NewFileStore in production,
// something else in tests that want an in-memory pool).
func NewInvertedUnit(profile listProfile, newPagePool func() pagestore.PagePool) *InvertedUnit {
	return &InvertedUnit{
		newPagePool:    newPagePool,
		profile:        profile,
		pendingDeletes: map[string][]uint32{},
	}
}

func (u *InvertedUnit) leafPath(dir string) string     { return dir + "/leaf" }
func (u *InvertedUnit) overflowPath(dir string) string { return dir + "/overflow" }

// Create initializes a brand-new, empty unit at dir (spec §4.1's
// create()): both sub-files, a fresh B-tree, and the Leaf file's seed
// empty-string area (B5).
func (u *InvertedUnit) Create(dir string, pageSize uint32) error {
	if u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit already mounted")
	}
	u.pageSize = pageSize
	u.btree = NewSortedMapBtree()
	u.leafPool = u.newPagePool()
	u.overflowPool = u.newPagePool()
	u.leaf = newLeafFile(u.leafPool, u.btree)
	u.overflow = newOverflowFile(u.overflowPool)

	if err := u.leaf.create(u.leafPath(dir), pageSize); err != nil {
		return err
	}
	if err := u.overflow.create(u.overflowPath(dir), pageSize); err != nil {
		u.leafPool.Remove()
		return err
	}

	u.lm = newListManager(u.leaf, u.overflow, u.btree, u.profile)
	u.solm = newSearchOnlyListManager(u.lm)
	u.mounted = true
	ftlog.Infof("inverted unit created at %s", dir)
	return nil
}

// Open mounts an existing unit. The reference BtreeFile is in-memory only
// (spec §3.1 treats B-tree persistence as the external collaborator's
// concern), so Open starts with an empty B-tree; a host embedding this
// package with its own persistent BtreeFile would rehydrate it here
// instead.
func (u *InvertedUnit) Open(dir string, pageSize uint32) error {
	if u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit already mounted")
	}
	u.pageSize = pageSize
	u.btree = NewSortedMapBtree()
	u.leafPool = u.newPagePool()
	u.overflowPool = u.newPagePool()
	u.leaf = newLeafFile(u.leafPool, u.btree)
	u.overflow = newOverflowFile(u.overflowPool)

	if err := u.leaf.open(u.leafPath(dir), pageSize); err != nil {
		return err
	}
	if err := u.overflow.open(u.overflowPath(dir), pageSize); err != nil {
		return err
	}

	u.lm = newListManager(u.leaf, u.overflow, u.btree, u.profile)
	u.solm = newSearchOnlyListManager(u.lm)
	u.mounted = true
	return nil
}

// IsMounted reports whether Create or Open has succeeded without a
// matching Close/destroy.
func (u *InvertedUnit) IsMounted() bool { return u.mounted }

// Clear empties the unit's B-tree contract without destroying the
// sub-files on disk (spec §4.1's clear(), used between full reindexes),
// and re-seeds the Leaf file's empty-key head page.
func (u *InvertedUnit) Clear() error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	u.pendingDeletes = map[string][]uint32{}
	return u.leaf.clear()
}

// Insert adds docID's occurrence of term at the given positions.
func (u *InvertedUnit) Insert(term string, docID uint32, positions []uint32) error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	return u.lm.Insert(term, docID, positions)
}

// Search returns a read iterator over term's current postings.
func (u *InvertedUnit) Search(term string) (InvertedIterator, bool, error) {
	if !u.mounted {
		return nil, false, ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	return u.solm.Search(term)
}

// MarkForExpunge stages docID's removal from term's list without applying
// it yet, so UndoExpunge can still cancel it (spec §4.5's undo-expunge
// window).
func (u *InvertedUnit) MarkForExpunge(term string, docID uint32) {
	u.pendingDeletes[term] = append(u.pendingDeletes[term], docID)
}

// UndoExpunge cancels a previously staged MarkForExpunge, returning false
// if docID was not staged for term.
func (u *InvertedUnit) UndoExpunge(term string, docID uint32) bool {
	ids := u.pendingDeletes[term]
	for i, id := range ids {
		if id == docID {
			u.pendingDeletes[term] = append(ids[:i], ids[i+1:]...)
			if len(u.pendingDeletes[term]) == 0 {
				delete(u.pendingDeletes, term)
			}
			return true
		}
	}
	return false
}

// Expunge immediately removes docID from term's list (bypassing the
// staged-delete window; used by callers that already own their own
// transaction-level undo).
func (u *InvertedUnit) Expunge(term string, docID uint32) error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	return u.lm.Expunge(term, docID)
}

// Vacuum rebuilds term's list in place to reclaim fragmented Overflow space
// (spec §4.3.5); a no-op for terms still shaped as a Short list.
func (u *InvertedUnit) Vacuum(term string) error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	return u.lm.Vacuum(term)
}

// Merge streams every posting of other into term's list, in ascending
// document-id order (spec §4.3.4), used when compacting a smaller unit's
// postings into this one.
func (u *InvertedUnit) Merge(term string, other InvertedIterator) error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	return u.lm.Merge(term, other)
}

// applyPendingDeletes commits every staged MarkForExpunge.
func (u *InvertedUnit) applyPendingDeletes() error {
	for term, ids := range u.pendingDeletes {
		for _, id := range ids {
			if err := u.lm.Expunge(term, id); err != nil {
				return err
			}
		}
	}
	u.pendingDeletes = map[string][]uint32{}
	return nil
}

// FlushAllPages applies every staged delete and commits both sub-files
// (spec §7's flushAllPages, transaction commit).
func (u *InvertedUnit) FlushAllPages() error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	if err := u.applyPendingDeletes(); err != nil {
		return ftfail.Wrap(ftfail.Unexpected, "applying staged deletes before flush", err)
	}
	if err := u.leafPool.Flush(); err != nil {
		return ftfail.Wrap(ftfail.Unexpected, "flushing leaf file", err)
	}
	if err := u.overflowPool.Flush(); err != nil {
		return ftfail.Wrap(ftfail.Unexpected, "flushing overflow file", err)
	}
	return nil
}

// RecoverAllPages discards every dirty page in both sub-files and every
// staged-but-uncommitted delete (spec §7's recoverAllPages, transaction
// abort).
func (u *InvertedUnit) RecoverAllPages() error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	u.pendingDeletes = map[string][]uint32{}
	if err := u.leafPool.Recover(); err != nil {
		return ftfail.Wrap(ftfail.RecoveryFailed, "recovering leaf file", err)
	}
	if err := u.overflowPool.Recover(); err != nil {
		return ftfail.Wrap(ftfail.RecoveryFailed, "recovering overflow file", err)
	}
	return nil
}

// SaveAllPages checkpoints the unit once either sub-file's attached-page
// count crosses checkpointThreshold, so a long-running transaction does
// not accumulate unbounded dirty state (spec §4.1.1).
func (u *InvertedUnit) SaveAllPages() error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	if u.leafPool.AttachedCount() < checkpointThreshold && u.overflowPool.AttachedCount() < checkpointThreshold {
		return nil
	}
	ftlog.Debugf("checkpointing inverted unit: leaf attached=%d overflow attached=%d",
		u.leafPool.AttachedCount(), u.overflowPool.AttachedCount())
	return u.FlushAllPages()
}

// GetUsedSize returns the total bytes currently occupied by live pages
// across both sub-files (spec §4.1's getUsedSize, used for unit-size
// accounting by whatever allocates units to files).
func (u *InvertedUnit) GetUsedSize() (int64, error) {
	if !u.mounted {
		return 0, ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	leafPages := int64(u.leafPool.PageCount())
	overflowPages := int64(u.overflowPool.PageCount())
	return (leafPages + overflowPages) * int64(u.pageSize), nil
}

// Move relocates both sub-files to destDir, flushing first and creating
// destDir if needed. A failed close or rename rolls the files back to
// their original location; a failed reopen at destDir is returned without
// rollback.
func (u *InvertedUnit) Move(destDir string) error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	if err := u.FlushAllPages(); err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return ftfail.Wrap(ftfail.Unexpected, "creating move destination", err)
	}

	oldLeafPath := u.leafPool.Path()
	oldOverflowPath := u.overflowPool.Path()
	newLeafPath := u.leafPath(destDir)
	newOverflowPath := u.overflowPath(destDir)

	if err := u.leafPool.Close(); err != nil {
		return ftfail.Wrap(ftfail.Unexpected, "closing leaf file before move", err)
	}
	if err := os.Rename(oldLeafPath, newLeafPath); err != nil {
		// Step failed before anything moved: nothing to roll back, just
		// reopen in place.
		if reopenErr := u.leafPool.Open(oldLeafPath, u.pageSize); reopenErr != nil {
			return ftfail.Wrap(ftfail.RecoveryFailed, "reopening leaf file after failed move", reopenErr)
		}
		return ftfail.Wrap(ftfail.Unexpected, "moving leaf file", err)
	}

	if err := u.overflowPool.Close(); err != nil {
		// Leaf already moved: roll it back before surfacing the error.
		os.Rename(newLeafPath, oldLeafPath)
		u.leafPool.Open(oldLeafPath, u.pageSize)
		return ftfail.Wrap(ftfail.Unexpected, "closing overflow file before move", err)
	}
	if err := os.Rename(oldOverflowPath, newOverflowPath); err != nil {
		os.Rename(newLeafPath, oldLeafPath)
		u.leafPool.Open(oldLeafPath, u.pageSize)
		u.overflowPool.Open(oldOverflowPath, u.pageSize)
		return ftfail.Wrap(ftfail.Unexpected, "moving overflow file", err)
	}

	if err := u.leafPool.Open(newLeafPath, u.pageSize); err != nil {
		return ftfail.Wrap(ftfail.RecoveryFailed, "reopening leaf file at new location", err)
	}
	if err := u.overflowPool.Open(newOverflowPath, u.pageSize); err != nil {
		return ftfail.Wrap(ftfail.RecoveryFailed, "reopening overflow file at new location", err)
	}
	ftlog.Infof("inverted unit moved to %s", destDir)
	return nil
}

// Verify walks the terms registered in the reference BtreeFile (each Leaf
// page's first key, skipping "") and checks that document ids within each
// of their lists strictly increase. It does not visit the other areas of a
// Leaf page, and it does not compare DocumentCount or LastDocumentID with
// the decoded postings.
func (u *InvertedUnit) Verify() error {
	if !u.mounted {
		return ftfail.New(ftfail.Unexpected, "InvertedUnit not mounted")
	}
	smb, ok := u.btree.(*sortedMapBtree)
	if !ok {
		ftlog.Warnf("verify: BtreeFile is not the reference implementation, skipping term walk")
		return nil
	}
	for _, term := range smb.sortedTerms() {
		if term == "" {
			continue
		}
		it, found, err := u.lm.Search(term)
		if err != nil {
			return ftfail.Wrap(ftfail.Inconsistent, "verify: searching term "+term, err)
		}
		if !found {
			continue
		}
		var prev uint32
		count := 0
		for it.Next() {
			doc := it.DocumentID()
			if count > 0 && doc <= prev {
				closeIterator(it)
				return ftfail.New(ftfail.Inconsistent, "verify: non-increasing document id for term "+term)
			}
			prev = doc
			count++
		}
		closeIterator(it)
		if it.Err() != nil {
			return ftfail.Wrap(ftfail.Inconsistent, "verify: iterating term "+term, it.Err())
		}
	}
	return nil
}

// Close releases the unit's pools without deleting backing storage.
func (u *InvertedUnit) Close() error {
	if !u.mounted {
		return nil
	}
	u.mounted = false
	var firstErr error
	if err := u.leafPool.Close(); err != nil {
		firstErr = err
	}
	if err := u.overflowPool.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Destroy closes and permanently removes both sub-files.
func (u *InvertedUnit) Destroy() error {
	if !u.mounted {
		return nil
	}
	u.mounted = false
	var firstErr error
	if err := u.leafPool.Remove(); err != nil {
		firstErr = err
	}
	if err := u.overflowPool.Remove(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

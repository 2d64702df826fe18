package fulltext2

import "github.com/doquedb/fulltext2go/coding"

// Mode selects how ListManager.locate behaves when a term has no list yet
// (spec §5: "ListManager (Mode: Search/Create/LowerBound)").
type Mode int

const (
	// ModeSearch never creates: a missing term is simply "no postings".
	ModeSearch Mode = iota
	// ModeCreate creates an empty Short list for a missing term so an
	// insert can proceed.
	ModeCreate
	// ModeLowerBound is accepted by locate but handled exactly like
	// ModeSearch: only an exact key match is returned, and next-page links
	// are not followed. No caller in this package passes it.
	ModeLowerBound
)

// ListManager is the engine's single entry point for mutating and reading
// a term's posting list, dispatching to ShortList or MiddleList depending
// on the area's current listType and converting between the two as a term
// grows (spec §4.3.2).
type ListManager struct {
	leaf     *LeafFile
	overflow *OverflowFile
	btree    BtreeFile
	profile  listProfile
}

func newListManager(leaf *LeafFile, overflow *OverflowFile, btree BtreeFile, profile listProfile) *ListManager {
	return &ListManager{leaf: leaf, overflow: overflow, btree: btree, profile: profile}
}

// locate finds the Leaf page and area index for term, creating an empty
// Short-list area for it first if mode is ModeCreate and none exists yet.
func (lm *ListManager) locate(term string, mode Mode) (*LeafPage, int, error) {
	pageID, ok := lm.btree.Floor(term)
	if !ok {
		return nil, 0, errNotFoundTerm(term)
	}
	page, err := lm.leaf.attach(pageID)
	if err != nil {
		return nil, 0, err
	}
	idx, exact := page.lowerBound(term)
	if exact {
		return page, idx, nil
	}
	if mode != ModeCreate {
		lm.leaf.unpin(page)
		return nil, 0, errNotFoundTerm(term)
	}

	areaSize := byteSizeForArea(term, 0)
	newPage, _, err := lm.leaf.splitAndInsert(page, term, areaSize)
	if err != nil {
		if newPage != nil && newPage != page {
			lm.leaf.unpin(page)
		}
		return nil, 0, err
	}
	if newPage != page {
		lm.leaf.unpin(page)
	}
	idx, exact = newPage.lowerBound(term)
	if !exact {
		lm.leaf.unpin(newPage)
		return nil, 0, errNotFoundTerm(term)
	}
	return newPage, idx, nil
}

// Insert adds docID with its positions to term's posting list, creating
// the list if this is its first occurrence and converting Short to Middle
// if it has outgrown its Leaf area.
func (lm *ListManager) Insert(term string, docID uint32, positions []uint32) error {
	page, idx, err := lm.locate(term, ModeCreate)
	if err != nil {
		return err
	}
	defer lm.leaf.unpin(page)

	a := page.areaAt(idx)
	switch a.hdr.ListType {
	case listShort:
		sl := newShortList(a, lm.profile)
		if sl.insert(docID, positions) {
			return nil
		}
		if page.changeAreaSize(idx, shortListGrowthBytes) {
			a = page.areaAt(idx)
			// The doc-id stream ends at the data region's tail: slide it
			// onto the new tail so the added bytes become free space.
			data, shift := a.dataRegion(), shortListGrowthBytes*8
			docOff := int(a.hdr.DocumentOffset)
			coding.MoveBits(data, data, docOff+shift, docOff, len(data)*8-shift-docOff)
			a.hdr.DocumentOffset = uint32(docOff + shift)
			a.flushHeader()
			sl = newShortList(a, lm.profile)
			if sl.insert(docID, positions) {
				return nil
			}
		}
		newPage, newIdx, err := lm.convertToMiddle(page, idx, term)
		if err != nil {
			return err
		}
		if newPage != page {
			lm.leaf.unpin(page)
			page = newPage
		}
		ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
		_ = newIdx
		return ml.insert(docID, positions)
	case listMiddle:
		ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
		return ml.insert(docID, positions)
	default:
		return errLongListUnsupported(term)
	}
}

// shortListGrowthBytes is the increment tried before giving up and
// converting a Short list to Middle: enough for a handful more postings
// without paying a full conversion on every single overflow.
const shortListGrowthBytes = 64

// convertToMiddle replays every posting currently in term's Short list
// into a fresh Middle list, in place of its former Short area (spec
// §4.3.2). It returns the Leaf page it was given and the term's index on
// it; the page is not split here.
func (lm *ListManager) convertToMiddle(page *LeafPage, idx int, term string) (*LeafPage, int, error) {
	a := page.areaAt(idx)
	sl := newShortList(a, lm.profile)
	it := sl.iterator()
	type posting struct {
		doc  uint32
		locs []uint32
	}
	var postings []posting
	for it.Next() {
		postings = append(postings, posting{doc: it.DocumentID(), locs: append([]uint32(nil), it.Locations()...)})
	}

	// Reset the area to an empty Middle shape with zero DIR entries:
	// dirBlock.count() is derived from the data region's length, and
	// openSegment grows the area by one entry per segment it opens.
	if have := len(a.dataRegion()); have > 0 {
		page.changeAreaSize(idx, -have)
	}

	a = page.areaAt(idx)
	a.hdr.ListType = listMiddle
	a.hdr.FirstDocumentID = 0
	a.hdr.LastDocumentID = 0
	a.hdr.DocumentCount = 0
	a.hdr.DocumentOffset = 0
	a.hdr.LocationOffset = 0
	a.hdr.LastLocationPageID = undefinedPageID
	a.flushHeader()
	clear(a.dataRegion())

	ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
	for _, p := range postings {
		if err := ml.insert(p.doc, p.locs); err != nil {
			return nil, 0, err
		}
	}
	newIdx, _ := page.lowerBound(term)
	return page, newIdx, nil
}

// Search returns a read iterator over term's postings, or ok=false if the
// term has no list.
func (lm *ListManager) Search(term string) (InvertedIterator, bool, error) {
	page, idx, err := lm.locate(term, ModeSearch)
	if err != nil {
		return nil, false, nil
	}
	defer lm.leaf.unpin(page)

	a := page.areaAt(idx)
	switch a.hdr.ListType {
	case listShort:
		return newShortList(a, lm.profile).iterator(), true, nil
	case listMiddle:
		ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
		it, err := ml.iterator()
		if err != nil {
			return nil, false, err
		}
		return it, true, nil
	default:
		return nil, false, errLongListUnsupported(term)
	}
}

// Expunge removes docID from term's posting list at once: the list is
// rebuilt without it (expungeFromShort/expungeFromMiddle), freeing a Middle
// list's old Overflow pages. A list left with no postings has its area
// removed from the Leaf page, so the term is no longer found.
func (lm *ListManager) Expunge(term string, docID uint32) error {
	page, idx, err := lm.locate(term, ModeSearch)
	if err != nil {
		return err
	}
	defer lm.leaf.unpin(page)

	a := page.areaAt(idx)
	switch a.hdr.ListType {
	case listShort:
		err = expungeFromShort(a, lm.profile, docID)
	case listMiddle:
		err = expungeFromMiddle(lm, page, term, docID)
	default:
		return errLongListUnsupported(term)
	}
	if err == nil && page.areaAt(idx).hdr.DocumentCount == 0 {
		err = page.expunge(lm.btree, idx, idx+1)
	}
	return err
}

// Vacuum rebuilds term's Middle list in place, reclaiming fragmented
// Overflow pages (spec §4.3.5). Short lists are exempt (spec.md Non-goals:
// "vacuuming Short lists"); vacuuming one is a no-op rather than an error,
// since a caller sweeping every term need not know each one's current shape.
func (lm *ListManager) Vacuum(term string) error {
	page, idx, err := lm.locate(term, ModeSearch)
	if err != nil {
		return err
	}
	defer lm.leaf.unpin(page)

	a := page.areaAt(idx)
	if a.hdr.ListType != listMiddle {
		return nil
	}
	ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
	return ml.vacuum()
}

// Merge streams every posting from other into term's list in ascending
// document-id order, creating the list if term has none yet (spec §4.3.4's
// merge-insert, used when compacting a small index's postings into a
// larger one). The merge is a no-op if term's current last document id is
// not strictly less than other's first — the precondition spec §4.3.4
// requires, since an equal-or-overlapping range means a prior attempt at
// this same merge already applied it. Callers must not reuse other
// afterward: Merge drains it, except on that no-op path, where only its
// first posting has been consumed.
func (lm *ListManager) Merge(term string, other InvertedIterator) error {
	var lastDocumentID uint32
	hasExisting := false
	existing, found, err := lm.Search(term)
	if err != nil {
		return err
	}
	if found {
		for existing.Next() {
			lastDocumentID = existing.DocumentID()
			hasExisting = true
		}
		closeIterator(existing)
		if err := existing.Err(); err != nil {
			return err
		}
	}

	if !other.Next() {
		return other.Err()
	}
	if hasExisting && lastDocumentID >= other.DocumentID() {
		return nil
	}

	for {
		if err := lm.Insert(term, other.DocumentID(), other.Locations()); err != nil {
			return err
		}
		if !other.Next() {
			return other.Err()
		}
	}
}

// SearchOnlyListManager is the read-only projection of ListManager used by
// query execution (spec §4.6; original_source's FullInvert carries an
// equivalent search-only manager so read paths can never accidentally
// create or mutate a list): it shares the same sub-files but exposes only
// Search.
type SearchOnlyListManager struct {
	lm *ListManager
}

func newSearchOnlyListManager(lm *ListManager) *SearchOnlyListManager {
	return &SearchOnlyListManager{lm: lm}
}

func (s *SearchOnlyListManager) Search(term string) (InvertedIterator, bool, error) {
	return s.lm.Search(term)
}

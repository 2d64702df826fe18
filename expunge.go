package fulltext2

import "github.com/doquedb/fulltext2go/pagestore"

// expungeFromShort removes docID from a Short-area list. The on-disk
// format packs two bit streams against each other with no spare room for
// a mid-stream deletion, so this rebuilds the area in place from every
// surviving posting — simpler and safer to reason about without running
// the toolchain than bit-splicing the gap-coded streams directly
// (DESIGN.md: deliberate simplification; a production implementation
// would patch the streams in place, as the original does).
func expungeFromShort(a *area, profile listProfile, docID uint32) error {
	sl := newShortList(a, profile)
	it := sl.iterator()
	type posting struct {
		doc  uint32
		locs []uint32
	}
	var keep []posting
	found := false
	for it.Next() {
		if it.DocumentID() == docID {
			found = true
			continue
		}
		keep = append(keep, posting{doc: it.DocumentID(), locs: append([]uint32(nil), it.Locations()...)})
	}
	if !found {
		return errNotFoundTerm(a.key)
	}

	resetShortArea(a)
	sl = newShortList(a, profile)
	for _, p := range keep {
		if !sl.insert(p.doc, p.locs) {
			return errAreaFull(a.key)
		}
	}
	return nil
}

func resetShortArea(a *area) {
	a.hdr.FirstDocumentID = 0
	a.hdr.LastDocumentID = 0
	a.hdr.DocumentCount = 0
	a.hdr.LocationOffset = 0
	a.hdr.DocumentOffset = uint32(len(a.dataRegion()) * 8)
	a.flushHeader()
	clear(a.dataRegion())
}

// expungeFromMiddle removes docID from term's Middle list by rebuilding
// it: every surviving posting is replayed into a fresh set of segments and
// every old Overflow page is freed. Same rationale as expungeFromShort.
func expungeFromMiddle(lm *ListManager, page *LeafPage, term string, docID uint32) error {
	ml := newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
	it, err := ml.iterator()
	if err != nil {
		return err
	}
	type posting struct {
		doc  uint32
		locs []uint32
	}
	var keep []posting
	found := false
	for it.Next() {
		if it.DocumentID() == docID {
			found = true
			continue
		}
		keep = append(keep, posting{doc: it.DocumentID(), locs: append([]uint32(nil), it.Locations()...)})
	}
	it.Close()
	if !found {
		return errNotFoundTerm(term)
	}

	idx, ok := page.lowerBound(term)
	if !ok {
		return errNotFoundTerm(term)
	}
	a := page.areaAt(idx)
	dir := dirRegionOf(a)
	for i := 0; i < dir.count(); i++ {
		idPageID := pagestore.PageID(dir.idPageID(i))
		idPage, err := lm.overflow.attach(idPageID)
		if err == nil {
			ib := idPage.idBlockView()
			locPageID := pagestore.PageID(ib.locBlockPageID())
			idPage.unpin()
			if locPageID != idPageID {
				lm.overflow.free(locPageID)
			}
		}
		lm.overflow.free(idPageID)
	}

	// The DIR-block region's length, not any stored counter, is what
	// dirBlock.count() reads back — so freeing the old segments must shrink
	// the area to zero dir entries, not just zero its bytes, or the rebuild
	// below sees dir.count() > 0 full of stale (freed) page ids.
	if dataLen := len(a.dataRegion()); dataLen > 0 {
		page.changeAreaSize(idx, -dataLen)
		a = page.areaAt(idx)
	}
	a.hdr.FirstDocumentID = 0
	a.hdr.LastDocumentID = 0
	a.hdr.DocumentCount = 0
	a.hdr.DocumentOffset = 0
	a.hdr.LocationOffset = 0
	a.flushHeader()

	ml = newMiddleList(lm.leaf, lm.overflow, page.ID(), term, lm.profile)
	for _, p := range keep {
		if err := ml.insert(p.doc, p.locs); err != nil {
			return err
		}
	}
	return nil
}

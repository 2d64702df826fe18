package fulltext2

import (
	"encoding/binary"

	"github.com/doquedb/fulltext2go/ftfail"
	"github.com/doquedb/fulltext2go/pagestore"
)

// leafPageHeaderSize is the fixed Leaf page header (spec §6.2): prevPageId,
// nextPageId, areaCount, reserved — 4 words of 4 bytes each.
const leafPageHeaderSize = 16

// LeafPage is a sequence of areas packed tail-to-tail after the fixed
// header (spec §3.1). It borrows its bytes from a pinned pagestore.Page and
// maintains a parallel vector of byte offsets into that page, rebuilt by
// loadEntry after any operation that shifts in-page bytes — the "arena +
// index" pattern design note §9 calls for in place of a raw pointer vector.
type LeafPage struct {
	page    pagestore.Page
	offsets []int // byte offset of each area, ascending key order
}

func leafHeaderPrev(data []byte) pagestore.PageID {
	return pagestore.PageID(binary.LittleEndian.Uint32(data[0:4]))
}
func leafHeaderNext(data []byte) pagestore.PageID {
	return pagestore.PageID(binary.LittleEndian.Uint32(data[4:8]))
}
func leafHeaderSetPrev(data []byte, id pagestore.PageID) {
	binary.LittleEndian.PutUint32(data[0:4], uint32(id))
}
func leafHeaderSetNext(data []byte, id pagestore.PageID) {
	binary.LittleEndian.PutUint32(data[4:8], uint32(id))
}
func leafHeaderAreaCount(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[8:12])
}
func leafHeaderSetAreaCount(data []byte, n uint32) {
	binary.LittleEndian.PutUint32(data[8:12], n)
}

func newLeafPage(p pagestore.Page) *LeafPage {
	lp := &LeafPage{page: p}
	lp.loadEntry()
	return lp
}

// loadEntry rebuilds the offsets vector by walking the page's areas, each
// step advancing by the area's stored UnitSize — the same recovery loadEntry performs in the teacher after any bulk move
// (spec §4.2: "a parallel vector of Area* pointers rebuilt by loadEntry()
// after any operation that shifts in-page bytes").
func (lp *LeafPage) loadEntry() {
	data := lp.page.Data()
	n := int(leafHeaderAreaCount(data))
	lp.offsets = make([]int, 0, n)
	off := leafPageHeaderSize
	for i := 0; i < n; i++ {
		lp.offsets = append(lp.offsets, off)
		size := binary.LittleEndian.Uint32(data[off+2 : off+6])
		off += int(size)
	}
}

func (lp *LeafPage) ID() pagestore.PageID { return lp.page.ID() }
func (lp *LeafPage) PrevPageID() pagestore.PageID { return leafHeaderPrev(lp.page.Data()) }
func (lp *LeafPage) NextPageID() pagestore.PageID { return leafHeaderNext(lp.page.Data()) }
func (lp *LeafPage) SetPrevPageID(id pagestore.PageID) {
	leafHeaderSetPrev(lp.page.Data(), id)
	lp.page.MarkDirty()
}
func (lp *LeafPage) SetNextPageID(id pagestore.PageID) {
	leafHeaderSetNext(lp.page.Data(), id)
	lp.page.MarkDirty()
}

func (lp *LeafPage) NumAreas() int { return len(lp.offsets) }

// areaAt returns the decoded area at index i.
func (lp *LeafPage) areaAt(i int) *area {
	data := lp.page.Data()
	start := lp.offsets[i]
	var end int
	if i+1 < len(lp.offsets) {
		end = lp.offsets[i+1]
	} else {
		end = start + int(binary.LittleEndian.Uint32(data[start+2:start+6]))
	}
	return newArea(data[start:end:end])
}

func (lp *LeafPage) firstKey() string {
	if len(lp.offsets) == 0 {
		return ""
	}
	return lp.areaAt(0).key
}

// lowerBound returns the index of the first area whose key is >= key, and
// whether that area's key equals key exactly.
func (lp *LeafPage) lowerBound(key string) (int, bool) {
	lo, hi := 0, len(lp.offsets)
	for lo < hi {
		mid := (lo + hi) / 2
		if lp.areaAt(mid).key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(lp.offsets) && lp.areaAt(lo).key == key {
		return lo, true
	}
	return lo, false
}

func (lp *LeafPage) search(key string) (*area, bool) {
	idx, exact := lp.lowerBound(key)
	if !exact {
		return nil, false
	}
	return lp.areaAt(idx), true
}

func (lp *LeafPage) usedBytes() int {
	if len(lp.offsets) == 0 {
		return leafPageHeaderSize
	}
	last := lp.areaAt(len(lp.offsets) - 1)
	return lp.offsets[len(lp.offsets)-1] + int(last.hdr.UnitSize)
}

func (lp *LeafPage) freeBytes() int {
	return len(lp.page.Data()) - lp.usedBytes()
}

func (lp *LeafPage) maxAreaBytes() int {
	return len(lp.page.Data()) - leafPageHeaderSize
}

// insert splices a new area of areaSize bytes at position idx (area key
// order), maintaining the B-tree's first-key invariant (spec §4.2 step 2),
// and returns the new area ready for the caller to fill its data region.
// Returns ok=false, matching "return end", when the page lacks room —
// callers are then responsible for splitting (spec §4.2.1).
func (lp *LeafPage) insert(bt BtreeFile, idx int, term string, areaSize int) (*area, bool, error) {
	if lp.freeBytes() < areaSize {
		return nil, false, nil
	}
	data := lp.page.Data()
	var insertOffset int
	if idx < len(lp.offsets) {
		insertOffset = lp.offsets[idx]
	} else {
		insertOffset = lp.usedBytes()
	}

	var oldFirst string
	hadAreas := len(lp.offsets) > 0
	if idx == 0 && hadAreas {
		oldFirst = lp.areaAt(0).key // must read before the shift below moves it
	}

	tailLen := lp.usedBytes() - insertOffset
	copy(data[insertOffset+areaSize:insertOffset+areaSize+tailLen], data[insertOffset:insertOffset+tailLen])
	clear(data[insertOffset : insertOffset+areaSize])

	if idx == 0 {
		if !hadAreas {
			if err := bt.Insert(term, lp.ID()); err != nil {
				return nil, false, err
			}
		} else {
			if err := bt.Update(oldFirst, lp.ID(), term, lp.ID()); err != nil {
				return nil, false, err
			}
		}
	}

	leafHeaderSetAreaCount(data, uint32(len(lp.offsets)+1))
	lp.page.MarkDirty()
	a := buildAreaInPlace(data[insertOffset:insertOffset+areaSize], term)
	lp.loadEntry()
	return a, true, nil
}

// buildAreaInPlace creates a brand-new, empty Short-shape area: the
// document-id stream's head starts at the far end of the data region (its
// full width is free) and the location stream's head starts at 0 (spec
// §3.1/§4.3.1 — the two streams grow toward each other).
func buildAreaInPlace(dst []byte, term string) *area {
	a := buildArea(dst, term, listShort, len(dst)-areaHeaderSize-keyBytesLen(uint16(len(encodeKey(term)))))
	a.hdr.DocumentOffset = uint32(len(a.dataRegion()) * 8)
	a.hdr.LocationOffset = 0
	a.flushHeader()
	return a
}

// expunge removes the areas in [first,last) and performs the matching
// B-tree update (spec §4.2, "Symmetric to insert").
func (lp *LeafPage) expunge(bt BtreeFile, first, last int) error {
	data := lp.page.Data()
	startOff := lp.offsets[first]
	var endOff int
	if last < len(lp.offsets) {
		endOff = lp.offsets[last]
	} else {
		endOff = lp.usedBytes()
	}
	removedFirstKey := lp.areaAt(first).key

	if first == 0 {
		if last >= len(lp.offsets) {
			if err := bt.Expunge(removedFirstKey); err != nil {
				return err
			}
		} else {
			newFirstKey := lp.areaAt(last).key
			if err := bt.Update(removedFirstKey, lp.ID(), newFirstKey, lp.ID()); err != nil {
				return err
			}
		}
	}

	used := lp.usedBytes()
	tailLen := used - endOff
	copy(data[startOff:startOff+tailLen], data[endOff:endOff+tailLen])
	clear(data[startOff+tailLen : used])

	leafHeaderSetAreaCount(data, uint32(len(lp.offsets)-(last-first)))
	lp.page.MarkDirty()
	lp.loadEntry()
	return nil
}

// changeAreaSize grows (delta>0) or shrinks (delta<0) the area at idx by
// delta bytes, shifting subsequent areas (spec §4.2). Growth only succeeds
// if freeBytes() >= delta.
func (lp *LeafPage) changeAreaSize(idx int, delta int) bool {
	if delta > 0 && lp.freeBytes() < delta {
		return false
	}
	data := lp.page.Data()
	a := lp.areaAt(idx)
	boundary := lp.offsets[idx] + int(a.hdr.UnitSize)
	tailLen := lp.usedBytes() - boundary

	if delta > 0 {
		copy(data[boundary+delta:boundary+delta+tailLen], data[boundary:boundary+tailLen])
		clear(data[boundary : boundary+delta])
	} else {
		copy(data[boundary+delta:boundary+delta+tailLen], data[boundary:boundary+tailLen])
	}
	a.hdr.UnitSize = uint32(int(a.hdr.UnitSize) + delta)
	a.flushHeader()
	lp.page.MarkDirty()
	lp.loadEntry()
	return true
}

// LeafFile owns the Leaf sub-file: page allocation/attachment and the
// split/reduce operations that keep every page's first-area-key mirrored
// in the B-tree (spec §4.2.1/§4.2.2).
type LeafFile struct {
	pool  pagestore.PagePool
	btree BtreeFile
}

func newLeafFile(pool pagestore.PagePool, btree BtreeFile) *LeafFile {
	return &LeafFile{pool: pool, btree: btree}
}

func (lf *LeafFile) create(path string, pageSize uint32) error {
	if err := lf.pool.Create(path, pageSize); err != nil {
		return err
	}
	p, err := lf.pool.Allocate()
	if err != nil {
		return err
	}
	leafHeaderSetPrev(p.Data(), undefinedPageID)
	leafHeaderSetNext(p.Data(), undefinedPageID)
	leafHeaderSetAreaCount(p.Data(), 0)
	p.MarkDirty()
	lp := newLeafPage(p)
	// spec §4.1/§3.1 B5: the empty-string area seeds the B-tree so
	// lower_bound on any term succeeds.
	areaSize := byteSizeForArea("", 0)
	if _, ok, err := lp.insert(lf.btree, 0, "", areaSize); err != nil {
		p.Unpin()
		return err
	} else if !ok {
		p.Unpin()
		return ftfail.New(ftfail.Unexpected, "empty page too small for seed area")
	}
	p.Unpin()
	return nil
}

func (lf *LeafFile) clear() error {
	if err := lf.btree.Clear(); err != nil {
		return err
	}
	// Re-seed a fresh head page with the empty-string area (B5) so lookups
	// and inserts work again after the B-tree is emptied.
	lp, err := lf.allocate()
	if err != nil {
		return err
	}
	defer lf.unpin(lp)
	if _, ok, err := lp.insert(lf.btree, 0, "", byteSizeForArea("", 0)); err != nil {
		return err
	} else if !ok {
		return ftfail.New(ftfail.Unexpected, "empty page too small for seed area")
	}
	return nil
}

func (lf *LeafFile) open(path string, pageSize uint32) error {
	return lf.pool.Open(path, pageSize)
}

func (lf *LeafFile) attach(id pagestore.PageID) (*LeafPage, error) {
	p, err := lf.pool.Attach(id)
	if err != nil {
		return nil, err
	}
	return newLeafPage(p), nil
}

func (lf *LeafFile) allocate() (*LeafPage, error) {
	p, err := lf.pool.Allocate()
	if err != nil {
		return nil, err
	}
	leafHeaderSetPrev(p.Data(), undefinedPageID)
	leafHeaderSetNext(p.Data(), undefinedPageID)
	leafHeaderSetAreaCount(p.Data(), 0)
	p.MarkDirty()
	return newLeafPage(p), nil
}

func (lf *LeafFile) unpin(lp *LeafPage) { lp.page.Unpin() }

// link sets prev/next pointers between two adjacent pages.
func (lf *LeafFile) link(prev, next *LeafPage) {
	if prev != nil {
		prev.SetNextPageID(next.ID())
	}
	if next != nil {
		next.SetPrevPageID(prevIDOf(prev))
	}
}

func prevIDOf(p *LeafPage) pagestore.PageID {
	if p == nil {
		return undefinedPageID
	}
	return p.ID()
}

// splitAndInsert inserts (term, areaSize) into lp, splitting it per spec
// §4.2.1 if it does not fit. It returns the page the caller should now use
// to complete the insert (write the area's data region), along with the
// area itself.
func (lf *LeafFile) splitAndInsert(lp *LeafPage, term string, areaSize int) (*LeafPage, *area, error) {
	idx, _ := lp.lowerBound(term)
	if a, ok, err := lp.insert(lf.btree, idx, term, areaSize); err != nil {
		return nil, nil, err
	} else if ok {
		return lp, a, nil
	}
	if err := lf.split(lp, idx, areaSize); err != nil {
		return nil, nil, err
	}
	// Re-resolve which page now owns the insertion point.
	target := lp
	if lp.NumAreas() > 0 && term >= lp.areaAt(lp.NumAreas()-1).key {
		next, err := lf.attach(lp.NextPageID())
		if err == nil {
			target = next
		}
	}
	tidx, _ := target.lowerBound(term)
	a, ok, err := target.insert(lf.btree, tidx, term, areaSize)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errAreaFull(term)
	}
	return target, a, nil
}

// split implements the two-page strategy of spec §4.2.1: the right half of
// lp's areas move to a freshly allocated page, linked in after lp.
func (lf *LeafFile) split(lp *LeafPage, insertIdx, newAreaSize int) error {
	n := lp.NumAreas()
	mid := n / 2
	if insertIdx < mid {
		// keep the split point so the growing/inserted area lands with
		// headroom on whichever side it belongs
		mid = maxInt(mid-1, 0)
	}

	right, err := lf.allocate()
	if err != nil {
		return err
	}
	oldNext, err := lf.attachIfPresent(lp.NextPageID())
	if err != nil {
		return err
	}

	if err := lf.moveAreas(lp, right, mid, n); err != nil {
		return err
	}

	right.SetNextPageID(lp.NextPageID())
	right.SetPrevPageID(lp.ID())
	lp.SetNextPageID(right.ID())
	if oldNext != nil {
		oldNext.SetPrevPageID(right.ID())
		lf.unpin(oldNext)
	}

	fits := lp.freeBytes() >= newAreaSize || right.freeBytes() >= newAreaSize
	if !fits {
		// Neither half has room: fall back to a three-page split so the
		// offending area ends up alone on a fresh page (spec §4.2.1,
		// "three-page split otherwise").
		return lf.threeWaySplit(lp, right, insertIdx, newAreaSize)
	}
	lf.unpin(right)
	return nil
}

// threeWaySplit distributes areas {prefix | middle | suffix} across three
// pages so the offending area is alone on the new middle page (spec
// §4.2.1, scenario S6). lp and right already hold the post-two-way-split
// halves; this redistributes once more.
func (lf *LeafFile) threeWaySplit(lp, right *LeafPage, insertIdx, newAreaSize int) error {
	mid, err := lf.allocate()
	if err != nil {
		lf.unpin(right)
		return err
	}

	// Move exactly one area — the one that would not otherwise fit — onto
	// its own page, taken from whichever of lp/right currently borders
	// the insertion point.
	src, localIdx := lp, insertIdx
	if insertIdx >= lp.NumAreas() {
		src, localIdx = right, insertIdx-lp.NumAreas()
	}
	if localIdx >= src.NumAreas() {
		localIdx = src.NumAreas() - 1
	}
	if localIdx < 0 {
		localIdx = 0
	}

	if err := lf.moveAreas(src, mid, localIdx, minInt(localIdx+1, src.NumAreas())); err != nil {
		lf.unpin(right)
		return err
	}

	mid.SetPrevPageID(lp.ID())
	mid.SetNextPageID(right.ID())
	lp.SetNextPageID(mid.ID())
	right.SetPrevPageID(mid.ID())

	lf.unpin(right)
	lf.unpin(mid)
	return nil
}

// moveAreas bulk-moves areas [from,to) of src onto the end of dst,
// performing the same B-tree maintenance the single-area insert/expunge
// paths do when the move changes either page's first key.
func (lf *LeafFile) moveAreas(src, dst *LeafPage, from, to int) error {
	for i := from; i < to; i++ {
		a := src.areaAt(from) // always re-read index `from`: src shrinks as we go
		term := a.key
		areaSize := int(a.hdr.UnitSize)
		dataCopy := make([]byte, areaSize)
		copy(dataCopy, a.buf)

		dstIdx := dst.NumAreas()
		newArea, ok, err := dst.insert(lf.btree, dstIdx, term, areaSize)
		if err != nil {
			return err
		}
		if !ok {
			return errAreaFull(term)
		}
		copy(newArea.buf, dataCopy)

		if err := src.expunge(lf.btree, from, from+1); err != nil {
			return err
		}
	}
	return nil
}

func (lf *LeafFile) attachIfPresent(id pagestore.PageID) (*LeafPage, error) {
	if id == undefinedPageID {
		return nil, nil
	}
	return lf.attach(id)
}

// reduce merges the next page into lp when it fits (spec §4.2.2 / B4).
func (lf *LeafFile) reduce(lp *LeafPage) (bool, error) {
	if lp.NextPageID() == undefinedPageID {
		return false, nil
	}
	next, err := lf.attach(lp.NextPageID())
	if err != nil {
		return false, err
	}
	defer lf.unpin(next)

	used := next.usedBytes() - leafPageHeaderSize
	if used > lp.freeBytes() {
		return false, nil
	}

	if err := lf.moveAreas(next, lp, 0, next.NumAreas()); err != nil {
		return false, err
	}

	nextNext, err := lf.attachIfPresent(next.NextPageID())
	if err != nil {
		return false, err
	}
	lp.SetNextPageID(next.NextPageID())
	if nextNext != nil {
		nextNext.SetPrevPageID(lp.ID())
		lf.unpin(nextNext)
	}
	if err := lf.pool.Free(next.ID()); err != nil {
		return false, err
	}
	return true, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

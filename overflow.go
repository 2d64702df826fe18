package fulltext2

import (
	"encoding/binary"

	"github.com/doquedb/fulltext2go/pagestore"
)

// overflowPageType tags which of the three page shapes spec §3.1 describes
// an OverflowPage currently holds: a bare ID-block, a bare LOC-block, or
// (for the no-location/no-TF profiles, where a single combined block
// covers a whole Middle-list segment — spec §3.2's "four feature
// profiles") one IDBlock immediately followed by one LocBlock.
type overflowPageType uint32

const (
	overflowUnknown overflowPageType = iota
	overflowID
	overflowLoc
	overflowIDLoc
)

// overflowHeaderSize is the one-word type tag prefixing every Overflow
// page's content.
const overflowHeaderSize = 4

// OverflowPage is a single ID-block, LOC-block, or combined IDLOC-block,
// one per physical page (spec §3.1: "Overflow file: ID-blocks / LOC-blocks
// / DIR-blocks across ID / LOC / IDLOC page shapes" — DIR-blocks live
// inside a Middle-list area's own data region, not as separate Overflow
// pages, since they are small fixed-size vectors indexed by the area
// itself).
type OverflowPage struct {
	page pagestore.Page
}

func newOverflowPage(p pagestore.Page) *OverflowPage { return &OverflowPage{page: p} }

func (op *OverflowPage) ID() pagestore.PageID { return op.page.ID() }

func (op *OverflowPage) pageType() overflowPageType {
	return overflowPageType(binary.LittleEndian.Uint32(op.page.Data()[0:4]))
}

func (op *OverflowPage) setPageType(t overflowPageType) {
	binary.LittleEndian.PutUint32(op.page.Data()[0:4], uint32(t))
	op.page.MarkDirty()
}

func (op *OverflowPage) content() []byte { return op.page.Data()[overflowHeaderSize:] }

// asIDBlock returns the page's content as an IDBlock. Caller must have
// already set the page's type to overflowID (or overflowIDLoc, in which
// case only the leading idBlockHeaderSize+n bytes belong to the ID side —
// see splitIDLoc).
func (op *OverflowPage) asIDBlock() *idBlock { return newIDBlock(op.content()) }

func (op *OverflowPage) asLocBlock() *locBlock { return newLocBlock(op.content()) }

// splitIDLoc returns views onto the ID-block and LOC-block halves of a
// combined overflowIDLoc page, divided evenly (each profile that uses the
// combined shape has a fixed, small per-page document budget, so an even
// split always leaves each half its required header room).
func (op *OverflowPage) splitIDLoc() (*idBlock, *locBlock) {
	c := op.content()
	half := len(c) / 2
	return newIDBlock(c[:half]), newLocBlock(c[half:])
}

// idBlockView returns this page's ID-block view regardless of whether it
// is a bare overflowID page or the ID half of a combined overflowIDLoc
// page (the shape MiddleList uses for the profile that tracks neither
// frequency nor location, where a whole separate LOC-block page would
// otherwise sit permanently empty).
func (op *OverflowPage) idBlockView() *idBlock {
	if op.pageType() == overflowIDLoc {
		ib, _ := op.splitIDLoc()
		return ib
	}
	return op.asIDBlock()
}

// locBlockView is idBlockView's counterpart for the LOC-block side.
func (op *OverflowPage) locBlockView() *locBlock {
	if op.pageType() == overflowIDLoc {
		_, lb := op.splitIDLoc()
		return lb
	}
	return op.asLocBlock()
}

func (op *OverflowPage) markDirty() { op.page.MarkDirty() }
func (op *OverflowPage) unpin()     { op.page.Unpin() }

// OverflowFile owns the Overflow sub-file: a flat pool of ID/LOC/IDLOC
// pages allocated and freed as Middle-list segments grow and shrink (spec
// §3.1/§4.3).
type OverflowFile struct {
	pool pagestore.PagePool
}

func newOverflowFile(pool pagestore.PagePool) *OverflowFile {
	return &OverflowFile{pool: pool}
}

func (of *OverflowFile) create(path string, pageSize uint32) error {
	return of.pool.Create(path, pageSize)
}

func (of *OverflowFile) open(path string, pageSize uint32) error {
	return of.pool.Open(path, pageSize)
}

func (of *OverflowFile) allocate(t overflowPageType) (*OverflowPage, error) {
	p, err := of.pool.Allocate()
	if err != nil {
		return nil, err
	}
	op := newOverflowPage(p)
	op.setPageType(t)
	return op, nil
}

func (of *OverflowFile) attach(id pagestore.PageID) (*OverflowPage, error) {
	p, err := of.pool.Attach(id)
	if err != nil {
		return nil, err
	}
	return newOverflowPage(p), nil
}

func (of *OverflowFile) free(id pagestore.PageID) error {
	return of.pool.Free(id)
}

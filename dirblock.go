package fulltext2

import "encoding/binary"

// dirBlockEntrySize is the fixed 8-byte DirBlock entry (spec §3.1):
// idPageId(4) + firstDocumentId(4, high bit reserved as the tombstone
// flag used while an expunge is pending undo — spec §4.5).
const dirBlockEntrySize = 8

// dirBlock is a decoded view of one DIR-block: the ordered vector of
// (idPageId, firstDocumentId) entries a Middle-list area's data region
// holds in its dir-block region, one per ID-block page (spec §3.1/§4.3).
type dirBlock struct {
	buf []byte
}

func newDirBlock(buf []byte) *dirBlock { return &dirBlock{buf: buf} }

func (d *dirBlock) count() int { return len(d.buf) / dirBlockEntrySize }

func (d *dirBlock) entryOffset(i int) int { return i * dirBlockEntrySize }

func (d *dirBlock) idPageID(i int) uint32 {
	off := d.entryOffset(i)
	return binary.LittleEndian.Uint32(d.buf[off : off+4])
}

func (d *dirBlock) setIDPageID(i int, v uint32) {
	off := d.entryOffset(i)
	binary.LittleEndian.PutUint32(d.buf[off:off+4], v)
}

func (d *dirBlock) firstDocumentID(i int) uint32 {
	off := d.entryOffset(i)
	return binary.LittleEndian.Uint32(d.buf[off+4:off+8]) &^ tombstoneBit
}

func (d *dirBlock) setFirstDocumentID(i int, id uint32, tombstone bool) {
	off := d.entryOffset(i)
	v := id &^ tombstoneBit
	if tombstone {
		v |= tombstoneBit
	}
	binary.LittleEndian.PutUint32(d.buf[off+4:off+8], v)
}

// lowerBound returns the index of the first entry whose firstDocumentID is
// >= id (DIR-block entries are kept sorted ascending by construction).
func (d *dirBlock) lowerBound(id uint32) int {
	lo, hi := 0, d.count()
	for lo < hi {
		mid := (lo + hi) / 2
		if d.firstDocumentID(mid) < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

package fulltext2

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/doquedb/fulltext2go/pagestore"
)

// listType distinguishes the two implemented per-term list shapes. Long is
// reserved per spec §1/§9 ("Long-list shape is stubbed") and is never
// produced by this package; it is kept as a named constant only so a
// corrupted listType byte is recognizable during verify.
type listType uint8

const (
	listShort listType = iota
	listMiddle
	listLong
)

func (t listType) String() string {
	switch t {
	case listShort:
		return "short"
	case listMiddle:
		return "middle"
	case listLong:
		return "long"
	default:
		return "unknown"
	}
}

// areaHeaderSize is the fixed portion of an area record before its inline
// key, laid out as spec §3.1 describes (listType/unitSize, keyLength, the
// doc-id/location bookkeeping fields, firstDocumentId, lastLocationPageId).
const areaHeaderSize = 32

// areaHeader is the decoded form of an area's fixed header (spec §3.1). Its
// UnitSize is this package's own internal byte-granular accounting, not a
// claim of bit-for-bit compatibility with the original 32-bit-unit C++
// layout. The header's field widths are an implementation choice, and the
// per-document payload coding differs as well: it carries no position-list
// bit-length field (see writeDocumentPayload).
type areaHeader struct {
	ListType            listType
	UnitSize            uint32 // total byte size of the area, header+key+data
	KeyLength           uint16 // UTF-16 code units
	FirstDocumentID      uint32
	LastDocumentID       uint32
	DocumentCount        uint32
	DocumentOffset       uint32 // bit offset of next doc-id write
	LocationOffset       uint32 // bit offset of next location write
	LastLocationPageID  pagestore.PageID
}

const undefinedPageID = pagestore.InvalidPageID

func decodeAreaHeader(buf []byte) areaHeader {
	var h areaHeader
	h.ListType = listType(buf[0])
	h.UnitSize = binary.LittleEndian.Uint32(buf[2:6])
	h.KeyLength = binary.LittleEndian.Uint16(buf[6:8])
	h.FirstDocumentID = binary.LittleEndian.Uint32(buf[8:12])
	h.LastDocumentID = binary.LittleEndian.Uint32(buf[12:16])
	h.DocumentCount = binary.LittleEndian.Uint32(buf[16:20])
	h.DocumentOffset = binary.LittleEndian.Uint32(buf[20:24])
	h.LocationOffset = binary.LittleEndian.Uint32(buf[24:28])
	h.LastLocationPageID = pagestore.PageID(binary.LittleEndian.Uint32(buf[28:32]))
	return h
}

func (h areaHeader) encodeInto(buf []byte) {
	buf[0] = byte(h.ListType)
	buf[1] = 0
	binary.LittleEndian.PutUint32(buf[2:6], h.UnitSize)
	binary.LittleEndian.PutUint16(buf[6:8], h.KeyLength)
	binary.LittleEndian.PutUint32(buf[8:12], h.FirstDocumentID)
	binary.LittleEndian.PutUint32(buf[12:16], h.LastDocumentID)
	binary.LittleEndian.PutUint32(buf[16:20], h.DocumentCount)
	binary.LittleEndian.PutUint32(buf[20:24], h.DocumentOffset)
	binary.LittleEndian.PutUint32(buf[24:28], h.LocationOffset)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.LastLocationPageID))
}

// keyBytesLen returns the padded byte length used to store a KeyLength-unit
// UTF-16 key, rounded up to a 4-byte boundary (spec §6.2: "padded to unit
// boundary").
func keyBytesLen(keyLength uint16) int {
	n := int(keyLength) * 2
	if rem := n % 4; rem != 0 {
		n += 4 - rem
	}
	return n
}

func encodeKey(term string) []uint16 {
	return utf16.Encode([]rune(term))
}

func decodeKey(units []uint16) string {
	return string(utf16.Decode(units))
}

// area is a decoded, mutable view of one area record backed by a byte slice
// taken from its owning LeafPage. Callers obtain one via LeafPage.areaAt and
// must call flush (or rely on the caller doing so) before the slice is
// invalidated by a page mutation.
type area struct {
	buf []byte // the full area record, header+key+data
	hdr areaHeader
	key string
}

func newArea(buf []byte) *area {
	a := &area{buf: buf}
	a.hdr = decodeAreaHeader(buf)
	keyStart := areaHeaderSize
	keyLen := keyBytesLen(a.hdr.KeyLength)
	units := make([]uint16, a.hdr.KeyLength)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(buf[keyStart+2*i:])
	}
	a.key = decodeKey(units)
	_ = keyLen
	return a
}

// dataRegion returns the bytes following the header and key.
func (a *area) dataRegion() []byte {
	return a.buf[areaHeaderSize+keyBytesLen(a.hdr.KeyLength):]
}

func (a *area) flushHeader() {
	a.hdr.encodeInto(a.buf)
}

// byteSizeForArea computes the total on-disk size (bytes) of an area with
// the given key and data-region size.
func byteSizeForArea(term string, dataBytes int) int {
	kl := len(encodeKey(term))
	return areaHeaderSize + keyBytesLen(uint16(kl)) + dataBytes
}

// buildArea serializes a brand-new area (header fields + key) into dst,
// which must be exactly byteSizeForArea(term, dataBytes) long. The data
// region is left zeroed for the caller to fill in.
func buildArea(dst []byte, term string, lt listType, dataBytes int) *area {
	units := encodeKey(term)
	hdr := areaHeader{
		ListType:           lt,
		UnitSize:           uint32(len(dst)),
		KeyLength:          uint16(len(units)),
		LastLocationPageID: undefinedPageID,
	}
	hdr.encodeInto(dst)
	for i, u := range units {
		binary.LittleEndian.PutUint16(dst[areaHeaderSize+2*i:], u)
	}
	return newArea(dst)
}

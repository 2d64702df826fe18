package fulltext2

// LocationIterator decodes one document's frequency/position payload from
// a location stream (spec §5's InvertedIterator family splits the
// document-id walk from the per-document position walk). Frequency is
// available right after construction; finding where the payload ends
// still means decoding every position.
type LocationIterator struct {
	data    []byte
	profile listProfile
	bit     int
	limit   int
	count   uint64
	read    uint64
	prev    uint32
	ok      bool
}

// newLocationIterator begins decoding a document's payload at bitOffset
// within data, per profile's location/frequency shape.
func newLocationIterator(profile listProfile, data []byte, bitOffset int) *LocationIterator {
	it := &LocationIterator{data: data, profile: profile, bit: bitOffset, limit: len(data) * 8}

	if profile.NoLocation && profile.NoTF {
		it.ok = true
		it.count = 1
		return it
	}
	v, next, ok := coderDefault.Read(data, bitOffset, it.limit-bitOffset)
	if !ok {
		return it
	}
	it.count = v
	it.bit = next
	it.ok = true
	return it
}

// Frequency is the document's term frequency (or 1, for the profile that
// tracks neither location nor frequency).
func (it *LocationIterator) Frequency() uint32 { return uint32(it.count) }

// valid reports whether decoding the header succeeded.
func (it *LocationIterator) valid() bool { return it.ok }

// Next decodes the next position, returning false once every position for
// this document has been read or the profile carries no positions at all.
func (it *LocationIterator) Next() (uint32, bool) {
	if it.profile.NoLocation || !it.ok || it.read >= it.count {
		return 0, false
	}
	v, next, ok := coderDefault.Read(it.data, it.bit, it.limit-it.bit)
	if !ok {
		return 0, false
	}
	it.bit = next
	it.prev += uint32(v)
	it.read++
	return it.prev, true
}

// end returns the bit offset just past this document's payload, for the
// caller to resume its own stream walk. It forces any unread positions to
// be skipped first.
func (it *LocationIterator) end() int {
	for {
		if _, ok := it.Next(); !ok {
			break
		}
	}
	return it.bit
}

// writeDocumentPayload encodes one document's frequency/position payload
// at bitOffset per profile's shape, returning the offset just past it. It
// is the forward-stream counterpart to readDocumentPayload, shared by
// ShortList (writing into its area's location stream) and MiddleList
// (writing into the active LOC-block's bit stream).
//
// This payload carries no separate gap-coded position-list bit-length
// field, and does not elide that field's encoding for a term frequency of
// 1 down to one raw position (DESIGN.md's locationiterator.go Open
// Question decision: "no LOC payload bit-length field"). The leading
// count doubles as both TF and position-list length; a reader always
// walks exactly that many gap-coded positions to find the payload's end.
func writeDocumentPayload(profile listProfile, data []byte, bitOffset int, positions []uint32) int {
	switch {
	case profile.NoLocation && profile.NoTF:
		return bitOffset
	case profile.NoLocation:
		return coderDefault.Write(data, bitOffset, uint64(len(positions)))
	default:
		bitOffset = coderDefault.Write(data, bitOffset, uint64(len(positions)))
		prev := uint32(0)
		for _, pos := range positions {
			bitOffset = coderDefault.Write(data, bitOffset, uint64(pos-prev))
			prev = pos
		}
		return bitOffset
	}
}

// readDocumentPayload decodes one document's frequency and full position
// list starting at bitOffset, returning the offset just past it. It is the
// convenience form ShortList/MiddleList iteration uses when the caller
// wants everything eagerly rather than driving LocationIterator directly.
func readDocumentPayload(profile listProfile, data []byte, bitOffset int) (freq uint32, locs []uint32, newOffset int) {
	li := newLocationIterator(profile, data, bitOffset)
	if !li.valid() {
		return 0, nil, bitOffset
	}
	if profile.tracksLocations() {
		locs = make([]uint32, 0, li.count)
		for {
			pos, ok := li.Next()
			if !ok {
				break
			}
			locs = append(locs, pos)
		}
	}
	return li.Frequency(), locs, li.bit
}

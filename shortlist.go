package fulltext2

// ShortList is the list shape used while a term's posting list is small
// enough to fit entirely inside its B-tree leaf area (spec §3.1/§4.3.1).
// Its data region is split into two streams growing toward each other: a
// forward-growing location/frequency stream starting at offset 0, and a
// backward-growing document-id gap stream whose current head is
// hdr.DocumentOffset. The two streams must never cross: insert refuses a
// posting that needs more than freeBits(), and ListManager.Insert then grows
// the area by shortListGrowthBytes or, when the Leaf page has no room for
// that, converts the list to a Middle list (spec §4.3.2). A Leaf page is not
// split to make room for a Short list.
type ShortList struct {
	a       *area
	profile listProfile
}

func newShortList(a *area, profile listProfile) *ShortList {
	return &ShortList{a: a, profile: profile}
}

func (s *ShortList) totalDataBits() int { return len(s.a.dataRegion()) * 8 }

// freeBits is the number of unused bits between the two streams.
func (s *ShortList) freeBits() int {
	return int(s.a.hdr.DocumentOffset) - int(s.a.hdr.LocationOffset)
}

// fits reports whether appending docID (which must exceed LastDocumentID)
// with the given positions would fit in the remaining free bits.
func (s *ShortList) fits(docID uint32, positions []uint32) bool {
	need := s.requiredBits(docID, positions)
	return need <= s.freeBits()
}

func (s *ShortList) requiredBits(docID uint32, positions []uint32) int {
	gap := s.nextDocumentGap(docID)
	return coderDefault.BitLength(gap) + s.profile.perDocumentBits(positions)
}

func (s *ShortList) nextDocumentGap(docID uint32) uint64 {
	if s.a.hdr.DocumentCount == 0 {
		return uint64(docID)
	}
	return uint64(docID - s.a.hdr.LastDocumentID)
}

// insert appends docID with its positions. Inserts are append-only: a docID
// at or below LastDocumentID is ignored (reported as success). ok is false
// when the area has no room; the caller must grow the area or convert the
// list first.
func (s *ShortList) insert(docID uint32, positions []uint32) bool {
	// B3: a doc-id at or behind the list's current tail is a re-merge of
	// something already indexed, not a genuine new posting; treat it as a
	// no-op rather than writing an underflowed gap.
	if s.a.hdr.DocumentCount > 0 && docID <= s.a.hdr.LastDocumentID {
		return true
	}
	if !s.fits(docID, positions) {
		return false
	}
	data := s.a.dataRegion()

	gap := s.nextDocumentGap(docID)
	gapBits := coderDefault.BitLength(gap)
	newDocOffset := int(s.a.hdr.DocumentOffset) - gapBits
	coderDefault.Write(data, newDocOffset, gap)
	s.a.hdr.DocumentOffset = uint32(newDocOffset)

	locOff := int(s.a.hdr.LocationOffset)
	locOff = writeDocumentPayload(s.profile, data, locOff, positions)
	s.a.hdr.LocationOffset = uint32(locOff)

	if s.a.hdr.DocumentCount == 0 {
		s.a.hdr.FirstDocumentID = docID
	}
	s.a.hdr.LastDocumentID = docID
	s.a.hdr.DocumentCount++
	s.a.flushHeader()
	return true
}

func (s *ShortList) documentCount() int { return int(s.a.hdr.DocumentCount) }

// iterator returns a forward InvertedIterator over this list's documents in
// ascending document-id order (spec §5's InvertedIterator family).
func (s *ShortList) iterator() *ShortIterator {
	return newShortIterator(s)
}

// ShortIterator walks a ShortList's two streams in lockstep. The doc-id gap
// stream, read forward from its current head, yields the gaps newest-first,
// so the first Next decodes all of them and sums them oldest-first into
// ascending document ids; each id is paired with the next payload of the
// location/frequency stream, read forward from offset 0.
type ShortIterator struct {
	list      *ShortList
	data      []byte
	docBit    int
	docLimit  int
	locBit    int
	index     int
	total     int
	curDoc    uint32
	curFreq   uint32
	curLocs   []uint32
	docs      []uint32 // decoded document ids, ascending
	exhausted bool
}

func newShortIterator(s *ShortList) *ShortIterator {
	it := &ShortIterator{
		list:     s,
		data:     s.a.dataRegion(),
		docBit:   int(s.a.hdr.DocumentOffset),
		docLimit: s.totalDataBits(),
		locBit:   0,
		total:    s.documentCount(),
	}
	return it
}

// Next advances to the next document, returning false once exhausted.
func (it *ShortIterator) Next() bool {
	if it.docs == nil && it.total > 0 {
		// Each insert prepends its gap, so the stream holds them newest-first.
		var gaps []uint64
		for len(gaps) < it.total {
			gap, next, ok := coderDefault.Read(it.data, it.docBit, it.docLimit-it.docBit)
			if !ok {
				break
			}
			gaps, it.docBit = append(gaps, gap), next
		}
		for i, doc := len(gaps)-1, uint32(0); i >= 0; i-- {
			doc += uint32(gaps[i])
			it.docs = append(it.docs, doc)
		}
	}
	if it.index >= len(it.docs) {
		it.exhausted = true
		return false
	}
	it.curDoc = it.docs[it.index]

	it.curFreq, it.curLocs, it.locBit = readDocumentPayload(it.list.profile, it.data, it.locBit)
	it.index++
	return true
}

func (it *ShortIterator) DocumentID() uint32     { return it.curDoc }
func (it *ShortIterator) TermFrequency() uint32  { return it.curFreq }
func (it *ShortIterator) Locations() []uint32    { return it.curLocs }
func (it *ShortIterator) Err() error             { return nil }

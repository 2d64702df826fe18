package fulltext2

// InvertedIterator is the read contract every list shape exposes to the
// query executor (an external collaborator, spec §1): a forward walk over
// one term's postings in ascending document-id order. ShortIterator and
// MiddleIterator are its two implementations; ListManager picks whichever
// one a term's current list shape requires.
type InvertedIterator interface {
	// Next advances to the next document, returning false once exhausted
	// or on error (check Err to distinguish the two).
	Next() bool
	DocumentID() uint32
	TermFrequency() uint32
	Locations() []uint32
	Err() error
}

// Close releases any pages an iterator pinned. ShortIterator needs none
// (it shares the caller's already-pinned Leaf page); MiddleIterator pins
// Overflow pages of its own as it walks and must be closed.
func closeIterator(it InvertedIterator) {
	if mi, ok := it.(*MiddleIterator); ok {
		mi.Close()
	}
}

var (
	_ InvertedIterator = (*ShortIterator)(nil)
	_ InvertedIterator = (*MiddleIterator)(nil)
)

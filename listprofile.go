package fulltext2

// listProfile selects one of the four feature combinations spec §3.2
// describes ("isNolocation()/isNoTF() flags" rather than six separate
// concrete list types — design note, DESIGN.md). By default a list stores,
// per document, a count followed by that many gap-coded positions; the
// count doubles as the term frequency. NoLocation keeps the count only.
// NoTF changes the encoding only together with NoLocation: then no
// per-document payload is stored and readers report a frequency of 1.
type listProfile struct {
	NoLocation bool // true: store the per-document count only, no positions
	NoTF       bool // true together with NoLocation: store no per-document payload at all
}

func (p listProfile) tracksLocations() bool { return !p.NoLocation }
func (p listProfile) tracksFrequency() bool { return !p.NoTF }

// perDocumentBits reports the bits insert would need to encode one
// document's location/frequency payload, not counting the doc-id gap
// itself.
func (p listProfile) perDocumentBits(positions []uint32) int {
	switch {
	case p.NoLocation && p.NoTF:
		return 0
	case p.NoLocation:
		// frequency only, no positions: one scalar gap of len(positions).
		return coderDefault.BitLength(uint64(len(positions)))
	default:
		n := coderDefault.BitLength(uint64(len(positions)))
		prev := uint32(0)
		for _, pos := range positions {
			n += coderDefault.BitLength(uint64(pos - prev))
			prev = pos
		}
		return n
	}
}

package fulltext2

import (
	"reflect"
	"testing"
)

// TestListManagerRoundTripShort is R1 for a term small enough to stay a
// Short list: every inserted posting must scan back unchanged.
func TestListManagerRoundTripShort(t *testing.T) {
	eng := newTestEngine(t, 4096, listProfile{})
	want := []postingView{
		{1, 1, []uint32{4}},
		{2, 2, []uint32{1, 9}},
		{5, 3, []uint32{2, 3, 10}},
	}
	for _, p := range want {
		if err := eng.lm.Insert("term", p.doc, p.locs); err != nil {
			t.Fatalf("Insert(%d): %v", p.doc, err)
		}
	}
	it, ok, err := eng.lm.Search("term")
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	got := scanAll(t, it)
	closeIterator(it)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

// TestListManagerRoundTripAcrossConversion is R1/B1: insert enough
// postings to force the Short-to-Middle conversion partway through, and
// verify every document inserted both before and after the conversion scans
// back, none lost.
func TestListManagerRoundTripAcrossConversion(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	const n = 400
	for doc := uint32(1); doc <= n; doc++ {
		if err := eng.lm.Insert("growing", doc, []uint32{doc}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	it, ok, err := eng.lm.Search("growing")
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	got := scanAll(t, it)
	closeIterator(it)

	if len(got) != n {
		t.Fatalf("scan length: got %d want %d", len(got), n)
	}
	for i, p := range got {
		want := uint32(i + 1)
		if p.doc != want || p.freq != 1 || !reflect.DeepEqual(p.locs, []uint32{want}) {
			t.Fatalf("posting %d: got %+v want doc=%d", i, p, want)
		}
	}
}

// TestListManagerConversionPreservesOtherTerms is B1: converting one term
// from Short to Middle must not disturb sibling terms sharing the same Leaf
// page.
func TestListManagerConversionPreservesOtherTerms(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	if err := eng.lm.Insert("sibling", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert sibling: %v", err)
	}
	for doc := uint32(1); doc <= 300; doc++ {
		if err := eng.lm.Insert("growing", doc, []uint32{doc}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}

	it, ok, err := eng.lm.Search("sibling")
	if err != nil || !ok {
		t.Fatalf("Search sibling: ok=%v err=%v", ok, err)
	}
	got := scanAll(t, it)
	closeIterator(it)
	want := []postingView{{1, 1, []uint32{1}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sibling term disturbed: got %+v want %+v", got, want)
	}
}

// TestListManagerExpungeShortList verifies Expunge on a
// Short list removes exactly the targeted document and leaves the rest in
// order.
func TestListManagerExpungeShortList(t *testing.T) {
	eng := newTestEngine(t, 4096, listProfile{})
	for _, doc := range []uint32{1, 2, 3, 4} {
		if err := eng.lm.Insert("term", doc, []uint32{doc}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	if err := eng.lm.Expunge("term", 2); err != nil {
		t.Fatalf("Expunge: %v", err)
	}
	it, ok, err := eng.lm.Search("term")
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	var docs []uint32
	for it.Next() {
		docs = append(docs, it.DocumentID())
	}
	closeIterator(it)
	want := []uint32{1, 3, 4}
	if !reflect.DeepEqual(docs, want) {
		t.Fatalf("docs after expunge: got %v want %v", docs, want)
	}
}

// TestListManagerExpungeUnknownDocumentErrors verifies Expunge on a doc-id
// not present in the list reports an error rather than silently no-op'ing.
func TestListManagerExpungeUnknownDocumentErrors(t *testing.T) {
	eng := newTestEngine(t, 4096, listProfile{})
	if err := eng.lm.Insert("term", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.lm.Expunge("term", 99); err == nil {
		t.Fatalf("expected an error expunging an absent document")
	}
}

// TestListManagerExpungeUnknownTermErrors verifies Expunge/Search on a term
// with no list report errNotFoundTerm-shaped failure, not a panic.
func TestListManagerExpungeUnknownTermErrors(t *testing.T) {
	eng := newTestEngine(t, 4096, listProfile{})
	if err := eng.lm.Expunge("missing", 1); err == nil {
		t.Fatalf("expected an error expunging from a term with no list")
	}
	_, ok, err := eng.lm.Search("missing")
	if err != nil {
		t.Fatalf("Search on a missing term should report ok=false, not an error: %v", err)
	}
	if ok {
		t.Fatalf("Search on a missing term must report ok=false")
	}
}

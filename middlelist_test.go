package fulltext2

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/doquedb/fulltext2go/pagestore"
)

type testEngine struct {
	lf *LeafFile
	of *OverflowFile
	bt BtreeFile
	lm *ListManager
}

func newTestEngine(t *testing.T, pageSize uint32, profile listProfile) *testEngine {
	t.Helper()
	dir := t.TempDir()
	leafPool := pagestore.NewFileStore()
	overflowPool := pagestore.NewFileStore()
	bt := NewSortedMapBtree()
	lf := newLeafFile(leafPool, bt)
	if err := lf.create(filepath.Join(dir, "leaf.db"), pageSize); err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	of := newOverflowFile(overflowPool)
	if err := of.create(filepath.Join(dir, "overflow.db"), pageSize); err != nil {
		t.Fatalf("create overflow: %v", err)
	}
	return &testEngine{lf: lf, of: of, bt: bt, lm: newListManager(lf, of, bt, profile)}
}

type postingView struct {
	doc  uint32
	freq uint32
	locs []uint32
}

func scanAll(t *testing.T, it InvertedIterator) []postingView {
	t.Helper()
	var out []postingView
	for it.Next() {
		out = append(out, postingView{it.DocumentID(), it.TermFrequency(), append([]uint32(nil), it.Locations()...)})
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	return out
}

// TestMiddleListScenarioS2 reproduces spec.md §8's S2: enough postings to
// force a Short-to-Middle conversion and multiple Overflow segments, then
// verifies every document is recovered in order with correct positions.
func TestMiddleListScenarioS2(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	const term = "frequent"
	const n = 300

	for doc := uint32(1); doc <= n; doc++ {
		positions := []uint32{doc, doc + 1}
		if err := eng.lm.Insert(term, doc, positions); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}

	it, ok, err := eng.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	defer closeIterator(it)

	mi, isMiddle := it.(*MiddleIterator)
	if !isMiddle {
		t.Fatalf("expected conversion to Middle list, got %T", it)
	}
	if mi.dir.count() < 2 {
		t.Fatalf("expected multiple Overflow segments, got %d", mi.dir.count())
	}

	got := scanAll(t, it)
	if len(got) != n {
		t.Fatalf("scan length: got %d want %d", len(got), n)
	}
	for i, p := range got {
		want := uint32(i + 1)
		if p.doc != want {
			t.Fatalf("posting %d: doc got %d want %d", i, p.doc, want)
		}
		if p.freq != 2 || !reflect.DeepEqual(p.locs, []uint32{want, want + 1}) {
			t.Fatalf("posting %d: got freq=%d locs=%v", i, p.freq, p.locs)
		}
	}
}

// TestMiddleListInsertStaleDocIDIsNoOp exercises B3 for the Middle shape.
func TestMiddleListInsertStaleDocIDIsNoOp(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	const term = "frequent"
	for doc := uint32(1); doc <= 400; doc++ {
		if err := eng.lm.Insert(term, doc, []uint32{1}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	it, ok, err := eng.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	before := scanAll(t, it)
	closeIterator(it)

	if err := eng.lm.Insert(term, 400, []uint32{99}); err != nil {
		t.Fatalf("re-insert of current tail must be a no-op, not an error: %v", err)
	}
	if err := eng.lm.Insert(term, 50, []uint32{99}); err != nil {
		t.Fatalf("insert behind tail must be a no-op, not an error: %v", err)
	}

	it, ok, err = eng.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	after := scanAll(t, it)
	closeIterator(it)

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("stale insert mutated the list")
	}
}

// TestMiddleListVacuumPreservesScanOutput is R3: vacuum must not change what
// a subsequent scan returns, only reclaim fragmented Overflow pages.
func TestMiddleListVacuumPreservesScanOutput(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	const term = "frequent"
	const n = 400
	for doc := uint32(1); doc <= n; doc++ {
		if err := eng.lm.Insert(term, doc, []uint32{doc % 17}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	// Delete every third document so the list is fragmented before vacuum.
	for doc := uint32(3); doc <= n; doc += 3 {
		if err := eng.lm.Expunge(term, doc); err != nil {
			t.Fatalf("Expunge(%d): %v", doc, err)
		}
	}

	it, ok, err := eng.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	before := scanAll(t, it)
	closeIterator(it)

	if err := eng.lm.Vacuum(term); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}

	it, ok, err = eng.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search after vacuum: ok=%v err=%v", ok, err)
	}
	after := scanAll(t, it)
	closeIterator(it)

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("vacuum changed scan output:\n before %+v\n after  %+v", before, after)
	}
}

// TestMiddleListVacuumOnShortListIsNoOp verifies ListManager.Vacuum exempts
// Short lists rather than erroring, per spec.md's Non-goal.
func TestMiddleListVacuumOnShortListIsNoOp(t *testing.T) {
	eng := newTestEngine(t, 4096, listProfile{})
	if err := eng.lm.Insert("small", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.lm.Vacuum("small"); err != nil {
		t.Fatalf("Vacuum on a Short list must be a no-op, got error: %v", err)
	}
}

// TestMiddleListMergeAppendsInDocumentOrder exercises ListManager.Merge:
// draining a second iterator's postings into an existing term whose current
// tail precedes the incoming range.
func TestMiddleListMergeAppendsInDocumentOrder(t *testing.T) {
	engA := newTestEngine(t, 512, listProfile{})
	engB := newTestEngine(t, 512, listProfile{})
	const term = "merged"

	for doc := uint32(1); doc <= 50; doc++ {
		if err := engA.lm.Insert(term, doc, []uint32{1}); err != nil {
			t.Fatalf("Insert into A: %v", err)
		}
	}
	for doc := uint32(51); doc <= 100; doc++ {
		if err := engB.lm.Insert(term, doc, []uint32{2}); err != nil {
			t.Fatalf("Insert into B: %v", err)
		}
	}

	bIt, ok, err := engB.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search B: ok=%v err=%v", ok, err)
	}
	if err := engA.lm.Merge(term, bIt); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	it, ok, err := engA.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search merged: ok=%v err=%v", ok, err)
	}
	got := scanAll(t, it)
	closeIterator(it)

	if len(got) != 100 {
		t.Fatalf("scan length: got %d want 100", len(got))
	}
	for i, p := range got {
		if p.doc != uint32(i+1) {
			t.Fatalf("posting %d: got doc=%d want %d", i, p.doc, i+1)
		}
	}
}

// TestMiddleListMergeIsNoOpWhenRangesOverlap verifies the precondition
// guard: a merge whose incoming range does not strictly follow the existing
// tail must not duplicate postings (a repeated merge attempt).
func TestMiddleListMergeIsNoOpWhenRangesOverlap(t *testing.T) {
	engA := newTestEngine(t, 512, listProfile{})
	engB := newTestEngine(t, 512, listProfile{})
	const term = "merged"

	for doc := uint32(1); doc <= 10; doc++ {
		if err := engA.lm.Insert(term, doc, []uint32{1}); err != nil {
			t.Fatalf("Insert into A: %v", err)
		}
	}
	for doc := uint32(5); doc <= 8; doc++ { // entirely behind A's current tail (10)
		if err := engB.lm.Insert(term, doc, []uint32{2}); err != nil {
			t.Fatalf("Insert into B: %v", err)
		}
	}

	bIt, ok, err := engB.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search B: ok=%v err=%v", ok, err)
	}
	if err := engA.lm.Merge(term, bIt); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	it, ok, err := engA.lm.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search merged: ok=%v err=%v", ok, err)
	}
	got := scanAll(t, it)
	closeIterator(it)

	if len(got) != 10 {
		t.Fatalf("merge of an overlapping range must be a no-op: got %d postings want 10", len(got))
	}
}

// TestMiddleListExpungeReclaimsIDPages is I4: expunging every document in a
// segment must free its ID-block (and LOC-block) pages rather than leaving
// them orphaned.
func TestMiddleListExpungeReclaimsIDPages(t *testing.T) {
	eng := newTestEngine(t, 512, listProfile{})
	const term = "frequent"
	const n = 400
	for doc := uint32(1); doc <= n; doc++ {
		if err := eng.lm.Insert(term, doc, []uint32{1}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	overflowBefore := countLivePages(eng.of)
	for doc := uint32(1); doc <= n; doc++ {
		if err := eng.lm.Expunge(term, doc); err != nil {
			t.Fatalf("Expunge(%d): %v", doc, err)
		}
	}
	overflowAfter := countLivePages(eng.of)
	if overflowAfter >= overflowBefore {
		t.Fatalf("expunging every document should free Overflow pages: before=%d after=%d", overflowBefore, overflowAfter)
	}
}

func countLivePages(of *OverflowFile) int {
	return of.pool.PageCount()
}

package fulltext2

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/doquedb/fulltext2go/pagestore"
)

func newTestUnit(t *testing.T, profile listProfile) (*InvertedUnit, string) {
	t.Helper()
	dir := t.TempDir()
	u := NewInvertedUnit(profile, func() pagestore.PagePool { return pagestore.NewFileStore() })
	if err := u.Create(dir, 512); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return u, dir
}

func scanUnit(t *testing.T, u *InvertedUnit, term string) ([]postingView, bool) {
	t.Helper()
	it, ok, err := u.Search(term)
	if err != nil {
		t.Fatalf("Search(%q): %v", term, err)
	}
	if !ok {
		return nil, false
	}
	got := scanAll(t, it)
	closeIterator(it)
	return got, true
}

// TestScenarioS1SimpleInsertScan is spec.md §8's S1.
func TestScenarioS1SimpleInsertScan(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	if err := u.Insert("αβ", 1, []uint32{5}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := u.Insert("αβ", 2, []uint32{3, 7}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := scanUnit(t, u, "αβ")
	if !ok {
		t.Fatalf("term not found")
	}
	want := []postingView{{1, 1, []uint32{5}}, {2, 2, []uint32{3, 7}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("scan: got %+v want %+v", got, want)
	}
}

// TestScenarioS2ShortToMiddleConversion is spec.md §8's S2.
func TestScenarioS2ShortToMiddleConversion(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	const term = "bulk"
	const n = 4096
	for doc := uint32(1); doc <= n; doc++ {
		if err := u.Insert(term, doc, []uint32{doc % 7}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}

	it, ok, err := u.Search(term)
	if err != nil || !ok {
		t.Fatalf("Search: ok=%v err=%v", ok, err)
	}
	mi, isMiddle := it.(*MiddleIterator)
	if !isMiddle {
		closeIterator(it)
		t.Fatalf("expected Middle list after %d inserts, got %T", n, it)
	}
	if mi.dir.count() < 1 {
		closeIterator(it)
		t.Fatalf("expected at least one DIR-block entry")
	}
	got := scanAll(t, it)
	closeIterator(it)
	if len(got) != n {
		t.Fatalf("scan length: got %d want %d", len(got), n)
	}
	for i, p := range got {
		if p.doc != uint32(i+1) {
			t.Fatalf("posting %d: got doc=%d want %d", i, p.doc, i+1)
		}
	}

	if err := u.Vacuum(term); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	got2, ok := scanUnit(t, u, term)
	if !ok {
		t.Fatalf("term missing after vacuum")
	}
	if len(got2) != n {
		t.Fatalf("scan length after vacuum: got %d want %d", len(got2), n)
	}
	for i, p := range got2 {
		if p.doc != uint32(i+1) {
			t.Fatalf("posting %d after vacuum: got doc=%d want %d", i, p.doc, i+1)
		}
	}
}

// TestScenarioS3ExpungeThenVerify is spec.md §8's S3.
func TestScenarioS3ExpungeThenVerify(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	const term = "ten"
	for doc := uint32(1); doc <= 10; doc++ {
		if err := u.Insert(term, doc, []uint32{1}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	if err := u.Expunge(term, 1); err != nil {
		t.Fatalf("Expunge: %v", err)
	}

	got, ok := scanUnit(t, u, term)
	if !ok {
		t.Fatalf("term missing")
	}
	var docs []uint32
	for _, p := range got {
		docs = append(docs, p.doc)
	}
	want := []uint32{2, 3, 4, 5, 6, 7, 8, 9, 10}
	if !reflect.DeepEqual(docs, want) {
		t.Fatalf("docs: got %v want %v", docs, want)
	}

	if err := u.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

// TestScenarioS4StagedExpungeUndo is spec.md §8's S4, expressed against this
// package's staged-delete window (MarkForExpunge/UndoExpunge): undoing a
// staged expunge before it is applied must leave the document's posting
// exactly as inserted.
func TestScenarioS4StagedExpungeUndo(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	const term = "doc"
	if err := u.Insert(term, 100, []uint32{1, 3, 5}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	u.MarkForExpunge(term, 100)
	if !u.UndoExpunge(term, 100) {
		t.Fatalf("UndoExpunge should report true for a staged doc-id")
	}

	if err := u.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}

	got, ok := scanUnit(t, u, term)
	if !ok {
		t.Fatalf("term missing after undo")
	}
	want := []postingView{{100, 3, []uint32{1, 3, 5}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("posting after undo: got %+v want %+v", got, want)
	}
}

// TestScenarioS4StagedExpungeAppliesWithoutUndo is the negative counterpart:
// a staged expunge that is never undone must be applied by FlushAllPages.
func TestScenarioS4StagedExpungeAppliesWithoutUndo(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	const term = "doc"
	if err := u.Insert(term, 100, []uint32{1, 3, 5}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	u.MarkForExpunge(term, 100)
	if err := u.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}
	if _, ok, err := u.Search(term); err != nil || ok {
		t.Fatalf("expected term to have no postings after applied expunge: ok=%v err=%v", ok, err)
	}
}

// TestScenarioS5NoTFProfile is spec.md §8's S5.
func TestScenarioS5NoTFProfile(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{NoLocation: true, NoTF: true})
	defer u.Destroy()

	const term = "flag"
	for doc := uint32(1); doc <= 5; doc++ {
		if err := u.Insert(term, doc, nil); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	got, ok := scanUnit(t, u, term)
	if !ok {
		t.Fatalf("term missing")
	}
	if len(got) != 5 {
		t.Fatalf("scan length: got %d want 5", len(got))
	}
	for i, p := range got {
		if p.doc != uint32(i+1) {
			t.Fatalf("posting %d: got doc=%d want %d", i, p.doc, i+1)
		}
		// LocationIterator.Frequency reports a sentinel 1 for the profile
		// that tracks neither frequency nor location, not 0.
		if p.freq != 1 {
			t.Fatalf("posting %d: NoTF profile must report freq=1, got %d", i, p.freq)
		}
		if len(p.locs) != 0 {
			t.Fatalf("posting %d: NoTF profile must report no locations, got %v", i, p.locs)
		}
	}
}

// TestUnitVerifyDetectsLastDocumentIDMismatch corrupts a Short area's
// header directly to simulate an inconsistency and verifies Verify reports
// it rather than silently succeeding.
func TestUnitVerifyDetectsLastDocumentIDMismatch(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	if err := u.Insert("term", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := u.Insert("term", 2, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	page, idx, err := u.lm.locate("term", ModeSearch)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	a := page.areaAt(idx)
	a.hdr.LastDocumentID = 1 // corrupt: two documents but lastDocumentId understates it
	a.flushHeader()
	u.leaf.unpin(page)

	if err := u.Verify(); err == nil {
		t.Fatalf("expected Verify to detect the corrupted area, got nil")
	}
}

// TestUnitGetUsedSizeGrowsWithPages verifies GetUsedSize reports page-budget
// accounting rather than a constant.
func TestUnitGetUsedSizeGrowsWithPages(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	before, err := u.GetUsedSize()
	if err != nil {
		t.Fatalf("GetUsedSize: %v", err)
	}
	for doc := uint32(1); doc <= 2000; doc++ {
		if err := u.Insert("bulk", doc, []uint32{doc}); err != nil {
			t.Fatalf("Insert(%d): %v", doc, err)
		}
	}
	after, err := u.GetUsedSize()
	if err != nil {
		t.Fatalf("GetUsedSize: %v", err)
	}
	if after <= before {
		t.Fatalf("GetUsedSize should grow as pages are allocated: before=%d after=%d", before, after)
	}
}

// TestUnitMoveRelocatesSubFiles verifies Move flushes, relocates both
// sub-files, and leaves the unit fully functional at the new location.
func TestUnitMoveRelocatesSubFiles(t *testing.T) {
	u, dir := newTestUnit(t, listProfile{})
	defer u.Destroy()

	if err := u.Insert("term", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	destDir := filepath.Join(filepath.Dir(dir), filepath.Base(dir)+"-moved")
	if err := u.Move(destDir); err != nil {
		t.Fatalf("Move: %v", err)
	}

	got, ok := scanUnit(t, u, "term")
	if !ok {
		t.Fatalf("term missing after move")
	}
	want := []postingView{{1, 1, []uint32{1}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("postings after move: got %+v want %+v", got, want)
	}

	if err := u.Insert("term", 2, []uint32{2}); err != nil {
		t.Fatalf("Insert after move: %v", err)
	}
}

// TestUnitCloseThenDestroy verifies Close leaves backing storage on disk
// (reopenable) while Destroy removes it, and that both are idempotent no-ops
// once already unmounted.
func TestUnitCloseThenDestroy(t *testing.T) {
	u, dir := newTestUnit(t, listProfile{})
	if err := u.Insert("term", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := u.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if u.IsMounted() {
		t.Fatalf("unit should be unmounted after Close")
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close should be a no-op when already unmounted: %v", err)
	}

	reopened := NewInvertedUnit(listProfile{}, func() pagestore.PagePool { return pagestore.NewFileStore() })
	if err := reopened.Open(dir, 512); err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	if err := reopened.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := reopened.Destroy(); err != nil {
		t.Fatalf("Destroy should be a no-op when already unmounted: %v", err)
	}
}

// TestUnitClearEmptiesBtreeButKeepsFiles verifies Clear resets the B-tree
// contract (spec's clear()) without destroying the sub-files.
func TestUnitClearEmptiesBtreeButKeepsFiles(t *testing.T) {
	u, _ := newTestUnit(t, listProfile{})
	defer u.Destroy()

	if err := u.Insert("term", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := u.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := u.Search("term"); err != nil || ok {
		t.Fatalf("expected no postings after Clear: ok=%v err=%v", ok, err)
	}
	if err := u.Insert("fresh", 1, []uint32{1}); err != nil {
		t.Fatalf("Insert after Clear: %v", err)
	}
}

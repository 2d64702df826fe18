package fulltext2

import (
	"sort"
	"sync"

	"github.com/doquedb/fulltext2go/pagestore"
)

// BtreeFile is the external B-tree collaborator named in spec §3.1: the
// engine only ever uses its term→pageid contract, never its internal
// traversal algorithm. Every distinct term that is the smallest area-key on
// some Leaf page has exactly one entry here pointing at that page (I1).
type BtreeFile interface {
	// Insert adds term→page. term must not already exist.
	Insert(term string, page pagestore.PageID) error
	// Expunge removes term's entry. term must exist.
	Expunge(term string) error
	// Update atomically replaces term1→page1 with term2→page2 (used when
	// a split or merge changes a page's first key without changing its
	// identity).
	Update(term1 string, page1 pagestore.PageID, term2 string, page2 pagestore.PageID) error
	// Search returns the page named by term, or ok=false if absent.
	Search(term string) (page pagestore.PageID, ok bool)
	// Floor returns the entry with the greatest key <= term — the page
	// whose area range currently owns term, which is what every insert
	// needs to locate (a term is rarely itself some page's first key).
	// ok is false only when term is less than every registered key, which
	// cannot happen once the empty-string seed area exists (B5).
	Floor(term string) (page pagestore.PageID, ok bool)
	// Clear removes every entry (InvertedUnit.clear).
	Clear() error
}

// sortedMapBtree is the default BtreeFile: an in-memory sorted map
// satisfying the term→pageid contract. spec §3.1 treats the B-tree
// algorithm itself as an external collaborator ("only its term→pageid
// contract is used"); this is that contract's reference implementation,
// not a claim to be a production B-tree.
type sortedMapBtree struct {
	mu      sync.RWMutex
	entries map[string]pagestore.PageID
}

// NewSortedMapBtree constructs the default BtreeFile implementation.
func NewSortedMapBtree() BtreeFile {
	return &sortedMapBtree{entries: map[string]pagestore.PageID{}}
}

func (b *sortedMapBtree) Insert(term string, page pagestore.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[term]; ok {
		return errAlreadyExists(term)
	}
	b.entries[term] = page
	return nil
}

func (b *sortedMapBtree) Expunge(term string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[term]; !ok {
		return errNotFoundTerm(term)
	}
	delete(b.entries, term)
	return nil
}

func (b *sortedMapBtree) Update(term1 string, page1 pagestore.PageID, term2 string, page2 pagestore.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[term1]; !ok {
		return errNotFoundTerm(term1)
	}
	delete(b.entries, term1)
	b.entries[term2] = page2
	return nil
}

func (b *sortedMapBtree) Search(term string) (pagestore.PageID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.entries[term]
	return p, ok
}

// Floor performs a linear scan of the current key set. A real B-tree
// resolves this in O(log n) via its internal separator keys; this default
// implementation is the reference contract, not a performance claim (spec
// §3.1 treats the traversal algorithm itself as an external collaborator).
func (b *sortedMapBtree) Floor(term string) (pagestore.PageID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var best string
	var bestPage pagestore.PageID
	found := false
	for k, p := range b.entries {
		if k <= term && (!found || k > best) {
			best, bestPage, found = k, p, true
		}
	}
	return bestPage, found
}

func (b *sortedMapBtree) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]pagestore.PageID{}
	return nil
}

// sortedTerms returns every term in ascending order, used by verify to walk
// the B-tree (spec §4.1 "runs a B-tree check").
func (b *sortedMapBtree) sortedTerms() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	terms := make([]string, 0, len(b.entries))
	for t := range b.entries {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

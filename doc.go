// Package fulltext2 implements the inverted-index posting-list storage
// engine of a full-text search subsystem: the B-tree file's term→leaf-page
// contract, the Leaf file's variable-sized per-term areas, the Overflow
// file's ID/LOC/IDLOC pages, and the insert/delete/undo-delete/merge/vacuum
// machinery that keeps them consistent.
//
// The physical page buffer pool, the B-tree traversal algorithm, the
// transaction manager, the tokenizer, and the query executor are external
// collaborators reached only through the pagestore.PagePool and BtreeFile
// interfaces — this package owns the three sub-files' record formats and
// the per-term list/iterator logic built on top of them.
package fulltext2

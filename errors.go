package fulltext2

import (
	"fmt"

	"github.com/doquedb/fulltext2go/ftfail"
)

func errAlreadyExists(term string) error {
	return ftfail.New(ftfail.Unexpected, fmt.Sprintf("term %q already has a B-tree entry", term))
}

func errNotFoundTerm(term string) error {
	return ftfail.New(ftfail.Unexpected, fmt.Sprintf("term %q has no B-tree entry", term))
}

func errAreaFull(term string) error {
	return ftfail.New(ftfail.Unexpected, fmt.Sprintf("area for term %q exceeds page capacity", term))
}

func errLongListUnsupported(term string) error {
	// design note §9: "addDirBlock returning false ... convert to Long
	// and leave a clearly-marked TODO rather than silently corrupting."
	// TODO: implement the Long-list shape if a term ever outgrows Middle;
	// spec.md marks this reserved-but-unimplemented and says it does not
	// occur in production.
	return ftfail.New(ftfail.Unexpected, fmt.Sprintf("term %q outgrew Middle list capacity (Long list unimplemented)", term))
}

package fulltext2

import "github.com/doquedb/fulltext2go/coding"

// coderDefault is the gap code every list/iterator in this package uses
// (spec §6.3 leaves the code itself abstract; coding.Default is the only
// one this module ships).
var coderDefault coding.Coder = coding.Default

package fulltext2

import "encoding/binary"

// locBlockHeaderSize is the fixed one-word LocBlock header (spec §3.1):
// continueFlag:1 | dataUnitSize:13 | dataBitLength:18, packed into a
// little-endian uint32.
const locBlockHeaderSize = 4

const (
	locContinueMask     = uint32(1) << 31
	locDataUnitSizeMask = uint32(0x1FFF) << 18
	locBitLengthMask    = uint32(0x3FFFF)
)

// locBlock is a decoded view of one LOC-block: TF-then-position bit stream
// for one IDBlock's worth of documents (spec §3.1/§4.3.3). The header has
// a continue flag, but no code in this package chains continuation blocks:
// setHeader is never called here, and a full segment opens a new segment
// instead.
type locBlock struct {
	buf []byte
}

func newLocBlock(buf []byte) *locBlock { return &locBlock{buf: buf} }

func (b *locBlock) word() uint32 { return binary.LittleEndian.Uint32(b.buf[0:4]) }
func (b *locBlock) setWord(w uint32) { binary.LittleEndian.PutUint32(b.buf[0:4], w) }

func (b *locBlock) continued() bool { return b.word()&locContinueMask != 0 }

func (b *locBlock) dataUnitSize() int { return int((b.word() & locDataUnitSizeMask) >> 18) }

func (b *locBlock) dataBitLength() int { return int(b.word() & locBitLengthMask) }

func (b *locBlock) setHeader(continued bool, dataUnitSize, dataBitLength int) {
	var w uint32
	if continued {
		w |= locContinueMask
	}
	w |= (uint32(dataUnitSize) << 18) & locDataUnitSizeMask
	w |= uint32(dataBitLength) & locBitLengthMask
	b.setWord(w)
}

// bitStream returns the TF/position bit area following the header word.
func (b *locBlock) bitStream() []byte { return b.buf[locBlockHeaderSize:] }

func (b *locBlock) bitCapacity() int { return (len(b.buf) - locBlockHeaderSize) * 8 }

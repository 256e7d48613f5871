package addr

import (
	"github.com/mit-pdos/go-easyfs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (expressed as a byte offset). The size of the
// object is determined by the context in which Addr is used.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bytes
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkBitAddr returns the address of the byte holding bit n of the bitmap that
// starts at block start, along with the bit's position in that byte.
func MkBitAddr(start common.Bnum, n uint64) (Addr, uint64) {
	bit := n % common.NBITBLOCK
	i := n / common.NBITBLOCK
	addr := MkAddr(start+common.Bnum(i), bit/8)
	return addr, bit % 8
}

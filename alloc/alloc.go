package alloc

import (
	"math/bits"

	"github.com/mit-pdos/go-easyfs/addr"
	"github.com/mit-pdos/go-easyfs/cache"
	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/util"
)

// Alloc uses a bit map to allocate and free numbers. Bit 0
// corresponds to number 0, bit 1 to 1, and so on.
//
// The bitmap lives on disk and is accessed through the block cache. Alloc
// has no lock of its own; the file system serializes allocation.
type Alloc struct {
	start common.Bnum // first bitmap block
	len   uint64      // number of bitmap blocks
	max   uint64      // numbers in [0, max) are managed
}

func MkAlloc(start common.Bnum, len uint64, max uint64) *Alloc {
	if max > len*common.NBITBLOCK {
		panic("MkAlloc")
	}
	a := &Alloc{
		start: start,
		len:   len,
		max:   max,
	}
	return a
}

func (a *Alloc) Max() uint64 {
	return a.max
}

func popCnt(b byte) uint64 {
	return uint64(bits.OnesCount8(b))
}

// Set the lowest clear bit in data, whose first bit is number base, as long
// as that number is below max.
func (a *Alloc) findFreeBit(data []byte, base uint64) (uint64, bool) {
	for i, x := range data {
		if x == 0xff {
			continue
		}
		bit := uint64(bits.TrailingZeros8(^x))
		num := base + uint64(i)*8 + bit
		if num >= a.max {
			return 0, false
		}
		data[i] = x | (1 << bit)
		return num, true
	}
	return 0, false
}

// AllocNum allocates the lowest free number. It returns false if every number
// is in use.
func (a *Alloc) AllocNum(c *cache.Cache) (uint64, bool) {
	for i := uint64(0); i < a.len; i++ {
		base := i * common.NBITBLOCK
		if base >= a.max {
			break
		}
		var num uint64
		var ok bool
		c.Update(a.start+i, 0, func(data []byte) bool {
			num, ok = a.findFreeBit(data[:disk.BlockSize], base)
			return ok
		})
		if ok {
			util.DPrintf(10, "AllocNum: %d\n", num)
			return num, true
		}
	}
	return 0, false
}

// FreeNum releases num. Freeing a number that isn't allocated is a bug.
func (a *Alloc) FreeNum(c *cache.Cache, num uint64) {
	if num >= a.max {
		panic("FreeNum: out of range")
	}
	ad, bit := addr.MkBitAddr(a.start, num)
	var wasSet bool
	c.Update(ad.Blkno, ad.Off, func(data []byte) bool {
		wasSet = data[0]&(1<<bit) != 0
		data[0] = data[0] & ^(1 << bit)
		return wasSet
	})
	if !wasSet {
		panic("FreeNum: not allocated")
	}
	util.DPrintf(10, "FreeNum: %d\n", num)
}

func (a *Alloc) IsUsed(c *cache.Cache, num uint64) bool {
	if num >= a.max {
		panic("IsUsed: out of range")
	}
	ad, bit := addr.MkBitAddr(a.start, num)
	var used bool
	c.Read(ad.Blkno, ad.Off, func(data []byte) {
		used = data[0]&(1<<bit) != 0
	})
	return used
}

func (a *Alloc) NumFree(c *cache.Cache) uint64 {
	used := uint64(0)
	for i := uint64(0); i < a.len; i++ {
		c.Read(a.start+i, 0, func(data []byte) {
			for _, b := range data {
				used += popCnt(b)
			}
		})
	}
	return a.max - used
}

// Package inode implements the on-disk inode and the block-pointer scheme
// that maps file offsets to data blocks.
//
// An inode addresses NDIRECT blocks directly, NINDIRECT more through the
// singly-indirect index block Indirect1, and NINDIRECT2 more through the
// doubly-indirect index block Indirect2, whose entries each point to an
// index block of NINDIRECT data pointers.
//
// A DiskInode is a decoded copy of the on-disk record. Callers Load it,
// operate on it, and Store it back; the file system lock serializes
// concurrent operations.
package inode

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-easyfs/addr"
	"github.com/mit-pdos/go-easyfs/cache"
	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/util"
)

// Kind says what an inode slot holds.
type Kind uint64

const (
	KindFree Kind = 0
	KindFile Kind = 1
	KindDir  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	}
	return fmt.Sprintf("kind(%d)", uint64(k))
}

// DiskInode is the decoded form of an on-disk inode record.
type DiskInode struct {
	Size      uint64
	Kind      Kind
	Nlink     uint64
	Direct    []common.Bnum
	Indirect1 common.Bnum
	Indirect2 common.Bnum
}

func MkDiskInode(kind Kind) *DiskInode {
	return &DiskInode{
		Kind:   kind,
		Nlink:  1,
		Direct: make([]common.Bnum, common.NDIRECT),
	}
}

func (ip *DiskInode) IsDir() bool {
	return ip.Kind == KindDir
}

func (ip *DiskInode) IsFile() bool {
	return ip.Kind == KindFile
}

func (ip *DiskInode) Encode() []byte {
	if uint64(len(ip.Direct)) != common.NDIRECT {
		panic("invalid inode")
	}
	enc := marshal.NewEnc(common.INODESZ)
	enc.PutInt(ip.Size)
	enc.PutInt(uint64(ip.Kind))
	enc.PutInt(ip.Nlink)
	enc.PutInts(ip.Direct)
	enc.PutInt(ip.Indirect1)
	enc.PutInt(ip.Indirect2)
	return enc.Finish()
}

func Decode(b []byte) *DiskInode {
	ip := &DiskInode{}
	dec := marshal.NewDec(b[:common.INODESZ])
	ip.Size = dec.GetInt()
	ip.Kind = Kind(dec.GetInt())
	ip.Nlink = dec.GetInt()
	ip.Direct = dec.GetInts(common.NDIRECT)
	ip.Indirect1 = dec.GetInt()
	ip.Indirect2 = dec.GetInt()
	return ip
}

// Load reads the inode stored at a.
func Load(c *cache.Cache, a addr.Addr) *DiskInode {
	var ip *DiskInode
	c.Read(a.Blkno, a.Off, func(data []byte) {
		ip = Decode(data)
	})
	return ip
}

// Store writes ip to the slot at a.
func (ip *DiskInode) Store(c *cache.Cache, a addr.Addr) {
	b := ip.Encode()
	c.Modify(a.Blkno, a.Off, func(data []byte) {
		copy(data[:common.INODESZ], b)
	})
}

// DataBlocks is the number of data blocks a file of size bytes occupies.
func DataBlocks(size uint64) uint64 {
	return util.RoundUp(size, disk.BlockSize)
}

// TotalBlocks counts data blocks plus the index blocks needed to reach them.
func TotalBlocks(size uint64) uint64 {
	data := DataBlocks(size)
	if data > common.MAXBLOCKS {
		panic(fmt.Errorf("size %d exceeds the block-pointer scheme", size))
	}
	total := data
	if data > common.NDIRECT {
		total += 1
	}
	if data > common.NDIRECT+common.NINDIRECT {
		total += 1 + util.RoundUp(data-common.NDIRECT-common.NINDIRECT, common.NINDIRECT)
	}
	return total
}

// MaxSize is the largest file the block-pointer scheme can address.
func MaxSize() uint64 {
	return common.MAXBLOCKS * disk.BlockSize
}

func (ip *DiskInode) DataBlocks() uint64 {
	return DataBlocks(ip.Size)
}

// BlocksNumNeeded returns how many blocks (data and index) growing to newSize
// requires.
func (ip *DiskInode) BlocksNumNeeded(newSize uint64) uint64 {
	if newSize < ip.Size {
		panic("BlocksNumNeeded: shrinking")
	}
	return TotalBlocks(newSize) - TotalBlocks(ip.Size)
}

func slot(i uint64) uint64 {
	return i * 8
}

// blockId maps the inner'th block of the file to its disk block.
func (ip *DiskInode) blockId(c *cache.Cache, inner uint64) common.Bnum {
	if inner < common.NDIRECT {
		return ip.Direct[inner]
	}
	inner -= common.NDIRECT
	if inner < common.NINDIRECT {
		return bnumGet(c, ip.Indirect1, inner)
	}
	inner -= common.NINDIRECT
	if inner >= common.NINDIRECT2 {
		panic("blockId: beyond doubly-indirect range")
	}
	ind := bnumGet(c, ip.Indirect2, inner/common.NINDIRECT)
	return bnumGet(c, ind, inner%common.NINDIRECT)
}

func bnumGet(c *cache.Cache, blkno common.Bnum, i uint64) common.Bnum {
	b := c.Get(blkno)
	bn := b.BnumGet(slot(i))
	c.Put(b)
	return bn
}

func bnumPut(c *cache.Cache, blkno common.Bnum, i uint64, v common.Bnum) {
	b := c.Get(blkno)
	b.BnumPut(slot(i), v)
	c.Put(b)
}

// IncreaseSize grows the inode to newSize, wiring in blocks, which must hold
// exactly BlocksNumNeeded(newSize) freshly zeroed blocks. Data pointers are
// filled in order; an index block is taken from blocks at the point where
// the first pointer inside it is needed.
func (ip *DiskInode) IncreaseSize(newSize uint64, blocks []common.Bnum, c *cache.Cache) {
	if newSize <= ip.Size {
		panic("IncreaseSize: not growing")
	}
	if uint64(len(blocks)) != ip.BlocksNumNeeded(newSize) {
		panic(fmt.Errorf("IncreaseSize: got %d blocks, need %d",
			len(blocks), ip.BlocksNumNeeded(newSize)))
	}
	next := func() common.Bnum {
		bn := blocks[0]
		blocks = blocks[1:]
		return bn
	}

	cur := ip.DataBlocks()
	ip.Size = newSize
	total := ip.DataBlocks()

	for cur < util.Min(total, common.NDIRECT) {
		ip.Direct[cur] = next()
		cur++
	}
	if total <= common.NDIRECT {
		return
	}

	if cur == common.NDIRECT {
		ip.Indirect1 = next()
	}
	cur -= common.NDIRECT
	total -= common.NDIRECT
	for cur < util.Min(total, common.NINDIRECT) {
		bnumPut(c, ip.Indirect1, cur, next())
		cur++
	}
	if total <= common.NINDIRECT {
		return
	}

	if cur == common.NINDIRECT {
		ip.Indirect2 = next()
	}
	cur -= common.NINDIRECT
	total -= common.NINDIRECT
	for cur < total {
		a, b := cur/common.NINDIRECT, cur%common.NINDIRECT
		if b == 0 {
			bnumPut(c, ip.Indirect2, a, next())
		}
		ind := bnumGet(c, ip.Indirect2, a)
		bnumPut(c, ind, b, next())
		cur++
	}
}

// ClearSize truncates the inode to zero length and returns every block it
// used, data and index blocks alike, for the caller to free.
func (ip *DiskInode) ClearSize(c *cache.Cache) []common.Bnum {
	var freed []common.Bnum
	data := ip.DataBlocks()
	ip.Size = 0

	n := util.Min(data, common.NDIRECT)
	for i := uint64(0); i < n; i++ {
		freed = append(freed, ip.Direct[i])
		ip.Direct[i] = common.NULLBNUM
	}
	if data <= common.NDIRECT {
		return freed
	}

	data -= common.NDIRECT
	freed = append(freed, ip.Indirect1)
	n = util.Min(data, common.NINDIRECT)
	for i := uint64(0); i < n; i++ {
		freed = append(freed, bnumGet(c, ip.Indirect1, i))
	}
	ip.Indirect1 = common.NULLBNUM
	if data <= common.NINDIRECT {
		return freed
	}

	data -= common.NINDIRECT
	freed = append(freed, ip.Indirect2)
	nind := util.RoundUp(data, common.NINDIRECT)
	for a := uint64(0); a < nind; a++ {
		ind := bnumGet(c, ip.Indirect2, a)
		freed = append(freed, ind)
		n = util.Min(data-a*common.NINDIRECT, common.NINDIRECT)
		for b := uint64(0); b < n; b++ {
			freed = append(freed, bnumGet(c, ind, b))
		}
	}
	ip.Indirect2 = common.NULLBNUM
	return freed
}

// ReadAt copies file content starting at off into buf, stopping at the end
// of the file, and returns the number of bytes copied.
func (ip *DiskInode) ReadAt(off uint64, buf []byte, c *cache.Cache) uint64 {
	end := util.Min(off+uint64(len(buf)), ip.Size)
	if off >= end {
		return 0
	}
	n := uint64(0)
	for start := off; start < end; {
		blkEnd := util.Min((start/disk.BlockSize+1)*disk.BlockSize, end)
		sz := blkEnd - start
		bn := ip.blockId(c, start/disk.BlockSize)
		c.Read(bn, start%disk.BlockSize, func(data []byte) {
			copy(buf[n:n+sz], data[:sz])
		})
		n += sz
		start = blkEnd
	}
	return n
}

// WriteAt copies buf into the file starting at off. It never grows the
// file: bytes past Size are not written. Returns the number of bytes written.
func (ip *DiskInode) WriteAt(off uint64, buf []byte, c *cache.Cache) uint64 {
	end := util.Min(off+uint64(len(buf)), ip.Size)
	if off >= end {
		return 0
	}
	n := uint64(0)
	for start := off; start < end; {
		blkEnd := util.Min((start/disk.BlockSize+1)*disk.BlockSize, end)
		sz := blkEnd - start
		bn := ip.blockId(c, start/disk.BlockSize)
		c.Modify(bn, start%disk.BlockSize, func(data []byte) {
			copy(data[:sz], buf[n:n+sz])
		})
		n += sz
		start = blkEnd
	}
	return n
}

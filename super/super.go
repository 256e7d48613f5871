// Package super describes the on-disk layout of a volume.
//
// A volume is laid out as
//
//	[ super block | inode bitmap | inode area | data bitmap | data area ]
//
// with the super block in block 0.
package super

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/util"
)

// SuperBlock records the volume geometry.
type SuperBlock struct {
	Magic             uint64
	TotalBlocks       uint64
	InodeBitmapBlocks uint64
	InodeAreaBlocks   uint64
	DataBitmapBlocks  uint64
	DataAreaBlocks    uint64
	UUID              uuid.UUID
}

// MkSuperBlock computes the geometry of a fresh volume of totalBlocks blocks
// with inodeBitmapBlocks blocks of inode bitmap. The inode area holds one
// slot per inode bitmap bit, and the data bitmap is just large enough to
// cover the data area that remains.
func MkSuperBlock(totalBlocks uint64, inodeBitmapBlocks uint64) (*SuperBlock, error) {
	if inodeBitmapBlocks == 0 {
		return nil, fmt.Errorf("need at least one inode bitmap block")
	}
	ninode := inodeBitmapBlocks * common.NBITBLOCK
	inodeAreaBlocks := util.RoundUp(ninode*common.INODESZ, disk.BlockSize)
	inodeTotal := inodeBitmapBlocks + inodeAreaBlocks
	if totalBlocks < 1+inodeTotal+2 {
		return nil, fmt.Errorf("%d blocks too small for %d inode bitmap blocks",
			totalBlocks, inodeBitmapBlocks)
	}
	dataTotal := totalBlocks - 1 - inodeTotal
	// each data bitmap block covers itself plus NBITBLOCK data blocks
	dataBitmapBlocks := util.RoundUp(dataTotal, common.NBITBLOCK+1)
	return &SuperBlock{
		Magic:             common.MAGIC,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataTotal - dataBitmapBlocks,
		UUID:              uuid.New(),
	}, nil
}

func (sb *SuperBlock) InodeBitmapStart() common.Bnum {
	return 1
}

func (sb *SuperBlock) InodeAreaStart() common.Bnum {
	return sb.InodeBitmapStart() + sb.InodeBitmapBlocks
}

func (sb *SuperBlock) DataBitmapStart() common.Bnum {
	return sb.InodeAreaStart() + sb.InodeAreaBlocks
}

func (sb *SuperBlock) DataAreaStart() common.Bnum {
	return sb.DataBitmapStart() + sb.DataBitmapBlocks
}

// NInode returns the number of inode slots on the volume.
func (sb *SuperBlock) NInode() uint64 {
	return sb.InodeBitmapBlocks * common.NBITBLOCK
}

// Valid checks the magic number and that the regions fit on the volume.
func (sb *SuperBlock) Valid() error {
	if sb.Magic != common.MAGIC {
		return fmt.Errorf("bad magic %#x", sb.Magic)
	}
	if sb.InodeBitmapBlocks == 0 || sb.DataBitmapBlocks == 0 {
		return fmt.Errorf("empty bitmap region")
	}
	if sb.InodeAreaBlocks*disk.BlockSize < sb.NInode()*common.INODESZ {
		return fmt.Errorf("inode area too small")
	}
	if sb.DataAreaBlocks > sb.DataBitmapBlocks*common.NBITBLOCK {
		return fmt.Errorf("data bitmap too small")
	}
	if sb.DataAreaStart()+sb.DataAreaBlocks != sb.TotalBlocks {
		return fmt.Errorf("regions cover %d blocks, volume has %d",
			sb.DataAreaStart()+sb.DataAreaBlocks, sb.TotalBlocks)
	}
	return nil
}

func (sb *SuperBlock) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(sb.Magic)
	enc.PutInt(sb.TotalBlocks)
	enc.PutInt(sb.InodeBitmapBlocks)
	enc.PutInt(sb.InodeAreaBlocks)
	enc.PutInt(sb.DataBitmapBlocks)
	enc.PutInt(sb.DataAreaBlocks)
	b := enc.Finish()
	copy(b[6*8:6*8+16], sb.UUID[:])
	return b
}

func Decode(b []byte) *SuperBlock {
	sb := &SuperBlock{}
	dec := marshal.NewDec(b)
	sb.Magic = dec.GetInt()
	sb.TotalBlocks = dec.GetInt()
	sb.InodeBitmapBlocks = dec.GetInt()
	sb.InodeAreaBlocks = dec.GetInt()
	sb.DataBitmapBlocks = dec.GetInt()
	sb.DataAreaBlocks = dec.GetInt()
	copy(sb.UUID[:], b[6*8:6*8+16])
	return sb
}

func (sb *SuperBlock) String() string {
	return fmt.Sprintf("volume %v: %d blocks, inode bitmap %d@%d, inodes %d@%d, data bitmap %d@%d, data %d@%d",
		sb.UUID, sb.TotalBlocks,
		sb.InodeBitmapBlocks, sb.InodeBitmapStart(),
		sb.InodeAreaBlocks, sb.InodeAreaStart(),
		sb.DataBitmapBlocks, sb.DataBitmapStart(),
		sb.DataAreaBlocks, sb.DataAreaStart())
}

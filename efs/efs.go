// Package efs implements the file system's allocation state: the super
// block, the inode and data bitmaps, and the mapping from inode numbers to
// inode slots.
//
// An EasyFileSystem does no locking. Callers that share one (see package vfs)
// must serialize every call that allocates or frees.
package efs

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mit-pdos/go-easyfs/addr"
	"github.com/mit-pdos/go-easyfs/alloc"
	"github.com/mit-pdos/go-easyfs/cache"
	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/inode"
	"github.com/mit-pdos/go-easyfs/super"
	"github.com/mit-pdos/go-easyfs/util"
)

type EasyFileSystem struct {
	d           disk.Disk
	cache       *cache.Cache
	sb          *super.SuperBlock
	inodeBitmap *alloc.Alloc
	dataBitmap  *alloc.Alloc
}

type Stats struct {
	Inodes     uint64
	FreeInodes uint64
	Blocks     uint64 // data area size
	FreeBlocks uint64
}

func mkEfs(d disk.Disk, sb *super.SuperBlock) *EasyFileSystem {
	return &EasyFileSystem{
		d:           d,
		cache:       cache.MkCache(d, common.BCACHESZ),
		sb:          sb,
		inodeBitmap: alloc.MkAlloc(sb.InodeBitmapStart(), sb.InodeBitmapBlocks, sb.NInode()),
		dataBitmap:  alloc.MkAlloc(sb.DataBitmapStart(), sb.DataBitmapBlocks, sb.DataAreaBlocks),
	}
}

func (fs *EasyFileSystem) logGeometry(msg string) {
	if util.Debug < 1 {
		return
	}
	util.Log.WithFields(logrus.Fields{
		"uuid":   fs.sb.UUID.String(),
		"blocks": fs.sb.TotalBlocks,
		"inodes": fs.sb.NInode(),
		"data":   fs.sb.DataAreaBlocks,
	}).Info(msg)
}

// Format lays out a fresh volume on the first totalBlocks blocks of d and
// creates the root directory as inode ROOTINUM.
func Format(d disk.Disk, totalBlocks uint64, inodeBitmapBlocks uint64) (*EasyFileSystem, error) {
	if totalBlocks > d.Size() {
		return nil, fmt.Errorf("format: %d blocks requested, disk has %d", totalBlocks, d.Size())
	}
	sb, err := super.MkSuperBlock(totalBlocks, inodeBitmapBlocks)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	fs := mkEfs(d, sb)
	for bn := uint64(0); bn < totalBlocks; bn++ {
		fs.cache.Zero(bn)
	}
	b := sb.Encode()
	fs.cache.Modify(0, 0, func(data []byte) {
		copy(data, b)
	})

	inum, ok := fs.AllocInode()
	if !ok || inum != common.ROOTINUM {
		panic("Format: root inode")
	}
	inode.MkDiskInode(inode.KindDir).Store(fs.cache, fs.DiskInodePos(inum))
	fs.cache.SyncAll()
	fs.logGeometry("format")
	return fs, nil
}

// Open mounts the volume on d, checking its super block.
func Open(d disk.Disk) (*EasyFileSystem, error) {
	if d.Size() == 0 {
		return nil, fmt.Errorf("open: empty disk")
	}
	sb := super.Decode(d.Read(0))
	if err := sb.Valid(); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if sb.TotalBlocks > d.Size() {
		return nil, fmt.Errorf("open: volume has %d blocks, disk has %d",
			sb.TotalBlocks, d.Size())
	}
	fs := mkEfs(d, sb)
	fs.logGeometry("open")
	return fs, nil
}

func (fs *EasyFileSystem) Cache() *cache.Cache {
	return fs.cache
}

func (fs *EasyFileSystem) Super() *super.SuperBlock {
	return fs.sb
}

func (fs *EasyFileSystem) RootInum() common.Inum {
	return common.ROOTINUM
}

// DiskInodePos returns the address of inum's slot in the inode area.
func (fs *EasyFileSystem) DiskInodePos(inum common.Inum) addr.Addr {
	if uint64(inum) >= fs.sb.NInode() {
		panic(fmt.Errorf("DiskInodePos: inode %d out of range", inum))
	}
	return addr.MkAddr(fs.sb.InodeAreaStart()+uint64(inum)/common.INODEBLK,
		(uint64(inum)%common.INODEBLK)*common.INODESZ)
}

// InodeNumber is the inverse of DiskInodePos.
func (fs *EasyFileSystem) InodeNumber(a addr.Addr) common.Inum {
	if a.Blkno < fs.sb.InodeAreaStart() || a.Off%common.INODESZ != 0 {
		panic(fmt.Errorf("InodeNumber: %v is not an inode slot", a))
	}
	return common.Inum((a.Blkno-fs.sb.InodeAreaStart())*common.INODEBLK +
		a.Off/common.INODESZ)
}

func (fs *EasyFileSystem) AllocInode() (common.Inum, bool) {
	n, ok := fs.inodeBitmap.AllocNum(fs.cache)
	if !ok {
		util.DPrintf(1, "AllocInode: out of inodes\n")
		return 0, false
	}
	return common.Inum(n), true
}

// DeallocInode zeroes inum's slot and returns it to the inode bitmap.
func (fs *EasyFileSystem) DeallocInode(inum common.Inum) {
	a := fs.DiskInodePos(inum)
	fs.cache.Modify(a.Blkno, a.Off, func(data []byte) {
		for i := uint64(0); i < common.INODESZ; i++ {
			data[i] = 0
		}
	})
	fs.inodeBitmap.FreeNum(fs.cache, uint64(inum))
}

// AllocData allocates a zeroed data block and returns its block number.
func (fs *EasyFileSystem) AllocData() (common.Bnum, bool) {
	n, ok := fs.dataBitmap.AllocNum(fs.cache)
	if !ok {
		util.DPrintf(1, "AllocData: out of blocks\n")
		return 0, false
	}
	bn := fs.sb.DataAreaStart() + n
	fs.cache.Zero(bn)
	return bn, true
}

// DeallocData zeroes bn and returns it to the data bitmap.
func (fs *EasyFileSystem) DeallocData(bn common.Bnum) {
	if bn < fs.sb.DataAreaStart() || bn >= fs.sb.TotalBlocks {
		panic(fmt.Errorf("DeallocData: block %d outside data area", bn))
	}
	fs.cache.Zero(bn)
	fs.dataBitmap.FreeNum(fs.cache, bn-fs.sb.DataAreaStart())
}

// IsDataAllocated reports whether data block bn is in use.
func (fs *EasyFileSystem) IsDataAllocated(bn common.Bnum) bool {
	return fs.dataBitmap.IsUsed(fs.cache, bn-fs.sb.DataAreaStart())
}

func (fs *EasyFileSystem) Stat() Stats {
	return Stats{
		Inodes:     fs.inodeBitmap.Max(),
		FreeInodes: fs.inodeBitmap.NumFree(fs.cache),
		Blocks:     fs.dataBitmap.Max(),
		FreeBlocks: fs.dataBitmap.NumFree(fs.cache),
	}
}

// Sync writes every dirty cached block to disk.
func (fs *EasyFileSystem) Sync() {
	fs.cache.SyncAll()
}

// Close syncs and releases the disk.
func (fs *EasyFileSystem) Close() {
	fs.Sync()
	fs.d.Close()
}

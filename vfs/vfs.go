// Package vfs exposes files and directories as Inode handles.
//
// All handles on a volume share one FileSystem, whose lock every Inode
// operation holds for its whole duration. An Inode is just the location of an
// on-disk inode; it caches nothing, and any number of handles may name the
// same inode.
//
// Not-found, already-exists, invalid names and running out of inodes or
// blocks are reported as nil/false/0 results. Broken structural invariants,
// such as a directory operation on a file, panic.
package vfs

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/go-easyfs/addr"
	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/efs"
	"github.com/mit-pdos/go-easyfs/inode"
)

type FileSystem struct {
	mu  *sync.Mutex // protects efs and all on-disk state
	efs *efs.EasyFileSystem
}

func mkFileSystem(fs *efs.EasyFileSystem) *FileSystem {
	return &FileSystem{mu: new(sync.Mutex), efs: fs}
}

// Format creates a fresh volume of totalBlocks blocks on d.
func Format(d disk.Disk, totalBlocks uint64, inodeBitmapBlocks uint64) (*FileSystem, error) {
	fs, err := efs.Format(d, totalBlocks, inodeBitmapBlocks)
	if err != nil {
		return nil, err
	}
	return mkFileSystem(fs), nil
}

// Mount opens the volume on d.
func Mount(d disk.Disk) (*FileSystem, error) {
	fs, err := efs.Open(d)
	if err != nil {
		return nil, err
	}
	return mkFileSystem(fs), nil
}

func (fs *FileSystem) Root() *Inode {
	return fs.mkInode(fs.efs.RootInum())
}

func (fs *FileSystem) Stat() efs.Stats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.efs.Stat()
}

// Unmount flushes the volume and closes the disk. Handles must not be used
// afterwards.
func (fs *FileSystem) Unmount() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.efs.Close()
}

func (fs *FileSystem) mkInode(inum common.Inum) *Inode {
	return &Inode{fs: fs, addr: fs.efs.DiskInodePos(inum)}
}

// increaseSize grows dip to newSize, allocating exactly the blocks it needs.
// If the volume runs out of blocks nothing is allocated and it returns false.
func (fs *FileSystem) increaseSize(dip *inode.DiskInode, newSize uint64) bool {
	if newSize <= dip.Size {
		return true
	}
	if newSize > inode.MaxSize() {
		return false
	}
	n := dip.BlocksNumNeeded(newSize)
	blocks := make([]common.Bnum, 0, n)
	for i := uint64(0); i < n; i++ {
		bn, ok := fs.efs.AllocData()
		if !ok {
			for _, b := range blocks {
				fs.efs.DeallocData(b)
			}
			return false
		}
		blocks = append(blocks, bn)
	}
	dip.IncreaseSize(newSize, blocks, fs.efs.Cache())
	return true
}

// freeContent truncates dip and releases its blocks.
func (fs *FileSystem) freeContent(dip *inode.DiskInode) {
	size := dip.Size
	freed := dip.ClearSize(fs.efs.Cache())
	if uint64(len(freed)) != inode.TotalBlocks(size) {
		panic(fmt.Errorf("freeContent: freed %d blocks, expected %d",
			len(freed), inode.TotalBlocks(size)))
	}
	for _, bn := range freed {
		fs.efs.DeallocData(bn)
	}
}

type Inode struct {
	fs   *FileSystem
	addr addr.Addr
}

func (ip *Inode) load() *inode.DiskInode {
	return inode.Load(ip.fs.efs.Cache(), ip.addr)
}

func (ip *Inode) store(dip *inode.DiskInode) {
	dip.Store(ip.fs.efs.Cache(), ip.addr)
}

func (ip *Inode) sync() {
	ip.fs.efs.Sync()
}

func loadDir(ip *Inode, op string) *inode.DiskInode {
	dip := ip.load()
	if !dip.IsDir() {
		panic(fmt.Errorf("%s: %v is not a directory", op, dip.Kind))
	}
	return dip
}

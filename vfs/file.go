package vfs

import (
	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/inode"
	"github.com/mit-pdos/go-easyfs/util"
)

// ReadAt reads from ip's content at off, stopping at the end of the file.
func (ip *Inode) ReadAt(off uint64, buf []byte) uint64 {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	return ip.load().ReadAt(off, buf, ip.fs.efs.Cache())
}

// ReadAll returns ip's whole content.
func (ip *Inode) ReadAll() []byte {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := ip.load()
	buf := make([]byte, dip.Size)
	dip.ReadAt(0, buf, ip.fs.efs.Cache())
	return buf
}

// WriteAt writes buf at off, first growing ip if the write ends past its
// size. It returns 0 if the volume has no room for the growth or off+len(buf)
// overflows.
func (ip *Inode) WriteAt(off uint64, buf []byte) uint64 {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	if len(buf) == 0 || util.SumOverflows(off, uint64(len(buf))) {
		return 0
	}
	dip := ip.load()
	if dip.Kind == inode.KindFree {
		// the inode was unlinked under this handle
		return 0
	}
	if !ip.fs.increaseSize(dip, off+uint64(len(buf))) {
		return 0
	}
	n := dip.WriteAt(off, buf, ip.fs.efs.Cache())
	ip.store(dip)
	ip.sync()
	return n
}

// Clear truncates ip to zero length and frees its blocks.
func (ip *Inode) Clear() {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := ip.load()
	ip.fs.freeContent(dip)
	ip.store(dip)
	ip.sync()
}

// Stat is a snapshot of an inode's metadata.
type Stat struct {
	Inum   common.Inum
	Kind   inode.Kind
	Size   uint64
	Nlink  uint64
	Blocks uint64 // data and index blocks in use
}

func (ip *Inode) Stat() Stat {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := ip.load()
	return Stat{
		Inum:   ip.fs.efs.InodeNumber(ip.addr),
		Kind:   dip.Kind,
		Size:   dip.Size,
		Nlink:  dip.Nlink,
		Blocks: inode.TotalBlocks(dip.Size),
	}
}

func (ip *Inode) Size() uint64 {
	return ip.Stat().Size
}

func (ip *Inode) IsDir() bool {
	return ip.Stat().Kind == inode.KindDir
}

func (ip *Inode) IsFile() bool {
	return ip.Stat().Kind == inode.KindFile
}

func (ip *Inode) Nlink() uint64 {
	return ip.Stat().Nlink
}

// Inum returns the inode number ip refers to.
func (ip *Inode) Inum() common.Inum {
	return ip.fs.efs.InodeNumber(ip.addr)
}

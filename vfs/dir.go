package vfs

import (
	"fmt"

	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/dir"
	"github.com/mit-pdos/go-easyfs/inode"
	"github.com/mit-pdos/go-easyfs/util"
)

func (ip *Inode) nentries(dip *inode.DiskInode) uint64 {
	return dip.Size / common.DIRENTSZ
}

func (ip *Inode) readEnt(dip *inode.DiskInode, i uint64) *dir.DirEnt {
	buf := make([]byte, common.DIRENTSZ)
	n := dip.ReadAt(i*common.DIRENTSZ, buf, ip.fs.efs.Cache())
	if n != common.DIRENTSZ {
		panic(fmt.Errorf("readEnt: short entry %d (%d bytes)", i, n))
	}
	return dir.Decode(buf)
}

// lookup returns the inode number and slot of the first entry named name.
func (ip *Inode) lookup(dip *inode.DiskInode, name string) (common.Inum, uint64, bool) {
	for i := uint64(0); i < ip.nentries(dip); i++ {
		de := ip.readEnt(dip, i)
		if !de.IsEmpty() && de.Name == name {
			return de.Inum, i, true
		}
	}
	return 0, 0, false
}

// appendEnt adds de after the last slot, growing the directory.
func (ip *Inode) appendEnt(dip *inode.DiskInode, de *dir.DirEnt) bool {
	n := ip.nentries(dip)
	if !ip.fs.increaseSize(dip, (n+1)*common.DIRENTSZ) {
		return false
	}
	if dip.WriteAt(n*common.DIRENTSZ, de.Encode(), ip.fs.efs.Cache()) != common.DIRENTSZ {
		panic("appendEnt")
	}
	return true
}

func (ip *Inode) isEmptyDir(dip *inode.DiskInode) bool {
	for i := uint64(0); i < ip.nentries(dip); i++ {
		if !ip.readEnt(dip, i).IsEmpty() {
			return false
		}
	}
	return true
}

// Find looks up name in directory ip.
func (ip *Inode) Find(name string) *Inode {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := loadDir(ip, "Find")
	inum, _, ok := ip.lookup(dip, name)
	if !ok {
		return nil
	}
	return ip.fs.mkInode(inum)
}

// Create makes an empty file called name in directory ip. It returns nil if
// name exists, is not a valid name, or the volume is full.
func (ip *Inode) Create(name string) *Inode {
	return ip.create(name, inode.KindFile)
}

// Mkdir is Create for an empty directory.
func (ip *Inode) Mkdir(name string) *Inode {
	return ip.create(name, inode.KindDir)
}

func (ip *Inode) create(name string, kind inode.Kind) *Inode {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := loadDir(ip, "Create")
	if !dir.ValidName(name) {
		return nil
	}
	if _, _, ok := ip.lookup(dip, name); ok {
		return nil
	}
	fs := ip.fs.efs
	inum, ok := fs.AllocInode()
	if !ok {
		return nil
	}
	a := fs.DiskInodePos(inum)
	inode.MkDiskInode(kind).Store(fs.Cache(), a)
	if !ip.appendEnt(dip, dir.MkDirEnt(name, inum)) {
		fs.DeallocInode(inum)
		return nil
	}
	ip.store(dip)
	ip.sync()
	util.DPrintf(5, "create %q: inode %d\n", name, inum)
	return &Inode{fs: ip.fs, addr: a}
}

// Ls lists the names in directory ip in on-disk order. Vacant slots left by
// Unlink are skipped.
func (ip *Inode) Ls() []string {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := loadDir(ip, "Ls")
	names := make([]string, 0, ip.nentries(dip))
	for i := uint64(0); i < ip.nentries(dip); i++ {
		de := ip.readEnt(dip, i)
		if de.IsEmpty() {
			continue
		}
		names = append(names, de.Name)
	}
	return names
}

// Link adds newName to directory ip as another name for the file
// existingName, and returns a handle to that file. It returns nil if newName
// exists or is invalid, existingName does not exist or is a directory, or
// the directory cannot grow.
func (ip *Inode) Link(newName string, existingName string) *Inode {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := loadDir(ip, "Link")
	if !dir.ValidName(newName) {
		return nil
	}
	if _, _, ok := ip.lookup(dip, newName); ok {
		return nil
	}
	inum, _, ok := ip.lookup(dip, existingName)
	if !ok {
		return nil
	}
	fs := ip.fs.efs
	a := fs.DiskInodePos(inum)
	if inode.Load(fs.Cache(), a).IsDir() {
		return nil
	}
	if !ip.appendEnt(dip, dir.MkDirEnt(newName, inum)) {
		return nil
	}
	ip.store(dip)

	tip := inode.Load(fs.Cache(), a)
	tip.Nlink += 1
	tip.Store(fs.Cache(), a)
	ip.sync()
	return &Inode{fs: ip.fs, addr: a}
}

// Unlink removes name from directory ip and drops the link count of the
// inode it names. When the count reaches zero the inode's blocks and slot
// are freed. The entry's slot is left vacant, not compacted. Returns false
// if name doesn't exist or names a non-empty directory.
func (ip *Inode) Unlink(name string) bool {
	ip.fs.mu.Lock()
	defer ip.fs.mu.Unlock()
	dip := loadDir(ip, "Unlink")
	inum, slot, ok := ip.lookup(dip, name)
	if !ok {
		return false
	}
	fs := ip.fs.efs
	a := fs.DiskInodePos(inum)
	tip := inode.Load(fs.Cache(), a)
	if tip.Nlink == 0 {
		panic(fmt.Errorf("Unlink: inode %d has no links", inum))
	}
	if tip.IsDir() && !ip.isEmptyDir(tip) {
		return false
	}

	dip.WriteAt(slot*common.DIRENTSZ, dir.MkEmpty().Encode(), fs.Cache())

	tip.Nlink -= 1
	if tip.Nlink == 0 {
		util.DPrintf(5, "Unlink: free inode %d\n", inum)
		ip.fs.freeContent(tip)
		fs.DeallocInode(inum)
	} else {
		tip.Store(fs.Cache(), a)
	}
	ip.sync()
	return true
}

package common

import (
	"github.com/mit-pdos/go-easyfs/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8
	INODEBLK  uint64 = disk.BlockSize / INODESZ

	INODESZ uint64 = 128 // on-disk size

	// block pointers are 8 bytes, both in the inode and in index blocks
	NDIRECT    uint64 = 11
	NINDIRECT  uint64 = disk.BlockSize / 8
	NINDIRECT2 uint64 = NINDIRECT * NINDIRECT
	MAXBLOCKS  uint64 = NDIRECT + NINDIRECT + NINDIRECT2

	DIRENTSZ uint64 = 32
	NAMELEN  uint64 = DIRENTSZ - 4 - 1 // room for the terminating NUL

	MAGIC uint64 = 0x3b800001

	BCACHESZ uint64 = 16
)

type Inum uint64
type Bnum = uint64

const (
	ROOTINUM Inum = 0
	NULLBNUM Bnum = 0
)

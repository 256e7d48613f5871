package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var _ Disk = fileDisk{}

type fileDisk struct {
	fd        int
	numBlocks uint64
}

// NewFileDisk opens (creating if needed) the image file at path and sizes it
// to numBlocks blocks.
func NewFileDisk(path string, numBlocks uint64) (Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if (stat.Mode&unix.S_IFMT) == unix.S_IFREG && uint64(stat.Size) != numBlocks*BlockSize {
		err = unix.Ftruncate(fd, int64(numBlocks*BlockSize))
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	return fileDisk{fd, numBlocks}, nil
}

// ImageBlocks reports how many whole blocks the image file at path holds.
func ImageBlocks(path string) (uint64, error) {
	var stat unix.Stat_t
	err := unix.Stat(path, &stat)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return uint64(stat.Size) / BlockSize, nil
}

func (d fileDisk) ReadTo(a uint64, buf Block) {
	if uint64(len(buf)) != BlockSize {
		panic("buffer is not block-sized")
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	n, err := unix.Pread(d.fd, buf, int64(a*BlockSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
	if uint64(n) != BlockSize {
		panic(fmt.Errorf("short read at %v (%d bytes)", a, n))
	}
}

func (d fileDisk) Read(a uint64) Block {
	buf := make([]byte, BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d fileDisk) Write(a uint64, v Block) {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block sized (%d bytes)", len(v)))
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	n, err := unix.Pwrite(d.fd, v, int64(a*BlockSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
	if uint64(n) != BlockSize {
		panic(fmt.Errorf("short write at %v (%d bytes)", a, n))
	}
}

func (d fileDisk) Size() uint64 {
	return d.numBlocks
}

func (d fileDisk) Barrier() {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; see https://golang.org/src/internal/poll/fd_fsync_darwin.go
	// for more details. The correct replacement is to issue a fcntl syscall with
	// cmd F_FULLFSYNC.
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("file sync failed: " + err.Error())
	}
}

func (d fileDisk) Close() {
	err := unix.Close(d.fd)
	if err != nil {
		panic(err)
	}
}

var _ Disk = memDisk{}

type memDisk struct {
	l      *sync.RWMutex
	blocks [][BlockSize]byte
}

func NewMemDisk(numBlocks uint64) Disk {
	blocks := make([][BlockSize]byte, numBlocks)
	return memDisk{l: new(sync.RWMutex), blocks: blocks}
}

func (d memDisk) ReadTo(a uint64, buf Block) {
	if uint64(len(buf)) != BlockSize {
		panic("buffer is not block-sized")
	}
	d.l.RLock()
	defer d.l.RUnlock()
	if a >= uint64(len(d.blocks)) {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	copy(buf, d.blocks[a][:])
}

func (d memDisk) Read(a uint64) Block {
	buf := make(Block, BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d memDisk) Write(a uint64, v Block) {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	d.l.Lock()
	defer d.l.Unlock()
	if a >= uint64(len(d.blocks)) {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	copy(d.blocks[a][:], v)
}

func (d memDisk) Size() uint64 {
	// this never changes so we assume it's safe to run lock-free
	return uint64(len(d.blocks))
}

func (d memDisk) Barrier() {}

func (d memDisk) Close() {}

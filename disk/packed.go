package disk

import (
	"fmt"
	"sync"

	gdisk "github.com/tchajed/goose/machine/disk"
)

// sectors of ours per host block
const packFactor = gdisk.BlockSize / BlockSize

var _ Disk = (*packedDisk)(nil)

// packedDisk presents a goose disk, whose blocks are larger, as a disk of
// BlockSize sectors. Writes of a sector read-modify-write the host block.
type packedDisk struct {
	mu *sync.Mutex // serializes read-modify-write cycles
	d  gdisk.Disk
}

func NewPackedDisk(d gdisk.Disk) Disk {
	return &packedDisk{mu: new(sync.Mutex), d: d}
}

// NewPackedFileDisk opens the image at path through goose's file disk, sized
// to hold at least numBlocks sectors.
func NewPackedFileDisk(path string, numBlocks uint64) (Disk, error) {
	hostBlocks := (numBlocks + packFactor - 1) / packFactor
	d, err := gdisk.NewFileDisk(path, hostBlocks)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewPackedDisk(d), nil
}

func (p *packedDisk) hostPos(a uint64) (uint64, uint64) {
	if a >= p.Size() {
		panic(fmt.Errorf("out-of-bounds access at %v", a))
	}
	return a / packFactor, (a % packFactor) * BlockSize
}

func (p *packedDisk) ReadTo(a uint64, buf Block) {
	if uint64(len(buf)) != BlockSize {
		panic("buffer is not block-sized")
	}
	hb, off := p.hostPos(a)
	p.mu.Lock()
	blk := p.d.Read(hb)
	p.mu.Unlock()
	copy(buf, blk[off:off+BlockSize])
}

func (p *packedDisk) Read(a uint64) Block {
	buf := make(Block, BlockSize)
	p.ReadTo(a, buf)
	return buf
}

func (p *packedDisk) Write(a uint64, v Block) {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	hb, off := p.hostPos(a)
	p.mu.Lock()
	defer p.mu.Unlock()
	blk := p.d.Read(hb)
	copy(blk[off:off+BlockSize], v)
	p.d.Write(hb, blk)
}

func (p *packedDisk) Size() uint64 {
	return p.d.Size() * packFactor
}

func (p *packedDisk) Barrier() {
	p.d.Barrier()
}

func (p *packedDisk) Close() {
	p.d.Close()
}

package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdisk "github.com/tchajed/goose/machine/disk"
)

func mkBlock(b byte) Block {
	block := make(Block, BlockSize)
	for i := range block {
		block[i] = b
	}
	return block
}

func checkReadWrite(t *testing.T, d Disk) {
	assert := assert.New(t)
	d.Write(1, mkBlock(1))
	d.Write(2, mkBlock(2))
	assert.Equal(mkBlock(1), d.Read(1))
	assert.Equal(mkBlock(2), d.Read(2))
	assert.Equal(mkBlock(0), d.Read(0), "untouched block should be zero")

	buf := make(Block, BlockSize)
	d.ReadTo(2, buf)
	assert.Equal(mkBlock(2), buf)

	d.Write(1, mkBlock(3))
	assert.Equal(mkBlock(3), d.Read(1), "overwrite")
	d.Barrier()
}

func TestMemDisk(t *testing.T) {
	d := NewMemDisk(16)
	assert.Equal(t, uint64(16), d.Size())
	checkReadWrite(t, d)
}

func TestMemDiskBounds(t *testing.T) {
	d := NewMemDisk(4)
	assert.Panics(t, func() { d.Read(4) })
	assert.Panics(t, func() { d.Write(0, make(Block, 10)) })
}

func TestFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := NewFileDisk(path, 16)
	require.NoError(t, err)
	checkReadWrite(t, d)
	d.Close()

	n, err := ImageBlocks(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)

	d, err = NewFileDisk(path, n)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, mkBlock(3), d.Read(1), "contents survive reopen")
}

func TestFileDiskShortRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := NewFileDisk(path, 2)
	require.NoError(t, err)
	defer d.Close()
	// claims more blocks than the image holds
	long := fileDisk{fd: d.(fileDisk).fd, numBlocks: 4}
	assert.NotPanics(t, func() { long.Read(1) })
	assert.Panics(t, func() { long.Read(3) })
}

func TestPackedDisk(t *testing.T) {
	host := gdisk.NewMemDisk(2)
	d := NewPackedDisk(host)
	assert.Equal(t, 2*packFactor, d.Size())
	checkReadWrite(t, d)

	// sectors 1 and 2 share the first host block with sector 0
	hb := host.Read(0)
	assert.Equal(t, mkBlock(0), Block(hb[0:BlockSize]))
	assert.Equal(t, mkBlock(3), Block(hb[BlockSize:2*BlockSize]))
	assert.Equal(t, mkBlock(2), Block(hb[2*BlockSize:3*BlockSize]))

	d.Write(packFactor, mkBlock(7))
	assert.Equal(t, mkBlock(7), Block(host.Read(1)[0:BlockSize]))
}

func TestPackedFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.img")
	d, err := NewPackedFileDisk(path, packFactor+1)
	require.NoError(t, err)
	assert.Equal(t, 2*packFactor, d.Size(), "rounded up to whole host blocks")
	checkReadWrite(t, d)
	d.Close()

	n, err := ImageBlocks(path)
	require.NoError(t, err)
	assert.Equal(t, 2*packFactor, n)

	d, err = NewPackedFileDisk(path, n)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, mkBlock(3), d.Read(1), "contents survive reopen")
}

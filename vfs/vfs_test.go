package vfs

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/inode"
)

const nblocks uint64 = 4096

func data(sz int) []byte {
	d := make([]byte, sz)
	rand.Read(d)
	return d
}

type VfsSuite struct {
	suite.Suite
	d    disk.Disk
	fs   *FileSystem
	root *Inode
}

func (suite *VfsSuite) SetupTest() {
	suite.d = disk.NewMemDisk(nblocks)
	fs, err := Format(suite.d, nblocks, 1)
	suite.Require().NoError(err)
	suite.fs = fs
	suite.root = fs.Root()
}

func TestVfs(t *testing.T) {
	suite.Run(t, new(VfsSuite))
}

func (suite *VfsSuite) remount() {
	suite.fs.efs.Sync()
	fs, err := Mount(suite.d)
	suite.Require().NoError(err)
	suite.fs = fs
	suite.root = fs.Root()
}

func (suite *VfsSuite) TestScenario() {
	f := suite.root.Create("a")
	suite.Require().NotNil(f)
	suite.Nil(suite.root.Create("a"), "duplicate create")

	x := data(600)
	suite.Equal(uint64(600), f.WriteAt(0, x))
	// 600 bytes fit in the direct pointers; no index block
	suite.Less(uint64(600), common.NDIRECT*disk.BlockSize)
	suite.Equal(inode.DataBlocks(600), f.Stat().Blocks)

	g := suite.root.Find("a")
	suite.Require().NotNil(g)
	buf := make([]byte, 600)
	suite.Equal(uint64(600), g.ReadAt(0, buf))
	suite.Equal(x, buf)
	suite.Equal([]string{"a"}, suite.root.Ls())
}

func (suite *VfsSuite) TestCreateNoMutation() {
	suite.root.Create("a")
	st := suite.fs.Stat()
	size := suite.root.Size()
	suite.Nil(suite.root.Create("a"))
	suite.Equal(st, suite.fs.Stat(), "no allocation")
	suite.Equal(size, suite.root.Size(), "directory unchanged")
}

func (suite *VfsSuite) TestInvalidNames() {
	suite.Nil(suite.root.Create(""))
	suite.Nil(suite.root.Create("a/b"))
	suite.Nil(suite.root.Create("this-name-is-much-too-long-to-fit"))
	suite.Equal([]string{}, suite.root.Ls())
}

func (suite *VfsSuite) TestFindMissing() {
	suite.Nil(suite.root.Find("nope"))
	suite.root.Create("yes")
	suite.Nil(suite.root.Find("nope"))
	suite.NotNil(suite.root.Find("yes"))
}

func (suite *VfsSuite) TestRoundTripSizes() {
	for i, sz := range []int{1, 511, 512, 513, 6000, 40000, 100000} {
		f := suite.root.Create(fmt.Sprintf("f%d", i))
		suite.Require().NotNil(f)
		x := data(sz)
		suite.Equal(uint64(sz), f.WriteAt(0, x))
		suite.Equal(uint64(sz), f.Size())
		suite.Equal(x, f.ReadAll())
		suite.Equal(inode.TotalBlocks(uint64(sz)), f.Stat().Blocks)
	}
}

func (suite *VfsSuite) TestOverwriteAndExtend() {
	f := suite.root.Create("f")
	f.WriteAt(0, []byte("hello world"))
	suite.Equal(uint64(5), f.WriteAt(6, []byte("there")))
	suite.Equal("hello there", string(f.ReadAll()))
	suite.Equal(uint64(3), f.WriteAt(20, []byte("end")))
	suite.Equal(uint64(23), f.Size())
	all := f.ReadAll()
	suite.Equal(make([]byte, 9), all[11:20], "gap reads as zeros")
	suite.Equal(uint64(0), f.WriteAt(0, nil))
}

func (suite *VfsSuite) TestWriteOffsetOverflow() {
	f := suite.root.Create("f")
	f.WriteAt(0, data(600))
	st := suite.fs.Stat()
	suite.Equal(uint64(0), f.WriteAt(^uint64(0)-1, []byte("abc")))
	suite.Equal(uint64(0), f.WriteAt(1<<63, make([]byte, 1)), "past max size")
	suite.Equal(uint64(600), f.Size())
	suite.Equal(st, suite.fs.Stat(), "nothing allocated")
}

func (suite *VfsSuite) TestClear() {
	before := suite.fs.Stat()
	f := suite.root.Create("f")
	dirBlocks := before.FreeBlocks - suite.fs.Stat().FreeBlocks
	sz := uint64(30000)
	f.WriteAt(0, data(int(sz)))
	suite.Equal(before.FreeBlocks-dirBlocks-inode.TotalBlocks(sz), suite.fs.Stat().FreeBlocks)

	f.Clear()
	buf := make([]byte, 10)
	suite.Equal(uint64(0), f.ReadAt(0, buf))
	suite.Equal(uint64(0), f.Size())
	suite.Equal(before.FreeBlocks-dirBlocks, suite.fs.Stat().FreeBlocks,
		"every block returned")

	x := data(100)
	f.WriteAt(0, x)
	suite.Equal(x, f.ReadAll(), "usable after clear")
}

func (suite *VfsSuite) TestHardLink() {
	a := suite.root.Create("a")
	x := data(3000)
	a.WriteAt(0, x)

	b := suite.root.Link("b", "a")
	suite.Require().NotNil(b)
	suite.Equal(a.Inum(), b.Inum())
	suite.Equal(suite.root.Find("a").Inum(), suite.root.Find("b").Inum())
	suite.Equal(uint64(2), a.Nlink())
	suite.Equal(uint64(2), suite.root.Find("b").Nlink())
	suite.Equal([]string{"a", "b"}, suite.root.Ls())

	suite.Nil(suite.root.Link("b", "a"), "new name exists")
	suite.Nil(suite.root.Link("c", "missing"))

	st := suite.fs.Stat()
	suite.True(suite.root.Unlink("a"))
	suite.Nil(suite.root.Find("a"))
	bb := suite.root.Find("b")
	suite.Require().NotNil(bb)
	suite.Equal(uint64(1), bb.Nlink())
	suite.Equal(x, bb.ReadAll(), "content intact")
	suite.Equal(st, suite.fs.Stat(), "nothing freed while linked")

	suite.True(suite.root.Unlink("b"))
	suite.Nil(suite.root.Find("b"))
	after := suite.fs.Stat()
	suite.Equal(st.FreeBlocks+inode.TotalBlocks(3000), after.FreeBlocks)
	suite.Equal(st.FreeInodes+1, after.FreeInodes)
	suite.Equal([]string{}, suite.root.Ls())
}

func (suite *VfsSuite) TestUnlinkReclaimsBlocks() {
	a := suite.root.Create("a")
	a.WriteAt(0, data(5000))
	var used []common.Bnum
	for bn := uint64(0); bn < nblocks; bn++ {
		if bn >= suite.fs.efs.Super().DataAreaStart() && suite.fs.efs.IsDataAllocated(bn) {
			used = append(used, bn)
		}
	}
	suite.True(suite.root.Unlink("a"))

	b := suite.root.Create("b")
	b.WriteAt(0, data(5000))
	var reused []common.Bnum
	for bn := uint64(0); bn < nblocks; bn++ {
		if bn >= suite.fs.efs.Super().DataAreaStart() && suite.fs.efs.IsDataAllocated(bn) {
			reused = append(reused, bn)
		}
	}
	suite.Equal(used, reused, "freed blocks are allocated again")
	suite.Equal(a.Inum(), b.Inum(), "freed inode slot is reused")
}

func (suite *VfsSuite) TestUnlinkMissing() {
	suite.False(suite.root.Unlink("a"))
	suite.root.Create("a")
	suite.True(suite.root.Unlink("a"))
	suite.False(suite.root.Unlink("a"))
}

func (suite *VfsSuite) TestVacantSlots() {
	for _, n := range []string{"a", "b", "c"} {
		suite.root.Create(n)
	}
	size := suite.root.Size()
	suite.True(suite.root.Unlink("b"))
	suite.Equal([]string{"a", "c"}, suite.root.Ls(), "vacant slot skipped")
	suite.Equal(size, suite.root.Size(), "slots are not compacted")

	suite.NotNil(suite.root.Create("b"))
	suite.Equal([]string{"a", "c", "b"}, suite.root.Ls(), "create appends")
	suite.Equal(size+common.DIRENTSZ, suite.root.Size())
}

func (suite *VfsSuite) TestDirectoryOpsOnFile() {
	f := suite.root.Create("f")
	suite.Panics(func() { f.Find("x") })
	suite.Panics(func() { f.Create("x") })
	suite.Panics(func() { f.Ls() })
	suite.Panics(func() { f.Unlink("x") })
	suite.Panics(func() { f.Link("x", "y") })
	// the lock was released by the panicking calls
	suite.NotNil(suite.root.Find("f"))
}

func (suite *VfsSuite) TestMkdir() {
	d := suite.root.Mkdir("d")
	suite.Require().NotNil(d)
	suite.True(d.IsDir())
	suite.False(d.IsFile())
	f := d.Create("inner")
	suite.Require().NotNil(f)
	f.WriteAt(0, []byte("x"))
	suite.Equal([]string{"inner"}, suite.root.Find("d").Ls())

	suite.Nil(suite.root.Link("d2", "d"), "no links to directories")
	suite.False(suite.root.Unlink("d"), "directory not empty")
	suite.True(d.Unlink("inner"))
	suite.True(suite.root.Unlink("d"), "vacant slots only")
	suite.Equal([]string{}, suite.root.Ls())
}

func (suite *VfsSuite) TestStat() {
	st := suite.root.Stat()
	suite.Equal(common.ROOTINUM, st.Inum)
	suite.Equal(inode.KindDir, st.Kind)
	suite.Equal(uint64(1), st.Nlink)

	f := suite.root.Create("f")
	f.WriteAt(0, data(10))
	st = f.Stat()
	suite.Equal(inode.KindFile, st.Kind)
	suite.Equal(uint64(10), st.Size)
	suite.Equal(uint64(1), st.Blocks)
	suite.True(f.IsFile())
}

func (suite *VfsSuite) TestPersist() {
	x := data(20000)
	suite.root.Create("a").WriteAt(0, x)
	suite.root.Create("b")
	suite.root.Link("c", "a")
	suite.root.Unlink("b")
	st := suite.fs.Stat()

	suite.remount()
	suite.Equal([]string{"a", "c"}, suite.root.Ls())
	suite.Equal(x, suite.root.Find("c").ReadAll())
	suite.Equal(uint64(2), suite.root.Find("a").Nlink())
	suite.Equal(st, suite.fs.Stat())
}

func (suite *VfsSuite) TestManyEntries() {
	var names []string
	for i := 0; i < 100; i++ {
		n := fmt.Sprintf("file%03d", i)
		names = append(names, n)
		suite.Require().NotNil(suite.root.Create(n))
	}
	suite.Equal(names, suite.root.Ls())
	suite.Equal(uint64(100)*common.DIRENTSZ, suite.root.Size())
	suite.NotNil(suite.root.Find("file099"))
}

func (suite *VfsSuite) TestConcurrentCreate() {
	var wg sync.WaitGroup
	n := 8
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("f%d", i)
			f := suite.root.Create(name)
			if f == nil {
				return
			}
			f.WriteAt(0, []byte(name))
		}(i)
	}
	wg.Wait()
	names := suite.root.Ls()
	sort.Strings(names)
	suite.Equal(n, len(names))
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%d", i)
		suite.Equal(name, string(suite.root.Find(name).ReadAll()))
	}
}

func (suite *VfsSuite) TestConcurrentSameName() {
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if suite.root.Create("same") != nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	suite.Equal(1, created, "create is atomic")
	suite.Equal([]string{"same"}, suite.root.Ls())
}

func TestOutOfSpace(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(1040)
	fs, err := Format(d, 1040, 1)
	require.NoError(t, err)
	root := fs.Root()
	f := root.Create("f")
	require.NotNil(t, f)
	st := fs.Stat()

	big := data(int(st.FreeBlocks+1) * int(disk.BlockSize))
	assert.Equal(uint64(0), f.WriteAt(0, big))
	assert.Equal(st, fs.Stat(), "failed growth allocates nothing")
	assert.Equal(uint64(0), f.Size())

	x := data(1000)
	assert.Equal(uint64(1000), f.WriteAt(0, x))
	assert.Equal(x, f.ReadAll())
}

func TestMountErrors(t *testing.T) {
	_, err := Mount(disk.NewMemDisk(4096))
	assert.Error(t, err)
}

func TestFileImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fs.img")
	d, err := disk.NewFileDisk(path, nblocks)
	require.NoError(t, err)
	fs, err := Format(d, nblocks, 1)
	require.NoError(t, err)
	fs.Root().Create("hello").WriteAt(0, []byte("world"))
	fs.Unmount()

	d, err = disk.NewFileDisk(path, nblocks)
	require.NoError(t, err)
	fs, err = Mount(d)
	require.NoError(t, err)
	defer fs.Unmount()
	assert.Equal(t, "world", string(fs.Root().Find("hello").ReadAll()))
}

package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
)

// A Buf is the in-memory copy of one disk block.
//
// Its contents are only touched through Read and Modify, which hold the
// buffer's lock for the duration of the callback. The callback must not call
// back into the cache.
type Buf struct {
	mu    *sync.Mutex
	Blkno common.Bnum
	data  disk.Block
	dirty bool // has this block been written to since it was last flushed?

	// protected by the cache lock
	pins uint64
	lru  *list.Element
}

func mkBuf(blkno common.Bnum, data disk.Block) *Buf {
	return &Buf{
		mu:    new(sync.Mutex),
		Blkno: blkno,
		data:  data,
		dirty: false,
	}
}

func checkOff(off uint64) {
	if off >= disk.BlockSize {
		panic(fmt.Errorf("offset %d outside block", off))
	}
}

// Read calls f with the block contents starting at off.
func (buf *Buf) Read(off uint64, f func(data []byte)) {
	checkOff(off)
	buf.mu.Lock()
	f(buf.data[off:])
	buf.mu.Unlock()
}

// Modify calls f with the block contents starting at off and marks the block
// dirty.
func (buf *Buf) Modify(off uint64, f func(data []byte)) {
	checkOff(off)
	buf.mu.Lock()
	f(buf.data[off:])
	buf.dirty = true
	buf.mu.Unlock()
}

// Update calls f with the block contents starting at off and marks the block
// dirty only if f reports that it changed something.
func (buf *Buf) Update(off uint64, f func(data []byte) bool) {
	checkOff(off)
	buf.mu.Lock()
	if f(buf.data[off:]) {
		buf.dirty = true
	}
	buf.mu.Unlock()
}

func (buf *Buf) IsDirty() bool {
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return buf.dirty
}

// flush writes the block back if it is dirty. Caller holds buf.mu.
func (buf *Buf) flush(d disk.Disk) {
	if buf.dirty {
		d.Write(buf.Blkno, buf.data)
		buf.dirty = false
	}
}

// BnumGet reads the block pointer at byte offset off.
func (buf *Buf) BnumGet(off uint64) common.Bnum {
	var bn common.Bnum
	buf.Read(off, func(data []byte) {
		dec := marshal.NewDec(data[:8])
		bn = common.Bnum(dec.GetInt())
	})
	return bn
}

// BnumPut stores block pointer v at byte offset off.
func (buf *Buf) BnumPut(off uint64, v common.Bnum) {
	enc := marshal.NewEnc(8)
	enc.PutInt(uint64(v))
	b := enc.Finish()
	buf.Modify(off, func(data []byte) {
		copy(data[:8], b)
	})
}

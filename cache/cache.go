// Package cache keeps a bounded set of disk blocks in memory.
//
// Callers pin a block with Get, operate on it with Buf.Read and Buf.Modify,
// and unpin it with Put. Only unpinned blocks are evicted; a dirty block is
// written back before its slot is reused. SyncAll writes back every dirty
// block.
package cache

import (
	"container/list"
	"sync"

	"github.com/mit-pdos/go-easyfs/common"
	"github.com/mit-pdos/go-easyfs/disk"
	"github.com/mit-pdos/go-easyfs/util"
)

type Cache struct {
	mu   *sync.Mutex
	d    disk.Disk
	bufs map[common.Bnum]*Buf
	lru  *list.List // front is least recently used
	sz   uint64
}

func MkCache(d disk.Disk, sz uint64) *Cache {
	if sz == 0 {
		panic("MkCache")
	}
	return &Cache{
		mu:   new(sync.Mutex),
		d:    d,
		bufs: make(map[common.Bnum]*Buf, sz),
		lru:  list.New(),
		sz:   sz,
	}
}

func (c *Cache) Disk() disk.Disk {
	return c.d
}

// evict drops the least recently used unpinned buffer. Caller holds c.mu.
func (c *Cache) evict() {
	for e := c.lru.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buf)
		if b.pins > 0 {
			continue
		}
		b.mu.Lock()
		b.flush(c.d)
		b.mu.Unlock()
		util.DPrintf(5, "evict: %d\n", b.Blkno)
		c.lru.Remove(e)
		delete(c.bufs, b.Blkno)
		return
	}
	panic("evict: all buffers pinned")
}

// Get returns the pinned buffer for blkno, loading it from disk if it isn't
// cached.
func (c *Cache) Get(blkno common.Bnum) *Buf {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bufs[blkno]
	if b != nil {
		c.lru.MoveToBack(b.lru)
		b.pins += 1
		return b
	}
	if uint64(len(c.bufs)) >= c.sz {
		c.evict()
	}
	b = mkBuf(blkno, c.d.Read(blkno))
	b.pins = 1
	b.lru = c.lru.PushBack(b)
	c.bufs[blkno] = b
	util.DPrintf(10, "Get: load %d\n", blkno)
	return b
}

// Put unpins a buffer returned by Get.
func (c *Cache) Put(b *Buf) {
	c.mu.Lock()
	if b.pins == 0 {
		panic("Put: buffer not pinned")
	}
	b.pins -= 1
	c.mu.Unlock()
}

// Read calls f on block blkno starting at off.
func (c *Cache) Read(blkno common.Bnum, off uint64, f func(data []byte)) {
	b := c.Get(blkno)
	b.Read(off, f)
	c.Put(b)
}

// Modify calls f on block blkno starting at off and marks the block dirty.
func (c *Cache) Modify(blkno common.Bnum, off uint64, f func(data []byte)) {
	b := c.Get(blkno)
	b.Modify(off, f)
	c.Put(b)
}

// Update is Modify for callbacks that may leave the block unchanged.
func (c *Cache) Update(blkno common.Bnum, off uint64, f func(data []byte) bool) {
	b := c.Get(blkno)
	b.Update(off, f)
	c.Put(b)
}

// Zero overwrites block blkno with zeros.
func (c *Cache) Zero(blkno common.Bnum) {
	c.Modify(blkno, 0, func(data []byte) {
		for i := range data {
			data[i] = 0
		}
	})
}

// SyncAll writes every dirty buffer back in cache order and waits for the
// disk to persist them.
func (c *Cache) SyncAll() {
	c.mu.Lock()
	n := 0
	for e := c.lru.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buf)
		b.mu.Lock()
		if b.dirty {
			n += 1
		}
		b.flush(c.d)
		b.mu.Unlock()
	}
	c.mu.Unlock()
	util.DPrintf(5, "SyncAll: %d dirty\n", n)
	c.d.Barrier()
}

// Len reports how many blocks are resident.
func (c *Cache) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.bufs))
}

func (c *Cache) NDirty() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := uint64(0)
	for _, b := range c.bufs {
		b.mu.Lock()
		if b.dirty {
			n += 1
		}
		b.mu.Unlock()
	}
	return n
}

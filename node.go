// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org>

package thmap

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

const (
	rootBits = 6
	rootSize = 1 << rootBits
	rootMask = rootSize - 1

	levelBits = 4
	levelSize = 1 << levelBits
	levelMask = levelSize - 1
)

const (
	stateLocked  uint32 = 1 << 31
	stateDeleted uint32 = 1 << 30
	countMask    uint32 = stateDeleted - 1
)

// nodeHdr precedes the slot array of every interior node. The state
// word packs the writer lock, the deleted mark and the populated-slot
// count; parent is the base-relative offset of the owning node, zero
// at the root. Readers never inspect the state word.
type nodeHdr struct {
	state  uint32
	_      uint32
	parent uintptr
}

const nodeHdrSize = unsafe.Sizeof(nodeHdr{})

func nodeSize(fanout int) uintptr {
	return nodeHdrSize + uintptr(fanout)*wordSize
}

func (m *Map) node(off uintptr) *nodeHdr {
	return (*nodeHdr)(m.ptr(off))
}

// slotp returns the address of slot i of the node at off.
func (m *Map) slotp(off uintptr, i uint) *uintptr {
	return (*uintptr)(unsafe.Add(m.ptr(off), nodeHdrSize+uintptr(i)*wordSize))
}

func (m *Map) loadSlot(off uintptr, i uint) uintptr {
	return atomic.LoadUintptr(m.slotp(off, i))
}

// lock spins until the lock bit is acquired, backing off exponentially
// between failed attempts. The winning CAS orders everything the
// previous owner stored before everything the new owner does.
func (n *nodeHdr) lock() {
	backoff := 1
	for {
		s := atomic.LoadUint32(&n.state)
		if s&stateLocked == 0 && atomic.CompareAndSwapUint32(&n.state, s, s|stateLocked) {
			return
		}
		for i := 0; i < backoff; i++ {
			runtime.Gosched()
		}
		if backoff < 128 {
			backoff <<= 1
		}
	}
}

// unlock releases the node. Everything stored while holding the lock
// is visible before the cleared state word is.
func (n *nodeHdr) unlock() {
	s := atomic.LoadUint32(&n.state)
	if s&stateLocked == 0 {
		panic("thmap: unlock of unlocked node")
	}
	atomic.StoreUint32(&n.state, s&^stateLocked)
}

func (n *nodeHdr) deleted() bool {
	return atomic.LoadUint32(&n.state)&stateDeleted != 0
}

func (n *nodeHdr) count() uint32 {
	return atomic.LoadUint32(&n.state) & countMask
}

// nodeCreate allocates a level node with every slot empty, wired to
// its parent and born locked: the caller owns it until it is published
// and released.
func (m *Map) nodeCreate(parent uintptr) uintptr {
	off := m.ops.Alloc(nodeSize(levelSize))
	if off == 0 {
		return 0
	}
	if off&alignMask != 0 {
		panic("thmap: allocator returned a misaligned node")
	}
	n := m.node(off)
	n.state = stateLocked
	n.parent = parent
	for i := uint(0); i < levelSize; i++ {
		*m.slotp(off, i) = 0
	}
	return off
}

// nodeInsert publishes val into an empty slot of a locked node. The
// whole state word is bumped in one store: with the lock bit set and
// the deleted bit clear, plain addition yields the incremented count.
func (m *Map) nodeInsert(off uintptr, i uint, val uintptr) {
	n := m.node(off)
	s := atomic.LoadUint32(&n.state)
	if s&stateLocked == 0 || s&stateDeleted != 0 {
		panic("thmap: insert into unowned node")
	}
	if m.loadSlot(off, i) != 0 {
		panic("thmap: insert into occupied slot")
	}
	atomic.StoreUintptr(m.slotp(off, i), val)
	atomic.StoreUint32(&n.state, s+1)
}

func (m *Map) nodeRemove(off uintptr, i uint) {
	n := m.node(off)
	s := atomic.LoadUint32(&n.state)
	if s&stateLocked == 0 || s&stateDeleted != 0 {
		panic("thmap: remove from unowned node")
	}
	if m.loadSlot(off, i) == 0 {
		panic("thmap: remove from empty slot")
	}
	atomic.StoreUintptr(m.slotp(off, i), 0)
	atomic.StoreUint32(&n.state, s-1)
}

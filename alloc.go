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
	"sync"
	"unsafe"
)

// wordSize is the size of a slot word. Slot contents, key references
// and values are all machine words so that a map region can be
// attached at different virtual addresses by cooperating processes.
const wordSize = unsafe.Sizeof(uintptr(0))

const (
	// leafBit tags a slot word as holding a leaf; a clear bit with a
	// non-zero word is an interior node.
	leafBit uintptr = 1 << 0

	// alignMask covers the low bits that must be free on the base
	// address and on every allocation for the tag discipline to work.
	alignMask uintptr = 3
)

func isLeaf(w uintptr) bool { return w&leafBit != 0 }

func leafOff(w uintptr) uintptr { return w &^ leafBit }

// Allocator supplies the memory behind every node, leaf and key copy.
// Alloc returns a base-relative word aligned to at least four bytes;
// zero signals that no memory is available. Free receives the same
// length that was passed to Alloc; implementations backed by plain
// heap allocation may ignore it, arena or shared-memory allocators
// will not.
type Allocator interface {
	Alloc(size uintptr) uintptr
	Free(off uintptr, size uintptr)
}

// heapAllocator is the default Allocator: process-heap allocations,
// pinned in a table so the runtime keeps them alive while the map
// refers to them only by address. Usable only with a zero base, where
// offsets and addresses coincide.
type heapAllocator struct {
	mtx  sync.Mutex
	pins map[uintptr][]byte
}

func newHeapAllocator() *heapAllocator {
	return &heapAllocator{pins: make(map[uintptr][]byte)}
}

func (a *heapAllocator) Alloc(size uintptr) uintptr {
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if addr&alignMask != 0 {
		panic("thmap: misaligned heap allocation")
	}
	a.mtx.Lock()
	a.pins[addr] = buf
	a.mtx.Unlock()
	return addr
}

func (a *heapAllocator) Free(off uintptr, size uintptr) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if _, ok := a.pins[off]; !ok {
		panic("thmap: free of unknown address")
	}
	delete(a.pins, off)
}

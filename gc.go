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

// gcEntry records a region retired from the trie. Entries form a
// lock-free stack; nothing goes back to the allocator until the owner
// calls GC under quiescence. The entries themselves live on the Go
// heap, not in the injected allocator: the reclamation queue is
// private to the owning process even when the map region is shared.
type gcEntry struct {
	next *gcEntry
	off  uintptr
	size uintptr
}

func (m *Map) stage(off, size uintptr) {
	e := &gcEntry{off: off, size: size}
	for {
		head := m.gcHead.Load()
		e.next = head
		if m.gcHead.CompareAndSwap(head, e) {
			return
		}
	}
}

// GC drains the staged regions, handing each back to the allocator.
// The caller must have established that no reader can still observe
// any of them.
func (m *Map) GC() {
	e := m.gcHead.Swap(nil)
	for e != nil {
		m.ops.Free(e.off, e.size)
		e = e.next
	}
}

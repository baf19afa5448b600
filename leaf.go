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
	"bytes"
	"unsafe"
)

// leafRec is the layout of a leaf: a key reference (the offset of an
// owned copy, or the caller's address kept verbatim under NoCopy), the
// key length in bytes and an opaque value word.
type leafRec struct {
	key uintptr
	len uintptr
	val uintptr
}

const leafSize = unsafe.Sizeof(leafRec{})

func (m *Map) leaf(off uintptr) *leafRec {
	return (*leafRec)(m.ptr(off))
}

// leafKey materializes the key bytes of a leaf.
func (m *Map) leafKey(l *leafRec) []byte {
	if l.len == 0 {
		return nil
	}
	var p unsafe.Pointer
	if m.flags&NoCopy != 0 {
		p = unsafe.Pointer(l.key)
	} else {
		p = m.ptr(l.key)
	}
	return unsafe.Slice((*byte)(p), l.len)
}

func (m *Map) leafMatches(l *leafRec, key []byte) bool {
	return l.len == uintptr(len(key)) && bytes.Equal(m.leafKey(l), key)
}

// leafCreate builds a leaf for key/val, copying the key into allocator
// memory unless the map was created with NoCopy. Returns zero when the
// allocator runs dry, with nothing left allocated.
func (m *Map) leafCreate(key []byte, val uintptr) uintptr {
	off := m.ops.Alloc(leafSize)
	if off == 0 {
		return 0
	}
	if off&alignMask != 0 {
		panic("thmap: allocator returned a misaligned leaf")
	}
	l := m.leaf(off)
	switch {
	case m.flags&NoCopy != 0:
		l.key = 0
		if len(key) != 0 {
			l.key = uintptr(unsafe.Pointer(&key[0]))
		}
	case len(key) != 0:
		kcopy := m.ops.Alloc(uintptr(len(key)))
		if kcopy == 0 {
			m.ops.Free(off, leafSize)
			return 0
		}
		copy(unsafe.Slice((*byte)(m.ptr(kcopy)), len(key)), key)
		l.key = kcopy
	default:
		l.key = 0
	}
	l.len = uintptr(len(key))
	l.val = val
	return off
}

// leafFree releases a leaf synchronously and hands back its value.
// A Put that finds the key already present, or that fails to allocate
// an interior node during expansion, comes through here; deletion
// stages the memory for deferred reclamation instead.
func (m *Map) leafFree(off uintptr) uintptr {
	l := m.leaf(off)
	val := l.val
	if m.flags&NoCopy == 0 && l.len != 0 {
		m.ops.Free(l.key, l.len)
	}
	m.ops.Free(off, leafSize)
	return val
}

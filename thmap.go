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

// Package thmap implements a concurrent trie-hash map: an associative
// container keyed by byte strings, with lock-free lookups and
// fine-grained per-node locking for writers.
//
// Every internal reference is a machine-word offset from a
// caller-supplied base address, so a map can live in a memory region
// shared between processes. All memory comes from an injected
// Allocator; deletions stage retired regions on a reclamation queue
// that the caller drains with GC once it has established quiescence.
package thmap

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// Flags accepted by New.
const (
	// NoCopy stores the caller's key reference verbatim instead of
	// copying the bytes into allocator memory. The key must stay
	// alive and unchanged for as long as the entry exists.
	NoCopy uint = 1 << iota

	// DeferredRoot skips root allocation: a process attaching to an
	// existing shared region installs the root with SetRoot before
	// the first operation.
	DeferredRoot
)

var (
	// ErrNoSpace is returned by Put when the allocator runs dry.
	ErrNoSpace = errors.New("thmap: allocation failed")

	// ErrBadBase is returned by New for a base address with the low
	// tag bits set, or a non-zero base with the default allocator.
	ErrBadBase = errors.New("thmap: bad base address")
)

// Map is a trie-hash map handle. The handle itself is ordinary Go
// memory; the trie hangs off root inside the allocator's region.
type Map struct {
	base   uintptr
	root   uintptr
	flags  uint
	ops    Allocator
	hash   HashFunc
	gcHead atomic.Pointer[gcEntry]
}

func (m *Map) ptr(off uintptr) unsafe.Pointer {
	return unsafe.Pointer(m.base + off)
}

// New creates a map over the region at base. ops supplies every node,
// leaf and key-copy allocation; nil selects a process-heap allocator,
// which requires a zero base. Keys are hashed with seeded 32-bit
// MurmurHash3.
func New(base uintptr, ops Allocator, flags uint) (*Map, error) {
	return NewWithHash(base, ops, flags, Murmur3)
}

// NewWithHash is New with an explicit hash function.
func NewWithHash(base uintptr, ops Allocator, flags uint, hash HashFunc) (*Map, error) {
	if base&alignMask != 0 {
		return nil, ErrBadBase
	}
	if ops == nil {
		if base != 0 {
			return nil, ErrBadBase
		}
		ops = newHeapAllocator()
	}
	m := &Map{base: base, flags: flags, ops: ops, hash: hash}
	if flags&DeferredRoot == 0 {
		root := ops.Alloc(nodeSize(rootSize))
		if root == 0 {
			return nil, ErrNoSpace
		}
		if root&alignMask != 0 {
			panic("thmap: allocator returned a misaligned root")
		}
		n := m.node(root)
		n.state = 0
		n.parent = 0
		for i := uint(0); i < rootSize; i++ {
			*m.slotp(root, i) = 0
		}
		m.root = root
	}
	return m, nil
}

// Root returns the base-relative offset of the root node, for handing
// to a cooperating process attaching to the same region.
func (m *Map) Root() uintptr { return m.root }

// SetRoot installs the root of an existing map region. Only valid on a
// handle created with DeferredRoot, before any operation.
func (m *Map) SetRoot(off uintptr) {
	if m.flags&DeferredRoot == 0 || m.root != 0 {
		panic("thmap: root already set")
	}
	if off == 0 || off&alignMask != 0 {
		panic("thmap: bad root offset")
	}
	m.root = off
}

// Destroy drains the reclamation queue and releases the root node (on
// handles that allocated one). The tree is not walked: any entries
// still present keep their memory, which is the caller's to account
// for.
func (m *Map) Destroy() {
	m.GC()
	if m.flags&DeferredRoot == 0 && m.root != 0 {
		m.ops.Free(m.root, nodeSize(rootSize))
	}
	m.root = 0
}

// findEdge descends from the root to the node whose slot corresponds
// to key. Lock-free: each hop is an atomic slot load whose acquire
// ordering pairs with the publishing store in Put, so an interior node
// observed here is fully constructed, colliding leaf included.
// Returns the edge node, the slot index and the slot word last
// observed there.
func (m *Map) findEdge(q *query, key []byte) (parent uintptr, slot uint, w uintptr) {
	if m.root == 0 {
		panic("thmap: root not set")
	}
	q.level = 0
	parent = m.root
	slot = q.slot(m.hash, key)
	w = m.loadSlot(parent, slot)
	for w != 0 && !isLeaf(w) {
		q.level++
		parent = w
		slot = q.slot(m.hash, key)
		w = m.loadSlot(parent, slot)
	}
	return parent, slot, w
}

// findEdgeLocked acquires the edge node for key with its lock held.
// The lock-free descent races with other writers, so after locking the
// node may turn out to be deleted, or the slot expanded into a deeper
// level; either way the descent restarts from the root.
func (m *Map) findEdgeLocked(q *query, key []byte) (parent uintptr, slot uint) {
	for {
		parent, slot, _ = m.findEdge(q, key)
		n := m.node(parent)
		n.lock()
		w := m.loadSlot(parent, slot)
		if !n.deleted() && (w == 0 || isLeaf(w)) {
			return parent, slot
		}
		n.unlock()
	}
}

// Get returns the value stored for key.
func (m *Map) Get(key []byte) (uintptr, bool) {
	q := newQuery()
	_, _, w := m.findEdge(&q, key)
	if w == 0 {
		return 0, false
	}
	l := m.leaf(leafOff(w))
	if !m.leafMatches(l, key) {
		return 0, false
	}
	return l.val, true
}

// Put inserts key with val. On a fresh insert the passed val is
// returned; if the key is already present the existing value is
// returned instead and the map is unchanged. ErrNoSpace reports an
// exhausted allocator; the new leaf and its key copy are released, but
// interior levels that a collision already added before the failing
// allocation stay in the trie, holding the existing entry.
func (m *Map) Put(key []byte, val uintptr) (uintptr, error) {
	newLeaf := m.leafCreate(key, val)
	if newLeaf == 0 {
		return 0, ErrNoSpace
	}
	q := newQuery()
	parent, slot := m.findEdgeLocked(&q, key)
	w := m.loadSlot(parent, slot)

	if w == 0 {
		m.nodeInsert(parent, slot, newLeaf|leafBit)
		m.node(parent).unlock()
		return val, nil
	}

	other := m.leaf(leafOff(w))
	if m.leafMatches(other, key) {
		ret := other.val
		m.leafFree(newLeaf)
		m.node(parent).unlock()
		return ret, nil
	}

	// Collision: grow levels until the two keys part ways. The node
	// being split stays locked across each transition and every new
	// level is born locked, so a partially built spine is never
	// reachable unlocked.
	oq := newQuery()
	otherKey := m.leafKey(other)
	for {
		child := m.nodeCreate(parent)
		if child == 0 {
			m.node(parent).unlock()
			m.leafFree(newLeaf)
			return 0, ErrNoSpace
		}
		q.level++
		oq.level = q.level
		oslot := oq.slot(m.hash, otherKey)
		m.nodeInsert(child, oslot, w)

		// Publish the subtree. The atomic store releases the
		// child's contents to readers; the slot previously held
		// the colliding leaf, so the count stays the same.
		atomic.StoreUintptr(m.slotp(parent, slot), child)
		m.node(parent).unlock()

		parent = child
		slot = q.slot(m.hash, key)
		if slot == oslot {
			// Still colliding one level down.
			continue
		}
		m.nodeInsert(parent, slot, newLeaf|leafBit)
		m.node(parent).unlock()
		return val, nil
	}
}

// Del removes key, returning the value it held. The removed leaf, its
// key copy and any interior node emptied along the way are staged for
// reclamation rather than freed: a reader may still be traversing
// them until the caller declares quiescence and runs GC.
func (m *Map) Del(key []byte) (uintptr, bool) {
	q := newQuery()
	parent, slot := m.findEdgeLocked(&q, key)
	w := m.loadSlot(parent, slot)
	if w == 0 {
		m.node(parent).unlock()
		return 0, false
	}
	loff := leafOff(w)
	l := m.leaf(loff)
	if !m.leafMatches(l, key) {
		m.node(parent).unlock()
		return 0, false
	}
	val := l.val
	m.nodeRemove(parent, slot)

	// Collapse empty levels bottom-up. The emptied node is marked
	// deleted and released only while the node above is held, so a
	// writer that raced onto it observes the mark on its re-check
	// and restarts from the root.
	for parent != m.root && m.node(parent).count() == 0 {
		n := m.node(parent)
		gparent := n.parent
		q.level--
		pslot := q.slot(m.hash, key)

		gp := m.node(gparent)
		gp.lock()
		if gp.deleted() {
			panic("thmap: deleted node above a populated slot")
		}
		if m.loadSlot(gparent, pslot) != parent {
			panic("thmap: collapse slot mismatch")
		}
		s := atomic.LoadUint32(&n.state)
		atomic.StoreUint32(&n.state, (s|stateDeleted)&^stateLocked)
		m.nodeRemove(gparent, pslot)
		m.stage(parent, nodeSize(levelSize))
		parent = gparent
	}
	m.node(parent).unlock()

	if m.flags&NoCopy == 0 && l.len != 0 {
		m.stage(l.key, l.len)
	}
	m.stage(loff, leafSize)
	return val, true
}

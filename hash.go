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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
)

// HashFunc computes a 32-bit hash word for a key under the given seed.
// Distinct seeds must yield independent distributions of the same key:
// the trie consumes one word per 32 bits of slot indices and derives
// further words by bumping the seed. Cooperating processes attached to
// the same region must agree on the function.
type HashFunc func(key []byte, seed uint32) uint32

// Murmur3 is the default hash, seeded 32-bit MurmurHash3.
func Murmur3(key []byte, seed uint32) uint32 {
	return murmur3.SeedSum32(seed, key)
}

// XXHash is an alternative hash folding a seeded 64-bit xxHash down to
// the 32 bits the cursor consumes. The seed is fed through the digest
// ahead of the key bytes.
func XXHash(key []byte, seed uint32) uint32 {
	var sb [4]byte
	binary.LittleEndian.PutUint32(sb[:], seed)
	d := xxhash.New()
	_, _ = d.Write(sb[:])
	_, _ = d.Write(key)
	h := d.Sum64()
	return uint32(h ^ (h >> 32))
}

const hashvalBits = 32

// query walks one key down the trie. level is the current depth;
// hashval caches the 32-bit hash word named by hashidx, so consecutive
// levels drawing from the same word hash only once. level only grows
// during descent and expansion and is reset to zero on retry; the
// collapse path winds it back one step at a time.
type query struct {
	level   uint
	hashidx int
	hashval uint32
}

func newQuery() query {
	return query{hashidx: -1}
}

func roundup(n, mult uint) uint {
	return (n + mult - 1) &^ (mult - 1)
}

// slot returns the slot index of key at the query's current level. The
// root consumes the low six bits of hash word zero; each deeper level
// consumes the next four bits, advancing to the next word whenever the
// current one is exhausted.
func (q *query) slot(h HashFunc, key []byte) uint {
	nbits := rootBits + q.level*levelBits
	i := int(nbits / hashvalBits)
	if i != q.hashidx {
		q.hashval = h(key, uint32(i))
		q.hashidx = i
	}
	if q.level == 0 {
		return uint(q.hashval & rootMask)
	}
	shift := roundup(nbits, levelBits) % hashvalBits
	return uint((q.hashval >> shift) & levelMask)
}

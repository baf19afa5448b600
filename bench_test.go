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
	"math/rand"
	"testing"
)

func benchKeys(n int) [][]byte {
	r := rand.New(rand.NewSource(1))
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, 16)
		binary.LittleEndian.PutUint64(keys[i], r.Uint64())
		binary.LittleEndian.PutUint64(keys[i][8:], r.Uint64())
	}
	return keys
}

func BenchmarkPut(b *testing.B) {
	keys := benchKeys(b.N)
	m, err := New(0, nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Put(keys[i], uintptr(i)+1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGet(b *testing.B) {
	const n = 1 << 16
	keys := benchKeys(n)
	m, err := New(0, nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Destroy()
	for i, key := range keys {
		if _, err := m.Put(key, uintptr(i)+1); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := m.Get(keys[i%n]); !ok {
			b.Fatal("missing key")
		}
	}
}

func BenchmarkGetParallel(b *testing.B) {
	const n = 1 << 16
	keys := benchKeys(n)
	m, err := New(0, nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Destroy()
	for i, key := range keys {
		if _, err := m.Put(key, uintptr(i)+1); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, ok := m.Get(keys[i%n]); !ok {
				b.Fatal("missing key")
			}
			i++
		}
	})
}

func BenchmarkPutDelChurn(b *testing.B) {
	const n = 1 << 12
	keys := benchKeys(n)
	m, err := New(0, nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer m.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%n]
		if _, err := m.Put(key, uintptr(i)+1); err != nil {
			b.Fatal(err)
		}
		m.Del(key)
		if i%n == n-1 {
			b.StopTimer()
			m.GC()
			b.StartTimer()
		}
	}
}

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
	"testing"

	"pgregory.net/rapid"
)

// Model-based check of the map laws against a plain Go map: duplicate
// puts keep the existing value, deletes return what was stored, gets
// agree with the model, and the structural invariants hold throughout.
func TestMapMatchesModel(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		m, err := New(0, nil, 0)
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		defer m.Destroy()
		model := map[string]uintptr{}

		keyGen := rapid.StringMatching(`k[a-d]{0,4}`)
		steps := rapid.IntRange(1, 120).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			key := keyGen.Draw(rt, "key")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				val := uintptr(rapid.Uint32().Draw(rt, "val")) + 1
				ret, err := m.Put([]byte(key), val)
				if err != nil {
					rt.Fatalf("put %q: %v", key, err)
				}
				if prev, ok := model[key]; ok {
					if ret != prev {
						rt.Fatalf("duplicate put %q returned %#x, want %#x", key, ret, prev)
					}
				} else {
					if ret != val {
						rt.Fatalf("fresh put %q returned %#x, want %#x", key, ret, val)
					}
					model[key] = val
				}
			case 1:
				got, ok := m.Del([]byte(key))
				want, present := model[key]
				if ok != present || (ok && got != want) {
					rt.Fatalf("del %q = %#x, %v; model %#x, %v", key, got, ok, want, present)
				}
				delete(model, key)
			case 2:
				got, ok := m.Get([]byte(key))
				want, present := model[key]
				if ok != present || (ok && got != want) {
					rt.Fatalf("get %q = %#x, %v; model %#x, %v", key, got, ok, want, present)
				}
			}
		}

		checkInvariants(rt, m)
		for key, want := range model {
			if got, ok := m.Get([]byte(key)); !ok || got != want {
				rt.Fatalf("final sweep: get %q = %#x, %v; want %#x", key, got, ok, want)
			}
		}
	})
}

package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	thmap "github.com/rmind/go-thmap"
)

func main() {
	benchmarkInsertInExisting()
}

func benchmarkInsertInExisting() {
	f, _ := os.Create("cpu.prof")
	g, _ := os.Create("mem.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()
	defer func() { _ = pprof.WriteHeapProfile(g) }()
	// Number of existing entries in the map
	n := 1000000
	// Entries to be inserted afterwards
	toInsert := 10000
	total := n + toInsert

	keys := make([][]byte, n)
	toInsertKeys := make([][]byte, toInsert)

	for i := 0; i < 4; i++ {
		// Generate set of keys once
		for i := 0; i < total; i++ {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				panic(err)
			}
			if i < n {
				keys[i] = key
			} else {
				toInsertKeys[i-n] = key
			}
		}
		fmt.Printf("Generated key set %d\n", i)

		// Create map from same keys multiple times
		for i := 0; i < 5; i++ {
			m, err := thmap.New(0, nil, 0)
			if err != nil {
				panic(err)
			}
			for j, k := range keys {
				if _, err := m.Put(k, uintptr(j)+1); err != nil {
					panic(err)
				}
			}

			// Now insert the 10k entries and measure time
			start := time.Now()
			for j, k := range toInsertKeys {
				if _, err := m.Put(k, uintptr(j)+1); err != nil {
					panic(err)
				}
			}
			elapsed := time.Since(start)
			fmt.Printf("Took %v to insert %d entries\n", elapsed, toInsert)
			m.Destroy()
		}
	}
}

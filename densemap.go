// Package roadgraph builds a compact, in-memory routable road graph from a
// streamed OpenStreetMap PBF dump: vertices at intersections and dead-ends,
// directed edges packed contiguously between them.
package roadgraph

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// Absent is the sentinel value returned by DenseMap.Get for a key that was
// never inserted. No call to Put may use this value.
const Absent = ^uint32(0)

const maxLoadFactor = 0.75

const emptyKey = int64(-1)

// DenseMap maps sparse 64-bit OSM node ids onto dense, gap-free uint32
// indices. It is an open-addressed hash table with linear probing; OSM node
// ids are always non-negative, so an empty slot is marked with emptyKey
// rather than carrying a separate occupied bitmap.
type DenseMap struct {
	keys  []int64
	vals  []uint32
	mask  uint64
	count int
}

// NewDenseMap constructs a table sized to hold capacityHint entries at a
// load factor at or below maxLoadFactor.
func NewDenseMap(capacityHint int) *DenseMap {
	if capacityHint < 1 {
		capacityHint = 1
	}
	size := nextPow2(int(float64(capacityHint)/maxLoadFactor) + 1)
	if size < 16 {
		size = 16
	}
	m := &DenseMap{
		keys: make([]int64, size),
		vals: make([]uint32, size),
		mask: uint64(size - 1),
	}
	for i := range m.keys {
		m.keys[i] = emptyKey
	}
	return m
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// mix avalanches the key so the quasi-sequential distribution of OSM ids
// spreads evenly across the table rather than clustering in a few buckets.
func mix(k int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return xxhash.Sum64(buf[:])
}

// Put inserts or overwrites the value stored for k. v must not equal Absent.
func (m *DenseMap) Put(k int64, v uint32) {
	if float64(m.count+1) > maxLoadFactor*float64(len(m.keys)) {
		m.grow()
	}
	i := mix(k) & m.mask
	for {
		cur := m.keys[i]
		if cur == emptyKey {
			m.keys[i] = k
			m.vals[i] = v
			m.count++
			return
		}
		if cur == k {
			m.vals[i] = v
			return
		}
		i = (i + 1) & m.mask
	}
}

// Get returns the value stored for k, or Absent if k was never inserted.
func (m *DenseMap) Get(k int64) uint32 {
	i := mix(k) & m.mask
	for {
		cur := m.keys[i]
		if cur == emptyKey {
			return Absent
		}
		if cur == k {
			return m.vals[i]
		}
		i = (i + 1) & m.mask
	}
}

// Contains reports whether k has been inserted.
func (m *DenseMap) Contains(k int64) bool {
	return m.Get(k) != Absent
}

// Len returns the number of distinct keys currently stored.
func (m *DenseMap) Len() int {
	return m.count
}

func (m *DenseMap) grow() {
	oldKeys, oldVals := m.keys, m.vals
	size := len(oldKeys) * 2
	m.keys = make([]int64, size)
	m.vals = make([]uint32, size)
	m.mask = uint64(size - 1)
	for i := range m.keys {
		m.keys[i] = emptyKey
	}
	m.count = 0
	for i, k := range oldKeys {
		if k != emptyKey {
			m.Put(k, oldVals[i])
		}
	}
}

package lsm

import (
	"bytes"
	"container/heap"
)

// mergeHeapItem is one source in the k-way merge, ranked by current key
// and, on ties, by source index — a lower index means a more recently
// created source (current memtable first, then the immutable queue from
// newest to oldest, then L0 from newest to oldest), so it wins ties.
type mergeHeapItem struct {
	iter  StorageIterator
	index int
}

type mergeHeap []*mergeHeapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	cmp := bytes.Compare(h[i].iter.Key(), h[j].iter.Key())
	if cmp != 0 {
		return cmp < 0
	}
	return h[i].index < h[j].index
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*mergeHeapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator performs a k-way merge over a set of sources ordered from
// newest to oldest, yielding each distinct key once — the value from the
// newest source that has it, per spec's newest-wins rule.
type MergeIterator struct {
	h       mergeHeap
	current *mergeHeapItem
	err     error
}

// NewMergeIterator builds a merge iterator over sources, in newest-first
// order (sources[0] is consulted first on key ties).
func NewMergeIterator(sources []StorageIterator) *MergeIterator {
	m := &MergeIterator{}
	for i, s := range sources {
		if s.Valid() {
			m.h = append(m.h, &mergeHeapItem{iter: s, index: i})
		}
	}
	heap.Init(&m.h)
	m.pull()
	return m
}

// pull pops the winning source for the current key (lowest key, then
// lowest index) and advances every other source that shares that key,
// since their values are shadowed by the winner. An error advancing any
// losing source halts the whole merge, per spec's "errors from any input
// terminate the iterator".
func (m *MergeIterator) pull() {
	if m.err != nil || len(m.h) == 0 {
		m.current = nil
		return
	}
	winner := heap.Pop(&m.h).(*mergeHeapItem)
	for len(m.h) > 0 && bytes.Equal(m.h[0].iter.Key(), winner.iter.Key()) {
		loser := heap.Pop(&m.h).(*mergeHeapItem)
		if err := loser.iter.Next(); err != nil {
			m.err = err
			m.current = nil
			return
		}
		if loser.iter.Valid() {
			heap.Push(&m.h, loser)
		}
	}
	m.current = winner
}

func (m *MergeIterator) Valid() bool   { return m.err == nil && m.current != nil }
func (m *MergeIterator) Key() []byte   { return m.current.iter.Key() }
func (m *MergeIterator) Value() []byte { return m.current.iter.Value() }

// Err returns the error, if any, that halted the merge.
func (m *MergeIterator) Err() error { return m.err }

func (m *MergeIterator) Next() error {
	if m.err != nil || m.current == nil {
		return m.err
	}
	if err := m.current.iter.Next(); err != nil {
		m.err = err
		m.current = nil
		return err
	}
	if m.current.iter.Valid() {
		heap.Push(&m.h, m.current)
	}
	m.pull()
	return m.err
}

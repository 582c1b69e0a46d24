package sstable

import "sort"

// Iterator walks a table's entries in ascending key order, decoding one
// block at a time.
type Iterator struct {
	table   *Table
	blockNo int
	entries []blockEntry
	pos     int
	err     error
}

// SeekToFirst positions the iterator at the table's first entry.
func (it *Iterator) SeekToFirst() {
	it.blockNo = 0
	it.loadBlock()
}

// Seek positions the iterator at the first entry with key >= target.
func (it *Iterator) Seek(target []byte) {
	idx := sort.Search(len(it.table.index), func(i int) bool {
		return string(it.table.index[i].lastKey) >= string(target)
	})
	if idx >= len(it.table.index) {
		it.blockNo = len(it.table.index)
		it.entries = nil
		return
	}
	it.blockNo = idx
	it.loadBlock()
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return string(it.entries[i].key) >= string(target)
	})
	it.advancePastBlockEnd()
}

func (it *Iterator) loadBlock() {
	if it.blockNo >= len(it.table.index) {
		it.entries = nil
		return
	}
	entries, err := it.table.readBlock(it.blockNo)
	if err != nil {
		it.err = err
		it.entries = nil
		return
	}
	it.entries = entries
	it.pos = 0
}

func (it *Iterator) advancePastBlockEnd() {
	for it.pos >= len(it.entries) && it.blockNo < len(it.table.index)-1 {
		it.blockNo++
		it.loadBlock()
	}
}

// Valid reports whether the iterator is positioned at a usable entry.
func (it *Iterator) Valid() bool {
	return it.err == nil && it.pos < len(it.entries)
}

// Err returns any error encountered while reading blocks.
func (it *Iterator) Err() error { return it.err }

// Key returns the current entry's key.
func (it *Iterator) Key() []byte { return it.entries[it.pos].key }

// Value returns the current entry's value (nil for a tombstone).
func (it *Iterator) Value() []byte { return it.entries[it.pos].value }

// Next advances to the next entry, crossing block boundaries as needed.
func (it *Iterator) Next() {
	if it.pos < len(it.entries) {
		it.pos++
	}
	it.advancePastBlockEnd()
}

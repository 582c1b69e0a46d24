package lsm

import (
	"sort"

	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// ConcatIterator iterates a set of non-overlapping, key-sorted SSTables
// (a single level past L0) as if they were one logical table: binary
// search picks the starting table, then Next walks forward across table
// boundaries once the current one is exhausted.
type ConcatIterator struct {
	tables  []*sstable.Table
	current int
	inner   *sstable.Iterator
}

// NewConcatIterator builds a ConcatIterator over tables (already sorted
// by key range), starting at the first entry >= lower (or the first
// entry overall if lower is nil).
func NewConcatIterator(tables []*sstable.Table, lower []byte) *ConcatIterator {
	c := &ConcatIterator{tables: tables}
	start := 0
	if lower != nil {
		start = sort.Search(len(tables), func(i int) bool {
			return string(tables[i].LastKey()) >= string(lower)
		})
	}
	c.current = start
	c.seekInto(lower)
	return c
}

func (c *ConcatIterator) seekInto(lower []byte) {
	for c.current < len(c.tables) {
		it := c.tables[c.current].Iterator()
		if lower == nil {
			it.SeekToFirst()
		} else {
			it.Seek(lower)
		}
		if it.Valid() {
			c.inner = it
			return
		}
		c.current++
	}
	c.inner = nil
}

func (c *ConcatIterator) Valid() bool {
	return c.inner != nil && c.inner.Valid()
}

func (c *ConcatIterator) Key() []byte   { return c.inner.Key() }
func (c *ConcatIterator) Value() []byte { return c.inner.Value() }

func (c *ConcatIterator) Next() error {
	if c.inner == nil {
		return nil
	}
	c.inner.Next()
	if c.inner.Err() != nil {
		return c.inner.Err()
	}
	if c.inner.Valid() {
		return nil
	}
	c.current++
	c.seekInto(nil)
	return nil
}

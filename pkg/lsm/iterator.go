package lsm

import (
	"github.com/lsmkv/lsmkv/pkg/memtable"
	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// StorageIterator is the common interface every layer of the read path
// (a memtable, an SSTable, and every composed iterator below) satisfies.
// A Value of nil with Valid true marks a tombstone; callers above
// LSMIterator never see those, since LSMIterator filters them out.
type StorageIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() error
}

// memtableIterator adapts memtable.Iterator to StorageIterator.
type memtableIterator struct {
	it *memtable.Iterator
}

func (m *memtableIterator) Valid() bool    { return m.it.Valid() }
func (m *memtableIterator) Key() []byte    { return m.it.Key() }
func (m *memtableIterator) Value() []byte  { return m.it.Value() }
func (m *memtableIterator) Next() error    { m.it.Next(); return nil }

func newMemtableIterator(m *memtable.MemTable, lower, upper []byte) StorageIterator {
	return &memtableIterator{it: m.Iterator(lower, upper)}
}

// sstableIterator adapts sstable.Iterator to StorageIterator, surfacing
// block read errors through Next/Valid instead of a sentinel error value.
type sstableIterator struct {
	it *sstable.Iterator
}

func (s *sstableIterator) Valid() bool   { return s.it.Valid() }
func (s *sstableIterator) Key() []byte   { return s.it.Key() }
func (s *sstableIterator) Value() []byte { return s.it.Value() }
func (s *sstableIterator) Next() error {
	s.it.Next()
	return s.it.Err()
}

func newSSTableIterator(t *sstable.Table, lower []byte) StorageIterator {
	it := t.Iterator()
	if lower == nil {
		it.SeekToFirst()
	} else {
		it.Seek(lower)
	}
	return &sstableIterator{it: it}
}

// FusedIterator wraps a StorageIterator so that once it has reported
// invalid, or returned an error, it reports invalid forever after,
// regardless of what the wrapped iterator would otherwise do. This
// guards the rest of the engine against the undefined behavior of
// calling Next on an iterator that has already errored or exhausted.
type FusedIterator struct {
	inner StorageIterator
	err   error
	done  bool
}

// NewFusedIterator wraps inner.
func NewFusedIterator(inner StorageIterator) *FusedIterator {
	return &FusedIterator{inner: inner}
}

func (f *FusedIterator) Valid() bool {
	if f.done || f.err != nil {
		return false
	}
	return f.inner.Valid()
}

func (f *FusedIterator) Key() []byte   { return f.inner.Key() }
func (f *FusedIterator) Value() []byte { return f.inner.Value() }

func (f *FusedIterator) Next() error {
	if f.done || f.err != nil {
		return f.err
	}
	if !f.inner.Valid() {
		f.done = true
		return nil
	}
	if err := f.inner.Next(); err != nil {
		f.err = err
		f.done = true
		return err
	}
	if !f.inner.Valid() {
		f.done = true
	}
	return nil
}

// Err returns the error, if any, that halted the iterator.
func (f *FusedIterator) Err() error { return f.err }

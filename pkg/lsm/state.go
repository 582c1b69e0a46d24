package lsm

import (
	"github.com/lsmkv/lsmkv/pkg/memtable"
	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// immutableMemtable pairs a frozen memtable with the WAL that backs it,
// so a flush can remove the right WAL file once the memtable is durably
// on disk.
type immutableMemtable struct {
	id   uint64
	mem  *memtable.MemTable
	wal  walCloser
}

// walCloser is the subset of *wal.WAL the core needs; kept as an
// interface so state.go doesn't need to import the wal package's
// concrete type directly into every call site.
type walCloser interface {
	Close() error
	Remove() error
}

// storageState is an immutable snapshot of the engine's table layout.
// Every state-mutating transition (freeze, flush, compaction) builds a
// new storageState and the engine swaps the published pointer under its
// write lock, so concurrent readers either see the whole old state or
// the whole new one, never a partial mix.
type storageState struct {
	memTable   *memtable.MemTable
	memTableID uint64
	immutables []*immutableMemtable // newest first

	l0     []uint64 // table ids, newest first
	levels [][]uint64 // levels[i] = level i+1, sorted by key range, non-overlapping; under tiered compaction, tiers newest first

	tables map[uint64]*sstable.Table
}

func newEmptyState(memTableID uint64) *storageState {
	return &storageState{
		memTable:   memtable.New(),
		memTableID: memTableID,
		tables:     make(map[uint64]*sstable.Table),
	}
}

// clone makes a shallow copy suitable as the base for the next
// transition: slices and the map are copied so the original state (still
// possibly visible to a reader that grabbed the old pointer) is never
// mutated in place.
func (s *storageState) clone() *storageState {
	next := &storageState{
		memTable:   s.memTable,
		memTableID: s.memTableID,
		immutables: append([]*immutableMemtable(nil), s.immutables...),
		l0:         append([]uint64(nil), s.l0...),
		levels:     make([][]uint64, len(s.levels)),
		tables:     make(map[uint64]*sstable.Table, len(s.tables)),
	}
	for i, lvl := range s.levels {
		next.levels[i] = append([]uint64(nil), lvl...)
	}
	for id, t := range s.tables {
		next.tables[id] = t
	}
	return next
}

// memtableAndL0Sources returns a StorageIterator per source (current
// memtable, each immutable memtable, each L0 table) ordered newest
// first, ready to be combined with NewMergeIterator. Levels below L0 are
// handled separately by the caller via ConcatIterator since tables
// within a level don't overlap.
func (s *storageState) memtableAndL0Sources(lower []byte) []StorageIterator {
	sources := make([]StorageIterator, 0, 1+len(s.immutables)+len(s.l0))
	sources = append(sources, newMemtableIterator(s.memTable, lower, nil))
	for _, imm := range s.immutables {
		sources = append(sources, newMemtableIterator(imm.mem, lower, nil))
	}
	for _, id := range s.l0 {
		sources = append(sources, newSSTableIterator(s.tables[id], lower))
	}
	return sources
}

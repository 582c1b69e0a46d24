package lsm

import (
	"fmt"
	"path/filepath"

	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// l0MergeSource merges a set of possibly-overlapping L0 tables, newest
// first, into a single ordered sequence.
func l0MergeSource(snap *storageState, ids []uint64) StorageIterator {
	sources := make([]StorageIterator, 0, len(ids))
	for _, id := range ids {
		sources = append(sources, newSSTableIterator(snap.tables[id], nil))
	}
	return NewMergeIterator(sources)
}

// levelConcatSource treats ids as a single non-overlapping, key-sorted
// run and returns a ConcatIterator over them, seeked to the first entry
// >= lower (or the first entry overall if lower is nil).
func levelConcatSource(snap *storageState, ids []uint64, lower []byte) StorageIterator {
	tables := make([]*sstable.Table, 0, len(ids))
	for _, id := range ids {
		tables = append(tables, snap.tables[id])
	}
	return NewConcatIterator(tables, lower)
}

// compactionSource builds the merge pipeline feeding the executor for
// task, per the task's shape. Compaction always reads every live entry
// in the participating tables, so every source here starts unbounded.
func compactionSource(snap *storageState, task *CompactionTask) (StorageIterator, error) {
	switch task.Kind {
	case TaskL0ToLevel:
		a := l0MergeSource(snap, task.LowerIDs)
		b := levelConcatSource(snap, task.UpperIDs, nil)
		return NewTwoMergeIterator(a, b)
	case TaskLevelToLevel:
		a := levelConcatSource(snap, task.LowerIDs, nil)
		b := levelConcatSource(snap, task.UpperIDs, nil)
		return NewTwoMergeIterator(a, b)
	case TaskTiered:
		sources := make([]StorageIterator, 0, len(task.TierIndices))
		for _, idx := range task.TierIndices {
			sources = append(sources, levelConcatSource(snap, snap.levels[idx], nil))
		}
		return NewMergeIterator(sources), nil
	default:
		return nil, fmt.Errorf("lsm: unknown compaction task kind %d", task.Kind)
	}
}

func (e *Engine) tablePath(id uint64) string {
	return filepath.Join(e.dir, tableFileName(id))
}

// executeCompaction streams every live (and, at the bottom level,
// un-dropped) entry reachable from task into one or more new sorted
// tables, rolling a new output table whenever the current one's
// estimated size exceeds the target. Because every source iterator in
// this package de-duplicates keys as it merges, no key is ever split
// across a roll boundary.
func (e *Engine) executeCompaction(snap *storageState, task *CompactionTask) (outputTables []*sstable.Table, outputIDs []uint64, bytesRead, bytesWritten int64, tombstonesDropped int, err error) {
	for _, id := range task.LowerIDs {
		if t := snap.tables[id]; t != nil {
			bytesRead += t.Size()
		}
	}
	for _, id := range task.UpperIDs {
		if t := snap.tables[id]; t != nil {
			bytesRead += t.Size()
		}
	}
	for _, idx := range task.TierIndices {
		for _, id := range snap.levels[idx] {
			if t := snap.tables[id]; t != nil {
				bytesRead += t.Size()
			}
		}
	}

	src, err := compactionSource(snap, task)
	if err != nil {
		return nil, nil, 0, 0, 0, err
	}
	fused := NewFusedIterator(src)

	builder := sstable.NewBuilder(e.opts.BlockSizeBytes, 1024)
	var built []*sstable.Table

	roll := func() error {
		if builder.IsEmpty() {
			return nil
		}
		id := e.nextID.Add(1) - 1
		table, err := builder.Build(id, e.tablePath(id), e.blockCache)
		if err != nil {
			return fmt.Errorf("lsm: build compaction output table: %w", err)
		}
		built = append(built, table)
		outputIDs = append(outputIDs, id)
		bytesWritten += table.Size()
		builder = sstable.NewBuilder(e.opts.BlockSizeBytes, 1024)
		return nil
	}

	for fused.Valid() {
		key, value := fused.Key(), fused.Value()
		drop := (task.IsBottomLevel || task.BottomTierIncluded) && (value == nil || e.shouldDrop(key))
		if drop {
			tombstonesDropped++
		} else {
			builder.Add(key, value)
		}
		if builder.EstimatedSize() >= int(e.opts.TargetSSTSizeBytes) {
			if err := roll(); err != nil {
				cleanupTables(built)
				return nil, nil, bytesRead, bytesWritten, tombstonesDropped, err
			}
		}
		if err := fused.Next(); err != nil {
			cleanupTables(built)
			return nil, nil, bytesRead, bytesWritten, tombstonesDropped, fmt.Errorf("lsm: compaction source: %w", err)
		}
	}
	if err := fused.Err(); err != nil {
		cleanupTables(built)
		return nil, nil, bytesRead, bytesWritten, tombstonesDropped, err
	}
	if err := roll(); err != nil {
		cleanupTables(built)
		return nil, nil, bytesRead, bytesWritten, tombstonesDropped, err
	}

	return built, outputIDs, bytesRead, bytesWritten, tombstonesDropped, nil
}

// cleanupTables removes output tables already written to disk when a
// later step in the same compaction fails, so a partial compaction never
// leaves orphaned files referenced by nothing — though even without this
// cleanup such files are harmless, since recovery only trusts ids
// reachable from the manifest.
func cleanupTables(tables []*sstable.Table) {
	for _, t := range tables {
		t.Remove()
	}
}

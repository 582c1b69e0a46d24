package lsm

import (
	"fmt"
	"time"

	"github.com/lsmkv/lsmkv/pkg/logging"
	"github.com/lsmkv/lsmkv/pkg/memtable"
	"github.com/lsmkv/lsmkv/pkg/sstable"
	"github.com/lsmkv/lsmkv/pkg/wal"
)

// ForceFreezeMemtable promotes the active memtable to the head of the
// immutable queue and installs a fresh, empty memtable in its place.
// Exported for tests and callers outside the package; it takes
// serializationMu itself. Callers that already hold it, such as Put's
// double-checked size trigger, call forceFreezeMemtableLocked instead.
func (e *Engine) ForceFreezeMemtable() error {
	e.serializationMu.Lock()
	defer e.serializationMu.Unlock()
	return e.forceFreezeMemtableLocked()
}

// forceFreezeMemtableLocked requires serializationMu held. It creates the
// new memtable's WAL (if enabled) outside stateMu, then swaps state under
// the write lock only long enough to publish the new snapshot.
func (e *Engine) forceFreezeMemtableLocked() error {
	newID := e.nextID.Add(1) - 1

	var newWAL *wal.WAL
	if e.opts.EnableWAL {
		var err error
		newWAL, err = wal.Create(e.walPath(newID))
		if err != nil {
			return fmt.Errorf("lsm: create wal for memtable %d: %w", newID, err)
		}
	}

	e.stateMu.Lock()
	cur := e.state
	oldWAL := e.activeWAL

	next := cur.clone()
	next.immutables = append([]*immutableMemtable{{
		id:  cur.memTableID,
		mem: cur.memTable,
		wal: oldWAL,
	}}, next.immutables...)
	next.memTable = memtable.New()
	next.memTableID = newID

	e.state = next
	e.activeWAL = newWAL
	e.stateMu.Unlock()

	e.metrics.SetImmutableQueueLen(len(next.immutables))
	e.logger.Info("memtable frozen",
		logging.Uint64("memtable_id", cur.memTableID),
		logging.Uint64("next_memtable_id", newID),
		logging.Int("immutable_queue_len", len(next.immutables)),
	)
	return nil
}

// ForceFlushNextImmMemtable flushes the oldest (tail) immutable memtable
// into a new on-disk table, records the event in the manifest, and
// installs the result atomically: the new table appears and the
// immutable memtable it came from disappears in the same state swap.
func (e *Engine) ForceFlushNextImmMemtable() error {
	e.serializationMu.Lock()
	defer e.serializationMu.Unlock()

	snap := e.snapshot()
	if len(snap.immutables) == 0 {
		return ErrEmptyImmutableQueue
	}
	oldest := snap.immutables[len(snap.immutables)-1]
	id := oldest.id

	start := time.Now()
	builder := sstable.NewBuilder(e.opts.BlockSizeBytes, 1024)
	for it := oldest.mem.Iterator(nil, nil); it.Valid(); it.Next() {
		builder.Add(it.Key(), it.Value())
	}

	path := e.tablePath(id)
	table, err := builder.Build(id, path, e.blockCache)
	if err != nil {
		return fmt.Errorf("lsm: build flush table %d: %w", id, err)
	}
	if err := fsyncDir(e.dir); err != nil {
		table.Remove()
		return fmt.Errorf("lsm: fsync dir after flush %d: %w", id, err)
	}

	if err := e.manifest.LogFlush(id); err != nil {
		table.Remove()
		return fmt.Errorf("lsm: log flush %d: %w", id, err)
	}

	e.stateMu.Lock()
	next := e.state.clone()
	next.immutables = next.immutables[:len(next.immutables)-1]
	next.tables[id] = table
	if e.controller.FlushesToL0() {
		next.l0 = append([]uint64{id}, next.l0...)
	} else {
		next.levels = append([][]uint64{{id}}, next.levels...)
	}
	e.state = next
	e.stateMu.Unlock()

	if oldest.wal != nil {
		if err := oldest.wal.Remove(); err != nil {
			e.logger.Error("remove flushed wal", logging.Uint64("memtable_id", id), logging.Error(err))
		}
	}

	e.metrics.RecordFlush(time.Since(start), table.Size())
	e.metrics.SetImmutableQueueLen(len(next.immutables))
	e.metrics.SetL0TableCount(len(next.l0))
	e.logger.Info("flushed memtable",
		logging.Uint64("table_id", id),
		logging.Int64("bytes", table.Size()),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

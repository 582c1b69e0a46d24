// Package lsm implements the core of an embedded log-structured
// merge-tree key-value storage engine: the storage-state lifecycle, the
// flush and compaction pipeline, the iterator composition layer, and the
// pluggable compaction strategies. On-disk table format, the block
// cache, the write-ahead log, and the manifest are separate packages the
// core consumes through narrow interfaces.
package lsm

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lsmkv/lsmkv/pkg/archive"
	"github.com/lsmkv/lsmkv/pkg/cache"
	"github.com/lsmkv/lsmkv/pkg/logging"
	"github.com/lsmkv/lsmkv/pkg/manifest"
	"github.com/lsmkv/lsmkv/pkg/metrics"
	"github.com/lsmkv/lsmkv/pkg/wal"
)

// Engine owns the current storage state and every transition across it.
// DB wraps an Engine with the background workers that drive flush and
// compaction automatically; Engine itself only performs a transition
// when asked (directly, or by DB's workers).
type Engine struct {
	dir  string
	opts Options

	stateMu sync.RWMutex
	state   *storageState

	// activeWAL backs the active memtable. It changes hands together
	// with state under stateMu's write side during a freeze, so it is
	// safe to read under stateMu's read side the rest of the time.
	activeWAL *wal.WAL

	// serializationMu orders every state-mutating transition (freeze,
	// flush, compaction install), per the engine's lock hierarchy:
	// serializationMu is always acquired before stateMu.
	serializationMu sync.Mutex

	// nextID is the single process-wide id counter shared by memtables
	// and tables: per spec.md §3, a memtable's id becomes its flushed
	// table's id, so the two must never draw from separate spaces or a
	// flush and an unrelated compaction output could collide.
	nextID atomic.Uint64

	manifest   *manifest.Manifest
	blockCache *cache.BlockCache
	controller CompactionController

	// archiver is nil unless Options.Archive was set; only bottom-level
	// compaction outputs are offered to it, best-effort.
	archiver archive.Uploader

	filtersMu sync.Mutex
	filters   []CompactionFilter

	metrics *metrics.Registry
	logger  logging.Logger

	instanceID uuid.UUID
	closed     atomic.Bool
}

// DB is the public handle returned by Open. It wraps Engine with the
// long-lived flush and compaction workers and their shutdown machinery,
// so every caller gets the spec's "close joins both workers" behavior
// structurally rather than having to reproduce it by hand.
type DB struct {
	*Engine

	flushStop      chan struct{}
	compactionStop chan struct{}
	wg             sync.WaitGroup
}

func tableFileName(id uint64) string  { return fmt.Sprintf("%05d.sst", id) }
func walFileName(id uint64) string    { return fmt.Sprintf("%05d.wal", id) }
func manifestFileName() string        { return "MANIFEST" }

func (e *Engine) walPath(id uint64) string {
	return filepath.Join(e.dir, walFileName(id))
}

// Open creates or recovers an engine rooted at opts.Dir, starts its
// background flush and compaction workers, and returns the owning DB.
func Open(opts Options) (*DB, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := wal.EnsureDir(opts.Dir); err != nil {
		return nil, fmt.Errorf("lsm: create data dir %s: %w", opts.Dir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	e := &Engine{
		dir:        opts.Dir,
		opts:       opts,
		blockCache: cache.New(opts.BlockCacheBlocks),
		controller: newController(opts),
		metrics:    metrics.NewRegistry(),
		logger:     logger,
		instanceID: uuid.New(),
	}

	if opts.Archive != nil {
		creds := archive.Credentials{
			AccessKeyID:     opts.Archive.AccessKeyID,
			SecretAccessKey: opts.Archive.SecretAccessKey,
			SessionToken:    opts.Archive.SessionToken,
		}
		uploader, err := archive.NewS3Uploader(context.Background(), opts.Archive.Bucket, opts.Archive.Prefix, opts.Archive.Region, creds)
		if err != nil {
			return nil, fmt.Errorf("lsm: init archive uploader: %w", err)
		}
		e.archiver = uploader
	}

	if err := e.recover(); err != nil {
		return nil, fmt.Errorf("lsm: recover %s: %w", opts.Dir, err)
	}

	db := &DB{
		Engine:         e,
		flushStop:      make(chan struct{}),
		compactionStop: make(chan struct{}),
	}
	db.wg.Add(2)
	go db.flushWorker()
	go db.compactionWorker()

	e.logger.Info("engine opened",
		logging.String("dir", opts.Dir),
		logging.String("instance_id", e.instanceID.String()),
		logging.String("compaction_kind", string(opts.CompactionKind)),
	)

	return db, nil
}

// Close signals both background workers and waits for them to observe
// the signal, then — if the write-ahead log is disabled, so nothing else
// would make the active memtable durable — flushes it synchronously
// before closing the manifest and every open table.
func (db *DB) Close() error {
	close(db.flushStop)
	close(db.compactionStop)
	db.wg.Wait()
	return db.Engine.close()
}

func (e *Engine) close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if !e.opts.EnableWAL {
		for !e.state.memTable.IsEmpty() {
			if err := e.ForceFreezeMemtable(); err != nil {
				record(err)
				break
			}
		}
		for e.hasImmutables() {
			if err := e.ForceFlushNextImmMemtable(); err != nil {
				record(err)
				break
			}
		}
	}

	e.stateMu.RLock()
	state := e.state
	e.stateMu.RUnlock()

	if e.activeWAL != nil {
		record(e.activeWAL.Close())
	}
	for _, imm := range state.immutables {
		if imm.wal != nil {
			record(imm.wal.Close())
		}
	}
	for _, t := range state.tables {
		record(t.Close())
	}
	record(e.manifest.Close())

	e.logger.Info("engine closed", logging.String("instance_id", e.instanceID.String()))
	return firstErr
}

func (e *Engine) hasImmutables() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return len(e.state.immutables) > 0
}

// snapshot returns the currently published state, safe to read without
// holding any further lock.
func (e *Engine) snapshot() *storageState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// publish installs next as the current state. Callers must already hold
// serializationMu.
func (e *Engine) publish(next *storageState) {
	e.stateMu.Lock()
	e.state = next
	e.stateMu.Unlock()
}

// Put writes key/value to the active memtable, freezing it if this write
// pushed it over the target table size. An empty (non-nil, zero-length)
// value is legal and is indistinguishable on read from a later delete;
// callers that need "empty but present" semantics are out of scope here,
// matching the spec's tombstone-via-empty-value design.
func (e *Engine) Put(key, value []byte) error {
	return e.write(key, value)
}

// Delete writes a tombstone for key: equivalent to Put(key, nil).
func (e *Engine) Delete(key []byte) error {
	return e.write(key, nil)
}

func (e *Engine) write(key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.stateMu.RLock()
	mem := e.state.memTable
	activeWAL := e.activeWAL
	e.stateMu.RUnlock()

	if e.opts.EnableWAL && activeWAL != nil {
		var err error
		if value == nil {
			err = activeWAL.Delete(key)
		} else {
			err = activeWAL.Put(key, value)
		}
		if err != nil {
			return fmt.Errorf("lsm: wal append: %w", err)
		}
	}

	if value == nil {
		mem.Delete(key)
		e.metrics.RecordWrite("delete", 0)
	} else {
		mem.Put(key, value)
		e.metrics.RecordWrite("put", 0)
	}
	e.metrics.SetMemTableSize(mem.ApproximateSize())

	if mem.ApproximateSize() >= e.opts.TargetSSTSizeBytes {
		e.serializationMu.Lock()
		e.stateMu.RLock()
		stillOverBudget := e.state.memTable == mem && mem.ApproximateSize() >= e.opts.TargetSSTSizeBytes
		e.stateMu.RUnlock()
		if stillOverBudget {
			if err := e.forceFreezeMemtableLocked(); err != nil {
				e.serializationMu.Unlock()
				return err
			}
		}
		e.serializationMu.Unlock()
	}
	return nil
}

// Get returns the value for key. It returns ErrKeyNotFound if no live
// entry exists (including when the freshest entry found is a
// tombstone).
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	snap := e.snapshot()

	if v, found := snap.memTable.Get(key); found {
		e.metrics.RecordRead("get", outcomeLabel(v), 0)
		if v == nil {
			return nil, ErrKeyNotFound
		}
		return v, nil
	}
	for _, imm := range snap.immutables {
		if v, found := imm.mem.Get(key); found {
			e.metrics.RecordRead("get", outcomeLabel(v), 0)
			if v == nil {
				return nil, ErrKeyNotFound
			}
			return v, nil
		}
	}
	for _, id := range snap.l0 {
		t := snap.tables[id]
		if !keyInRange(t, key) {
			continue
		}
		v, found, err := t.Get(key)
		if err != nil {
			return nil, fmt.Errorf("lsm: read l0 table %d: %w", id, err)
		}
		if found {
			e.metrics.RecordRead("get", outcomeLabel(v), 0)
			if v == nil {
				return nil, ErrKeyNotFound
			}
			return v, nil
		}
	}
	for _, level := range snap.levels {
		for _, id := range level {
			t := snap.tables[id]
			if !keyInRange(t, key) {
				continue
			}
			v, found, err := t.Get(key)
			if err != nil {
				return nil, fmt.Errorf("lsm: read table %d: %w", id, err)
			}
			if found {
				e.metrics.RecordRead("get", outcomeLabel(v), 0)
				if v == nil {
					return nil, ErrKeyNotFound
				}
				return v, nil
			}
		}
	}

	e.metrics.RecordRead("get", "miss", 0)
	return nil, ErrKeyNotFound
}

func outcomeLabel(v []byte) string {
	if v == nil {
		return "tombstone"
	}
	return "hit"
}

// Scan returns an iterator over the keys between lower and upper, each
// bound honoured as unbounded, inclusive or exclusive per its Kind,
// skipping tombstones.
func (e *Engine) Scan(lower, upper Bound) (*LSMIterator, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	snap := e.snapshot()

	var lowerKey []byte
	if lower.Kind != Unbounded {
		lowerKey = lower.Key
	}

	memSources := snap.memtableAndL0Sources(lowerKey)
	layer1 := NewMergeIterator(memSources[:1+len(snap.immutables)])
	layer2 := NewMergeIterator(memSources[1+len(snap.immutables):])

	combined12, err := NewTwoMergeIterator(layer1, layer2)
	if err != nil {
		return nil, err
	}

	levelSources := make([]StorageIterator, 0, len(snap.levels))
	for _, level := range snap.levels {
		levelSources = append(levelSources, levelConcatSource(snap, level, lowerKey))
	}
	layer3 := NewMergeIterator(levelSources)

	combined, err := NewTwoMergeIterator(combined12, layer3)
	if err != nil {
		return nil, err
	}

	if lower.Kind == Excluded && combined.Valid() && bytesEqual(combined.Key(), lower.Key) {
		if err := combined.Next(); err != nil {
			return nil, err
		}
	}

	return NewLSMIterator(combined, upper)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

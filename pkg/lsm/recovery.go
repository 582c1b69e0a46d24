package lsm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lsmkv/lsmkv/pkg/logging"
	"github.com/lsmkv/lsmkv/pkg/manifest"
	"github.com/lsmkv/lsmkv/pkg/memtable"
	"github.com/lsmkv/lsmkv/pkg/sstable"
	"github.com/lsmkv/lsmkv/pkg/wal"
)

// recover rebuilds the engine's state from whatever is durable on disk:
// the manifest's flush/compaction history first, then any WAL belonging
// to a memtable that never made it into a flush record. It is the only
// code path that runs before the background workers start, so it needs
// no locking of its own.
func (e *Engine) recover() error {
	manifestPath := filepath.Join(e.dir, manifestFileName())

	var m *manifest.Manifest
	var records []manifest.Record
	var err error
	if wal.FileExists(manifestPath) {
		m, records, err = manifest.Open(manifestPath)
	} else {
		m, err = manifest.Create(manifestPath)
	}
	if err != nil {
		return fmt.Errorf("lsm: open manifest: %w", err)
	}
	e.manifest = m

	state := newEmptyState(0)
	flushedIDs := make(map[uint64]bool)

	for _, rec := range records {
		switch rec.Kind {
		case manifest.KindFlush:
			flushedIDs[rec.FlushedTableID] = true
			if e.controller.FlushesToL0() {
				state.l0 = append([]uint64{rec.FlushedTableID}, state.l0...)
			} else {
				state.levels = append([][]uint64{{rec.FlushedTableID}}, state.levels...)
			}
		case manifest.KindCompaction:
			task := manifestRecordToTask(rec)
			state, _ = e.controller.ApplyResult(state, task, rec.OutputIDs, true)
		default:
			m.Close()
			return fmt.Errorf("lsm: unknown manifest record kind %d", rec.Kind)
		}
	}

	for _, id := range referencedTableIDs(state) {
		t, err := sstable.Open(id, e.tablePath(id), e.blockCache)
		if err != nil {
			m.Close()
			return fmt.Errorf("lsm: open table %d: %w", id, err)
		}
		state.tables[id] = t
	}

	if e.controller.FlushesToL0() {
		sortLevelsByFirstKey(state)
	}

	maxID := uint64(0)
	for id := range state.tables {
		if id > maxID {
			maxID = id
		}
	}

	var immFromWAL []*immutableMemtable
	var activeMem *memtable.MemTable
	var activeMemID uint64
	var activeWAL *wal.WAL

	if e.opts.EnableWAL {
		walIDs, err := listWALIDs(e.dir)
		if err != nil {
			m.Close()
			return fmt.Errorf("lsm: list wal files: %w", err)
		}
		sort.Slice(walIDs, func(i, j int) bool { return walIDs[i] < walIDs[j] })

		var candidates []uint64
		for _, id := range walIDs {
			if flushedIDs[id] {
				// Already durably flushed; this WAL is an orphan left
				// behind by a crash between flush publish and WAL
				// removal. Its data is redundant with the flushed
				// table, so it is discarded rather than replayed.
				os.Remove(e.walPath(id))
				continue
			}
			candidates = append(candidates, id)
		}

		for i, id := range candidates {
			w, err := wal.Open(e.walPath(id))
			if err != nil {
				m.Close()
				return fmt.Errorf("lsm: open wal %d: %w", id, err)
			}
			mem := memtable.New()
			replayErr := w.Replay(func(r wal.Record) error {
				if r.Op == wal.OpDelete {
					mem.Delete(r.Key)
				} else {
					mem.Put(r.Key, r.Value)
				}
				return nil
			})
			if replayErr != nil {
				m.Close()
				return fmt.Errorf("lsm: replay wal %d: %w", id, replayErr)
			}

			if id > maxID {
				maxID = id
			}

			if i == len(candidates)-1 {
				activeMem, activeMemID, activeWAL = mem, id, w
			} else {
				immFromWAL = append(immFromWAL, &immutableMemtable{id: id, mem: mem, wal: w})
			}
		}
	}

	// immFromWAL was built oldest-id-first; immutables is newest-first.
	for i, j := 0, len(immFromWAL)-1; i < j; i, j = i+1, j-1 {
		immFromWAL[i], immFromWAL[j] = immFromWAL[j], immFromWAL[i]
	}
	state.immutables = immFromWAL

	e.nextID.Store(maxID + 1)

	if activeMem != nil {
		state.memTable = activeMem
		state.memTableID = activeMemID
		e.activeWAL = activeWAL
	} else {
		newID := e.nextID.Add(1) - 1
		state.memTable = memtable.New()
		state.memTableID = newID
		if e.opts.EnableWAL {
			w, err := wal.Create(e.walPath(newID))
			if err != nil {
				m.Close()
				return fmt.Errorf("lsm: create wal for memtable %d: %w", newID, err)
			}
			e.activeWAL = w
		}
	}

	e.state = state
	e.logger.Info("recovery complete",
		logging.Int("manifest_records", len(records)),
		logging.Int("tables_opened", len(state.tables)),
		logging.Int("immutables_replayed", len(immFromWAL)),
		logging.Uint64("active_memtable_id", state.memTableID),
	)
	return nil
}

// referencedTableIDs returns every table id reachable from state's L0 and
// level/tier lists.
func referencedTableIDs(state *storageState) []uint64 {
	ids := append([]uint64(nil), state.l0...)
	for _, lvl := range state.levels {
		ids = append(ids, lvl...)
	}
	return ids
}

// sortLevelsByFirstKey restores each leveled level's ascending-first-key,
// non-overlapping ordering after recovery has finished opening every
// table. Not applied to tiered compaction, whose tiers are insertion-
// ordered rather than key-sorted.
func sortLevelsByFirstKey(state *storageState) {
	for _, lvl := range state.levels {
		sort.Slice(lvl, func(i, j int) bool {
			a, b := state.tables[lvl[i]], state.tables[lvl[j]]
			if a == nil || b == nil {
				return false
			}
			return bytes.Compare(a.FirstKey(), b.FirstKey()) < 0
		})
	}
}

// listWALIDs returns the memtable ids with a "NNNNN.wal" file in dir.
func listWALIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".wal") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(ent.Name(), ".wal"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package lsm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lsmkv/lsmkv/pkg/archive"
	"github.com/lsmkv/lsmkv/pkg/logging"
	"github.com/lsmkv/lsmkv/pkg/manifest"
	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// maxFullCompactionRounds bounds ForceFullCompaction's loop so a
// misbehaving strategy that never converges fails loudly instead of
// hanging a test or a caller forever.
const maxFullCompactionRounds = 10000

// strategyName names the active controller for metrics labels.
func (e *Engine) strategyName() string {
	return string(e.opts.CompactionKind)
}

// ForceFullCompaction repeatedly asks the active controller for a task
// and executes it until none remains, converging the hierarchy to its
// steady state. It is idempotent: called again with nothing left to do,
// it returns immediately without producing new tables.
func (e *Engine) ForceFullCompaction() error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.serializationMu.Lock()
	defer e.serializationMu.Unlock()

	for i := 0; i < maxFullCompactionRounds; i++ {
		snap := e.snapshot()
		task := e.controller.GenerateTask(snap)
		if task == nil {
			return nil
		}
		if err := e.executeAndInstall(snap, task, false); err != nil {
			return err
		}
	}
	return fmt.Errorf("lsm: force full compaction did not converge within %d rounds", maxFullCompactionRounds)
}

// runOneCompactionRound asks the controller for at most one task and, if
// produced, executes and installs it. Used by the background compaction
// ticker, which prefers many small steps to one unbounded loop so a
// shutdown signal is never starved behind a runaway compaction.
func (e *Engine) runOneCompactionRound() error {
	if e.closed.Load() {
		return nil
	}
	e.serializationMu.Lock()
	defer e.serializationMu.Unlock()

	snap := e.snapshot()
	task := e.controller.GenerateTask(snap)
	if task == nil {
		return nil
	}
	return e.executeAndInstall(snap, task, false)
}

// executeAndInstall builds task's output tables, publishes the resulting
// state, and schedules the deletion of every table the task retired.
// Callers must already hold serializationMu.
func (e *Engine) executeAndInstall(snap *storageState, task *CompactionTask, inRecovery bool) error {
	start := time.Now()

	built, outputIDs, bytesRead, bytesWritten, dropped, err := e.executeCompaction(snap, task)
	if err != nil {
		return fmt.Errorf("lsm: execute compaction: %w", err)
	}
	if err := fsyncDir(e.dir); err != nil {
		cleanupTables(built)
		return fmt.Errorf("lsm: fsync dir after compaction: %w", err)
	}

	// The outputs go into the state ApplyResult starts from, so a
	// strategy that orders a level by first key can see them.
	base := snap.clone()
	for i, id := range outputIDs {
		base.tables[id] = built[i]
	}
	next, toDelete := e.controller.ApplyResult(base, task, outputIDs, inRecovery)
	for _, id := range toDelete {
		delete(next.tables, id)
	}

	rec := taskToManifestRecord(task, outputIDs)
	if err := e.manifest.LogCompaction(rec); err != nil {
		cleanupTables(built)
		return fmt.Errorf("lsm: log compaction: %w", err)
	}

	e.publish(next)

	// Old table files are only removed once the state that last
	// referenced them has been replaced; snap (not next) still holds
	// open handles to them.
	for _, id := range toDelete {
		if t, ok := snap.tables[id]; ok {
			if err := t.Remove(); err != nil {
				e.logger.Error("remove retired table", logging.Uint64("table_id", id), logging.Error(err))
			}
		}
	}

	e.metrics.RecordCompaction(e.strategyName(), time.Since(start), bytesRead, bytesWritten, dropped)
	e.logger.Info("compaction complete",
		logging.String("strategy", e.strategyName()),
		logging.Int("outputs", len(outputIDs)),
		logging.Int("tombstones_dropped", dropped),
		logging.Duration("duration", time.Since(start)),
	)

	if e.archiver != nil && (task.IsBottomLevel || task.BottomTierIncluded) && !inRecovery {
		e.archiveOutputs(built)
	}
	return nil
}

// archiveOutputs offers every bottom-level compaction output to the
// configured archiver, one table at a time and best-effort: a failed or
// slow upload is logged but never turns a completed, durable compaction
// into an error.
func (e *Engine) archiveOutputs(tables []*sstable.Table) {
	for _, t := range tables {
		key := strconv.FormatUint(t.ID(), 10) + ".sst"
		if err := archive.UploadFile(context.Background(), e.archiver, key, t.Path()); err != nil {
			e.logger.Error("archive upload failed", logging.Uint64("table_id", t.ID()), logging.Error(err))
		}
	}
}

// taskToManifestRecord translates a CompactionTask into the shape the
// manifest package stores, so recovery can reconstruct an identical task
// and feed it back through the originating controller's ApplyResult.
func taskToManifestRecord(task *CompactionTask, outputIDs []uint64) manifest.Record {
	rec := manifest.Record{
		LowerLevel:         int32(task.LowerLevel),
		LowerIDs:           task.LowerIDs,
		UpperLevel:         int32(task.UpperLevel),
		UpperIDs:           task.UpperIDs,
		IsBottomLevel:      task.IsBottomLevel,
		BottomTierIncluded: task.BottomTierIncluded,
		OutputIDs:          outputIDs,
		TaskDescription:    describeTask(task),
	}
	switch task.Kind {
	case TaskL0ToLevel:
		rec.Shape = manifest.ShapeL0ToLevel
	case TaskLevelToLevel:
		rec.Shape = manifest.ShapeLevelToLevel
	case TaskTiered:
		rec.Shape = manifest.ShapeTiered
	}
	rec.TierIndices = make([]int32, len(task.TierIndices))
	for i, idx := range task.TierIndices {
		rec.TierIndices[i] = int32(idx)
	}
	return rec
}

// manifestRecordToTask is the inverse of taskToManifestRecord, used only
// during recovery.
func manifestRecordToTask(rec manifest.Record) *CompactionTask {
	task := &CompactionTask{
		LowerLevel:         int(rec.LowerLevel),
		LowerIDs:           rec.LowerIDs,
		UpperLevel:         int(rec.UpperLevel),
		UpperIDs:           rec.UpperIDs,
		IsBottomLevel:      rec.IsBottomLevel,
		BottomTierIncluded: rec.BottomTierIncluded,
	}
	switch rec.Shape {
	case manifest.ShapeL0ToLevel:
		task.Kind = TaskL0ToLevel
	case manifest.ShapeLevelToLevel:
		task.Kind = TaskLevelToLevel
	case manifest.ShapeTiered:
		task.Kind = TaskTiered
	}
	task.TierIndices = make([]int, len(rec.TierIndices))
	for i, idx := range rec.TierIndices {
		task.TierIndices[i] = int(idx)
	}
	return task
}

// describeTask renders a human-readable summary of task for the
// manifest's TaskDescription field (diagnostic only; recovery rebuilds
// the task from the structured fields, not this string).
func describeTask(task *CompactionTask) string {
	switch task.Kind {
	case TaskL0ToLevel:
		return fmt.Sprintf("L0(%d tables) -> L%d(%d tables)", len(task.LowerIDs), task.UpperLevel, len(task.UpperIDs))
	case TaskLevelToLevel:
		return fmt.Sprintf("L%d(%d tables) -> L%d(%d tables)", task.LowerLevel, len(task.LowerIDs), task.UpperLevel, len(task.UpperIDs))
	case TaskTiered:
		return fmt.Sprintf("tiers %v (bottom included: %v)", task.TierIndices, task.BottomTierIncluded)
	default:
		return "unknown task"
	}
}

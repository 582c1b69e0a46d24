package lsm

// simpleLeveledController implements the simple-leveled strategy: L0 is
// merged wholesale into L1 once it grows past a file-count trigger;
// otherwise each level is merged into the next whenever it has grown too
// large relative to it, by file count.
type simpleLeveledController struct {
	opts SimpleLeveledOptions
}

func newSimpleLeveledController(opts SimpleLeveledOptions) *simpleLeveledController {
	return &simpleLeveledController{opts: opts}
}

func (c *simpleLeveledController) FlushesToL0() bool { return true }

func (c *simpleLeveledController) GenerateTask(snap *storageState) *CompactionTask {
	if len(snap.l0) >= c.opts.Level0FileLimit {
		upper := levelIDs(snap, 1)
		return &CompactionTask{
			Kind:          TaskL0ToLevel,
			LowerLevel:    0,
			LowerIDs:      append([]uint64(nil), snap.l0...),
			UpperLevel:    1,
			UpperIDs:      append([]uint64(nil), upper...),
			IsBottomLevel: bottomLevel(snap) == 1,
		}
	}

	for i := 1; i < c.opts.MaxLevels; i++ {
		lower := levelIDs(snap, i)
		if len(lower) == 0 {
			continue
		}
		upper := levelIDs(snap, i+1)
		ratio := 100
		if len(lower) > 0 {
			ratio = len(upper) * 100 / len(lower)
		}
		if ratio < c.opts.SizeRatioPercent {
			return &CompactionTask{
				Kind:          TaskLevelToLevel,
				LowerLevel:    i,
				LowerIDs:      append([]uint64(nil), lower...),
				UpperLevel:    i + 1,
				UpperIDs:      append([]uint64(nil), upper...),
				IsBottomLevel: bottomLevel(snap) == i+1,
			}
		}
	}
	return nil
}

func (c *simpleLeveledController) ApplyResult(snap *storageState, task *CompactionTask, outputIDs []uint64, inRecovery bool) (*storageState, []uint64) {
	next := snap.clone()
	toDelete := append([]uint64(nil), task.LowerIDs...)
	toDelete = append(toDelete, task.UpperIDs...)

	if task.LowerLevel == 0 {
		next.l0 = removeIDs(next.l0, task.LowerIDs)
	} else {
		setLevelIDs(next, task.LowerLevel, removeIDs(levelIDs(next, task.LowerLevel), task.LowerIDs))
	}
	setLevelIDs(next, task.UpperLevel, append([]uint64(nil), outputIDs...))

	return next, toDelete
}

// levelIDs returns the table ids for 1-based level n (state.levels[i]
// holds level i+1, per state.go's convention).
func levelIDs(snap *storageState, n int) []uint64 {
	idx := n - 1
	if idx < 0 || idx >= len(snap.levels) {
		return nil
	}
	return snap.levels[idx]
}

func setLevelIDs(snap *storageState, n int, ids []uint64) {
	idx := n - 1
	for idx >= len(snap.levels) {
		snap.levels = append(snap.levels, nil)
	}
	snap.levels[idx] = ids
}

// bottomLevel returns the highest populated level number, or 0 if there
// are none yet.
func bottomLevel(snap *storageState) int {
	for i := len(snap.levels) - 1; i >= 0; i-- {
		if len(snap.levels[i]) > 0 {
			return i + 1
		}
	}
	return 0
}

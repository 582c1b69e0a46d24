package lsm

import "bytes"

// leveledController implements RocksDB-style dynamic leveled compaction:
// per-level byte targets are derived from the bottom level's actual size
// and shrunk upward by a constant multiplier, and the level furthest over
// its target is compacted one table at a time into the next level.
type leveledController struct {
	opts LeveledOptions
}

func newLeveledController(opts LeveledOptions) *leveledController {
	return &leveledController{opts: opts}
}

func (c *leveledController) FlushesToL0() bool { return true }

// levelTargets computes a byte-size target for levels 1..maxLevels,
// anchored at the bottom level's actual size and divided upward by the
// multiplier until the target drops below BaseLevelSizeBytes; every
// level above that point (closer to L0) has target 0, meaning "not yet
// due for compaction by size".
func (c *leveledController) levelTargets(snap *storageState) map[int]int64 {
	targets := make(map[int]int64)
	bottom := bottomLevel(snap)
	if bottom == 0 {
		return targets
	}

	targets[bottom] = totalSize(snap, levelIDs(snap, bottom))
	base := bottom
	for i := bottom - 1; i >= 1; i-- {
		t := targets[i+1] / int64(c.opts.LevelSizeMultiplier)
		if t < c.opts.BaseLevelSizeBytes {
			targets[i] = c.opts.BaseLevelSizeBytes
			base = i
			break
		}
		targets[i] = t
	}
	for i := base - 1; i >= 1; i-- {
		targets[i] = 0
	}
	return targets
}

func (c *leveledController) GenerateTask(snap *storageState) *CompactionTask {
	targets := c.levelTargets(snap)

	if len(snap.l0) >= c.opts.Level0FileLimit {
		for i := 1; i <= c.opts.MaxLevels; i++ {
			if targets[i] > 0 || i == bottomLevel(snap) || bottomLevel(snap) == 0 {
				upper := levelIDs(snap, i)
				return &CompactionTask{
					Kind:          TaskL0ToLevel,
					LowerLevel:    0,
					LowerIDs:      append([]uint64(nil), snap.l0...),
					UpperLevel:    i,
					UpperIDs:      append([]uint64(nil), upper...),
					IsBottomLevel: bottomLevel(snap) == i || bottomLevel(snap) == 0,
				}
			}
		}
	}

	bestLevel := 0
	bestRatio := 1.0
	for i := 1; i <= c.opts.MaxLevels; i++ {
		target := targets[i]
		if target <= 0 {
			continue
		}
		actual := totalSize(snap, levelIDs(snap, i))
		ratio := float64(actual) / float64(target)
		if ratio > bestRatio {
			bestRatio = ratio
			bestLevel = i
		}
	}
	if bestLevel == 0 {
		return nil
	}

	lowerIDs := levelIDs(snap, bestLevel)
	if len(lowerIDs) == 0 {
		return nil
	}
	oldest := lowerIDs[0]
	oldestTable := snap.tables[oldest]

	var upperIDs []uint64
	if oldestTable != nil {
		for _, id := range levelIDs(snap, bestLevel+1) {
			t := snap.tables[id]
			if t == nil {
				continue
			}
			if bytes.Compare(t.FirstKey(), oldestTable.LastKey()) <= 0 && bytes.Compare(t.LastKey(), oldestTable.FirstKey()) >= 0 {
				upperIDs = append(upperIDs, id)
			}
		}
	}

	return &CompactionTask{
		Kind:          TaskLevelToLevel,
		LowerLevel:    bestLevel,
		LowerIDs:      []uint64{oldest},
		UpperLevel:    bestLevel + 1,
		UpperIDs:      upperIDs,
		IsBottomLevel: bottomLevel(snap) == bestLevel+1,
	}
}

func (c *leveledController) ApplyResult(snap *storageState, task *CompactionTask, outputIDs []uint64, inRecovery bool) (*storageState, []uint64) {
	next := snap.clone()
	toDelete := append([]uint64(nil), task.LowerIDs...)
	toDelete = append(toDelete, task.UpperIDs...)

	if task.LowerLevel == 0 {
		next.l0 = removeIDs(next.l0, task.LowerIDs)
	} else {
		setLevelIDs(next, task.LowerLevel, removeIDs(levelIDs(next, task.LowerLevel), task.LowerIDs))
	}

	merged := removeIDs(levelIDs(next, task.UpperLevel), task.UpperIDs)
	merged = append(merged, outputIDs...)
	if !inRecovery {
		sortTablesByFirstKey(next, task.UpperLevel, merged)
	} else {
		setLevelIDs(next, task.UpperLevel, merged)
	}

	return next, toDelete
}

// sortTablesByFirstKey orders a level's table ids by ascending first key,
// re-establishing the non-overlap invariant after a merge inserts new
// output tables. Skipped during recovery since not every referenced
// table is open yet.
func sortTablesByFirstKey(snap *storageState, level int, ids []uint64) {
	sorted := append([]uint64(nil), ids...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			a, b := snap.tables[sorted[j-1]], snap.tables[sorted[j]]
			if a == nil || b == nil || bytes.Compare(a.FirstKey(), b.FirstKey()) <= 0 {
				break
			}
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	setLevelIDs(snap, level, sorted)
}

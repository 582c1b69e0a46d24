package lsm

// tieredController implements universal (tiered) compaction. Unlike the
// leveled strategies, snap.levels holds tiers rather than non-overlapping
// levels: each tier is a concat-able group of tables produced by a single
// flush or a single prior merge, and tiers are ordered newest first.
type tieredController struct {
	opts TieredOptions
}

func newTieredController(opts TieredOptions) *tieredController {
	return &tieredController{opts: opts}
}

// FlushesToL0 is false: flushed memtables become a new tier, not an L0
// entry — tiered compaction never uses L0 at all.
func (c *tieredController) FlushesToL0() bool { return false }

func (c *tieredController) GenerateTask(snap *storageState) *CompactionTask {
	n := len(snap.levels)
	if n == 0 {
		return nil
	}
	sizes := make([]int64, n)
	for i, ids := range snap.levels {
		sizes[i] = totalSize(snap, ids)
	}
	bottom := n - 1

	// (a) size amplification: total of everything but the bottom tier
	// versus the bottom tier itself.
	if sizes[bottom] > 0 {
		var aboveBottom int64
		for i := 0; i < bottom; i++ {
			aboveBottom += sizes[i]
		}
		if aboveBottom*100/sizes[bottom] > int64(c.opts.MaxSizeAmplificationPercent) {
			all := make([]int, n)
			for i := range all {
				all[i] = i
			}
			return &CompactionTask{Kind: TaskTiered, TierIndices: all, BottomTierIncluded: true}
		}
	}

	// (b) size-ratio triggered merge of a contiguous newest-first run.
	var accumulated int64
	for k := 0; k < n-1; k++ {
		accumulated += sizes[k]
		width := k + 1
		if width < c.opts.MinMergeWidth {
			continue
		}
		next := sizes[k+1]
		if next == 0 {
			continue
		}
		if accumulated*100/next >= int64(c.opts.SizeRatioPercent) {
			if c.opts.MaxMergeWidth > 0 && width > c.opts.MaxMergeWidth {
				width = c.opts.MaxMergeWidth
			}
			indices := make([]int, width)
			for i := range indices {
				indices[i] = i
			}
			return &CompactionTask{Kind: TaskTiered, TierIndices: indices, BottomTierIncluded: indices[width-1] == bottom}
		}
	}

	// (c) too many tiers: merge the oldest ones down until back under
	// the limit.
	if n > c.opts.MaxSortedRuns {
		excess := n - c.opts.MaxSortedRuns + 1
		start := n - excess
		indices := make([]int, 0, excess)
		for i := start; i < n; i++ {
			indices = append(indices, i)
		}
		return &CompactionTask{Kind: TaskTiered, TierIndices: indices, BottomTierIncluded: indices[len(indices)-1] == bottom}
	}

	return nil
}

func (c *tieredController) ApplyResult(snap *storageState, task *CompactionTask, outputIDs []uint64, inRecovery bool) (*storageState, []uint64) {
	next := snap.clone()

	participating := make(map[int]bool, len(task.TierIndices))
	var toDelete []uint64
	for _, idx := range task.TierIndices {
		participating[idx] = true
		toDelete = append(toDelete, next.levels[idx]...)
	}

	oldestParticipant := task.TierIndices[0]
	for _, idx := range task.TierIndices {
		if idx > oldestParticipant {
			oldestParticipant = idx
		}
	}

	// Walk tiers in order, carrying every non-participating tier through
	// untouched and splicing the merge output in at the oldest
	// participant's position. This holds regardless of whether the
	// bottom tier participated: when every tier participates, the
	// non-participating set is empty and this naturally collapses to a
	// single output tier; when some tiers above the merge window were
	// left out (e.g. the too-many-tiers trigger only merging the oldest
	// few), they must survive in remaining rather than being wiped out.
	var remaining [][]uint64
	inserted := false
	for i, tier := range next.levels {
		if participating[i] {
			if i == oldestParticipant {
				remaining = append(remaining, append([]uint64(nil), outputIDs...))
				inserted = true
			}
			continue
		}
		remaining = append(remaining, tier)
	}
	if !inserted {
		remaining = append(remaining, append([]uint64(nil), outputIDs...))
	}

	next.levels = remaining
	return next, toDelete
}

package lsm

// CompactionTaskKind distinguishes the shape of a compaction task. There
// are exactly four compaction strategies: leveled and simple-leveled
// produce the two level shapes, tiered produces TaskTiered, and
// no-compaction produces no tasks; a mismatch between a task's kind and the controller that
// receives it back in ApplyResult is a programming error, not a runtime
// condition to recover from.
type CompactionTaskKind int

const (
	TaskL0ToLevel CompactionTaskKind = iota
	TaskLevelToLevel
	TaskTiered
)

// CompactionTask describes one unit of compaction work: which tables
// participate and where the output lands. Only the fields relevant to
// Kind are populated.
type CompactionTask struct {
	Kind CompactionTaskKind

	// TaskL0ToLevel / TaskLevelToLevel
	LowerLevel    int // 0 means L0
	LowerIDs      []uint64
	UpperLevel    int
	UpperIDs      []uint64
	IsBottomLevel bool

	// TaskTiered
	TierIndices        []int // indices into state.levels participating, oldest last
	BottomTierIncluded bool
}

// CompactionController is the interface every compaction strategy
// implements: decide whether there's work to do, and fold a completed
// task's output back into a new state.
type CompactionController interface {
	// GenerateTask inspects snap and returns a task to run, or nil if
	// the state doesn't currently need compaction.
	GenerateTask(snap *storageState) *CompactionTask

	// ApplyResult produces the next state after task's output tables
	// (outputIDs) have been built and are ready to install, plus the
	// list of table ids that are now unreferenced and may be deleted.
	// When inRecovery is true, implementations must not depend on
	// tables not yet present in snap.tables.
	ApplyResult(snap *storageState, task *CompactionTask, outputIDs []uint64, inRecovery bool) (*storageState, []uint64)

	// FlushesToL0 reports whether this strategy wants newly flushed
	// memtables inserted into L0 (leveled, simple-leveled, none) or as
	// a new tier (tiered).
	FlushesToL0() bool
}

// newController builds the controller matching opts.CompactionKind.
func newController(opts Options) CompactionController {
	switch opts.CompactionKind {
	case CompactionSimple:
		return newSimpleLeveledController(*opts.SimpleLeveled)
	case CompactionLeveled:
		return newLeveledController(*opts.Leveled)
	case CompactionTiered:
		return newTieredController(*opts.Tiered)
	default:
		return noCompactionController{}
	}
}

// totalSize sums the on-disk size of every table in ids.
func totalSize(snap *storageState, ids []uint64) int64 {
	var size int64
	for _, id := range ids {
		if t, ok := snap.tables[id]; ok {
			size += t.Size()
		}
	}
	return size
}

// removeIDs returns a copy of ids with every id in drop removed.
func removeIDs(ids []uint64, drop []uint64) []uint64 {
	dropSet := make(map[uint64]bool, len(drop))
	for _, id := range drop {
		dropSet[id] = true
	}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !dropSet[id] {
			out = append(out, id)
		}
	}
	return out
}

package lsm

// noCompactionController never produces work; tables accumulate in L0
// forever. Useful for benchmarking the write/flush path in isolation or
// for workloads with a separate, external compaction process.
type noCompactionController struct{}

func (noCompactionController) FlushesToL0() bool { return true }

func (noCompactionController) GenerateTask(snap *storageState) *CompactionTask { return nil }

func (noCompactionController) ApplyResult(snap *storageState, task *CompactionTask, outputIDs []uint64, inRecovery bool) (*storageState, []uint64) {
	return snap, nil
}

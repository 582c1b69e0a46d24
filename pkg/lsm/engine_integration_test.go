package lsm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEngineIntegrationLifecycle exercises a complete, realistic engine
// lifecycle against leveled compaction: a large write batch spanning
// several memtable generations, manual flush/compaction, a close and a
// reopen through recovery, and a final scan over the whole keyspace.
func TestEngineIntegrationLifecycle(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.CompactionKind = CompactionLeveled
	opts.Leveled = &LeveledOptions{LevelSizeMultiplier: 4, Level0FileLimit: 4, MaxLevels: 6, BaseLevelSizeBytes: 4096}
	opts.TargetSSTSizeBytes = 4096
	opts.NumMemtableLimit = 2

	db, err := Open(opts)
	require.NoError(t, err)

	const numKeys = 2000
	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("k-%06d", i))
		value := []byte(fmt.Sprintf("payload-%06d", i))
		require.NoError(t, db.Put(key, value))
	}

	t.Log("draining immutable queue")
	for db.hasImmutables() {
		err := db.ForceFlushNextImmMemtable()
		if err == ErrEmptyImmutableQueue {
			break
		}
		require.NoError(t, err)
	}

	t.Log("running full compaction")
	require.NoError(t, db.ForceFullCompaction())

	t.Log("overwriting a quarter of the keyspace and deleting another quarter")
	for i := 0; i < numKeys/4; i++ {
		key := []byte(fmt.Sprintf("k-%06d", i))
		require.NoError(t, db.Put(key, []byte("updated")))
	}
	for i := numKeys / 4; i < numKeys/2; i++ {
		key := []byte(fmt.Sprintf("k-%06d", i))
		require.NoError(t, db.Delete(key))
	}
	for db.hasImmutables() {
		err := db.ForceFlushNextImmMemtable()
		if err == ErrEmptyImmutableQueue {
			break
		}
		require.NoError(t, err)
	}
	require.NoError(t, db.ForceFullCompaction())

	require.NoError(t, db.Close())

	t.Log("reopening and recovering")
	db2, err := Open(opts)
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("k-%06d", i))
		v, err := db2.Get(key)
		switch {
		case i < numKeys/4:
			require.NoError(t, err, "key %s should be updated, not missing", key)
			require.Equal(t, "updated", string(v))
		case i < numKeys/2:
			require.ErrorIs(t, err, ErrKeyNotFound, "key %s should be deleted", key)
		default:
			require.NoError(t, err, "key %s should still be present", key)
			require.Equal(t, fmt.Sprintf("payload-%06d", i), string(v))
		}
	}

	t.Log("scanning the full keyspace")
	it, err := db2.Scan(UnboundedBound(), UnboundedBound())
	require.NoError(t, err)

	count := 0
	var prevKey []byte
	for it.Valid() {
		if prevKey != nil {
			require.Less(t, string(prevKey), string(it.Key()), "scan must yield strictly ascending keys")
		}
		prevKey = append([]byte(nil), it.Key()...)
		count++
		require.NoError(t, it.Next())
	}
	require.Equal(t, numKeys-numKeys/4, count, "scan should skip deleted keys but include everything else")
}

// TestEngineIntegrationTieredCompaction runs the same write-heavy workload
// against the tiered strategy to exercise the FlushesToL0()==false path
// (flushes land as new tiers, not L0) through recovery.
func TestEngineIntegrationTieredCompaction(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.CompactionKind = CompactionTiered
	opts.Leveled = nil
	opts.Tiered = &TieredOptions{SizeRatioPercent: 200, MinMergeWidth: 2, MaxMergeWidth: 4, MaxSortedRuns: 4, MaxSizeAmplificationPercent: 200}
	opts.TargetSSTSizeBytes = 2048

	db, err := Open(opts)
	require.NoError(t, err)

	const numKeys = 800
	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("t-%05d", i))
		require.NoError(t, db.Put(key, make([]byte, 64)))
	}
	for db.hasImmutables() {
		err := db.ForceFlushNextImmMemtable()
		if err == ErrEmptyImmutableQueue {
			break
		}
		require.NoError(t, err)
	}
	require.NoError(t, db.ForceFullCompaction())
	require.NoError(t, db.Close())

	db2, err := Open(opts)
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("t-%05d", i))
		_, err := db2.Get(key)
		require.NoError(t, err, "key %s missing after tiered recovery", key)
	}
}

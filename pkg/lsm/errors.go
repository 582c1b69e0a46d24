package lsm

import "errors"

var (
	// ErrKeyNotFound is returned by Get when no live entry exists for a key.
	ErrKeyNotFound = errors.New("lsm: key not found")

	// ErrEmptyImmutableQueue is returned by ForceFlushNextImmMemtable when
	// there is no immutable memtable waiting to be flushed.
	ErrEmptyImmutableQueue = errors.New("lsm: no immutable memtable to flush")

	// ErrClosed is returned by any operation performed after Close.
	ErrClosed = errors.New("lsm: engine closed")

	// ErrInvalidCompactionTask marks a compaction task referencing tables
	// that are no longer present in the current state. This indicates a
	// programming error in a compaction strategy, not an operational
	// fault, and callers that hit it should treat it as fatal. No function
	// in this package returns it.
	ErrInvalidCompactionTask = errors.New("lsm: invalid compaction task")
)

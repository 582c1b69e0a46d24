package lsm

import "bytes"

// CompactionFilter decides whether an entry should be dropped during
// compaction, beyond the unconditional tombstone rule. The only variant
// the original engine implements is a key-prefix filter.
type CompactionFilter struct {
	Prefix []byte
}

// drops reports whether key matches this filter.
func (f CompactionFilter) drops(key []byte) bool {
	return bytes.HasPrefix(key, f.Prefix)
}

// AddCompactionFilter registers a filter consulted by every future
// bottom-level compaction. Filters are never consulted above the bottom
// level, for the same reason tombstones aren't dropped above it: an
// older, shadowed copy of the key might still live in a level the filter
// hasn't been applied to yet.
func (e *Engine) AddCompactionFilter(f CompactionFilter) {
	e.filtersMu.Lock()
	defer e.filtersMu.Unlock()
	e.filters = append(e.filters, f)
}

// shouldDrop reports whether key should be dropped by the registered
// compaction filters. Only called by the compaction executor when its
// task's output level is the bottom level.
func (e *Engine) shouldDrop(key []byte) bool {
	e.filtersMu.Lock()
	defer e.filtersMu.Unlock()
	for _, f := range e.filters {
		if f.drops(key) {
			return true
		}
	}
	return false
}

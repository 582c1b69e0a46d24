package lsm

import "bytes"

// LSMIterator sits on top of the fully composed merge iterator, applying
// the caller's upper bound and skipping tombstones so only live,
// in-range entries are ever visible to Scan callers.
type LSMIterator struct {
	inner *FusedIterator
	upper Bound
}

// NewLSMIterator wraps inner (already positioned at the first candidate
// key) and advances past any leading tombstones or out-of-bound keys.
func NewLSMIterator(inner StorageIterator, upper Bound) (*LSMIterator, error) {
	it := &LSMIterator{inner: NewFusedIterator(inner), upper: upper}
	if err := it.skipInvalid(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *LSMIterator) withinUpper() bool {
	if !it.inner.Valid() {
		return false
	}
	switch it.upper.Kind {
	case Unbounded:
		return true
	case Included:
		return bytes.Compare(it.inner.Key(), it.upper.Key) <= 0
	case Excluded:
		return bytes.Compare(it.inner.Key(), it.upper.Key) < 0
	}
	return true
}

func (it *LSMIterator) skipInvalid() error {
	for it.inner.Valid() && it.withinUpper() && it.inner.Value() == nil {
		if err := it.inner.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Valid reports whether the iterator is positioned at a live, in-range entry.
func (it *LSMIterator) Valid() bool {
	return it.inner.Valid() && it.withinUpper()
}

// Key returns the current entry's key.
func (it *LSMIterator) Key() []byte { return it.inner.Key() }

// Value returns the current entry's value. Never nil — tombstones are
// filtered out by Next/NewLSMIterator.
func (it *LSMIterator) Value() []byte { return it.inner.Value() }

// Next advances to the next live, in-range entry.
func (it *LSMIterator) Next() error {
	if err := it.inner.Next(); err != nil {
		return err
	}
	return it.skipInvalid()
}

// Err returns any error the underlying composed iterators encountered.
func (it *LSMIterator) Err() error { return it.inner.Err() }

package lsm

import "bytes"

// TwoMergeIterator merges exactly two sources, preferring the first
// (logically newer) on key ties. It exists alongside the k-way
// MergeIterator for the places that stack exactly two sources: Scan
// (memtables over L0, then that pair over the levels) and leveled
// compaction (the upper side against a concat-iterator over the next
// level); a specialized two-way merge avoids heap overhead there.
type TwoMergeIterator struct {
	a, b   StorageIterator
	useA   bool
}

// NewTwoMergeIterator builds a merge over a and b, with a preferred on
// ties.
func NewTwoMergeIterator(a, b StorageIterator) (*TwoMergeIterator, error) {
	t := &TwoMergeIterator{a: a, b: b}
	if err := t.skipB(); err != nil {
		return nil, err
	}
	t.choose()
	return t, nil
}

// skipB advances b past any key equal to a's current key, since a wins
// ties and b's value there would otherwise be observed as live.
func (t *TwoMergeIterator) skipB() error {
	for t.a.Valid() && t.b.Valid() && bytes.Equal(t.a.Key(), t.b.Key()) {
		if err := t.b.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (t *TwoMergeIterator) choose() {
	switch {
	case !t.a.Valid() && !t.b.Valid():
		t.useA = true
	case !t.a.Valid():
		t.useA = false
	case !t.b.Valid():
		t.useA = true
	default:
		t.useA = bytes.Compare(t.a.Key(), t.b.Key()) <= 0
	}
}

func (t *TwoMergeIterator) Valid() bool {
	if t.useA {
		return t.a.Valid()
	}
	return t.b.Valid()
}

func (t *TwoMergeIterator) Key() []byte {
	if t.useA {
		return t.a.Key()
	}
	return t.b.Key()
}

func (t *TwoMergeIterator) Value() []byte {
	if t.useA {
		return t.a.Value()
	}
	return t.b.Value()
}

func (t *TwoMergeIterator) Next() error {
	var err error
	if t.useA {
		err = t.a.Next()
	} else {
		err = t.b.Next()
	}
	if err != nil {
		return err
	}
	if err := t.skipB(); err != nil {
		return err
	}
	t.choose()
	return nil
}

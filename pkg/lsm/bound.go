package lsm

// BoundKind identifies whether a Scan bound is open, inclusive, or
// exclusive.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

// Bound is one endpoint of a Scan range.
type Bound struct {
	Kind BoundKind
	Key  []byte
}

// UnboundedBound returns an open bound.
func UnboundedBound() Bound { return Bound{Kind: Unbounded} }

// IncludedBound returns a bound that includes key.
func IncludedBound(key []byte) Bound { return Bound{Kind: Included, Key: key} }

// ExcludedBound returns a bound that excludes key.
func ExcludedBound(key []byte) Bound { return Bound{Kind: Excluded, Key: key} }

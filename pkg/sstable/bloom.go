package sstable

import (
	"hash/fnv"
	"math"
)

// BloomFilter is a probabilistic set-membership structure: false
// positives are possible, false negatives never are. A table's bloom
// filter lets Get skip an on-disk lookup entirely for most absent keys.
type BloomFilter struct {
	bits      []bool
	size      int
	hashCount int
}

// NewBloomFilter sizes a filter for expectedItems entries at the given
// false positive rate.
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	size := int(math.Ceil(-float64(expectedItems) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	hashCount := int(math.Ceil((float64(size) / float64(expectedItems)) * math.Ln2))

	const maxSize = 1_000_000_000
	if size > maxSize {
		size = maxSize
	}
	if size < 1 {
		size = 1
	}
	if hashCount < 1 {
		hashCount = 1
	}
	if hashCount > 100 {
		hashCount = 100
	}

	return &BloomFilter{bits: make([]bool, size), size: size, hashCount: hashCount}
}

// Add records key's presence in the filter.
func (bf *BloomFilter) Add(key []byte) {
	for i := 0; i < bf.hashCount; i++ {
		bf.bits[bf.hash(key, i)] = true
	}
}

// MayContain reports whether key might be present. false is definitive;
// true is probabilistic.
func (bf *BloomFilter) MayContain(key []byte) bool {
	for i := 0; i < bf.hashCount; i++ {
		if !bf.bits[bf.hash(key, i)] {
			return false
		}
	}
	return true
}

// hash computes the i-th double-hash position for key.
func (bf *BloomFilter) hash(key []byte, i int) int {
	h1 := fnv.New64a()
	_, _ = h1.Write(key)
	hash1 := h1.Sum64()

	h2 := fnv.New64a()
	_, _ = h2.Write(key)
	_, _ = h2.Write([]byte{0xFF})
	hash2 := h2.Sum64()
	if hash2%2 == 0 {
		hash2++
	}

	combined := hash1 + uint64(i)*hash2
	return int(combined % uint64(bf.size))
}

// MarshalBinary packs the filter's bits into bytes for on-disk storage.
func (bf *BloomFilter) MarshalBinary() []byte {
	data := make([]byte, (bf.size+7)/8)
	for i := 0; i < bf.size; i++ {
		if bf.bits[i] {
			data[i/8] |= 1 << (i % 8)
		}
	}
	return data
}

// UnmarshalBinary restores a filter's bits from MarshalBinary's output.
// The filter must already be sized (via NewBloomFilter) to match.
func (bf *BloomFilter) UnmarshalBinary(data []byte) error {
	for i := 0; i < bf.size && i/8 < len(data); i++ {
		bf.bits[i] = (data[i/8] & (1 << (i % 8))) != 0
	}
	return nil
}

package sstable

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/golang/snappy"

	"github.com/lsmkv/lsmkv/pkg/cache"
)

// Builder assembles a new SSTable file from entries supplied in strictly
// ascending key order, splitting them into fixed-size compressed blocks.
type Builder struct {
	blockSize int

	blockBuf    []byte
	blockFirst  []byte
	blockLast   []byte
	blocks      []blockIndexEntry
	dataBuf     []byte
	bloom       *BloomFilter
	entryCount  int
	firstKey    []byte
	lastKey     []byte
}

// NewBuilder creates a builder that flushes a block once its uncompressed
// contents reach approximately blockSize bytes.
func NewBuilder(blockSize int, expectedEntries int) *Builder {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &Builder{
		blockSize: blockSize,
		bloom:     NewBloomFilter(expectedEntries, 0.01),
	}
}

// Add appends an entry. value == nil encodes a tombstone. Keys must be
// added in ascending order; Add does not re-sort.
func (b *Builder) Add(key, value []byte) {
	if b.firstKey == nil {
		b.firstKey = append([]byte(nil), key...)
	}
	b.lastKey = append([]byte(nil), key...)

	if b.blockFirst == nil {
		b.blockFirst = append([]byte(nil), key...)
	}
	b.blockLast = append([]byte(nil), key...)

	b.blockBuf = binary.LittleEndian.AppendUint32(b.blockBuf, uint32(len(key)))
	b.blockBuf = append(b.blockBuf, key...)
	if value == nil {
		b.blockBuf = binary.LittleEndian.AppendUint32(b.blockBuf, tombstoneLen)
	} else {
		b.blockBuf = binary.LittleEndian.AppendUint32(b.blockBuf, uint32(len(value)))
		b.blockBuf = append(b.blockBuf, value...)
	}

	b.bloom.Add(key)
	b.entryCount++

	if len(b.blockBuf) >= b.blockSize {
		b.flushBlock()
	}
}

// EstimatedSize returns the approximate encoded size so far, used by the
// compaction executor to decide when to roll a new output table.
func (b *Builder) EstimatedSize() int {
	return len(b.dataBuf) + len(b.blockBuf)
}

// IsEmpty reports whether any entries have been added.
func (b *Builder) IsEmpty() bool {
	return b.entryCount == 0
}

func (b *Builder) flushBlock() {
	if len(b.blockBuf) == 0 {
		return
	}
	compressed := snappy.Encode(nil, b.blockBuf)
	b.blocks = append(b.blocks, blockIndexEntry{
		firstKey: b.blockFirst,
		lastKey:  b.blockLast,
		offset:   uint64(headerSize + len(b.dataBuf)),
		length:   uint32(len(compressed)),
	})
	b.dataBuf = append(b.dataBuf, compressed...)
	b.blockBuf = b.blockBuf[:0]
	b.blockFirst = nil
	b.blockLast = nil
}

// Build writes the assembled table to path and returns an open reader
// for it, wired to blockCache (nil disables block caching for this table).
func (b *Builder) Build(id uint64, path string, blockCache *cache.BlockCache) (*Table, error) {
	b.flushBlock()

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: create %s: %w", path, err)
	}
	w := bufio.NewWriter(file)

	indexOffset := uint64(headerSize + len(b.dataBuf))

	indexBuf := make([]byte, 0, 4+len(b.blocks)*32)
	indexBuf = binary.LittleEndian.AppendUint32(indexBuf, uint32(len(b.blocks)))
	for _, blk := range b.blocks {
		indexBuf = binary.LittleEndian.AppendUint32(indexBuf, uint32(len(blk.firstKey)))
		indexBuf = append(indexBuf, blk.firstKey...)
		indexBuf = binary.LittleEndian.AppendUint32(indexBuf, uint32(len(blk.lastKey)))
		indexBuf = append(indexBuf, blk.lastKey...)
		indexBuf = binary.LittleEndian.AppendUint64(indexBuf, blk.offset)
		indexBuf = binary.LittleEndian.AppendUint32(indexBuf, blk.length)
	}

	bloomData := b.bloom.MarshalBinary()
	bloomOffset := indexOffset + uint64(len(indexBuf))

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], version)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(b.entryCount))
	binary.LittleEndian.PutUint64(hdr[16:24], indexOffset)
	binary.LittleEndian.PutUint64(hdr[24:32], bloomOffset)

	if _, err := w.Write(hdr); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := w.Write(b.dataBuf); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := w.Write(indexBuf); err != nil {
		file.Close()
		return nil, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(bloomData))); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := w.Write(bloomData); err != nil {
		file.Close()
		return nil, err
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, err
	}
	file.Close()

	return Open(id, path, blockCache)
}

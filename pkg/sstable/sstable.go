// Package sstable implements the on-disk sorted-string table format: a
// sequence of snappy-compressed blocks of sorted key/value entries, a
// sparse block index, and a table-level bloom filter for fast negative
// lookups.
package sstable

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"

	"github.com/lsmkv/lsmkv/pkg/cache"
	"github.com/lsmkv/lsmkv/pkg/wal"
)

const (
	magic   = 0x5353544B // "SSTK"
	version = 1

	tombstoneLen = 0xFFFFFFFF
)

// blockIndexEntry records where one compressed block lives in the file
// and the range of keys it covers, letting Get and iterators binary
// search down to a single block before reading anything.
type blockIndexEntry struct {
	firstKey []byte
	lastKey  []byte
	offset   uint64
	length   uint32
}

// Table is a read handle on an SSTable file.
type Table struct {
	id    uint64
	path  string
	file  *os.File
	index []blockIndexEntry
	bloom *BloomFilter
	cache *cache.BlockCache

	entryCount int
	firstKey   []byte
	lastKey    []byte
}

// ID returns the table's identifier, used for its on-disk filename and
// cache keys.
func (t *Table) ID() uint64 { return t.id }

// FirstKey returns the smallest key in the table.
func (t *Table) FirstKey() []byte { return t.firstKey }

// LastKey returns the largest key in the table.
func (t *Table) LastKey() []byte { return t.lastKey }

// EntryCount returns the number of entries (including tombstones).
func (t *Table) EntryCount() int { return t.entryCount }

// Path returns the table's backing file path.
func (t *Table) Path() string { return t.path }

// Size returns the table file's size in bytes, used by compaction
// strategies that size levels by bytes rather than file count.
func (t *Table) Size() int64 {
	size, err := wal.FileSize(t.path)
	if err != nil {
		return 0
	}
	return size
}

// header layout: magic(4) version(4) entryCount(8) indexOffset(8) bloomOffset(8)
const headerSize = 4 + 4 + 8 + 8 + 8

// Open opens an existing SSTable file, reading its index and bloom
// filter into memory. Data blocks are read lazily (and cached) on demand.
func Open(id uint64, path string, blockCache *cache.BlockCache) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", path, err)
	}

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(file, hdr); err != nil {
		file.Close()
		return nil, fmt.Errorf("sstable: read header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != magic {
		file.Close()
		return nil, fmt.Errorf("sstable: bad magic in %s", path)
	}
	entryCount := binary.LittleEndian.Uint64(hdr[8:16])
	indexOffset := binary.LittleEndian.Uint64(hdr[16:24])
	bloomOffset := binary.LittleEndian.Uint64(hdr[24:32])

	index, err := readIndex(file, int64(indexOffset))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sstable: read index: %w", err)
	}

	bloom, err := readBloom(file, int64(bloomOffset), int(entryCount))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sstable: read bloom filter: %w", err)
	}

	t := &Table{
		id:         id,
		path:       path,
		file:       file,
		index:      index,
		bloom:      bloom,
		cache:      blockCache,
		entryCount: int(entryCount),
	}
	if len(index) > 0 {
		t.firstKey = index[0].firstKey
		t.lastKey = index[len(index)-1].lastKey
	}
	return t, nil
}

// Close closes the table's file handle.
func (t *Table) Close() error {
	return t.file.Close()
}

// Remove closes and deletes the table's file, and drops any of its
// blocks from the shared cache.
func (t *Table) Remove() error {
	t.Close()
	if t.cache != nil {
		t.cache.Invalidate(t.id)
	}
	return os.Remove(t.path)
}

// Get looks up key. found is false if the key is absent. When found is
// true and value is nil, the stored entry is a tombstone.
func (t *Table) Get(key []byte) (value []byte, found bool, err error) {
	if t.bloom != nil && !t.bloom.MayContain(key) {
		return nil, false, nil
	}

	blockIdx := t.blockFor(key)
	if blockIdx < 0 {
		return nil, false, nil
	}

	entries, err := t.readBlock(blockIdx)
	if err != nil {
		return nil, false, err
	}

	i := sort.Search(len(entries), func(i int) bool {
		return string(entries[i].key) >= string(key)
	})
	if i < len(entries) && string(entries[i].key) == string(key) {
		e := entries[i]
		return e.value, true, nil
	}
	return nil, false, nil
}

// blockFor returns the index of the block that could contain key, or -1
// if key falls outside the table's range.
func (t *Table) blockFor(key []byte) int {
	i := sort.Search(len(t.index), func(i int) bool {
		return string(t.index[i].lastKey) >= string(key)
	})
	if i >= len(t.index) {
		return -1
	}
	if string(t.index[i].firstKey) > string(key) {
		return -1
	}
	return i
}

type blockEntry struct {
	key   []byte
	value []byte
}

func (t *Table) readBlock(i int) ([]blockEntry, error) {
	if t.cache != nil {
		if raw, ok := t.cache.Get(cache.Key{TableID: t.id, Block: i}); ok {
			return decodeBlock(raw)
		}
	}

	ent := t.index[i]
	compressed := make([]byte, ent.length)
	if _, err := t.file.ReadAt(compressed, int64(ent.offset)); err != nil {
		return nil, fmt.Errorf("sstable: read block %d: %w", i, err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("sstable: decompress block %d: %w", i, err)
	}

	if t.cache != nil {
		t.cache.Put(cache.Key{TableID: t.id, Block: i}, raw)
	}
	return decodeBlock(raw)
}

// decodeBlock parses a raw (decompressed) block payload into its
// entries. Block layout: repeated [keyLen:4][key][valLen:4][value],
// valLen == tombstoneLen marks a delete.
func decodeBlock(raw []byte) ([]blockEntry, error) {
	var entries []blockEntry
	off := 0
	for off < len(raw) {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("sstable: truncated block")
		}
		keyLen := binary.LittleEndian.Uint32(raw[off:])
		off += 4
		if off+int(keyLen) > len(raw) {
			return nil, fmt.Errorf("sstable: truncated block key")
		}
		key := raw[off : off+int(keyLen)]
		off += int(keyLen)

		if off+4 > len(raw) {
			return nil, fmt.Errorf("sstable: truncated block")
		}
		valLen := binary.LittleEndian.Uint32(raw[off:])
		off += 4

		var value []byte
		if valLen != tombstoneLen {
			if off+int(valLen) > len(raw) {
				return nil, fmt.Errorf("sstable: truncated block value")
			}
			value = raw[off : off+int(valLen)]
			off += int(valLen)
		}
		entries = append(entries, blockEntry{key: key, value: value})
	}
	return entries, nil
}

// Iterator returns an ascending iterator over the whole table.
func (t *Table) Iterator() *Iterator {
	return &Iterator{table: t, blockNo: -1}
}

func readIndex(r io.ReaderAt, offset int64) ([]blockIndexEntry, error) {
	sr := io.NewSectionReader(r, offset, 1<<62)
	br := bufio.NewReader(sr)

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	index := make([]blockIndexEntry, count)
	for i := range index {
		firstKey, err := readLenPrefixed(br)
		if err != nil {
			return nil, err
		}
		lastKey, err := readLenPrefixed(br)
		if err != nil {
			return nil, err
		}
		var offset uint64
		var length uint32
		if err := binary.Read(br, binary.LittleEndian, &offset); err != nil {
			return nil, err
		}
		if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		index[i] = blockIndexEntry{firstKey: firstKey, lastKey: lastKey, offset: offset, length: length}
	}
	return index, nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var l uint32
	if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
		return nil, err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readBloom(r io.ReaderAt, offset int64, entryCount int) (*BloomFilter, error) {
	sr := io.NewSectionReader(r, offset, 1<<62)
	br := bufio.NewReader(sr)

	var size uint32
	if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, err
	}

	bloom := NewBloomFilter(entryCount, 0.01)
	if err := bloom.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return bloom, nil
}

package sstable

import (
	"fmt"
	"path/filepath"
	"testing"
)

func buildTable(t *testing.T, dir string, id uint64, n int) *Table {
	t.Helper()
	b := NewBuilder(256, n)
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		if i%5 == 0 {
			b.Add(key, nil)
			continue
		}
		b.Add(key, []byte(fmt.Sprintf("value-%04d", i)))
	}
	tbl, err := b.Build(id, filepath.Join(dir, fmt.Sprintf("%d.sst", id)), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tbl
}

func TestBuilderAndGet(t *testing.T) {
	dir := t.TempDir()
	tbl := buildTable(t, dir, 1, 50)
	defer tbl.Close()

	val, found, err := tbl.Get([]byte("key-0003"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(val) != "value-0003" {
		t.Fatalf("Get(key-0003) = %q, %v", val, found)
	}

	val, found, err = tbl.Get([]byte("key-0000"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || val != nil {
		t.Fatalf("expected tombstone at key-0000, got %q, %v", val, found)
	}

	_, found, err = tbl.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("expected missing key to not be found")
	}
}

func TestTableIterator(t *testing.T) {
	dir := t.TempDir()
	tbl := buildTable(t, dir, 2, 30)
	defer tbl.Close()

	it := tbl.Iterator()
	it.SeekToFirst()
	count := 0
	var prev string
	for it.Valid() {
		k := string(it.Key())
		if count > 0 && k <= prev {
			t.Fatalf("keys not ascending: %s <= %s", k, prev)
		}
		prev = k
		count++
		it.Next()
	}
	if it.Err() != nil {
		t.Fatalf("iterator error: %v", it.Err())
	}
	if count != 30 {
		t.Fatalf("expected 30 entries, got %d", count)
	}
}

func TestTableIteratorSeek(t *testing.T) {
	dir := t.TempDir()
	tbl := buildTable(t, dir, 3, 40)
	defer tbl.Close()

	it := tbl.Iterator()
	it.Seek([]byte("key-0020"))
	if !it.Valid() || string(it.Key()) != "key-0020" {
		t.Fatalf("Seek(key-0020) landed on %q", it.Key())
	}
}

func TestReopenTable(t *testing.T) {
	dir := t.TempDir()
	tbl := buildTable(t, dir, 4, 20)
	path := tbl.Path()
	tbl.Close()

	reopened, err := Open(4, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	val, found, err := reopened.Get([]byte("key-0001"))
	if err != nil || !found || string(val) != "value-0001" {
		t.Fatalf("Get after reopen = %q, %v, %v", val, found, err)
	}
	if reopened.EntryCount() != 20 {
		t.Fatalf("EntryCount = %d, want 20", reopened.EntryCount())
	}
}

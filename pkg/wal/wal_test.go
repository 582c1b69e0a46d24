package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWALAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000001.wal")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := w.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w2.Close()

	var got []Record
	if err := w2.Replay(func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Op != OpPut || string(got[0].Key) != "a" || string(got[0].Value) != "1" {
		t.Fatalf("unexpected record 0: %+v", got[0])
	}
	if got[2].Op != OpDelete || string(got[2].Key) != "a" {
		t.Fatalf("unexpected record 2: %+v", got[2])
	}
}

func TestWALReplayStopsAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000002.wal")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Put([]byte("x"), []byte("y")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	w2, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w2.Close()

	count := 0
	if err := w2.Replay(func(Record) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected truncated record to be skipped, got %d records", count)
	}
}

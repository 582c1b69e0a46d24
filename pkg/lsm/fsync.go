package lsm

import (
	"bytes"
	"os"

	"github.com/lsmkv/lsmkv/pkg/sstable"
)

// fsyncDir fsyncs a directory so a newly created or removed file's
// directory entry is itself durable, not just the file's own contents.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// keyInRange reports whether key falls within t's [FirstKey, LastKey]
// range, used to skip tables that cannot possibly contain key before
// paying for a bloom filter check or a block read.
func keyInRange(t *sstable.Table, key []byte) bool {
	if t == nil {
		return false
	}
	return bytes.Compare(t.FirstKey(), key) <= 0 && bytes.Compare(key, t.LastKey()) <= 0
}

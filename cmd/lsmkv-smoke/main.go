package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lsmkv/lsmkv/pkg/lsm"
)

func main() {
	dir := flag.String("dir", "./data/smoke-lsm", "Storage directory")
	flag.Parse()

	os.RemoveAll(*dir)

	fmt.Println("Creating storage...")
	opts := lsm.DefaultOptions(*dir)
	opts.TargetSSTSizeBytes = 1024 // freeze a memtable once its keys and values reach 1 KiB
	opts.NumMemtableLimit = 2

	db, err := lsm.Open(opts)
	if err != nil {
		log.Fatalf("open: %v", err)
	}

	fmt.Println("Writing data...")
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key%03d", i))
		value := []byte(fmt.Sprintf("value%03d", i))
		if err := db.Put(key, value); err != nil {
			log.Fatalf("put: %v", err)
		}
	}

	fmt.Println("Deleting a few keys...")
	for i := 0; i < 10; i += 3 {
		if err := db.Delete([]byte(fmt.Sprintf("key%03d", i))); err != nil {
			log.Fatalf("delete: %v", err)
		}
	}

	fmt.Println("Reading back from memtable/immutables...")
	checkReads(db)

	fmt.Println("Forcing a freeze, flush, and full compaction...")
	if err := db.ForceFreezeMemtable(); err != nil {
		log.Fatalf("freeze: %v", err)
	}
	for {
		if err := db.ForceFlushNextImmMemtable(); err != nil {
			if err == lsm.ErrEmptyImmutableQueue {
				break
			}
			log.Fatalf("flush: %v", err)
		}
	}
	if err := db.ForceFullCompaction(); err != nil {
		log.Fatalf("compact: %v", err)
	}

	fmt.Println("Reading back after flush/compaction...")
	checkReads(db)

	fmt.Println("Closing...")
	if err := db.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}

	fmt.Println("Reopening and recovering...")
	db2, err := lsm.Open(opts)
	if err != nil {
		log.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	fmt.Println("Reading back after recovery...")
	checkReads(db2)

	fmt.Println("Smoke test passed.")
}

func checkReads(db *lsm.DB) {
	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key%03d", i))
		v, err := db.Get(key)
		deleted := i < 10 && i%3 == 0
		switch {
		case deleted && err == nil:
			log.Fatalf("key %s: expected deleted, got %q", key, v)
		case !deleted && err != nil:
			log.Fatalf("key %s: expected present, got error %v", key, err)
		case !deleted && string(v) != fmt.Sprintf("value%03d", i):
			log.Fatalf("key %s: expected value%03d, got %q", key, i, v)
		}
	}
	fmt.Println("  all 50 keys verified")
}

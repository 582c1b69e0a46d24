package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/lsmkv/lsmkv/pkg/lsm"
)

func main() {
	dir := flag.String("dir", "./data/bench-lsm", "Storage directory")
	writes := flag.Int("writes", 100000, "Number of writes")
	reads := flag.Int("reads", 10000, "Number of reads")
	valueSize := flag.Int("value-size", 1024, "Value size in bytes")
	compaction := flag.String("compaction", "leveled", "Compaction strategy: none|simple|leveled|tiered")
	flag.Parse()

	fmt.Printf("lsmkv benchmark\n")
	fmt.Printf("===============\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Dir: %s\n", *dir)
	fmt.Printf("  Writes: %d\n", *writes)
	fmt.Printf("  Reads: %d\n", *reads)
	fmt.Printf("  Value size: %d bytes\n", *valueSize)
	fmt.Printf("  Compaction: %s\n\n", *compaction)

	os.RemoveAll(*dir)

	opts := lsm.DefaultOptions(*dir)
	opts.CompactionKind = lsm.CompactionKind(*compaction)
	switch opts.CompactionKind {
	case lsm.CompactionSimple:
		opts.Leveled = nil
		opts.SimpleLeveled = &lsm.SimpleLeveledOptions{SizeRatioPercent: 200, Level0FileLimit: 4, MaxLevels: 6}
	case lsm.CompactionTiered:
		opts.Leveled = nil
		opts.Tiered = &lsm.TieredOptions{SizeRatioPercent: 200, MinMergeWidth: 2, MaxMergeWidth: 0, MaxSortedRuns: 8, MaxSizeAmplificationPercent: 200}
	case lsm.CompactionNone:
		opts.Leveled = nil
	}

	db, err := lsm.Open(opts)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer db.Close()

	fmt.Printf("Benchmark 1: sequential writes\n")
	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte(rand.Intn(256))
	}

	start := time.Now()
	for i := 0; i < *writes; i++ {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(i))
		if err := db.Put(key, value); err != nil {
			log.Fatalf("put: %v", err)
		}
	}
	duration := time.Since(start)
	fmt.Printf("  %d writes in %v (%.0f writes/sec)\n\n", *writes, duration, float64(*writes)/duration.Seconds())

	fmt.Printf("Waiting for background flush/compaction to settle...\n")
	time.Sleep(2 * time.Second)
	if err := db.ForceFullCompaction(); err != nil {
		log.Printf("full compaction: %v", err)
	}

	fmt.Printf("\nBenchmark 2: random reads\n")
	start = time.Now()
	found := 0
	for i := 0; i < *reads; i++ {
		idx := rand.Intn(*writes)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(idx))
		if _, err := db.Get(key); err == nil {
			found++
		}
	}
	duration = time.Since(start)
	fmt.Printf("  %d reads in %v (%.0f reads/sec), found %d/%d\n\n", *reads, duration, float64(*reads)/duration.Seconds(), found, *reads)

	fmt.Printf("Benchmark 3: range scan\n")
	lower := make([]byte, 8)
	upper := make([]byte, 8)
	binary.BigEndian.PutUint64(upper, uint64(*writes/10))
	start = time.Now()
	it, err := db.Scan(lsm.IncludedBound(lower), lsm.ExcludedBound(upper))
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	count := 0
	for it.Valid() {
		count++
		if err := it.Next(); err != nil {
			log.Fatalf("scan next: %v", err)
		}
	}
	fmt.Printf("  scanned %d entries in %v\n", count, time.Since(start))

	fmt.Printf("\nBenchmark complete.\n")
}

package manifest

import (
	"path/filepath"
	"testing"
)

func TestManifestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MANIFEST")

	m, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.LogFlush(1); err != nil {
		t.Fatalf("LogFlush: %v", err)
	}
	if err := m.LogCompaction(Record{
		TaskDescription: "leveled L0->L1",
		Shape:           ShapeL0ToLevel,
		LowerLevel:      0,
		LowerIDs:        []uint64{1, 2},
		UpperLevel:      1,
		UpperIDs:        nil,
		IsBottomLevel:   true,
		OutputIDs:       []uint64{3},
	}); err != nil {
		t.Fatalf("LogCompaction: %v", err)
	}
	instanceID := m.InstanceID
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, records, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m2.Close()

	if m2.InstanceID != instanceID {
		t.Fatalf("instance id mismatch after reopen")
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Kind != KindFlush || records[0].FlushedTableID != 1 {
		t.Fatalf("unexpected record 0: %+v", records[0])
	}
	rec := records[1]
	if rec.Kind != KindCompaction || len(rec.LowerIDs) != 2 || rec.OutputIDs[0] != 3 {
		t.Fatalf("unexpected record 1: %+v", rec)
	}
	if !rec.IsBottomLevel || rec.Shape != ShapeL0ToLevel || rec.UpperLevel != 1 {
		t.Fatalf("unexpected record 1 shape fields: %+v", rec)
	}
}

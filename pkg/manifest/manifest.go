// Package manifest implements the append-only, crash-recoverable record
// of state-changing events (flushes and compactions) that lets the
// engine reconstruct its level structure on startup without replaying
// every WAL from scratch.
package manifest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
)

// RecordKind identifies the kind of event a manifest record describes.
type RecordKind uint8

const (
	KindFlush RecordKind = iota
	KindCompaction
)

// CompactionShape mirrors the lsm package's CompactionTaskKind so a
// manifest record carries enough structure to rebuild the exact task a
// compaction controller produced, without this package importing lsm.
type CompactionShape uint8

const (
	ShapeL0ToLevel CompactionShape = iota
	ShapeLevelToLevel
	ShapeTiered
)

// Record is one manifest entry.
type Record struct {
	Kind RecordKind

	// Flush
	FlushedTableID uint64

	// Compaction
	TaskDescription    string
	Shape              CompactionShape
	LowerLevel         int32
	LowerIDs           []uint64
	UpperLevel         int32
	UpperIDs           []uint64
	IsBottomLevel      bool
	TierIndices        []int32
	BottomTierIncluded bool
	OutputIDs          []uint64
}

// Manifest is the append-only manifest log for one engine instance.
type Manifest struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	writer     *bufio.Writer
	InstanceID uuid.UUID
}

// Create creates a new manifest file stamped with a fresh instance id.
func Create(path string) (*Manifest, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("manifest: create %s: %w", path, err)
	}
	id := uuid.New()
	m := &Manifest{path: path, file: file, writer: bufio.NewWriter(file), InstanceID: id}
	if err := m.writeHeader(id); err != nil {
		file.Close()
		return nil, err
	}
	return m, nil
}

// Open opens an existing manifest file for appending and returns its
// records in append order plus the instance id recorded in its header.
func Open(path string) (*Manifest, []Record, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}

	reader := bufio.NewReader(file)
	id, err := readHeader(reader)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("manifest: read header: %w", err)
	}

	var records []Record
	for {
		rec, err := readRecord(reader)
		if err == io.EOF || err == io.ErrUnexpectedEOF || err == errChecksumMismatch {
			break
		}
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		records = append(records, rec)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, nil, err
	}

	m := &Manifest{path: path, file: file, writer: bufio.NewWriter(file), InstanceID: id}
	return m, records, nil
}

func (m *Manifest) writeHeader(id uuid.UUID) error {
	idBytes, _ := id.MarshalBinary()
	if _, err := m.writer.Write(idBytes); err != nil {
		return err
	}
	return m.writer.Flush()
}

func readHeader(r io.Reader) (uuid.UUID, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(r, buf); err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], buf)
	return id, nil
}

// LogFlush appends a flush record naming the newly created table id.
func (m *Manifest) LogFlush(tableID uint64) error {
	return m.append(Record{Kind: KindFlush, FlushedTableID: tableID})
}

// LogCompaction appends a record describing a completed compaction in
// enough detail (shape, levels, input/output ids) for recovery to rebuild
// the exact CompactionTask that produced it and feed it back through the
// originating controller's ApplyResult.
func (m *Manifest) LogCompaction(rec Record) error {
	rec.Kind = KindCompaction
	return m.append(rec)
}

// record wire format:
// [kind:1][flushedID:8]
// [descLen:4][desc]
// [shape:1][lowerLevel:4][lowerIDs...][upperLevel:4][upperIDs...][bottom:1]
// [tierIndices...][bottomTierIncluded:1][outputIDs...][crc:4]
func (m *Manifest) append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := []byte{byte(rec.Kind)}
	buf = binary.LittleEndian.AppendUint64(buf, rec.FlushedTableID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.TaskDescription)))
	buf = append(buf, rec.TaskDescription...)

	buf = append(buf, byte(rec.Shape))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rec.LowerLevel))
	buf = appendIDs(buf, rec.LowerIDs)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rec.UpperLevel))
	buf = appendIDs(buf, rec.UpperIDs)
	buf = append(buf, boolByte(rec.IsBottomLevel))
	buf = appendInts(buf, rec.TierIndices)
	buf = append(buf, boolByte(rec.BottomTierIncluded))
	buf = appendIDs(buf, rec.OutputIDs)

	checksum := crc32.ChecksumIEEE(buf)
	buf = binary.LittleEndian.AppendUint32(buf, checksum)

	if _, err := m.writer.Write(buf); err != nil {
		return fmt.Errorf("manifest: write record: %w", err)
	}
	if err := m.writer.Flush(); err != nil {
		return fmt.Errorf("manifest: flush: %w", err)
	}
	return m.file.Sync()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendIDs(buf []byte, ids []uint64) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint64(buf, id)
	}
	return buf
}

func appendInts(buf []byte, ints []int32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ints)))
	for _, v := range ints {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}

var errChecksumMismatch = fmt.Errorf("manifest: checksum mismatch")

func readRecord(r *bufio.Reader) (Record, error) {
	var rec Record

	kindByte, err := r.ReadByte()
	if err != nil {
		return rec, err
	}
	start := []byte{kindByte}

	var flushedID uint64
	if err := binary.Read(r, binary.LittleEndian, &flushedID); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = binary.LittleEndian.AppendUint64(start, flushedID)

	var descLen uint32
	if err := binary.Read(r, binary.LittleEndian, &descLen); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = binary.LittleEndian.AppendUint32(start, descLen)
	desc := make([]byte, descLen)
	if _, err := io.ReadFull(r, desc); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = append(start, desc...)

	shapeByte, err := r.ReadByte()
	if err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = append(start, shapeByte)

	var lowerLevel uint32
	if err := binary.Read(r, binary.LittleEndian, &lowerLevel); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = binary.LittleEndian.AppendUint32(start, lowerLevel)

	lowerIDs, raw, err := readIDs(r)
	if err != nil {
		return rec, err
	}
	start = append(start, raw...)

	var upperLevel uint32
	if err := binary.Read(r, binary.LittleEndian, &upperLevel); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = binary.LittleEndian.AppendUint32(start, upperLevel)

	upperIDs, raw, err := readIDs(r)
	if err != nil {
		return rec, err
	}
	start = append(start, raw...)

	bottomByte, err := r.ReadByte()
	if err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = append(start, bottomByte)

	tierIndices, raw, err := readInts(r)
	if err != nil {
		return rec, err
	}
	start = append(start, raw...)

	bottomTierByte, err := r.ReadByte()
	if err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	start = append(start, bottomTierByte)

	outputIDs, raw, err := readIDs(r)
	if err != nil {
		return rec, err
	}
	start = append(start, raw...)

	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return rec, io.ErrUnexpectedEOF
	}
	if crc32.ChecksumIEEE(start) != checksum {
		return rec, errChecksumMismatch
	}

	rec.Kind = RecordKind(kindByte)
	rec.FlushedTableID = flushedID
	rec.TaskDescription = string(desc)
	rec.Shape = CompactionShape(shapeByte)
	rec.LowerLevel = int32(lowerLevel)
	rec.LowerIDs = lowerIDs
	rec.UpperLevel = int32(upperLevel)
	rec.UpperIDs = upperIDs
	rec.IsBottomLevel = bottomByte != 0
	rec.TierIndices = tierIndices
	rec.BottomTierIncluded = bottomTierByte != 0
	rec.OutputIDs = outputIDs
	return rec, nil
}

func readIDs(r io.Reader) (ids []uint64, raw []byte, err error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, io.ErrUnexpectedEOF
	}
	raw = binary.LittleEndian.AppendUint32(raw, count)
	ids = make([]uint64, count)
	for i := range ids {
		if err := binary.Read(r, binary.LittleEndian, &ids[i]); err != nil {
			return nil, nil, io.ErrUnexpectedEOF
		}
		raw = binary.LittleEndian.AppendUint64(raw, ids[i])
	}
	return ids, raw, nil
}

func readInts(r io.Reader) (ints []int32, raw []byte, err error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, io.ErrUnexpectedEOF
	}
	raw = binary.LittleEndian.AppendUint32(raw, count)
	ints = make([]int32, count)
	for i := range ints {
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, nil, io.ErrUnexpectedEOF
		}
		ints[i] = int32(v)
		raw = binary.LittleEndian.AppendUint32(raw, v)
	}
	return ints, raw, nil
}

// Close flushes and closes the manifest file.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writer.Flush(); err != nil {
		return err
	}
	if err := m.file.Sync(); err != nil {
		return err
	}
	return m.file.Close()
}

package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "00001.sst", "00001.sst"},
		{"cold", "00001.sst", "cold/00001.sst"},
		{"cold/tier1", "00001.sst", "cold/tier1/00001.sst"},
	}
	for _, c := range cases {
		if got := objectKey(c.prefix, c.key); got != c.want {
			t.Errorf("objectKey(%q, %q) = %q, want %q", c.prefix, c.key, got, c.want)
		}
	}
}

// fakeUploader implements Uploader without touching the network, letting
// UploadFile's framing (open, stat, read full contents) be tested in
// isolation from the real S3Uploader.
type fakeUploader struct {
	err     error
	gotKey  string
	gotBody []byte
	gotSize int64
}

func (f *fakeUploader) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.gotKey = key
	f.gotBody = body
	f.gotSize = size
	return nil
}

func TestUploadFileReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00007.sst")
	content := []byte("sorted table bytes")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	u := &fakeUploader{}
	if err := UploadFile(context.Background(), u, "00007.sst", path); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if u.gotKey != "00007.sst" {
		t.Errorf("gotKey = %q, want 00007.sst", u.gotKey)
	}
	if !bytes.Equal(u.gotBody, content) {
		t.Errorf("gotBody = %q, want %q", u.gotBody, content)
	}
	if u.gotSize != int64(len(content)) {
		t.Errorf("gotSize = %d, want %d", u.gotSize, len(content))
	}
}

func TestUploadFilePropagatesUploadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.sst")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	u := &fakeUploader{err: errors.New("boom")}
	if err := UploadFile(context.Background(), u, "table.sst", path); err == nil {
		t.Fatal("expected error from UploadFile when Upload fails")
	}
}

func TestUploadFileMissingSource(t *testing.T) {
	u := &fakeUploader{}
	err := UploadFile(context.Background(), u, "key", filepath.Join(t.TempDir(), "missing.sst"))
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
}

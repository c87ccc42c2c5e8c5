package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// BlobStorer is the write-once/delete-by-path file store the ingestion and
// deletion orchestrators use.
type BlobStorer interface {
	Save(filename string, r io.Reader) (path string, size int64, err error)
	Delete(path string) error
}

// DiskBlobStore keeps uploaded files in a flat directory. Names get a
// timestamp prefix for uniqueness and are sanitized for the filesystem.
type DiskBlobStore struct {
	dir string
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

func NewDiskBlobStore(dir string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskBlobStore{dir: dir}, nil
}

// Save streams r into a new file and returns its path and size.
func (s *DiskBlobStore) Save(filename string, r io.Reader) (string, int64, error) {
	var (
		path string
		f    *os.File
		err  error
	)
	for attempt := 0; ; attempt++ {
		name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeName(filename))
		path = filepath.Join(s.dir, name)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		// Same-nanosecond collision: pick a fresh timestamp.
		if !os.IsExist(err) || attempt >= 3 {
			return "", 0, fmt.Errorf("create blob %s: %w", path, err)
		}
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write blob %s: %w", path, err)
	}
	return path, size, nil
}

// Delete removes the blob. A missing file is not an error: deletion must be
// idempotent and tolerate earlier partial failures.
func (s *DiskBlobStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

func sanitizeName(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	if name == "" {
		name = "upload"
	}
	return name
}

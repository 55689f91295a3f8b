package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks partially written blobs. Keys never start with it.
const tempPrefix = ".tmp-"

// ErrInvalidKey is returned for keys that are empty or would escape the store directory.
var ErrInvalidKey = errors.New("invalid blob key")

// Error describes a failed blob operation.
type Error struct {
	Op  string // put, delete, list, stat
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("blob store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blob store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BlobStore keeps blobs as files in a single directory, one file per key.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the directory if needed and returns a store rooted at it.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	return &BlobStore{dir: dir}, nil
}

// Dir returns the directory holding the blobs.
func (s *BlobStore) Dir() string {
	return s.dir
}

// Path returns the file path for key.
func (s *BlobStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Put streams r into the blob stored under key and returns the number of bytes written.
// The data is written to a temp file and renamed into place, so a failed Put
// never leaves a partial file under key. An existing blob is replaced.
func (s *BlobStore) Put(key string, r io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return 0, &Error{Op: "put", Key: key, Err: err}
	}

	success = true
	return n, nil
}

// Delete removes the blob stored under key. Deleting an absent key succeeds.
func (s *BlobStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *BlobStore) Exists(key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, &Error{Op: "stat", Key: key, Err: err}
	}
	info, err := os.Stat(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Op: "stat", Key: key, Err: err}
	}
	return !info.IsDir(), nil
}

// ListKeys returns every stored key. Directories and in-flight temp files are skipped.
func (s *BlobStore) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || IsTempName(entry.Name()) {
			continue
		}
		keys = append(keys, entry.Name())
	}
	return keys, nil
}

// IsTempName reports whether name is an in-flight temp file.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// ValidateKey rejects keys that cannot name a file directly inside the store directory.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, "/\\\x00") || IsTempName(key) {
		return ErrInvalidKey
	}
	return nil
}

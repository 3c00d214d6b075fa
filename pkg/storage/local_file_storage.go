package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const uploadTempPrefix = ".upload-"

// LocalFileStorage is a StorageEngine that maps object keys onto files below
// a root directory, so "a/b/c.jpg" lives at <root>/a/b/c.jpg. ETags are the
// SHA-256 hex digest of the file contents and content types are derived from
// the file extension.
type LocalFileStorage struct {
	dataDir string
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at dataDir.
func NewLocalFileStorage(dataDir string) *LocalFileStorage {
	return &LocalFileStorage{dataDir: dataDir}
}

// ErrInvalidObjectKey is returned for keys that cannot be mapped onto a file
// below the data directory.
var ErrInvalidObjectKey = errors.New("invalid object key")

// isValidObjectKey enforces basic key constraints: non-empty, at most 1024
// bytes, no control characters and no empty, "." or ".." segments. Keys are
// never cleaned, so every valid key names exactly one file.
func isValidObjectKey(key string) bool {
	if len(key) == 0 || len(key) > 1024 {
		return false
	}

	if strings.ContainsFunc(key, func(c rune) bool {
		return c < 0x20 || c == 0x7f
	}) {
		return false
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}

	return filepath.IsLocal(filepath.FromSlash(key))
}

// ObjectPath computes the filesystem path for key.
func ObjectPath(directory string, key string) (string, error) {
	if !isValidObjectKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectKey, key)
	}
	return filepath.Join(directory, filepath.FromSlash(key)), nil
}

func (s *LocalFileStorage) ListObjects(ctx context.Context, prefix string, delimiter string) (Listing, error) {
	if err := checkDelimiter(delimiter); err != nil {
		return Listing{}, err
	}

	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}

	if delimiter == "" {
		return s.listRecursive(prefix)
	}

	// The part of the prefix after the last slash filters entries of the
	// directory named by the part before it.
	dirPart, namePart := path.Split(prefix)
	dir := s.dataDir
	if dirPart != "" {
		if !isValidObjectKey(strings.TrimSuffix(dirPart, "/")) {
			return Listing{}, fmt.Errorf("invalid prefix %q", prefix)
		}
		dir = filepath.Join(s.dataDir, filepath.FromSlash(dirPart))
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Listing{}, nil
	}
	if err != nil {
		return Listing{}, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var listing Listing
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, uploadTempPrefix) || !strings.HasPrefix(name, namePart) {
			continue
		}

		switch {
		case entry.IsDir():
			listing.Prefixes = append(listing.Prefixes, dirPart+name+"/")
		case entry.Type().IsRegular():
			listing.Keys = append(listing.Keys, dirPart+name)
		}
	}

	return listing, nil
}

func (s *LocalFileStorage) listRecursive(prefix string) (Listing, error) {
	var listing Listing

	err := filepath.WalkDir(s.dataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), uploadTempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.dataDir, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			listing.Keys = append(listing.Keys, key)
		}
		return nil
	})

	if errors.Is(err, fs.ErrNotExist) {
		return Listing{}, nil
	}
	if err != nil {
		return Listing{}, fmt.Errorf("walk %s: %w", s.dataDir, err)
	}

	sort.Strings(listing.Keys)
	return listing, nil
}

func (s *LocalFileStorage) GetObject(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// No file can be stored under an invalid key, so reading one is a miss.
	objPath, err := ObjectPath(s.dataDir, key)
	if errors.Is(err, ErrInvalidObjectKey) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(objPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, ErrObjectNotFound
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("hash %s: %w", key, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Object{
		Key:          key,
		Body:         f,
		Size:         info.Size(),
		ETag:         hex.EncodeToString(h.Sum(nil)),
		LastModified: info.ModTime().UTC(),
		ContentType:  contentType,
	}, nil
}

// PutObject writes the payload to a temporary file next to its destination
// and moves it into place, so readers never observe a partial object. The
// content type is not persisted; GetObject derives it from the extension.
func (s *LocalFileStorage) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objPath, err := ObjectPath(s.dataDir, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(objPath), uploadTempPrefix+"*")
	if err != nil {
		return err
	}
	tempPath := tmp.Name()
	defer os.Remove(tempPath)

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("short write for %s: expected %d bytes, got %d", key, size, written)
	}

	return MoveFile(tempPath, objPath)
}

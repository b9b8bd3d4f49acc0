package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements Store on the local filesystem. Blobs live under a
// data directory and locators are absolute file paths; temporary files live
// in a separate directory.
type LocalStore struct {
	dataDir string
	tempDir string
}

// NewLocalStore creates a new LocalStore. Empty parameters default to
// "./results" for data and a "reframe" directory under os.TempDir() for
// temporary files. Both directories are created if missing.
func NewLocalStore(dataDir, tempDir string) (*LocalStore, error) {
	if dataDir == "" {
		dataDir = "results"
	}
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "reframe")
	}

	for _, dir := range []string{dataDir, tempDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &LocalStore{dataDir: dataDir, tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStore) TempDir() string {
	return s.tempDir
}

// Write persists a named blob under the data directory and returns its
// absolute path as the locator. The name may contain subdirectories.
func (s *LocalStore) Write(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.dataDir, filepath.Clean(name))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - path is rooted in the data directory
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write blob file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close blob file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve blob path: %w", err)
	}
	return abs, nil
}

// Read opens a blob by its path locator.
func (s *LocalStore) Read(ctx context.Context, locator string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(locator) // #nosec G304 - locator was produced by Write
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStore) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStore) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

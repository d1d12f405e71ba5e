package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bibble/internal/domain"
)

// FileStore persists generated artifacts onto the local filesystem under a
// single output directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath. The directory is
// created lazily on first write.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("storage: base path is required: %w", domain.ErrConfiguration)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the artifact under its filename and returns the full path.
// Bytes land in a temp file first and are renamed into place, so a reader
// never observes a partial file. Writing the same name again replaces it.
func (s *FileStore) Write(ctx context.Context, artifact domain.Artifact) (string, error) {
	if s == nil {
		return "", fmt.Errorf("storage: no store configured: %w", domain.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(artifact.Filename)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioFailure("ensure directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return "", ioFailure("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(artifact.Data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", ioFailure("write file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", ioFailure("sync file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", ioFailure("close file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", ioFailure("chmod file", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		cleanup()
		return "", ioFailure("rename file", err)
	}
	return fullPath, nil
}

// WriteBase64 decodes the encoded payload and writes it under name.
func (s *FileStore) WriteBase64(ctx context.Context, name, encoded string) (string, error) {
	data, err := domain.DecodeBase64(encoded)
	if err != nil {
		return "", ioFailure("decode payload", err)
	}
	return s.Write(ctx, domain.Artifact{Filename: name, Data: data})
}

// Open returns a reader for a previously written artifact.
func (s *FileStore) Open(name string) (io.ReadSeekCloser, os.FileInfo, error) {
	if s == nil {
		return nil, nil, fmt.Errorf("storage: no store configured: %w", domain.ErrConfiguration)
	}
	cleanKey, err := sanitizeKey(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("storage: %s: %w", cleanKey, domain.ErrNotFound)
		}
		return nil, nil, ioFailure("open file", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, ioFailure("stat file", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("storage: %s: %w", cleanKey, domain.ErrNotFound)
	}
	return f, info, nil
}

func ioFailure(op string, err error) error {
	return fmt.Errorf("storage: %s: %w: %w", op, domain.ErrIOFailure, err)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("storage: key is required: %w", domain.ErrRequestRejected)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: invalid key %q: %w", key, domain.ErrRequestRejected)
	}
	return cleaned, nil
}

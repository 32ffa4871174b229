// Package storage keeps uploaded request images. Only the local disk backend
// exists; callers depend on BlobStore so another backend can replace it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"accessdesk/internal/apperr"
	"accessdesk/pkg/config"
)

type BlobStore interface {
	// Put stores r under name and returns its public URL and the byte count written.
	Put(ctx context.Context, name string, r io.Reader) (string, int64, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

type LocalStore struct {
	dir        string
	publicBase string
}

func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "/uploads"
	}
	return &LocalStore{dir: dir, publicBase: base}, nil
}

// Dir is the directory served under /uploads.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) URL(name string) string {
	return s.publicBase + "/" + name
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	path, err := s.path(name)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return s.URL(name), n, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file %s: %w", name, apperr.ErrNotFound)
		}
		return err
	}
	return nil
}

// path 拒绝带目录的文件名
func (s *LocalStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", apperr.Validation("Invalid file name", "filename")
	}
	return filepath.Join(s.dir, name), nil
}

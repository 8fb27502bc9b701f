package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes document bytes under a directory tree rooted at Dir,
// namespaced by space, using "local://" URIs.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Put(ctx context.Context, space string, documentID int64, filename string, content io.Reader, size int64, contentType string) (string, error) {
	rel := filepath.Join(space, fmt.Sprintf("%d-%s", documentID, sanitizeName(filename)))
	full := filepath.Join(s.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blobstore: mkdir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("blobstore: create: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("blobstore: write: %w", err)
	}
	return "local://" + rel, nil
}

func (s *LocalStore) Get(ctx context.Context, storageURI string) (io.ReadCloser, error) {
	rel, ok := strings.CutPrefix(storageURI, "local://")
	if !ok {
		return nil, ErrUnsupportedScheme
	}
	return os.Open(filepath.Join(s.Dir, rel))
}

func (s *LocalStore) Delete(ctx context.Context, storageURI string) error {
	rel, ok := strings.CutPrefix(storageURI, "local://")
	if !ok {
		return ErrUnsupportedScheme
	}
	err := os.Remove(filepath.Join(s.Dir, rel))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

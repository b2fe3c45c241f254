// Package storage keeps uploaded objects and exposes them by public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore stores opaque blobs under slash-separated keys.
type ObjectStore interface {
	// Put writes data under key, replacing any existing object, and returns its public URL.
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key.
	URL(key string) string
}

// PublicPath is the URL prefix LocalStore objects are served under.
const PublicPath = "/storage"

// LocalStore keeps objects on the local filesystem below root.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory objects are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}

	// Write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	return s.URL(key), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return s.baseURL + PublicPath + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL returns the key of an object URL produced by this store, or ""
// when the URL points elsewhere.
func (s *LocalStore) KeyFromURL(url string) string {
	prefix := s.baseURL + PublicPath + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

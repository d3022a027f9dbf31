package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps files under <root>/<slug>/<filename>.
type LocalStorage struct {
	root      string
	urlPrefix string
}

// Ensure LocalStorage implements Storage interface.
var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates the media root if needed. urlPrefix is the public
// path the files are served under, such as "/media".
func NewLocalStorage(root, urlPrefix string) (*LocalStorage, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStorage{
		root:      absRoot,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

// Root returns the absolute media root.
func (s *LocalStorage) Root() string {
	return s.root
}

// URLPrefix returns the public path prefix.
func (s *LocalStorage) URLPrefix() string {
	return s.urlPrefix
}

// Put writes the file and returns /<prefix>/<slug>/<filename>.
func (s *LocalStorage) Put(ctx context.Context, slug, filename string, data []byte, contentType string) (string, error) {
	dest, err := ResolvePath(s.root, slug, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create section dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return s.urlPrefix + "/" + url.PathEscape(slug) + "/" + url.PathEscape(filename), nil
}

// Remove unlinks one file.
func (s *LocalStorage) Remove(ctx context.Context, slug, filename string) error {
	target, err := ResolvePath(s.root, slug, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveSection deletes the section directory.
func (s *LocalStorage) RemoveSection(ctx context.Context, slug string) error {
	dir, err := ResolvePath(s.root, slug)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// Handler serves the media tree under the public prefix.
func (s *LocalStorage) Handler() http.Handler {
	return http.StripPrefix(s.urlPrefix, http.FileServer(noListing{http.Dir(s.root)}))
}

// noListing hides directory indexes.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

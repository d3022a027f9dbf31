// Package media stores imported files and converts formats browsers cannot show.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path would resolve outside the media root.
var ErrOutsideRoot = errors.New("path escapes media root")

// Storage holds media files grouped per section.
type Storage interface {
	// Put stores data as <slug>/<filename> and returns its public URL.
	Put(ctx context.Context, slug, filename string, data []byte, contentType string) (string, error)
	// Remove deletes one stored file. A missing file is not an error.
	Remove(ctx context.Context, slug, filename string) error
	// RemoveSection deletes every file stored for a section.
	RemoveSection(ctx context.Context, slug string) error
}

// ResolvePath joins elems onto root and returns the absolute result, which must
// be a strict descendant of root.
func ResolvePath(root string, elems ...string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve media root: %w", err)
	}
	target := filepath.Join(append([]string{absRoot}, elems...)...)
	rel, err := filepath.Rel(absRoot, target)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, strings.Join(elems, "/"))
	}
	return target, nil
}

// SanitizeFilename drops any directory part of a vendor-supplied name.
// fallback is used when nothing usable remains.
func SanitizeFilename(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		return fallback
	}
	return base
}

// objectKey joins the non-empty parts with slashes.
func objectKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

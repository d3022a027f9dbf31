package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tylerlaw/portfolio/internal/config"
)

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		elems   []string
		wantErr bool
	}{
		{"plain file", []string{"weddings", "a.jpg"}, false},
		{"section dir", []string{"weddings"}, false},
		{"parent traversal", []string{"weddings", "../../etc/passwd"}, true},
		{"slug traversal", []string{"..", "a.jpg"}, true},
		{"root itself", []string{""}, true},
		{"dot", []string{"."}, true},
		{"absolute element stays inside", []string{"weddings", "/etc/passwd"}, false},
		{"traversal back into root", []string{"weddings", "../film/a.jpg"}, false},
		{"sibling prefix", []string{"../" + filepath.Base(root) + "-evil", "a.jpg"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(root, tt.elems...)
			if tt.wantErr {
				if !errors.Is(err, ErrOutsideRoot) {
					t.Errorf("ResolvePath(%v) = %q, %v; want ErrOutsideRoot", tt.elems, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePath(%v) error: %v", tt.elems, err)
			}
			if !strings.HasPrefix(got, root+string(filepath.Separator)) {
				t.Errorf("ResolvePath(%v) = %q, not under %q", tt.elems, got, root)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"IMG_0001.HEIC", "IMG_0001.HEIC"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system.ini`, "system.ini"},
		{"dir/sub/photo.jpg", "photo.jpg"},
		{"..", "fallback.jpg"},
		{"", "fallback.jpg"},
		{"/", "fallback.jpg"},
		{"bad\x00name.jpg", "badname.jpg"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in, "fallback.jpg"); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root, "/media/")
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}
	ctx := context.Background()

	url, err := store.Put(ctx, "weddings", "first dance.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if url != "/media/weddings/first%20dance.jpg" {
		t.Errorf("Put() url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(root, "weddings", "first dance.jpg"))
	if err != nil || string(data) != "jpeg" {
		t.Errorf("stored file = %q, %v", data, err)
	}

	t.Run("traversal rejected", func(t *testing.T) {
		if _, err := store.Put(ctx, "..", "x.jpg", []byte("x"), ""); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Put() with slug .. error = %v, want ErrOutsideRoot", err)
		}
		if err := store.Remove(ctx, "weddings", "../../outside.txt"); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Remove() traversal error = %v, want ErrOutsideRoot", err)
		}
	})

	t.Run("served over http", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.Handle("/media/", store.Handler())
		srv := httptest.NewServer(mux)
		defer srv.Close()

		resp, err := http.Get(srv.URL + url)
		if err != nil {
			t.Fatalf("GET %s error: %v", url, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != "jpeg" {
			t.Errorf("GET %s = %d %q", url, resp.StatusCode, body)
		}

		resp, err = http.Get(srv.URL + "/media/weddings/")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("directory listing status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := store.Remove(ctx, "weddings", "first dance.jpg"); err != nil {
			t.Fatalf("Remove() error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "weddings", "first dance.jpg")); !os.IsNotExist(err) {
			t.Errorf("file still present after Remove()")
		}
		if err := store.Remove(ctx, "weddings", "first dance.jpg"); err != nil {
			t.Errorf("Remove() of missing file error: %v", err)
		}
	})

	t.Run("remove section", func(t *testing.T) {
		store.Put(ctx, "film", "a.jpg", []byte("a"), "image/jpeg")
		store.Put(ctx, "film", "b.jpg", []byte("b"), "image/jpeg")
		if err := store.RemoveSection(ctx, "film"); err != nil {
			t.Fatalf("RemoveSection() error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "film")); !os.IsNotExist(err) {
			t.Errorf("section dir still present")
		}
		if _, err := os.Stat(root); err != nil {
			t.Errorf("media root removed: %v", err)
		}
	})
}

func TestNewStorageFromConfig(t *testing.T) {
	ctx := context.Background()

	got, err := NewStorageFromConfig(ctx, config.MediaConfig{Driver: "local", Root: t.TempDir(), URLPrefix: "/media"})
	if err != nil {
		t.Fatalf("local storage error: %v", err)
	}
	if _, ok := got.(*LocalStorage); !ok {
		t.Errorf("local driver returned %T", got)
	}

	if _, err := NewStorageFromConfig(ctx, config.MediaConfig{Driver: "local"}); err == nil {
		t.Error("local storage without root expected error")
	}
	if _, err := NewStorageFromConfig(ctx, config.MediaConfig{Driver: "s3"}); err == nil {
		t.Error("s3 storage without bucket expected error")
	}
	if _, err := NewStorageFromConfig(ctx, config.MediaConfig{Driver: "ftp"}); err == nil {
		t.Error("unknown driver expected error")
	}
}

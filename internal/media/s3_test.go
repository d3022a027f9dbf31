package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeS3 records object writes and deletes for a single bucket.
type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string]string // key -> content type
	deleteBatch string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/photos")
	key = strings.TrimPrefix(key, "/")
	switch {
	case r.Method == http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.objects[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>photos</Name>`)
		n := 0
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>1</Size></Contents>", k)
				n++
			}
		}
		fmt.Fprintf(&b, "<KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated></ListBucketResult>", n)
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, b.String())
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		body, _ := io.ReadAll(r.Body)
		f.deleteBatch = string(body)
		for k := range f.objects {
			if strings.Contains(f.deleteBatch, "<Key>"+k+"</Key>") {
				delete(f.objects, k)
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`)
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func TestS3Storage(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3Storage(ctx, S3Options{
		Bucket:          "photos",
		Region:          "us-east-1",
		Prefix:          "/portfolio/",
		Endpoint:        srv.URL,
		PublicBaseURL:   "https://cdn.example.com/",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error: %v", err)
	}

	url, err := store.Put(ctx, "weddings", "a.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if url != "https://cdn.example.com/portfolio/weddings/a.jpg" {
		t.Errorf("Put() url = %q", url)
	}
	if ct := fake.objects["portfolio/weddings/a.jpg"]; ct != "image/jpeg" {
		t.Errorf("stored content type = %q, objects = %v", ct, fake.objects)
	}

	if _, err := store.Put(ctx, "weddings", "../escape.jpg", []byte("x"), ""); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Put() with traversal error = %v, want ErrOutsideRoot", err)
	}

	if err := store.Remove(ctx, "weddings", "a.jpg"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, ok := fake.objects["portfolio/weddings/a.jpg"]; ok {
		t.Error("object still present after Remove()")
	}

	store.Put(ctx, "film", "1.jpg", []byte("1"), "image/jpeg")
	store.Put(ctx, "film", "2.jpg", []byte("2"), "image/jpeg")
	store.Put(ctx, "dance", "3.jpg", []byte("3"), "image/jpeg")
	if err := store.RemoveSection(ctx, "film"); err != nil {
		t.Fatalf("RemoveSection() error: %v", err)
	}
	if len(fake.objects) != 1 {
		t.Errorf("objects after RemoveSection(film) = %v, want only dance", fake.objects)
	}
}

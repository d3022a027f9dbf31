package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// countingTokens hands out a new token on every call.
type countingTokens struct {
	calls int32
	err   error
}

func (c *countingTokens) AccessToken(ctx context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	n := atomic.AddInt32(&c.calls, 1)
	return fmt.Sprintf("token-%d", n), nil
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *countingTokens) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := &countingTokens{}
	c := NewClient(tokens,
		WithHTTPClient(srv.Client()),
		WithPickerBaseURL(srv.URL+"/picker/v1"),
		WithLibraryBaseURL(srv.URL+"/library/v1"),
	)
	return c, tokens
}

func TestCreateAndGetPickerSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /picker/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"id":"sess-1","pickerUri":"https://photos.google.com/picker/sess-1","pollingConfig":{"pollInterval":"3s","timeoutIn":"1800s"}}`)
	})
	mux.HandleFunc("GET /picker/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-2" {
			t.Errorf("second request reused a token: %q", r.Header.Get("Authorization"))
		}
		fmt.Fprintf(w, `{"id":%q,"mediaItemsSet":true}`, r.PathValue("id"))
	})
	c, tokens := newTestClient(t, mux)
	ctx := context.Background()

	s, err := c.CreatePickerSession(ctx)
	if err != nil {
		t.Fatalf("CreatePickerSession() error: %v", err)
	}
	if s.ID != "sess-1" || s.PickerURI == "" {
		t.Errorf("CreatePickerSession() = %+v", s)
	}
	if s.PollInterval() != 3*time.Second {
		t.Errorf("PollInterval() = %v, want 3s", s.PollInterval())
	}

	got, err := c.GetPickerSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetPickerSession() error: %v", err)
	}
	if !got.MediaItemsSet {
		t.Error("MediaItemsSet = false, want true")
	}
	if got.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval() without hint = %v, want default", got.PollInterval())
	}
	if tokens.calls != 2 {
		t.Errorf("token source called %d times, want once per request", tokens.calls)
	}
}

func TestListPickedMediaItemsDrainsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /picker/v1/mediaItems", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionId") != "sess-1" {
			t.Errorf("sessionId = %q", r.URL.Query().Get("sessionId"))
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"mediaItems":[{"id":"a"},{"id":"b"}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"mediaItems":[{"id":"c"}],"nextPageToken":"p3"}`)
		case "p3":
			fmt.Fprint(w, `{"mediaItems":[{"name":"users/me/mediaItems/d"}]}`)
		default:
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
	})
	c, _ := newTestClient(t, mux)

	items, err := c.ListPickedMediaItems(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ListPickedMediaItems() error: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].StableID() != id {
			t.Errorf("items[%d].StableID() = %q, want %q", i, items[i].StableID(), id)
		}
	}
}

func TestAPIErrorCarriesVendorResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /picker/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"session not found"}}`)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.GetPickerSession(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetPickerSession() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	var body map[string]any
	if err := json.Unmarshal(apiErr.Body, &body); err != nil {
		t.Errorf("Body is not the vendor JSON: %q", apiErr.Body)
	}
}

func TestTokenErrorStopsRequest(t *testing.T) {
	var hits int32
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	tokens.err = errors.New("no credentials")

	if _, err := c.CreatePickerSession(context.Background()); err == nil {
		t.Fatal("CreatePickerSession() expected token error")
	}
	if hits != 0 {
		t.Errorf("request sent without a token")
	}
}

func TestDownloadMediaFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/photo", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("download without size suffix")
	})
	mux.HandleFunc("/files/photo=d", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("download without bearer token")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/files/clip=dv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(&countingTokens{}, WithHTTPClient(srv.Client()))

	photo := &PickedMediaItem{ID: "p", Type: "PHOTO", MediaFile: MediaFile{BaseURL: srv.URL + "/files/photo"}}
	data, ct, err := c.DownloadMediaFile(context.Background(), photo)
	if err != nil {
		t.Fatalf("DownloadMediaFile(photo) error: %v", err)
	}
	if string(data) != "jpeg-bytes" || ct != "image/jpeg" {
		t.Errorf("DownloadMediaFile(photo) = %q, %q", data, ct)
	}

	clip := &PickedMediaItem{ID: "v", Type: "VIDEO", MediaFile: MediaFile{BaseURL: srv.URL + "/files/clip"}}
	data, _, err = c.DownloadMediaFile(context.Background(), clip)
	if err != nil || string(data) != "mp4-bytes" {
		t.Errorf("DownloadMediaFile(video) = %q, %v", data, err)
	}

	if _, _, err := c.DownloadMediaFile(context.Background(), &PickedMediaItem{ID: "x"}); err == nil {
		t.Error("DownloadMediaFile() without base url expected error")
	}
}

func TestLibraryEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /library/v1/albums", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"albums":[{"id":"al-1","title":"Weddings"}],"nextPageToken":"n"}`)
			return
		}
		fmt.Fprint(w, `{"albums":[{"id":"al-2","title":"Film"}]}`)
	})
	mux.HandleFunc("POST /library/v1/mediaItems:search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		if req.AlbumID != "al-1" || req.PageSize != 100 {
			t.Errorf("search request = %+v", req)
		}
		if req.PageToken == "" {
			fmt.Fprint(w, `{"mediaItems":[{"id":"m1","mediaMetadata":{"width":"4000","height":"3000"}}],"nextPageToken":"t2"}`)
			return
		}
		fmt.Fprint(w, `{"mediaItems":[{"id":"m2"}]}`)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	albums, err := c.ListAlbums(ctx)
	if err != nil {
		t.Fatalf("ListAlbums() error: %v", err)
	}
	if len(albums) != 2 || albums[1].Title != "Film" {
		t.Errorf("ListAlbums() = %+v", albums)
	}

	items, err := c.SearchAlbumMediaItems(ctx, "al-1")
	if err != nil {
		t.Fatalf("SearchAlbumMediaItems() error: %v", err)
	}
	if len(items) != 2 || items[0].MediaMetadata.Width != "4000" {
		t.Errorf("SearchAlbumMediaItems() = %+v", items)
	}
}

func TestPickedMediaItemHelpers(t *testing.T) {
	item := PickedMediaItem{CreateTime: "2024-06-01T12:30:00Z", MediaFile: MediaFile{MimeType: "video/mp4"}}
	if item.StableID() != "" {
		t.Errorf("StableID() on empty item = %q", item.StableID())
	}
	if !item.IsVideo() {
		t.Error("IsVideo() = false for video mime type")
	}
	ct := item.CreatedTime()
	if ct == nil || !ct.Equal(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("CreatedTime() = %v", ct)
	}
	item.CreateTime = "not a time"
	if item.CreatedTime() != nil {
		t.Error("CreatedTime() on malformed value should be nil")
	}
}

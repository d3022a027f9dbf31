package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tylerlaw/portfolio/internal/model"
	"go.uber.org/zap"
)

type galleryItem struct {
	ID     int64  `json:"id"`
	Src    string `json:"src"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
	Alt    string `json:"alt"`
}

type gallerySection struct {
	SectionSlug   string        `json:"sectionSlug"`
	SectionTitle  string        `json:"sectionTitle"`
	LastUpdatedAt time.Time     `json:"lastUpdatedAt"`
	Items         []galleryItem `json:"items"`
}

type sectionItem struct {
	ID        int64      `json:"id"`
	Slug      string     `json:"slug"`
	FullURL   string     `json:"fullUrl"`
	ThumbURL  string     `json:"thumbUrl"`
	Filename  string     `json:"filename"`
	MimeType  string     `json:"mimeType"`
	Width     *int       `json:"width"`
	Height    *int       `json:"height"`
	CreatedAt *time.Time `json:"createdAt"`
	GoogleID  string     `json:"googleId"`
	PickedAt  time.Time  `json:"pickedAt"`
}

func toSectionItem(m model.MediaItem) sectionItem {
	return sectionItem{
		ID:        m.ID,
		Slug:      m.SectionSlug,
		FullURL:   m.StorageURL,
		ThumbURL:  m.StorageURL,
		Filename:  m.Filename,
		MimeType:  m.MimeType,
		Width:     m.Width,
		Height:    m.Height,
		CreatedAt: m.CreatedTime,
		GoogleID:  m.GoogleID,
		PickedAt:  m.PickedAt,
	}
}

func (s *Server) handleGallery(r *http.Request) (*response, error) {
	sections, err := s.opts.Gallery.ListGallery(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]gallerySection, 0, len(sections))
	for _, sec := range sections {
		items := make([]galleryItem, 0, len(sec.Items))
		for _, m := range sec.Items {
			items = append(items, galleryItem{
				ID:     m.ID,
				Src:    m.StorageURL,
				Width:  m.Width,
				Height: m.Height,
				Alt:    m.Filename,
			})
		}
		out = append(out, gallerySection{
			SectionSlug:   sec.Slug,
			SectionTitle:  sec.Title,
			LastUpdatedAt: sec.UpdatedAt,
			Items:         items,
		})
	}
	return jsonResponse(http.StatusOK, out), nil
}

func (s *Server) handleSectionItems(r *http.Request) (*response, error) {
	slug, err := slugParam(r)
	if err != nil {
		return nil, err
	}
	items, err := s.opts.Gallery.ListSectionItems(r.Context(), slug)
	if err != nil {
		return nil, err
	}
	out := make([]sectionItem, 0, len(items))
	for _, m := range items {
		out = append(out, toSectionItem(m))
	}
	return jsonResponse(http.StatusOK, map[string]any{"items": out}), nil
}

type importRequest struct {
	SessionID    string `json:"sessionId"`
	FeedURL      string `json:"feedUrl"`
	SectionTitle string `json:"sectionTitle"`
}

type importResponse struct {
	Section       string `json:"section"`
	ImportedCount int    `json:"importedCount"`
	ExistingCount int    `json:"existingCount"`
	SkippedCount  int    `json:"skippedCount"`
	Items         any    `json:"items"`
}

func (s *Server) handleImport(r *http.Request) (*response, error) {
	slug, err := slugParam(r)
	if err != nil {
		return nil, err
	}
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, badRequest("Missing sessionId")
	}

	res, err := s.opts.Importer.ImportSession(r.Context(), slug, req.SectionTitle, req.SessionID)
	if err != nil {
		return nil, importFailure(err)
	}
	return jsonResponse(http.StatusOK, importResponse{
		Section:       slug,
		ImportedCount: res.ImportedCount(),
		ExistingCount: res.Existing,
		SkippedCount:  res.Skipped,
		Items:         nonNil(res.Imported),
	}), nil
}

func (s *Server) handleImportFeed(r *http.Request) (*response, error) {
	slug, err := slugParam(r)
	if err != nil {
		return nil, err
	}
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	u, err := url.Parse(req.FeedURL)
	if req.FeedURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, badRequest("feedUrl must be an http(s) URL")
	}

	res, err := s.opts.Importer.ImportFeed(r.Context(), slug, req.SectionTitle, req.FeedURL)
	if err != nil {
		return nil, importFailure(err)
	}
	return jsonResponse(http.StatusOK, importResponse{
		Section:       slug,
		ImportedCount: res.ImportedCount(),
		ExistingCount: res.Existing,
		SkippedCount:  res.Skipped,
		Items:         nonNil(res.Imported),
	}), nil
}

// importFailure keeps the auth redirect and reports everything else as a failed import.
func importFailure(err error) error {
	if isNotAuthenticated(err) {
		return err
	}
	return internalError("Import failed", err)
}

type deleteRequest struct {
	IDs []json.RawMessage `json:"ids"`
}

// rawIDs turns JSON numbers and strings into strings; anything else becomes
// an entry that fails numeric parsing.
func (d deleteRequest) rawIDs() []string {
	out := make([]string, 0, len(d.IDs))
	for _, raw := range d.IDs {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			out = append(out, str)
			continue
		}
		var num json.Number
		if err := json.Unmarshal(raw, &num); err == nil {
			out = append(out, num.String())
			continue
		}
		out = append(out, "")
	}
	return out
}

func (s *Server) handleDeleteItems(r *http.Request) (*response, error) {
	slug, err := slugParam(r)
	if err != nil {
		return nil, err
	}
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	n, err := s.opts.Gallery.DeleteItems(r.Context(), slug, req.rawIDs())
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]int{"deletedCount": n}), nil
}

func (s *Server) handleDeleteItem(r *http.Request) (*response, error) {
	slug, err := slugParam(r)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest("Invalid item id")
	}
	if err := s.opts.Gallery.DeleteItem(r.Context(), slug, id); err != nil {
		return nil, err
	}
	return &response{status: http.StatusNoContent}, nil
}

func (s *Server) handleHealth(r *http.Request) (*response, error) {
	if err := s.opts.Store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check: database unreachable", zap.Error(err))
		return jsonResponse(http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": s.opts.Store.DatabaseType(),
		}), nil
	}
	return jsonResponse(http.StatusOK, map[string]string{
		"status":   "ok",
		"database": s.opts.Store.DatabaseType(),
	}), nil
}

func (s *Server) handleDebugDB(r *http.Request) (*response, error) {
	stats, err := s.opts.Store.Stats(r.Context())
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"database":         s.opts.Store.DatabaseType(),
		"high_concurrency": s.opts.Store.SupportsHighConcurrency(),
		"sections":         stats.Sections,
		"media_items":      stats.Items,
	}), nil
}

// nonNil makes empty slices encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Package importer copies picked or syndicated photos into media storage and
// records them in the database.
package importer

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/tylerlaw/portfolio/internal/database"
	"github.com/tylerlaw/portfolio/internal/google"
	"github.com/tylerlaw/portfolio/internal/media"
	"github.com/tylerlaw/portfolio/internal/model"
	"go.uber.org/zap"
)

// PickerClient is the part of the Google client an import needs.
type PickerClient interface {
	ListPickedMediaItems(ctx context.Context, sessionID string) ([]google.PickedMediaItem, error)
	DownloadMediaFile(ctx context.Context, item *google.PickedMediaItem) ([]byte, string, error)
}

// TokenRefresher makes sure a usable access token exists before an import starts.
type TokenRefresher interface {
	RefreshIfNeeded(ctx context.Context) error
}

// ImportedItem is one newly stored media item.
type ImportedItem struct {
	ID         int64  `json:"id"`
	GoogleID   string `json:"googleId"`
	StorageURL string `json:"storageUrl"`
}

// Result summarizes one import.
type Result struct {
	Section  model.Section
	Imported []ImportedItem
	Existing int
	Skipped  int
}

// ImportedCount returns the number of newly stored items.
func (r *Result) ImportedCount() int {
	return len(r.Imported)
}

// candidate is a media item from any source, ready for download.
type candidate struct {
	id          string
	filename    string
	mimeType    string
	width       *int
	height      *int
	createdTime *time.Time
	sourceURL   string
	download    func(ctx context.Context) ([]byte, string, error)
}

// Importer runs imports one item at a time.
type Importer struct {
	store      database.Store
	storage    media.Storage
	transcoder media.Transcoder
	picker     PickerClient
	tokens     TokenRefresher
	parser     *gofeed.Parser
	http       *http.Client
	throttle   *hostThrottle
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithTranscoder replaces the default HEIC to JPEG transcoder.
func WithTranscoder(t media.Transcoder) Option {
	return func(i *Importer) { i.transcoder = t }
}

// WithTokenRefresher checks credentials before picker imports.
func WithTokenRefresher(t TokenRefresher) Option {
	return func(i *Importer) { i.tokens = t }
}

// WithHTTPClient sets the client used for feeds and feed downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(i *Importer) { i.http = hc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// New creates an Importer.
func New(store database.Store, storage media.Storage, picker PickerClient, logger *zap.Logger, opts ...Option) *Importer {
	i := &Importer{
		store:      store,
		storage:    storage,
		transcoder: media.HEICToJPEG{},
		picker:     picker,
		http:       &http.Client{Timeout: 2 * time.Minute},
		throttle:   newHostThrottle(DelayBetweenHostRequests),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.parser = gofeed.NewParser()
	i.parser.Client = i.http
	return i
}

// ImportSession imports every item the owner picked in a Photos Picker session
// into the section slug, creating or refreshing the section first.
func (i *Importer) ImportSession(ctx context.Context, slug, title, sessionID string) (*Result, error) {
	section, err := i.upsertSection(ctx, slug, title)
	if err != nil {
		return nil, err
	}
	if i.tokens != nil {
		if err := i.tokens.RefreshIfNeeded(ctx); err != nil {
			return nil, err
		}
	}

	items, err := i.picker.ListPickedMediaItems(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list picked items: %w", err)
	}
	i.logger.Info("importing picker session",
		zap.String("section", slug),
		zap.String("session", sessionID),
		zap.Int("items", len(items)))

	candidates := make([]candidate, 0, len(items))
	for idx := range items {
		candidates = append(candidates, i.pickedCandidate(&items[idx]))
	}
	return i.run(ctx, section, candidates)
}

func (i *Importer) pickedCandidate(item *google.PickedMediaItem) candidate {
	id := item.StableID()
	meta := item.MediaFile.MediaFileMetadata
	return candidate{
		id:          id,
		filename:    media.SanitizeFilename(item.MediaFile.Filename, id+".jpg"),
		mimeType:    item.MediaFile.MimeType,
		width:       positive(meta.Width),
		height:      positive(meta.Height),
		createdTime: item.CreatedTime(),
		sourceURL:   item.MediaFile.BaseURL,
		download: func(ctx context.Context) ([]byte, string, error) {
			return i.picker.DownloadMediaFile(ctx, item)
		},
	}
}

func (i *Importer) upsertSection(ctx context.Context, slug, title string) (model.Section, error) {
	if title == "" {
		title = slug
	}
	section, err := i.store.UpsertSection(ctx, slug, title, i.now())
	if err != nil {
		return model.Section{}, err
	}
	return *section, nil
}

// run processes candidates in order and stops at the first failure. Rows
// written before the failure stay; a rerun finds them as existing.
func (i *Importer) run(ctx context.Context, section model.Section, candidates []candidate) (*Result, error) {
	result := &Result{Section: section}
	for _, c := range candidates {
		if c.id == "" || c.sourceURL == "" {
			result.Skipped++
			continue
		}
		if err := i.importOne(ctx, section.Slug, c, result); err != nil {
			i.logger.Error("import aborted",
				zap.String("section", section.Slug),
				zap.String("google_id", c.id),
				zap.Int("imported", result.ImportedCount()),
				zap.Error(err))
			return result, fmt.Errorf("import %s: %w", c.id, err)
		}
	}
	i.logger.Info("import finished",
		zap.String("section", section.Slug),
		zap.Int("imported", result.ImportedCount()),
		zap.Int("existing", result.Existing),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (i *Importer) importOne(ctx context.Context, slug string, c candidate, result *Result) error {
	data, contentType, err := c.download(ctx)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	mimeType := c.mimeType
	if mimeType == "" {
		mimeType = baseMediaType(contentType)
	}

	converted, err := i.transcoder.Convert(data, mimeType, c.filename)
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}

	storageURL, err := i.storage.Put(ctx, slug, converted.Filename, converted.Data, converted.MimeType)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	res, err := i.store.AddMediaItem(ctx, &model.MediaItem{
		GoogleID:    c.id,
		SectionSlug: slug,
		Filename:    converted.Filename,
		MimeType:    converted.MimeType,
		Width:       c.width,
		Height:      c.height,
		CreatedTime: c.createdTime,
		StorageURL:  storageURL,
		PickedAt:    i.now(),
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if !res.Inserted() {
		result.Existing++
		return nil
	}
	result.Imported = append(result.Imported, ImportedItem{
		ID:         res.ID,
		GoogleID:   c.id,
		StorageURL: storageURL,
	})
	return nil
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

// baseMediaType strips parameters such as charset from a Content-Type.
func baseMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

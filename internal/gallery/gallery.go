// Package gallery serves the public gallery and the owner's delete operations.
package gallery

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tylerlaw/portfolio/internal/database"
	"github.com/tylerlaw/portfolio/internal/media"
	"github.com/tylerlaw/portfolio/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when nothing matched a delete.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIDs is returned when a bulk delete has no numeric ids.
	ErrInvalidIDs = errors.New("ids must contain at least one numeric id")
)

// Service reads and deletes gallery content.
type Service struct {
	store   database.Store
	storage media.Storage
	logger  *zap.Logger
}

// NewService creates a Service.
func NewService(store database.Store, storage media.Storage, logger *zap.Logger) *Service {
	return &Service{store: store, storage: storage, logger: logger}
}

// ListGallery returns the non-empty sections with their items.
func (s *Service) ListGallery(ctx context.Context) ([]model.SectionWithItems, error) {
	return s.store.ListGallery(ctx)
}

// ListSectionItems returns the items of one section; an unknown or empty section yields none.
func (s *Service) ListSectionItems(ctx context.Context, slug string) ([]model.MediaItem, error) {
	return s.store.ListSectionItems(ctx, slug)
}

// DeleteItem deletes one item of a section, then its file.
func (s *Service) DeleteItem(ctx context.Context, slug string, id int64) error {
	item, err := s.store.DeleteMediaItem(ctx, slug, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}
	s.unlink(ctx, *item)
	return nil
}

// DeleteItems deletes the numeric ids among rawIDs from a section and returns
// how many rows went. Non-numeric ids are ignored.
func (s *Service) DeleteItems(ctx context.Context, slug string, rawIDs []string) (int, error) {
	ids := ParseIDs(rawIDs)
	if len(ids) == 0 {
		return 0, ErrInvalidIDs
	}
	items, err := s.store.DeleteMediaItems(ctx, slug, ids)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		s.unlink(ctx, item)
	}
	return len(items), nil
}

// DeleteSection deletes a section, its items and its stored files.
func (s *Service) DeleteSection(ctx context.Context, slug string) error {
	ok, err := s.store.DeleteSection(ctx, slug)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.storage.RemoveSection(ctx, slug); err != nil {
		s.logger.Warn("section files left behind", zap.String("section", slug), zap.Error(err))
	}
	return nil
}

// unlink removes the stored file. The row is already gone, so failures are only logged.
func (s *Service) unlink(ctx context.Context, item model.MediaItem) {
	if err := s.storage.Remove(ctx, item.SectionSlug, item.Filename); err != nil {
		s.logger.Warn("media file left behind",
			zap.Int64("id", item.ID),
			zap.String("section", item.SectionSlug),
			zap.String("filename", item.Filename),
			zap.Error(err))
	}
}

// ParseIDs keeps the entries that are positive integers, dropping duplicates.
func ParseIDs(raw []string) []int64 {
	seen := make(map[int64]bool, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

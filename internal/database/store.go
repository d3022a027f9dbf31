// Package database provides storage backends for gallery metadata.
package database

import (
	"context"
	"time"

	"github.com/tylerlaw/portfolio/internal/model"
)

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency reports whether the backend handles many concurrent writers.
	SupportsHighConcurrency() bool

	// Section operations
	UpsertSection(ctx context.Context, slug, title string, at time.Time) (*model.Section, error)
	SeedSection(ctx context.Context, section model.Section) error
	GetSection(ctx context.Context, slug string) (*model.Section, error)
	ListSections(ctx context.Context) ([]model.Section, error)
	DeleteSection(ctx context.Context, slug string) (bool, error)

	// Media item operations
	AddMediaItem(ctx context.Context, item *model.MediaItem) (model.InsertResult, error)
	ListSectionItems(ctx context.Context, slug string) ([]model.MediaItem, error)
	ListGallery(ctx context.Context) ([]model.SectionWithItems, error)
	DeleteMediaItem(ctx context.Context, slug string, id int64) (*model.MediaItem, error)
	DeleteMediaItems(ctx context.Context, slug string, ids []int64) ([]model.MediaItem, error)

	Stats(ctx context.Context) (model.Stats, error)
}

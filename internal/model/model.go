// Package model defines shared data structures.
package model

import "time"

// Section is a named, orderable grouping of media items.
type Section struct {
	ID        int64
	Slug      string
	Title     string
	SortOrder int
	UpdatedAt time.Time
}

// MediaItem is one imported photo or video.
type MediaItem struct {
	ID          int64
	GoogleID    string // stable identifier assigned by the source
	SectionSlug string
	Filename    string
	MimeType    string
	Width       *int
	Height      *int
	CreatedTime *time.Time // capture time, nil if the source had none
	StorageURL  string
	PickedAt    time.Time
}

// SectionWithItems is a section together with its items for gallery rendering.
type SectionWithItems struct {
	Section
	Items []MediaItem
}

// InsertOutcome reports what an idempotent insert did.
type InsertOutcome int

const (
	OutcomeInserted InsertOutcome = iota + 1
	OutcomeExisting
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// InsertResult is returned by AddMediaItem. ID is zero when the row already existed.
type InsertResult struct {
	ID      int64
	Outcome InsertOutcome
}

// Inserted reports whether a new row was written.
func (r InsertResult) Inserted() bool {
	return r.Outcome == OutcomeInserted
}

// Stats holds row counts for diagnostics.
type Stats struct {
	Sections int64 `json:"sections"`
	Items    int64 `json:"media_items"`
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tylerlaw/portfolio/internal/model"
)

const mediaItemColumns = "id, google_id, section_slug, filename, mime_type, width, height, created_time, storage_url, picked_at"

// itemOrder sorts newest capture first, undated items last, newest insert first.
const itemOrder = " ORDER BY created_time DESC NULLS LAST, id DESC"

// sqlStore holds the queries both backends share. Queries are written with ?
// placeholders and passed through bind for the backend's parameter syntax.
type sqlStore struct {
	conn *sql.DB
	bind func(string) string
}

// Close closes the database connection.
func (db *sqlStore) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *sqlStore) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// --- Section Methods ---

// UpsertSection creates the section, or refreshes its title and updated_at.
func (db *sqlStore) UpsertSection(ctx context.Context, slug, title string, at time.Time) (*model.Section, error) {
	var s model.Section
	var updatedAt timeValue
	err := db.conn.QueryRowContext(ctx, db.bind(`
		INSERT INTO sections (slug, title, sort_order, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (slug) DO UPDATE
			SET title = excluded.title,
				updated_at = excluded.updated_at
		RETURNING id, slug, title, sort_order, updated_at`),
		slug, title, at.UTC()).Scan(&s.ID, &s.Slug, &s.Title, &s.SortOrder, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert section %s: %w", slug, err)
	}
	s.UpdatedAt = updatedAt.Time
	return &s, nil
}

// SeedSection creates the section, or refreshes its title and sort order.
func (db *sqlStore) SeedSection(ctx context.Context, section model.Section) error {
	_, err := db.conn.ExecContext(ctx, db.bind(`
		INSERT INTO sections (slug, title, sort_order, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE
			SET title = excluded.title,
				sort_order = excluded.sort_order`),
		section.Slug, section.Title, section.SortOrder, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed section %s: %w", section.Slug, err)
	}
	return nil
}

// GetSection returns the section with the given slug, or nil if there is none.
func (db *sqlStore) GetSection(ctx context.Context, slug string) (*model.Section, error) {
	var s model.Section
	var updatedAt timeValue
	err := db.conn.QueryRowContext(ctx, db.bind("SELECT id, slug, title, sort_order, updated_at FROM sections WHERE slug = ?"), slug).
		Scan(&s.ID, &s.Slug, &s.Title, &s.SortOrder, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = updatedAt.Time
	return &s, nil
}

// ListSections returns all sections in display order.
func (db *sqlStore) ListSections(ctx context.Context) ([]model.Section, error) {
	return db.querySections(ctx, "SELECT id, slug, title, sort_order, updated_at FROM sections ORDER BY sort_order ASC, slug ASC")
}

// DeleteSection removes a section; its items go with it through the foreign key.
func (db *sqlStore) DeleteSection(ctx context.Context, slug string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, db.bind("DELETE FROM sections WHERE slug = ?"), slug)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (db *sqlStore) querySections(ctx context.Context, query string, args ...any) ([]model.Section, error) {
	rows, err := db.conn.QueryContext(ctx, db.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []model.Section
	for rows.Next() {
		var s model.Section
		var updatedAt timeValue
		if err := rows.Scan(&s.ID, &s.Slug, &s.Title, &s.SortOrder, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = updatedAt.Time
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// --- Media Item Methods ---

// ListSectionItems returns the items of one section, newest capture first.
func (db *sqlStore) ListSectionItems(ctx context.Context, slug string) ([]model.MediaItem, error) {
	rows, err := db.conn.QueryContext(ctx, db.bind("SELECT "+mediaItemColumns+" FROM media_items WHERE section_slug = ?"+itemOrder), slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

// ListGallery returns every section that has at least one item, with its items.
func (db *sqlStore) ListGallery(ctx context.Context) ([]model.SectionWithItems, error) {
	sections, err := db.querySections(ctx, `
		SELECT s.id, s.slug, s.title, s.sort_order, s.updated_at
		FROM sections s
		WHERE EXISTS (SELECT 1 FROM media_items m WHERE m.section_slug = s.slug)
		ORDER BY s.sort_order ASC, s.slug ASC`)
	if err != nil {
		return nil, err
	}

	result := make([]model.SectionWithItems, 0, len(sections))
	for _, section := range sections {
		items, err := db.ListSectionItems(ctx, section.Slug)
		if err != nil {
			return nil, err
		}
		result = append(result, model.SectionWithItems{
			Section: section,
			Items:   items,
		})
	}
	return result, nil
}

// DeleteMediaItem deletes one item scoped to its section. Returns nil if no row matched.
func (db *sqlStore) DeleteMediaItem(ctx context.Context, slug string, id int64) (*model.MediaItem, error) {
	rows, err := db.conn.QueryContext(ctx, db.bind("DELETE FROM media_items WHERE section_slug = ? AND id = ? RETURNING "+mediaItemColumns), slug, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := scanMediaItems(rows)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// Stats counts sections and media items.
func (db *sqlStore) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := db.conn.QueryRowContext(ctx, "SELECT (SELECT COUNT(*) FROM sections), (SELECT COUNT(*) FROM media_items)").
		Scan(&st.Sections, &st.Items)
	return st, err
}

// mediaItemArgs returns the insert arguments in column order (without id).
func mediaItemArgs(item *model.MediaItem) []any {
	var createdTime any
	if item.CreatedTime != nil {
		createdTime = item.CreatedTime.UTC()
	}
	return []any{
		item.GoogleID,
		item.SectionSlug,
		item.Filename,
		nullString(item.MimeType),
		nullInt(item.Width),
		nullInt(item.Height),
		createdTime,
		item.StorageURL,
		item.PickedAt.UTC(),
	}
}

const insertMediaItem = `
	INSERT INTO media_items (google_id, section_slug, filename, mime_type, width, height, created_time, storage_url, picked_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (google_id, section_slug) DO NOTHING`

func scanMediaItems(rows *sql.Rows) ([]model.MediaItem, error) {
	var items []model.MediaItem
	for rows.Next() {
		var it model.MediaItem
		var mimeType sql.NullString
		var width, height sql.NullInt64
		var createdTime, pickedAt timeValue
		if err := rows.Scan(&it.ID, &it.GoogleID, &it.SectionSlug, &it.Filename, &mimeType, &width, &height, &createdTime, &it.StorageURL, &pickedAt); err != nil {
			return nil, err
		}
		it.MimeType = mimeType.String
		if width.Valid {
			w := int(width.Int64)
			it.Width = &w
		}
		if height.Valid {
			h := int(height.Int64)
			it.Height = &h
		}
		if createdTime.Valid {
			t := createdTime.Time
			it.CreatedTime = &t
		}
		it.PickedAt = pickedAt.Time
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// timeValue scans a timestamp that the driver returns either as time.Time or as text.
type timeValue struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.Time, v.Valid = time.Time{}, false
		return nil
	case time.Time:
		v.Time, v.Valid = x, true
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time, v.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// bindDollar rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func bindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func bindQuestion(query string) string { return query }

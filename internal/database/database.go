package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/tylerlaw/portfolio/internal/database/migrations"
	"github.com/tylerlaw/portfolio/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore wraps the SQLite connection.
type SQLiteStore struct {
	sqlStore
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens or creates an SQLite database at the given path and applies migrations.
func NewSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under WAL.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.Up(conn, migrations.SQLite); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{sqlStore{conn: conn, bind: bindQuestion}}, nil
}

func sqliteDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Set("_time_format", "sqlite")
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?" + params.Encode()
}

// DatabaseType returns the database backend name.
func (db *SQLiteStore) DatabaseType() string {
	return "SQLite"
}

// SupportsHighConcurrency returns false for SQLite.
func (db *SQLiteStore) SupportsHighConcurrency() bool {
	return false
}

// AddMediaItem inserts an item unless (google_id, section_slug) already exists.
// The result carries the id of the stored row either way.
func (db *SQLiteStore) AddMediaItem(ctx context.Context, item *model.MediaItem) (model.InsertResult, error) {
	res, err := db.conn.ExecContext(ctx, insertMediaItem, mediaItemArgs(item)...)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("insert media item %s: %w", item.GoogleID, err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return model.InsertResult{}, err
		}
		return model.InsertResult{ID: id, Outcome: model.OutcomeInserted}, nil
	}

	var id int64
	err = db.conn.QueryRowContext(ctx, "SELECT id FROM media_items WHERE google_id = ? AND section_slug = ?",
		item.GoogleID, item.SectionSlug).Scan(&id)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("lookup media item %s: %w", item.GoogleID, err)
	}
	return model.InsertResult{ID: id, Outcome: model.OutcomeExisting}, nil
}

// DeleteMediaItems deletes the listed items that belong to the section and returns them.
func (db *SQLiteStore) DeleteMediaItems(ctx context.Context, slug string, ids []int64) ([]model.MediaItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, slug)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := db.conn.QueryContext(ctx,
		"DELETE FROM media_items WHERE section_slug = ? AND id IN ("+placeholders+") RETURNING "+mediaItemColumns, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS update_history (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	plugin_id         TEXT    NOT NULL,
	kind              TEXT    NOT NULL,
	repo              TEXT    NOT NULL DEFAULT '',
	installed_version TEXT    NOT NULL DEFAULT '',
	latest_tag        TEXT    NOT NULL DEFAULT '',
	update_available  INTEGER NOT NULL DEFAULT 0,
	updated           INTEGER NOT NULL DEFAULT 0,
	error             TEXT    NOT NULL DEFAULT '',
	checked_at        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS update_history_plugin_id ON update_history (plugin_id);
`

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the history database at dsn, e.g. a file
// path or ":memory:".
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows a single writer; this also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, result *registry.CheckResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO update_history
			(plugin_id, kind, repo, installed_version, latest_tag, update_available, updated, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		string(result.Kind),
		result.Repo,
		result.InstalledVersion,
		result.LatestTag,
		result.UpdateAvailable,
		result.Updated,
		result.Error,
		result.CheckedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*registry.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT plugin_id, kind, repo, installed_version, latest_tag, update_available, updated, error, checked_at
		FROM update_history ORDER BY id DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	results := make([]*registry.CheckResult, 0)
	for rows.Next() {
		var (
			r         registry.CheckResult
			kind      string
			checkedAt string
		)
		err := rows.Scan(&r.ID, &kind, &r.Repo, &r.InstalledVersion, &r.LatestTag, &r.UpdateAvailable, &r.Updated, &r.Error, &checkedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		r.Kind = registry.Kind(kind)
		r.CheckedAt, err = time.Parse(time.RFC3339Nano, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid checked_at %q: %w", checkedAt, err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

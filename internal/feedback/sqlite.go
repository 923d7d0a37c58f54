package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    project TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at TEXT NOT NULL,
    extra TEXT NOT NULL DEFAULT '{}',
    synced_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_project ON feedback(project, created_at);
`

// SQLiteStore is the local feedback cache. It implements Source so the CLI
// can work offline.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the cache database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces items in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feedback (id, project, text, created_at, extra, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project = excluded.project,
			text = excluded.text,
			created_at = excluded.created_at,
			extra = excluded.extra,
			synced_at = excluded.synced_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	synced := s.now().UTC().Format(time.RFC3339Nano)
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("feedback item for %q has no id", it.Project)
		}
		extra, err := encodeExtra(it.Extra)
		if err != nil {
			return fmt.Errorf("failed to encode extra columns for %s: %w", it.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.Project, it.Text,
			it.CreatedAt.UTC().Format(time.RFC3339Nano),
			extra, synced); err != nil {
			return fmt.Errorf("failed to upsert feedback %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// Add records a new feedback item entered locally and returns it.
func (s *SQLiteStore) Add(ctx context.Context, project, text string) (Item, error) {
	if project == "" {
		return Item{}, fmt.Errorf("project is required")
	}
	if text == "" {
		return Item{}, fmt.Errorf("feedback text is required")
	}
	it := Item{
		ID:        uuid.NewString(),
		Project:   project,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Upsert(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Projects implements Source.
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT project FROM feedback ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListByProject implements Source. Items come back newest first.
func (s *SQLiteStore) ListByProject(ctx context.Context, project string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, text, created_at, extra FROM feedback WHERE project = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it              Item
			created, extras string
		)
		if err := rows.Scan(&it.ID, &it.Project, &it.Text, &created, &extras); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		it.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at for %s: %w", it.ID, err)
		}
		if extras != "" && extras != "{}" {
			if err := json.Unmarshal([]byte(extras), &it.Extra); err != nil {
				return nil, fmt.Errorf("invalid extra columns for %s: %w", it.ID, err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	SortNewestFirst(items)
	return items, nil
}

// Count returns the number of cached items for project ("" for all).
func (s *SQLiteStore) Count(ctx context.Context, project string) (int, error) {
	var n int
	var err error
	if project == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE project = ?`, project).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

func encodeExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

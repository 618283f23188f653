package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access through Go's pool and avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, d *DraftComment) error {
	if d.ID == "" {
		d.ID = newULID()
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO draft_comments (id, review_id, file_id, file_path, first_line, num_lines, text, issue_opened, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ReviewID, d.FileID, d.FilePath, d.FirstLine, d.NumLines, d.Text, boolToInt(d.IssueOpened), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert draft comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDraft(ctx context.Context, id string) (*DraftComment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, review_id, file_id, file_path, first_line, num_lines, text, issue_opened, created_at
		FROM draft_comments WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("draft comment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft comment: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, reviewID string) ([]*DraftComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, review_id, file_id, file_path, first_line, num_lines, text, issue_opened, created_at
		FROM draft_comments WHERE review_id = ? ORDER BY rowid`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list draft comments: %w", err)
	}
	defer rows.Close()

	var drafts []*DraftComment
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft comment: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *SQLiteStore) DeleteDraft(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM draft_comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete draft comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("draft comment not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteDraftsForReview(ctx context.Context, reviewID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM draft_comments WHERE review_id = ?", reviewID)
	if err != nil {
		return 0, fmt.Errorf("delete draft comments: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*DraftComment, error) {
	var d DraftComment
	var issueOpened int
	err := row.Scan(&d.ID, &d.ReviewID, &d.FileID, &d.FilePath, &d.FirstLine, &d.NumLines, &d.Text, &issueOpened, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.IssueOpened = issueOpened != 0
	return &d, nil
}

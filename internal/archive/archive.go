// Package archive persists submitted schedule files in a local SQLite
// database so operators can review and re-fetch what has been accepted.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftline/scheddef/internal/logging"
	"github.com/driftline/scheddef/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// ErrNotFound reports a lookup for an ID the archive does not hold.
var ErrNotFound = errors.New("schedule not found in archive")

// Entry is one archived schedule file. Listing calls leave Body empty;
// Get fills it.
type Entry struct {
	ID          int64
	ProjectCode string
	Variant     string
	Observer    string
	Sessions    int
	Scans       int
	SubmittedAt time.Time
	Body        string
}

// Store is a SQLite-backed schedule archive.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens (creating if needed) the archive database at path.
func Open(path string, log logging.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if log == nil {
		log = logging.Noop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive migrations: %w", err)
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores one rendered schedule together with summary fields pulled from
// its project graph, returning the archive ID.
func (s *Store) Put(ctx context.Context, p *model.Project, body string, submittedAt time.Time) (int64, error) {
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	scans := 0
	for _, sess := range p.Sessions {
		scans += len(sess.Scans)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(project_code, variant, observer, sessions, scans, submitted_at, body)
		 VALUES(?,?,?,?,?,?,?)`,
		p.Code, p.Variant.String(), p.Observer.Name, len(p.Sessions), scans,
		submittedAt.UTC().Format(time.RFC3339Nano), body,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "schedule archived",
		logging.Int64("archive_id", id),
		logging.String("project_code", p.Code),
		logging.String("variant", p.Variant.String()),
		logging.Int("scans", scans),
	)
	return id, nil
}

// Get fetches one archived schedule, body included.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_code, variant, observer, sessions, scans, submitted_at, body
		 FROM schedules WHERE id = ?`, id)
	e, err := scanEntry(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return e, err
}

// List returns archive summaries, newest first, without bodies.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_code, variant, observer, sessions, scans, submitted_at
		 FROM schedules ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count reports how many schedules the archive holds.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner, withBody bool) (Entry, error) {
	var (
		e  Entry
		at string
	)
	dest := []any{&e.ID, &e.ProjectCode, &e.Variant, &e.Observer, &e.Sessions, &e.Scans, &at}
	if withBody {
		dest = append(dest, &e.Body)
	}
	if err := r.Scan(dest...); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt submitted_at %q: %w", at, err)
	}
	e.SubmittedAt = t
	return e, nil
}

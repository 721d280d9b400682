package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/sngram/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		input       TEXT NOT NULL,
		codec       TEXT,
		config      TEXT,
		sentences   INTEGER NOT NULL DEFAULT 0,
		patterns    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		finished_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS patterns (
		id          TEXT PRIMARY KEY,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind        TEXT NOT NULL DEFAULT 'projected',
		encoded     TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_encoded ON patterns(encoded);
	CREATE INDEX IF NOT EXISTS idx_patterns_run_kind ON patterns(run_id, kind, encoded);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, p CreateRunParams) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        s.newID(),
		Input:     p.Input,
		Codec:     p.Codec,
		Config:    p.Config,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, codec, config, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, p.Input, nullString(p.Codec), nullString(p.Config), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, sentences, patterns int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET sentences = ?, patterns = ?, finished_at = ? WHERE id = ?`,
		sentences, patterns, now, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ResolveRun returns the run with the given id. An empty ref or "latest"
// selects the newest run.
func (s *SQLiteStore) ResolveRun(ctx context.Context, ref string) (*model.Run, error) {
	query := `SELECT id, input, codec, config, sentences, patterns, created_at, finished_at FROM runs`
	var args []interface{}
	if ref == "" || ref == "latest" {
		query += ` ORDER BY rowid DESC LIMIT 1`
	} else {
		query += ` WHERE id = ?`
		args = append(args, ref)
	}
	r, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) Put(ctx context.Context, runID string, batch []PutParams) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patterns (id, run_id, kind, encoded, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		kind := p.Kind
		if kind == "" {
			kind = model.KindProjected
		}
		if !model.ValidKinds[kind] {
			return 0, fmt.Errorf("invalid pattern kind %q", kind)
		}
		if _, err := stmt.ExecContext(ctx, s.newID(), runID, kind, p.Encoded, p.Content, now); err != nil {
			return 0, fmt.Errorf("insert pattern: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (s *SQLiteStore) Get(ctx context.Context, p GetParams) ([]model.Pattern, error) {
	where, args := filter("encoded = ?", []interface{}{p.Encoded}, p.RunID, p.Kind)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, kind, encoded, content, created_at FROM patterns
		 WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []model.Pattern
	for rows.Next() {
		m, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(patterns) == 0 {
		return nil, fmt.Errorf("pattern %s: %w", p.Encoded, ErrNotFound)
	}
	return patterns, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.PatternCount, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	minCount := max(p.MinCount, 1)

	where, args := filter("1 = 1", nil, p.RunID, p.Kind)
	query := `
		SELECT encoded, kind, COUNT(*) AS cnt
		FROM patterns
		WHERE ` + where + `
		GROUP BY encoded, kind
		HAVING cnt >= ?
		ORDER BY cnt DESC, encoded
		LIMIT ?`
	args = append(args, minCount, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.PatternCount
	for rows.Next() {
		var c model.PatternCount
		if err := rows.Scan(&c.Encoded, &c.Kind, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, codec, config, sentences, patterns, created_at, finished_at
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Rm(ctx context.Context, runID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete patterns: %w", err)
	}
	removed, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return removed, tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// filter appends the optional run and kind conditions to a base condition.
func filter(base string, args []interface{}, runID, kind string) (string, []interface{}) {
	where := []string{base}
	if runID != "" {
		where = append(where, "run_id = ?")
		args = append(args, runID)
	}
	if kind != "" {
		where = append(where, "kind = ?")
		args = append(args, kind)
	}
	return strings.Join(where, " AND "), args
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row scanner) (model.Pattern, error) {
	var p model.Pattern
	var createdAt string
	if err := row.Scan(&p.ID, &p.RunID, &p.Kind, &p.Encoded, &p.Content, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

func scanRun(row scanner) (model.Run, error) {
	var r model.Run
	var codec, config, finishedAt sql.NullString
	var createdAt string

	err := row.Scan(&r.ID, &r.Input, &codec, &config, &r.Sentences, &r.Patterns, &createdAt, &finishedAt)
	if err != nil {
		return r, err
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if codec.Valid {
		r.Codec = codec.String
	}
	if config.Valid {
		r.Config = config.String
	}
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String)
		r.FinishedAt = &t
	}
	return r, nil
}

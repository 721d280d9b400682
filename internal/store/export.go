package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rcliao/sngram/internal/model"
)

// importBatch is the number of lines stored per transaction on import.
const importBatch = 1000

// ExportAll calls fn for every occurrence, ordered by encoded pattern.
func (s *SQLiteStore) ExportAll(ctx context.Context, p ExportParams, fn func(model.Pattern) error) error {
	where, args := filter("1 = 1", nil, p.RunID, p.Kind)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, kind, encoded, content, created_at FROM patterns
		 WHERE `+where+` ORDER BY encoded, rowid`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanPattern(rows)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ExportGrouped calls fn once per encoded pattern with all its contents.
// With RemoveHapax set, patterns seen only once are skipped.
func (s *SQLiteStore) ExportGrouped(ctx context.Context, p ExportParams, fn func(model.Group) error) error {
	var cur *model.Group
	flush := func() error {
		if cur == nil || (p.RemoveHapax && len(cur.Contents) < 2) {
			return nil
		}
		return fn(*cur)
	}

	err := s.ExportAll(ctx, p, func(m model.Pattern) error {
		if cur != nil && cur.Encoded == m.Encoded {
			cur.Contents = append(cur.Contents, m.Content)
			return nil
		}
		if err := flush(); err != nil {
			return err
		}
		cur = &model.Group{Encoded: m.Encoded, Contents: []string{m.Content}}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// ParseLine splits an "encoded<TAB>content" line.
func ParseLine(line string) (PutParams, error) {
	encoded, content, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "\t")
	if !ok || encoded == "" {
		return PutParams{}, fmt.Errorf("expected encoded<TAB>content, got %q", line)
	}
	return PutParams{Encoded: encoded, Content: content}, nil
}

// Import stores "encoded<TAB>content" lines of the given kind under runID.
// Empty lines are skipped.
func (s *SQLiteStore) Import(ctx context.Context, runID, kind string, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	imported := 0
	batch := make([]PutParams, 0, importBatch)
	flush := func() error {
		n, err := s.Put(ctx, runID, batch)
		imported += n
		batch = batch[:0]
		return err
	}

	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		p, err := ParseLine(sc.Text())
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		p.Kind = kind
		batch = append(batch, p)
		if len(batch) == importBatch {
			if err := flush(); err != nil {
				return imported, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return imported, err
	}
	if err := flush(); err != nil {
		return imported, err
	}
	return imported, nil
}

package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string     `json:"db_path"`
	DBSizeBytes    int64      `json:"db_size_bytes"`
	Runs           int        `json:"runs"`
	TotalPatterns  int        `json:"total_patterns"`
	UniquePatterns int        `json:"unique_patterns"`
	Kinds          []KindStat `json:"kinds"`
}

// KindStat holds per-kind counts.
type KindStat struct {
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Unique int    `json:"unique"`
	Hapax  int    `json:"hapax"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&st.TotalPatterns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT encoded) FROM patterns`).Scan(&st.UniquePatterns)

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, SUM(cnt), COUNT(*), SUM(cnt = 1)
		FROM (SELECT kind, encoded, COUNT(*) AS cnt FROM patterns GROUP BY kind, encoded)
		GROUP BY kind ORDER BY kind`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var k KindStat
		rows.Scan(&k.Kind, &k.Count, &k.Unique, &k.Hapax)
		st.Kinds = append(st.Kinds, k)
	}

	return st, rows.Err()
}

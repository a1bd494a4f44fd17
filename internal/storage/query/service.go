// Package query provides SQL query capabilities over exported record
// files. It uses DuckDB to scan Parquet exports directly, so no data
// is loaded ahead of time.
package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/csv610/sophoset/internal/record"
	"github.com/csv610/sophoset/internal/storage/config"
)

// Service provides query capabilities over exported Parquet files.
type Service struct {
	mu sync.RWMutex

	config *config.Config
	db     *sql.DB

	// Statistics
	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// PartitionCount is the record count for one partition.
type PartitionCount struct {
	Subset string
	Split  string
	Count  int64
}

// New creates a new query service over the configured export directory.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Open in-memory DuckDB database
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Configure DuckDB
	if cfg.Query.MemoryLimit != "" {
		_, err = db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.Query.MemoryLimit))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{
		config: cfg,
		db:     db,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// pattern returns the glob covering all exported Parquet files.
func (s *Service) pattern() string {
	return filepath.Join(s.config.ExportDir(), "*.parquet")
}

// PartitionCounts returns the record count per partition.
func (s *Service) PartitionCounts(ctx context.Context) ([]PartitionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT subset, split, count(*)
		FROM read_parquet($1)
		GROUP BY subset, split
		ORDER BY subset, split
	`

	rows, err := s.db.QueryContext(ctx, query, s.pattern())
	if err != nil {
		// If no files exist, return empty result
		return nil, nil
	}
	defer rows.Close()

	var results []PartitionCount
	for rows.Next() {
		var pc PartitionCount
		if err := rows.Scan(&pc.Subset, &pc.Split, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, pc)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))

	return results, rows.Err()
}

// Lookup returns the exported record with the given key, including its
// option set and image references. The list columns come back as JSON
// so they survive the database/sql scan.
func (s *Service) Lookup(ctx context.Context, key string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT key, context, question, to_json(options), to_json(images),
		       answer, explanation
		FROM read_parquet($1)
		WHERE key = $2
		LIMIT 1
	`

	var rec record.Record
	var ctxField, explanation, optJSON, imgJSON sql.NullString

	err := s.db.QueryRowContext(ctx, query, s.pattern(), key).Scan(
		&rec.Key, &ctxField, &rec.Question, &optJSON, &imgJSON,
		&rec.Answer, &explanation,
	)
	if err == sql.ErrNoRows {
		s.stats.QueriesExecuted++
		return record.Record{}, fmt.Errorf("key %q: not found in export", key)
	}
	if err != nil {
		s.stats.Errors++
		return record.Record{}, fmt.Errorf("lookup %q: %w", key, err)
	}

	rec.Context = ctxField.String
	rec.Explanation = explanation.String

	if opts, err := decodeOptionJSON(optJSON); err != nil {
		s.stats.Errors++
		return record.Record{}, fmt.Errorf("lookup %q: decode options: %w", key, err)
	} else {
		rec.Options = opts
	}
	if imgJSON.Valid && imgJSON.String != "null" {
		if err := json.Unmarshal([]byte(imgJSON.String), &rec.Images); err != nil {
			s.stats.Errors++
			return record.Record{}, fmt.Errorf("lookup %q: decode images: %w", key, err)
		}
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned++

	return rec, nil
}

// decodeOptionJSON rebuilds an option list from DuckDB's JSON rendering
// of the list<struct> column. A NULL or "null" column is the
// open-ended-question case.
func decodeOptionJSON(col sql.NullString) (record.Options, error) {
	if !col.Valid || col.String == "null" {
		return nil, nil
	}
	var pairs []struct {
		Label string `json:"label"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal([]byte(col.String), &pairs); err != nil {
		return nil, err
	}
	opts := make(record.Options, 0, len(pairs))
	for _, p := range pairs {
		opts = append(opts, record.Option{Label: p.Label, Text: p.Text})
	}
	return opts, nil
}

// SearchQuestions returns keys of records whose question contains the
// given substring, case-insensitively.
func (s *Service) SearchQuestions(ctx context.Context, substring string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.config.Query.MaxRows {
		limit = s.config.Query.MaxRows
	}

	query := `
		SELECT key
		FROM read_parquet($1)
		WHERE question ILIKE '%' || $2 || '%'
		ORDER BY key
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, s.pattern(), substring, limit)
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("search questions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		keys = append(keys, key)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(keys))

	return keys, rows.Err()
}

// ExecuteSQL executes a raw SQL query using DuckDB.
// This is useful for ad-hoc queries and debugging.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)

		if len(results) >= s.config.Query.MaxRows {
			break
		}
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))

	return results, rows.Err()
}

// Stats returns query statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Package duckdb stores annotation and expression results in a
// queryable DuckDB database, keyed by transcript so the two result kinds
// can be joined.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding per-sample results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS annotation_results (
		sample_id VARCHAR,
		transcript_id VARCHAR,
		gene_id VARCHAR,
		contig VARCHAR,
		start BIGINT,
		"end" BIGINT,
		strand VARCHAR,
		has_te_promoter BOOLEAN,
		n_te_overlaps INTEGER,
		te_names VARCHAR,
		promoter_window BIGINT,
		promoter_conflicts_gene BOOLEAN,
		n_body_overlaps INTEGER,
		PRIMARY KEY (sample_id, transcript_id)
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS expression_results (
		sample_id VARCHAR,
		transcript_id VARCHAR,
		gene_id VARCHAR,
		contig VARCHAR,
		strand VARCHAR,
		raw_count BIGINT,
		effective_length BIGINT,
		rpk DOUBLE,
		tpm DOUBLE,
		fpkm DOUBLE,
		transcript_fraction DOUBLE,
		PRIMARY KEY (sample_id, transcript_id)
	)`)
	return err
}

package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/tetools/tequant/internal/annotate"
	"github.com/tetools/tequant/internal/quant"
)

// WriteAnnotationResults batch-inserts annotation rows for a sample
// using the Appender API. Duplicate (sample_id, transcript_id) entries
// are deduplicated before writing.
func (s *Store) WriteAnnotationResults(sampleID string, results []*annotate.Result) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(results))
	deduped := make([]*annotate.Result, 0, len(results))
	for _, r := range results {
		if !seen[r.TranscriptID] {
			seen[r.TranscriptID] = true
			deduped = append(deduped, r)
		}
	}

	return s.withAppender("annotation_results", func(appender *goduckdb.Appender) error {
		for _, r := range deduped {
			if err := appender.AppendRow(
				sampleID,
				r.TranscriptID,
				r.GeneID,
				r.Contig,
				r.Start,
				r.End,
				r.Strand,
				r.HasTEPromoter,
				int32(r.NTEOverlaps),
				strings.Join(r.TENames, ","),
				r.PromoterWindow,
				r.PromoterConflictsGene,
				int32(r.NBodyOverlaps),
			); err != nil {
				return fmt.Errorf("append annotation row %s: %w", r.TranscriptID, err)
			}
		}
		return nil
	})
}

// WriteExpressionResults batch-inserts expression rows for a sample.
func (s *Store) WriteExpressionResults(sampleID string, results []*quant.Result) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(results))
	deduped := make([]*quant.Result, 0, len(results))
	for _, r := range results {
		if !seen[r.TranscriptID] {
			seen[r.TranscriptID] = true
			deduped = append(deduped, r)
		}
	}

	return s.withAppender("expression_results", func(appender *goduckdb.Appender) error {
		for _, r := range deduped {
			if err := appender.AppendRow(
				sampleID,
				r.TranscriptID,
				r.GeneID,
				r.Contig,
				r.Strand,
				r.RawCount,
				r.EffectiveLength,
				r.RPK,
				r.TPM,
				r.FPKM,
				r.TranscriptFraction,
			); err != nil {
				return fmt.Errorf("append expression row %s: %w", r.TranscriptID, err)
			}
		}
		return nil
	})
}

// withAppender runs fn with a DuckDB appender on the given table,
// flushing on success.
func (s *Store) withAppender(table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// TEPromoterRow is one row of the joined TE-promoter report.
type TEPromoterRow struct {
	SampleID           string
	TranscriptID       string
	GeneID             string
	Contig             string
	Strand             string
	TENames            string
	NTEOverlaps        int
	ConflictsGene      bool
	RawCount           int64
	TPM                float64
	FPKM               float64
	TranscriptFraction float64
}

// TEPromoterReport joins annotation and expression rows for transcripts
// with a TE-occupied promoter, ordered by descending TPM. An empty
// sampleID selects all samples.
func (s *Store) TEPromoterReport(sampleID string) ([]TEPromoterRow, error) {
	query := `SELECT a.sample_id, a.transcript_id, a.gene_id, a.contig, a.strand,
		a.te_names, a.n_te_overlaps, a.promoter_conflicts_gene,
		COALESCE(e.raw_count, 0), COALESCE(e.tpm, 0), COALESCE(e.fpkm, 0),
		COALESCE(e.transcript_fraction, 0)
	FROM annotation_results a
	LEFT JOIN expression_results e
		ON a.sample_id = e.sample_id AND a.transcript_id = e.transcript_id
	WHERE a.has_te_promoter`
	args := []any{}
	if sampleID != "" {
		query += ` AND a.sample_id = ?`
		args = append(args, sampleID)
	}
	query += ` ORDER BY COALESCE(e.tpm, 0) DESC, a.transcript_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query TE-promoter report: %w", err)
	}
	defer rows.Close()

	var out []TEPromoterRow
	for rows.Next() {
		var r TEPromoterRow
		if err := rows.Scan(&r.SampleID, &r.TranscriptID, &r.GeneID, &r.Contig, &r.Strand,
			&r.TENames, &r.NTEOverlaps, &r.ConflictsGene,
			&r.RawCount, &r.TPM, &r.FPKM, &r.TranscriptFraction); err != nil {
			return nil, fmt.Errorf("scan TE-promoter row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

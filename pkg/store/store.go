// Package store persists keyword records in SQLite. It performs no scoring:
// callers supply final field values; the store only enforces the
// has_ads == (ad_depth > 0) invariant and refreshes updated_at on every write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"keywordscout-go/pkg/logger"
)

// upsertBatchSize bounds the records per transaction so one oversized call
// cannot hold a long write lock.
const upsertBatchSize = 500

// listHardCap bounds List results to prevent unbounded scans.
const listHardCap = 1000

// Store is the sqlite-backed keyword store.
type Store struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// Open opens (or creates) the keyword database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize keyword schema: %w", err)
	}

	return &Store{
		db:  db,
		log: logger.GetLogger().WithField("component", "keyword_store"),
		now: time.Now,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes records keyed by text, batching internally. A failing record
// is logged and dropped from the success count; it never aborts the batch, so
// N-1 successes still commit. Returns the number of records written.
func (s *Store) Upsert(ctx context.Context, records []KeywordRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	written := 0
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := s.upsertBatch(ctx, records[start:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *Store) upsertBatch(ctx context.Context, records []KeywordRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO keywords
			(text, raw_volume, comp_idx, comp_score, ad_depth, has_ads,
			 est_cpc_krw, est_cpc_source, score, excluded, source,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(text) DO UPDATE SET
			raw_volume     = excluded.raw_volume,
			comp_idx       = excluded.comp_idx,
			comp_score     = excluded.comp_score,
			ad_depth       = excluded.ad_depth,
			has_ads        = excluded.has_ads,
			est_cpc_krw    = excluded.est_cpc_krw,
			est_cpc_source = excluded.est_cpc_source,
			score          = excluded.score,
			source         = excluded.source,
			updated_at     = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	written := 0
	for _, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			s.log.Warn("skipping keyword record with empty text")
			continue
		}

		hasAds := rec.AdDepth > 0
		cpcSource := rec.EstCPCSource
		if cpcSource == "" {
			cpcSource = CPCSourceUnknown
		}

		_, err := stmt.ExecContext(ctx,
			rec.Text, rec.RawVolume, rec.CompIdx, rec.CompScore, rec.AdDepth,
			boolToInt(hasAds), rec.EstCPCKrw, cpcSource, rec.Score,
			boolToInt(rec.Excluded), rec.Source, now, now,
		)
		if err != nil {
			// Per-record failures stay local: log, drop from the count,
			// keep the rest of the batch.
			s.log.WithError(err).WithField("keyword", rec.Text).Warn("failed to upsert keyword record")
			continue
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert batch: %w", err)
	}
	return written, nil
}

// ListOptions controls List ordering and filtering.
type ListOptions struct {
	Excluded bool
	OrderBy  string // score | raw_volume | updated_at | text
	Dir      string // asc | desc
	Limit    int    // capped at the hard limit; <= 0 means the cap
}

// List returns keyword records filtered by the excluded flag. The result is
// always bounded by the hard cap.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]KeywordRecord, error) {
	orderBy := "score"
	switch opts.OrderBy {
	case "", "score":
	case "raw_volume", "updated_at", "text":
		orderBy = opts.OrderBy
	default:
		return nil, fmt.Errorf("unsupported order column: %s", opts.OrderBy)
	}

	dir := "DESC"
	if strings.EqualFold(opts.Dir, "asc") {
		dir = "ASC"
	}

	limit := opts.Limit
	if limit <= 0 || limit > listHardCap {
		limit = listHardCap
	}

	query := fmt.Sprintf(`
		SELECT id, text, raw_volume, comp_idx, comp_score, ad_depth, has_ads,
		       est_cpc_krw, est_cpc_source, score, excluded, source,
		       created_at, updated_at
		FROM keywords
		WHERE excluded = ?
		ORDER BY %s %s
		LIMIT ?
	`, orderBy, dir)

	rows, err := s.db.QueryContext(ctx, query, boolToInt(opts.Excluded), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindByText looks up one record by its exact text key. Returns nil when the
// keyword is unknown.
func (s *Store) FindByText(ctx context.Context, keyword string) (*KeywordRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, raw_volume, comp_idx, comp_score, ad_depth, has_ads,
		       est_cpc_krw, est_cpc_source, score, excluded, source,
		       created_at, updated_at
		FROM keywords WHERE text = ?
	`, keyword)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find keyword %q: %w", keyword, err)
	}
	return rec, nil
}

// FindByTexts batch-looks-up records for the given text keys. Unknown
// keywords are simply absent from the result map.
func (s *Store) FindByTexts(ctx context.Context, keywords []string) (map[string]KeywordRecord, error) {
	found := make(map[string]KeywordRecord, len(keywords))
	if len(keywords) == 0 {
		return found, nil
	}

	placeholders := strings.Repeat("?,", len(keywords))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(keywords))
	for i, k := range keywords {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, text, raw_volume, comp_idx, comp_score, ad_depth, has_ads,
		       est_cpc_krw, est_cpc_source, score, excluded, source,
		       created_at, updated_at
		FROM keywords WHERE text IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to batch find keywords: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		found[rec.Text] = rec
	}
	return found, nil
}

// SetExcluded flips the soft suppression flag. Exclusion is a lifecycle gate,
// not a deletion.
func (s *Store) SetExcluded(ctx context.Context, id int64, excluded bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET excluded = ?, updated_at = ? WHERE id = ?`,
		boolToInt(excluded), s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set excluded flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check excluded update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("keyword id %d not found", id)
	}
	return nil
}

// Count returns the total number of stored keywords.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM keywords`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count keywords: %w", err)
	}
	return n, nil
}

// CountsByStatus returns summary counts for status reporting.
func (s *Store) CountsByStatus(ctx context.Context) (CountsByStatus, error) {
	var c CountsByStatus
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN excluded = 0 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN excluded = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN raw_volume > 0 THEN 1 ELSE 0 END)
		FROM keywords
	`).Scan(&c.Total, &nullableInt{&c.Active}, &nullableInt{&c.Excluded}, &nullableInt{&c.WithVolume})
	if err != nil {
		return CountsByStatus{}, fmt.Errorf("failed to count keywords by status: %w", err)
	}
	return c, nil
}

// ReplaceAll wipes the table and writes the given records. This is the only
// hard-delete path; everything else goes through the excluded flag.
func (s *Store) ReplaceAll(ctx context.Context, records []KeywordRecord) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM keywords`); err != nil {
		return 0, fmt.Errorf("failed to clear keywords for replace: %w", err)
	}
	return s.Upsert(ctx, records)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*KeywordRecord, error) {
	var rec KeywordRecord
	var hasAds, excluded int
	var cpc sql.NullInt64

	err := row.Scan(&rec.ID, &rec.Text, &rec.RawVolume, &rec.CompIdx,
		&rec.CompScore, &rec.AdDepth, &hasAds, &cpc, &rec.EstCPCSource,
		&rec.Score, &excluded, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.HasAds = hasAds != 0
	rec.Excluded = excluded != 0
	if cpc.Valid {
		v := int(cpc.Int64)
		rec.EstCPCKrw = &v
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]KeywordRecord, error) {
	var records []KeywordRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyword row iteration failed: %w", err)
	}
	return records, nil
}

// nullableInt scans a possibly-NULL aggregate into an int, mapping NULL to 0.
type nullableInt struct{ dst *int }

func (n *nullableInt) Scan(value interface{}) error {
	if value == nil {
		*n.dst = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*n.dst = int(v)
	case int:
		*n.dst = v
	case float64:
		*n.dst = int(v)
	default:
		return fmt.Errorf("unexpected aggregate type %T", value)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

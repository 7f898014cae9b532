package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// PostgresWriter persists the enriched listing table to PostgreSQL so that
// downstream analysis can skip the preparation pipeline.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter. The first ping is retried with
// backoff while the server is unreachable; rejected credentials or an
// unknown database fail at once.
func NewPostgresWriter(ctx context.Context, dsn string, backoff utils.Backoff) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if backoff.Retryable == nil {
		backoff.Retryable = transientConnError
	}
	if err := backoff.Run(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

// transientConnError is false for server answers that another attempt
// cannot change: invalid authorization (class 28) and an unknown database
// (class 3D).
func transientConnError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28", "3D":
			return false
		}
	}
	return true
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                SERIAL PRIMARY KEY,
			city              TEXT             NOT NULL,
			price             DOUBLE PRECISION,
			square_meters     DOUBLE PRECISION,
			floor             DOUBLE PRECISION,
			floor_count       DOUBLE PRECISION,
			build_year        DOUBLE PRECISION,
			centre_distance   DOUBLE PRECISION,
			ownership         TEXT             NOT NULL DEFAULT '',
			has_parking_space BOOLEAN          NOT NULL DEFAULT FALSE,
			has_balcony       BOOLEAN          NOT NULL DEFAULT FALSE,
			has_elevator      BOOLEAN          NOT NULL DEFAULT FALSE,
			has_security      BOOLEAN          NOT NULL DEFAULT FALSE,
			has_storage_room  BOOLEAN          NOT NULL DEFAULT FALSE,
			source_file       TEXT             NOT NULL,
			extra             JSONB            NOT NULL DEFAULT '{}',
			priceperm2        DOUBLE PRECISION,
			building_age      DOUBLE PRECISION,
			month             DATE,
			floor_rel         TEXT             NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_city      ON listings(city);
		CREATE INDEX IF NOT EXISTS idx_listings_month     ON listings(month);
		CREATE INDEX IF NOT EXISTS idx_listings_ownership ON listings(ownership);
	`)
	return err
}

// Clear deletes all existing listings from the table.
func (pw *PostgresWriter) Clear(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM listings"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write replaces the stored snapshot with t inside one transaction, so a
// failed run leaves the previous snapshot intact.
func (pw *PostgresWriter) Write(t *models.EnrichedTable) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := pw.Clear(tx); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(t.Listings); i += batchSize {
		end := i + batchSize
		if end > len(t.Listings) {
			end = len(t.Listings)
		}
		if err := pw.insertBatch(tx, t.Listings[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func postgresMonth(l *models.EnrichedListing) any {
	if l.Month.IsZero() {
		return nil
	}
	return l.Month
}

func (pw *PostgresWriter) insertBatch(tx *sql.Tx, batch []models.EnrichedListing) error {
	width := len(listingColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*width)

	for idx := range batch {
		args, err := sqlArgs(&batch[idx], postgresMonth)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		placeholders := make([]string, width)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*width+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, args...)
	}

	query := fmt.Sprintf(`INSERT INTO listings (%s) VALUES %s`,
		strings.Join(listingColumns, ", "), strings.Join(valueStrings, ","))

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves the stored snapshot in insertion order.
func (pw *PostgresWriter) FetchAll() (*models.EnrichedTable, error) {
	rows, err := pw.db.Query(fmt.Sprintf(
		`SELECT %s FROM listings ORDER BY id`, strings.Join(listingColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	t := &models.EnrichedTable{}
	for rows.Next() {
		var r scannedRow
		var month sql.NullTime
		if err := rows.Scan(r.dest(&month)...); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l, err := r.listing()
		if err != nil {
			return nil, fmt.Errorf("postgres: decode row: %w", err)
		}
		if month.Valid {
			l.Month = time.Date(month.Time.Year(), month.Time.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		t.Listings = append(t.Listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.ExtraColumns = extraColumnsOf(t.Listings)
	return t, nil
}

package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"apartment-prices/models"
)

// SQLiteStore keeps a local snapshot of the enriched table, a file-backed
// cache the report command can read instead of re-running the pipeline.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		city TEXT NOT NULL,
		price REAL,
		square_meters REAL,
		floor REAL,
		floor_count REAL,
		build_year REAL,
		centre_distance REAL,
		ownership TEXT NOT NULL DEFAULT '',
		has_parking_space INTEGER NOT NULL DEFAULT 0,
		has_balcony INTEGER NOT NULL DEFAULT 0,
		has_elevator INTEGER NOT NULL DEFAULT 0,
		has_security INTEGER NOT NULL DEFAULT 0,
		has_storage_room INTEGER NOT NULL DEFAULT 0,
		source_file TEXT NOT NULL,
		extra TEXT NOT NULL DEFAULT '{}',
		priceperm2 REAL,
		building_age REAL,
		month TEXT,
		floor_rel TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
	CREATE INDEX IF NOT EXISTS idx_listings_month ON listings(month);
	`)
	return err
}

func sqliteMonth(l *models.EnrichedListing) any {
	if l.Month.IsZero() {
		return nil
	}
	return l.Month.Format(monthLayout)
}

// Write replaces the snapshot with t in a single transaction.
func (s *SQLiteStore) Write(t *models.EnrichedTable) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM listings`); err != nil {
		return fmt.Errorf("sqlite: clear: %w", err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(listingColumns)), ",")
	stmt, err := tx.Prepare(`INSERT INTO listings (` + strings.Join(listingColumns, ",") + `) VALUES (` + ph + `)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range t.Listings {
		args, err := sqlArgs(&t.Listings[i], sqliteMonth)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("sqlite: insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// FetchAll reads the snapshot back in insertion order.
func (s *SQLiteStore) FetchAll() (*models.EnrichedTable, error) {
	rows, err := s.db.Query(`SELECT ` + strings.Join(listingColumns, ",") + ` FROM listings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch all: %w", err)
	}
	defer rows.Close()

	t := &models.EnrichedTable{}
	for rows.Next() {
		var r scannedRow
		var month sql.NullString
		if err := rows.Scan(r.dest(&month)...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		l, err := r.listing()
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode row: %w", err)
		}
		if month.Valid && month.String != "" {
			m, err := time.Parse(monthLayout, month.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite: month %q: %w", month.String, err)
			}
			l.Month = m
		}
		t.Listings = append(t.Listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.ExtraColumns = extraColumnsOf(t.Listings)
	return t, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

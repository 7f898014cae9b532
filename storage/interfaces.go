package storage

import "apartment-prices/models"

// ListingWriter is the interface any enriched-table sink must satisfy.
type ListingWriter interface {
	Write(t *models.EnrichedTable) error
	Close() error
}

// ListingReader reloads a previously materialized enriched table.
type ListingReader interface {
	FetchAll() (*models.EnrichedTable, error)
	Close() error
}

var (
	_ ListingWriter = (*CSVWriter)(nil)
	_ ListingWriter = (*PostgresWriter)(nil)
	_ ListingWriter = (*SQLiteStore)(nil)
	_ ListingReader = (*PostgresWriter)(nil)
	_ ListingReader = (*SQLiteStore)(nil)
)

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-prices/models"
)

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "listings.db"))
	require.NoError(t, err)
	defer store.Close()

	in := sampleEnriched()
	require.NoError(t, store.Write(in))

	out, err := store.FetchAll()
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())
	assert.Equal(t, []string{"id", "rooms"}, out.ExtraColumns)

	first := out.Listings[0]
	assert.Equal(t, "krakow", first.City)
	assert.Equal(t, 6000.0, first.PricePerM2)
	assert.Equal(t, models.FloorMedium, first.FloorRel)
	assert.True(t, first.Conveniences.HasBalcony)
	assert.False(t, first.Conveniences.HasSecurity)
	assert.Equal(t, "2023-01-01", first.Month.Format("2006-01-02"))
	assert.Equal(t, "a1", first.Extra["id"])

	second := out.Listings[1]
	assert.True(t, models.IsUndefined(second.Price))
	assert.True(t, models.IsUndefined(second.PricePerM2))
	assert.True(t, models.IsUndefined(second.CentreDistance))
	assert.Equal(t, models.FloorLow, second.FloorRel)
}

func TestSQLiteWriteReplacesContents(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "listings.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(sampleEnriched()))

	smaller := sampleEnriched()
	smaller.Listings = smaller.Listings[:1]
	require.NoError(t, store.Write(smaller))

	out, err := store.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

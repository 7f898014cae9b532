package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-prices/config"
	"apartment-prices/models"
	"apartment-prices/storage"
	"apartment-prices/utils"
)

type failingWriter struct{ err error }

func (f failingWriter) Write(*models.EnrichedTable) error { return f.err }
func (f failingWriter) Close() error { return nil }

func TestRootCommandPrintsErrorsOnce(t *testing.T) {
	assert.True(t, rootCmd.SilenceErrors)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestReportErrorWithoutLogger(t *testing.T) {
	saved := logger
	logger = nil
	defer func() { logger = saved }()

	var buf bytes.Buffer
	reportError(&buf, errors.New("config: bad LOAD_WORKERS"))
	assert.Equal(t, "Error: config: bad LOAD_WORKERS\n", buf.String())
}

func TestSnapshotFailureLeavesCSVUntouched(t *testing.T) {
	saved := logger
	logger = utils.NewNopLogger()
	defer func() { logger = saved }()

	out := filepath.Join(t.TempDir(), "data.csv")
	down := errors.New("snapshot store unavailable")
	sinks := []sink{
		{name: "snapshot", writer: failingWriter{err: down}},
		{name: out, writer: storage.NewCSVWriter(out)},
	}

	err := writeSinks(&models.EnrichedTable{}, sinks)
	assert.ErrorIs(t, err, down)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "CSV must not be committed after a failed snapshot")
}

func TestOpenSinksCommitsCSVLast(t *testing.T) {
	savedCfg, savedPath, savedPG := cfg, sqlitePath, usePostgres
	defer func() { cfg, sqlitePath, usePostgres = savedCfg, savedPath, savedPG }()

	dir := t.TempDir()
	cfg = &config.Config{}
	usePostgres = false
	sqlitePath = filepath.Join(dir, "listings.db")
	out := filepath.Join(dir, "data.csv")

	sinks, err := openSinks(context.Background(), out)
	for _, s := range sinks {
		defer s.writer.Close()
	}
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, sqlitePath, sinks[0].name)
	assert.Equal(t, out, sinks[1].name)
}

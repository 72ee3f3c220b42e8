package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kweber84/erpimport/internal/sources"
)

func newFileSource(t *testing.T, cfg Config) sources.Source {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	f, ok := sources.Get("file")
	require.True(t, ok, "file connector must self-register")
	src, err := f(zerolog.Nop(), raw)
	require.NoError(t, err)
	return src
}

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, src sources.Source, opts sources.FetchOptions) []sources.RawItem {
	t.Helper()
	var items []sources.RawItem
	require.NoError(t, src.Fetch(context.Background(), opts, func(item sources.RawItem) error {
		items = append(items, item)
		return nil
	}))
	return items
}

func TestFetchCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "2024", "03", "prices.csv"),
		"Material;Description;Price\nA1;Filter;12.50\nB2;Hose;7.00\n")

	src := newFileSource(t, Config{
		DataDir:         dir,
		Pattern:         "*.csv",
		RequiredColumns: []string{"Material", "Price"},
		ReferenceColumn: "Material",
	})

	items := collect(t, src, sources.FetchOptions{})
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].LineNumber)
	assert.Equal(t, "A1", items[0].Payload["Material"])
	assert.Equal(t, "12.50", items[0].Payload["Price"])
	assert.Equal(t, "A1", items[0].Reference)
	assert.Equal(t, "B2", items[1].Reference)
}

func TestFetchSkipsRowsMissingRequiredColumns(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "2024", "03", "prices.csv"),
		"Material;Price\nA1;12.50\n;9.99\nB2;\nC3;5.00\n")

	src := newFileSource(t, Config{
		DataDir:         dir,
		Pattern:         "*.csv",
		RequiredColumns: []string{"Material", "Price"},
	})

	items := collect(t, src, sources.FetchOptions{})
	require.Len(t, items, 2)
	assert.Equal(t, "A1", items[0].Payload["Material"])
	assert.Equal(t, "C3", items[1].Payload["Material"])
	// line numbers count emitted records, they stay dense
	assert.Equal(t, 2, items[1].LineNumber)
}

func TestFetchNewestFileWins(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "2024", "02", "prices.csv")
	newFile := filepath.Join(dir, "2024", "03", "prices.csv")
	writeCSV(t, oldFile, "Material\nOLD\n")
	writeCSV(t, newFile, "Material\nNEW\n")
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	src := newFileSource(t, Config{DataDir: dir, Pattern: "*.csv"})
	items := collect(t, src, sources.FetchOptions{})
	require.Len(t, items, 1)
	assert.Equal(t, "NEW", items[0].Payload["Material"])
}

func TestFetchExplicitFileAndLimit(t *testing.T) {
	dir := t.TempDir()
	chosen := filepath.Join(dir, "2024", "01", "prices.csv")
	writeCSV(t, chosen, "Material\nA\nB\nC\n")
	writeCSV(t, filepath.Join(dir, "2024", "02", "prices.csv"), "Material\nX\n")

	src := newFileSource(t, Config{DataDir: dir, Pattern: "*.csv"})
	items := collect(t, src, sources.FetchOptions{File: chosen, Limit: 2})
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Payload["Material"])
}

func TestFetchNoMatchingFile(t *testing.T) {
	src := newFileSource(t, Config{DataDir: t.TempDir(), Pattern: "*.xlsx"})
	err := src.Fetch(context.Background(), sources.FetchOptions{}, func(sources.RawItem) error { return nil })
	assert.ErrorContains(t, err, "no file matching")
}

func TestFactoryRequiresDataDir(t *testing.T) {
	f, ok := sources.Get("file")
	require.True(t, ok)
	_, err := f(zerolog.Nop(), json.RawMessage(`{}`))
	assert.ErrorContains(t, err, "data_dir")
}

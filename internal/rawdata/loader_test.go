package rawdata

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir, rel, content string) {
	t.Helper()

	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	if filepath.Ext(path) != ".gz" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return
	}

	f, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestLoader_LoadConcatenatesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "woolies/2024-03-01.json.gz", `[{"Category":"b","Products":[{"id":2}]}]`)
	writeRaw(t, dir, "woolies/2024-03-01-extra.json", `[{"Category":"c"}]`)
	writeRaw(t, dir, "woolies/2024-02-29.json", `[{"Category":"old"}]`)
	writeRaw(t, dir, "coles/2024-03-01.json", `[{"Category":"other store"}]`)

	l := NewLoader(dir, "")

	groups, stats, err := l.Load(context.Background(), "woolies", "2024-03-01")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// "2024-03-01-extra.json" sorts before "2024-03-01.json.gz"
	assert.Equal(t, "c", groups[0]["Category"])
	assert.Equal(t, "b", groups[1]["Category"])

	records, ok := groups[1].Products()
	require.True(t, ok)
	assert.Len(t, records, 1)

	assert.Equal(t, 2, stats.Files)
	assert.Positive(t, stats.Bytes)
}

func TestLoader_NoFiles(t *testing.T) {
	l := NewLoader(t.TempDir(), "")

	_, _, err := l.Load(context.Background(), "aldi", "2024-03-01")
	assert.ErrorIs(t, err, ErrNoRawData)
}

func TestLoader_BadJSON(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "aldi/2024-03-01.json", `{not json`)

	_, _, err := NewLoader(dir, "").Load(context.Background(), "aldi", "2024-03-01")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRawData)
}

func TestLoader_CustomPattern(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "raw/2024-03-01/coles/page-1.json", `[{"CategoryName":"Dairy"}]`)
	writeRaw(t, dir, "raw/2024-03-01/coles/nested/page-2.json", `[{"CategoryName":"Bakery"}]`)

	l := NewLoader(dir, "raw/{day}/{store}/**/*.json")

	groups, stats, err := l.Load(context.Background(), "coles", "2024-03-01")
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Equal(t, 2, stats.Files)
}

func TestLoader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "aldi/2024-03-01.json", `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewLoader(dir, "").Load(ctx, "aldi", "2024-03-01")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_InvalidPattern(t *testing.T) {
	_, err := NewLoader(t.TempDir(), "{store}/[{day}").Glob("aldi", "2024-03-01")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotprices/internal/logger"
	"hotprices/internal/pipeline"
	"hotprices/internal/rawdata"
	"hotprices/internal/sites"
	"hotprices/internal/snapshot"
	"hotprices/internal/watch"
)

type fakeRunner struct {
	runs []pipeline.Options
	fail map[string]error
}

func (f *fakeRunner) Run(_ context.Context, opts pipeline.Options) (*pipeline.RunResult, error) {
	f.runs = append(f.runs, opts)

	if err := f.fail[opts.Store]; err != nil {
		return nil, err
	}

	return &pipeline.RunResult{Day: opts.Day}, nil
}

func TestRunChanged_OneFilteredRunPerStore(t *testing.T) {
	r := &fakeRunner{}

	require.NoError(t, runChanged(context.Background(), r, "2024-03-02", []string{"aldi", "coles"}))

	assert.Equal(t, []pipeline.Options{
		{Day: "2024-03-02", Store: "aldi"},
		{Day: "2024-03-02", Store: "coles"},
	}, r.runs)
}

func TestRunChanged_ReportsOnlyFailedStores(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{
		"coles": fmt.Errorf("failed to load coles raw data: %w", rawdata.ErrNoRawData),
	}}

	err := runChanged(context.Background(), r, "2024-03-02", []string{"aldi", "coles", "woolies"})
	require.Error(t, err)
	assert.Len(t, r.runs, 3)

	var storesErr *watch.StoresError
	require.ErrorAs(t, err, &storesErr)
	assert.Equal(t, []string{"coles"}, storesErr.Stores)
	assert.ErrorIs(t, err, rawdata.ErrNoRawData)
}

func TestRunChanged_CancelledKeepsRemainingStores(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &fakeRunner{}

	err := runChanged(ctx, r, "2024-03-02", []string{"aldi", "coles"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.runs)
}

// Two stores change while a third enabled store has no file for the day yet.
func TestRunChanged_StoreWithoutRawDataDoesNotBlockOthers(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "output")
	day := "2024-03-02"

	for _, store := range []string{"woolies", "aldi"} {
		require.NoError(t, os.MkdirAll(filepath.Join(outputDir, store), 0755))
	}

	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "woolies", day+".json"), []byte(wooliesRaw), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "aldi", day+".json"), []byte(`[]`), 0644))

	log := logger.Discard()
	store := snapshot.NewStore(outputDir, filepath.Join(root, "data"), snapshot.DefaultFile, 2, log)

	p := pipeline.New(pipeline.Deps{
		Registry:  sites.Default(),
		Raw:       rawdata.NewLoader(outputDir, rawdata.DefaultPattern),
		Snapshots: store,
		Log:       log,
	})

	require.NoError(t, runChanged(context.Background(), p, day, []string{"aldi", "woolies"}))

	saved, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, saved, 1)
	assert.Equal(t, "woolies", saved[0].Store)

	// the unfiltered run is what the coles gap breaks
	_, err = p.Run(context.Background(), pipeline.Options{Day: day})
	assert.ErrorIs(t, err, rawdata.ErrNoRawData)
}

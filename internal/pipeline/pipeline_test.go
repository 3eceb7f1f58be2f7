package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotprices/internal/logger"
	"hotprices/internal/metrics"
	"hotprices/internal/models"
	"hotprices/internal/notify"
	"hotprices/internal/rawdata"
	"hotprices/internal/sites"
	"hotprices/internal/snapshot"
	"hotprices/pkg/metadata"
)

const testDay = "2024-03-02"

// stubAdapter reads {"id", "name", "price", "cat"}; records with "fail" are malformed.
type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Canonical(raw models.RawRecord, day string) sites.Result {
	if raw.Bool("fail") {
		return sites.Failf("unreadable record")
	}

	id, _ := raw.String("id")
	name, _ := raw.String("name")
	price, _ := raw.Float("price")

	return sites.Item(models.NewCanonicalItem(id, name, price, day))
}

func (s stubAdapter) CategoryMapping([]models.CategoryGroup) models.CategoryMap {
	return models.CategoryMap{"dairy": "Dairy"}
}

func (s stubAdapter) CategoryFromMap(m models.CategoryMap, raw models.RawRecord) (string, error) {
	key, _ := raw.String("cat")
	if label, ok := m[key]; ok {
		return label, nil
	}

	return "", sites.ErrCategoryNotFound
}

type stubRaw map[string][]models.CategoryGroup

func (s stubRaw) Load(_ context.Context, store, day string) ([]models.CategoryGroup, rawdata.LoadStats, error) {
	groups, ok := s[store]
	if !ok {
		return nil, rawdata.LoadStats{}, fmt.Errorf("%w: %s %s", rawdata.ErrNoRawData, store, day)
	}

	return groups, rawdata.LoadStats{Files: 1}, nil
}

type recordingNotifier struct {
	events []notify.SnapshotEvent
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.SnapshotEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

type recordingMirror struct {
	items []models.CanonicalItem
	err   error
}

func (m *recordingMirror) Sync(_ context.Context, _ uuid.UUID, _ string, items []models.CanonicalItem) error {
	m.items = items
	return m.err
}

func products(records ...map[string]any) models.CategoryGroup {
	list := make([]any, 0, len(records))
	for _, r := range records {
		list = append(list, r)
	}

	return models.CategoryGroup{models.ProductsField: list}
}

func p(id, name string, price float64) map[string]any {
	return map[string]any{"id": id, "name": name, "price": price, "cat": "dairy"}
}

type fixture struct {
	pipeline  *Pipeline
	snapshots *snapshot.Store
	notifier  *recordingNotifier
	mirror    *recordingMirror
	logs      *bytes.Buffer
}

func newFixture(t *testing.T, raw stubRaw, mutate func(*Deps)) *fixture {
	t.Helper()

	registry, err := sites.NewRegistry(stubAdapter{name: "A"}, stubAdapter{name: "B"})
	require.NoError(t, err)

	root := t.TempDir()
	logs := &bytes.Buffer{}
	log := logger.NewLoggerWithWriter(logs, "debug", "text")

	f := &fixture{
		snapshots: snapshot.NewStore(filepath.Join(root, "output"), filepath.Join(root, "data"), "", 2, log),
		notifier:  &recordingNotifier{},
		mirror:    &recordingMirror{},
		logs:      logs,
	}

	deps := Deps{
		Registry:  registry,
		Raw:       raw,
		Snapshots: f.snapshots,
		Log:       log,
		Manifest:  true,
		Notifier:  f.notifier,
		Mirror:    f.mirror,
	}

	if mutate != nil {
		mutate(&deps)
	}

	f.pipeline = New(deps)

	return f
}

func keys(items []models.CanonicalItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key().String())
	}

	return out
}

func TestRun_EndToEnd(t *testing.T) {
	raw := stubRaw{
		"A": {products(
			p("1", "first", 1),
			map[string]any{"fail": true},
			p("1", "duplicate", 2),
		)},
		"B": {products(p("1", "b one", 3), p("2", "b two", 4))},
	}

	f := newFixture(t, raw, nil)
	ctx := context.Background()

	res, err := f.pipeline.Run(ctx, Options{Day: testDay})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.False(t, res.HadPrevious)
	require.Len(t, res.Stores, 2)
	assert.Equal(t, 1, res.Stores[0].Failed)
	assert.Equal(t, 1, res.Stores[0].Duplicates)
	assert.Equal(t, 1, res.Stores[0].Items)
	assert.Equal(t, 2, res.Stores[1].Items)

	assert.Contains(t, f.logs.String(), "Deduplicated items")
	assert.Contains(t, f.logs.String(), `{\"A\":1}`)
	assert.NotContains(t, f.logs.String(), `\"B\"`)

	saved, ok, err := f.snapshots.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"A:1", "B:1", "B:2"}, keys(saved))
	assert.Equal(t, "first", saved[0].Name)
	assert.Equal(t, []models.PricePoint{{Date: testDay, Price: 1}}, saved[0].PriceHistory)
	require.NotNil(t, saved[0].Category)
	assert.Equal(t, "Dairy", *saved[0].Category)

	sliceB, err := f.snapshots.LoadSlice("B")
	require.NoError(t, err)
	assert.Len(t, sliceB, 2)

	_, err = metadata.Verify(f.snapshots.DataDir)
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, res.RunID.String(), f.notifier.events[0].RunID)
	assert.Equal(t, []string{"A", "B"}, f.notifier.events[0].Stores)
	assert.Len(t, f.mirror.items, 3)
}

func TestRun_MergesPreviousSnapshot(t *testing.T) {
	raw := stubRaw{
		"A": {products(p("1", "unchanged", 10), p("new", "brand new", 5))},
		"B": {products(p("1", "changed", 11))},
	}

	f := newFixture(t, raw, nil)
	ctx := context.Background()

	prior := []models.CanonicalItem{
		{ID: "1", Name: "unchanged", Store: "A", Price: 10, PriceHistory: []models.PricePoint{{Date: "d0", Price: 10}, {Date: "d1", Price: 9}}},
		{ID: "gone", Name: "delisted", Store: "A", Price: 1, PriceHistory: []models.PricePoint{{Date: "d0", Price: 1}}},
		{ID: "1", Name: "changed", Store: "B", Price: 9, PriceHistory: []models.PricePoint{{Date: "d1", Price: 9}}},
	}
	require.NoError(t, f.snapshots.Save(ctx, prior))

	res, err := f.pipeline.Run(ctx, Options{Day: testDay})
	require.NoError(t, err)
	assert.True(t, res.HadPrevious)
	assert.Equal(t, 1, res.Merge.Unmatched)
	assert.Equal(t, 1, res.Merge.Unchanged)
	assert.Equal(t, 1, res.Merge.Changed)

	saved, _, err := f.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A:1", "A:new", "B:1"}, keys(saved))
	assert.Equal(t, []models.PricePoint{{Date: "d0", Price: 10}, {Date: "d1", Price: 9}}, saved[0].PriceHistory)
	assert.Equal(t, []models.PricePoint{{Date: testDay, Price: 5}}, saved[1].PriceHistory)
	assert.Equal(t, []models.PricePoint{{Date: testDay, Price: 11}, {Date: "d1", Price: 9}}, saved[2].PriceHistory)
	assert.Contains(t, f.logs.String(), "Products not in latest list")
}

func TestRun_StoreFilterCarriesOverOtherStores(t *testing.T) {
	raw := stubRaw{"B": {products(p("1", "b", 2))}}

	f := newFixture(t, raw, nil)
	ctx := context.Background()

	prior := []models.CanonicalItem{
		{ID: "1", Name: "a", Store: "A", Price: 1, PriceHistory: []models.PricePoint{{Date: "d0", Price: 1}}},
		{ID: "1", Name: "b", Store: "B", Price: 1, PriceHistory: []models.PricePoint{{Date: "d0", Price: 1}}},
		{ID: "old", Name: "b old", Store: "B", Price: 1, PriceHistory: []models.PricePoint{{Date: "d0", Price: 1}}},
	}
	require.NoError(t, f.snapshots.Save(ctx, prior))

	res, err := f.pipeline.Run(ctx, Options{Day: testDay, Store: "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CarriedOver)
	assert.Equal(t, 1, res.Merge.Unmatched)
	require.Len(t, res.Stores, 1)

	saved, _, err := f.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B:1", "A:1"}, keys(saved))
	assert.Equal(t, []string{"B:1", "A:1"}, keys(f.mirror.items))
	assert.Equal(t, prior[0], saved[1])
	assert.Equal(t, []models.PricePoint{{Date: testDay, Price: 2}, {Date: "d0", Price: 1}}, saved[0].PriceHistory)
}

func TestRun_UnknownStore(t *testing.T) {
	f := newFixture(t, stubRaw{}, nil)

	_, err := f.pipeline.Run(context.Background(), Options{Day: testDay, Store: "nope"})
	assert.ErrorIs(t, err, sites.ErrUnknownStore)
}

func TestRun_InvalidDay(t *testing.T) {
	f := newFixture(t, stubRaw{}, nil)

	_, err := f.pipeline.Run(context.Background(), Options{Day: "02/03/2024"})
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestRun_LoadFailureKeepsPreviousSnapshot(t *testing.T) {
	raw := stubRaw{"A": {products(p("1", "a", 1))}}

	f := newFixture(t, raw, nil)
	ctx := context.Background()

	prior := []models.CanonicalItem{
		{ID: "x", Name: "x", Store: "B", Price: 1, PriceHistory: []models.PricePoint{{Date: "d0", Price: 1}}},
	}
	require.NoError(t, f.snapshots.Save(ctx, prior))

	before, err := os.ReadFile(f.snapshots.Path())
	require.NoError(t, err)

	_, err = f.pipeline.Run(ctx, Options{Day: testDay})
	require.ErrorIs(t, err, rawdata.ErrNoRawData)

	after, err := os.ReadFile(f.snapshots.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.notifier.events)
}

func TestRun_DisabledStoresAreSkipped(t *testing.T) {
	raw := stubRaw{"A": {products(p("1", "a", 1))}}

	f := newFixture(t, raw, func(d *Deps) {
		d.Enabled = func(store string) bool { return store != "B" }
	})

	stores, err := f.pipeline.Stores(Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, stores)

	res, err := f.pipeline.Run(context.Background(), Options{Day: testDay})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestRun_SinkFailuresOnlyWarn(t *testing.T) {
	raw := stubRaw{"A": {products(p("1", "a", 1))}, "B": {}}

	f := newFixture(t, raw, func(d *Deps) {
		d.Mirror = &recordingMirror{err: errors.New("database down")}
		d.Metrics = metrics.NewRecorder()
		d.MetricsFile = filepath.Join(t.TempDir(), "missing", "hotprices.prom")
	})

	res, err := f.pipeline.Run(context.Background(), Options{Day: testDay})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	out := f.logs.String()
	assert.Contains(t, out, "Failed to mirror snapshot to database")
	assert.Contains(t, out, "Failed to write metrics")
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	raw := stubRaw{"A": {products(p("1", "a", 1))}, "B": {}}
	path := filepath.Join(t.TempDir(), "hotprices.prom")

	f := newFixture(t, raw, func(d *Deps) {
		d.Metrics = metrics.NewRecorder()
		d.MetricsFile = path
	})

	_, err := f.pipeline.Run(context.Background(), Options{Day: testDay})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hotprices_items_total{store="A"} 1`)
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, stubRaw{"A": {}, "B": {}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, Options{Day: testDay})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(f.snapshots.Path())
	assert.True(t, os.IsNotExist(statErr))
}

// Package pipeline composes loading, canonicalization, deduplication, history merge and publishing into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hotprices/internal/history"
	"hotprices/internal/logger"
	"hotprices/internal/metrics"
	"hotprices/internal/models"
	"hotprices/internal/normalizer"
	"hotprices/internal/notify"
	"hotprices/internal/rawdata"
	"hotprices/internal/sites"
	"hotprices/internal/snapshot"
	"hotprices/pkg/metadata"
)

// DayLayout is the format of run days.
const DayLayout = "2006-01-02"

// ErrInvalidDay is returned for days not in YYYY-MM-DD form.
var ErrInvalidDay = errors.New("invalid day")

// RawSource loads the raw category groups of a store for a day.
type RawSource interface {
	Load(ctx context.Context, store, day string) ([]models.CategoryGroup, rawdata.LoadStats, error)
}

// Mirror receives every persisted snapshot in full and drops items it no longer contains.
type Mirror interface {
	Sync(ctx context.Context, runID uuid.UUID, day string, items []models.CanonicalItem) error
}

// Deps are the collaborators of a Pipeline. Registry, Raw and Snapshots are required.
type Deps struct {
	Registry  *sites.Registry
	Raw       RawSource
	Snapshots *snapshot.Store
	Log       *logger.Logger

	// Enabled reports whether a store takes part in unfiltered runs. Nil enables all.
	Enabled func(store string) bool

	Manifest    bool
	Metrics     *metrics.Recorder
	MetricsFile string
	Notifier    notify.Notifier
	Mirror      Mirror
}

// Options select what one run processes.
type Options struct {
	Day   string
	Store string
}

// RunResult summarises a finished run.
type RunResult struct {
	RunID       uuid.UUID
	Day         string
	Stores      []normalizer.StoreStats
	Merge       history.Stats
	HadPrevious bool
	CarriedOver int
	Total       int
	Files       []metadata.FileEntry
	Duration    time.Duration
}

// Pipeline runs the price transform.
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}

	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	return &Pipeline{deps: deps, now: time.Now}
}

// Today returns the current day in DayLayout.
func Today() string {
	return time.Now().Format(DayLayout)
}

// Stores returns the stores a run with opts would process, in registry order.
func (p *Pipeline) Stores(opts Options) ([]string, error) {
	if opts.Store != "" {
		if !p.deps.Registry.Has(opts.Store) {
			return nil, fmt.Errorf("%w: %s", sites.ErrUnknownStore, opts.Store)
		}

		return []string{opts.Store}, nil
	}

	var stores []string

	for _, name := range p.deps.Registry.Names() {
		if p.deps.Enabled == nil || p.deps.Enabled(name) {
			stores = append(stores, name)
		}
	}

	return stores, nil
}

// Run transforms the raw data of opts.Day into a new snapshot and publishes it.
// Loading or persisting failures abort the run and leave the previous snapshot in place.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunResult, error) {
	start := p.now()

	if _, err := time.Parse(DayLayout, opts.Day); err != nil {
		return nil, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDay, opts.Day)
	}

	stores, err := p.Stores(opts)
	if err != nil {
		return nil, err
	}

	res := &RunResult{RunID: uuid.New(), Day: opts.Day}
	log := p.deps.Log.With("run_id", res.RunID.String(), "day", opts.Day)

	log.Info("Starting price run", "stores", stores)

	processor := normalizer.NewProcessor(log)

	var items []models.CanonicalItem

	for _, store := range stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		adapter, err := p.deps.Registry.Get(store)
		if err != nil {
			return nil, err
		}

		groups, loadStats, err := p.deps.Raw.Load(ctx, store, opts.Day)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s raw data: %w", store, err)
		}

		log.Debug("Loaded raw data",
			"store", store,
			"files", loadStats.Files,
			"bytes", loadStats.Bytes,
			"duration", loadStats.Duration,
		)

		storeItems, stats := processor.ProcessStore(adapter, groups, opts.Day)
		items = append(items, storeItems...)
		res.Stores = append(res.Stores, stats)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	old, hasOld, err := p.deps.Snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	res.HadPrevious = hasOld

	var carried []models.CanonicalItem
	if opts.Store != "" {
		old, carried = partition(old, stores)
	}

	merged, mergeStats := history.NewMerger(log).Reconcile(old, hasOld, items)
	merged = append(merged, carried...)

	res.Merge = mergeStats
	res.CarriedOver = len(carried)
	res.Total = len(merged)

	if err := p.deps.Snapshots.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	files, err := p.deps.Snapshots.Publish(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to publish store slices: %w", err)
	}

	res.Files = files
	res.Duration = p.now().Sub(start)

	p.runSinks(ctx, log, res, merged)

	log.Info("Price run finished",
		"items", res.Total,
		"carried_over", res.CarriedOver,
		"duration", res.Duration,
	)

	return res, nil
}

// partition splits items into those of the processed stores and the rest.
func partition(items []models.CanonicalItem, processed []string) ([]models.CanonicalItem, []models.CanonicalItem) {
	in := make(map[string]bool, len(processed))
	for _, s := range processed {
		in[s] = true
	}

	var mine, others []models.CanonicalItem

	for _, item := range items {
		if in[item.Store] {
			mine = append(mine, item)
		} else {
			others = append(others, item)
		}
	}

	return mine, others
}

// runSinks feeds the secondary outputs. Their failures never undo the persisted snapshot.
func (p *Pipeline) runSinks(ctx context.Context, log *logger.Logger, res *RunResult, items []models.CanonicalItem) {
	if p.deps.Manifest {
		m := &metadata.Manifest{RunID: res.RunID.String(), Day: res.Day, Files: res.Files}
		if err := metadata.Write(p.deps.Snapshots.DataDir, m); err != nil {
			log.Warn("Failed to write manifest", "error", err)
		}
	}

	if p.deps.Metrics != nil {
		for _, stats := range res.Stores {
			p.deps.Metrics.ObserveStore(stats)
		}

		p.deps.Metrics.ObserveRun(res.Merge.Unmatched, res.Duration, p.now())

		if p.deps.MetricsFile != "" {
			if err := p.deps.Metrics.WriteTextfile(p.deps.MetricsFile); err != nil {
				log.Warn("Failed to write metrics", "error", err)
			}
		}
	}

	if p.deps.Mirror != nil {
		if err := p.deps.Mirror.Sync(ctx, res.RunID, res.Day, items); err != nil {
			log.Warn("Failed to mirror snapshot to database", "error", err)
		}
	}

	stores := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		stores = append(stores, f.Store)
	}

	event := notify.SnapshotEvent{
		RunID:  res.RunID.String(),
		Day:    res.Day,
		Items:  res.Total,
		Stores: stores,
		Files:  res.Files,
	}

	if err := p.deps.Notifier.Notify(ctx, event); err != nil {
		log.Warn("Failed to send snapshot notification", "error", err)
	}
}

// Package snapshot persists the canonical snapshot and publishes its per-store slices.
package snapshot

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"hotprices/internal/logger"
	"hotprices/internal/models"
	"hotprices/pkg/metadata"
)

// DefaultFile is the snapshot file name inside the output directory.
const DefaultFile = "latest-canonical.json.gz"

// ErrNoSnapshot is returned when an operation needs a persisted snapshot and there is none.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Store reads and writes the durable snapshot and its published slices.
type Store struct {
	OutputDir    string
	DataDir      string
	SnapshotFile string
	Concurrency  int
	Log          *logger.Logger
}

// NewStore creates a snapshot store.
func NewStore(outputDir, dataDir, snapshotFile string, concurrency int, log *logger.Logger) *Store {
	if snapshotFile == "" {
		snapshotFile = DefaultFile
	}

	if concurrency < 1 {
		concurrency = 1
	}

	return &Store{
		OutputDir:    outputDir,
		DataDir:      dataDir,
		SnapshotFile: snapshotFile,
		Concurrency:  concurrency,
		Log:          log,
	}
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return filepath.Join(s.OutputDir, s.SnapshotFile)
}

// SliceFileName returns the published file name of a store's slice.
func SliceFileName(store string) string {
	return "latest-canonical." + store + ".compressed.json"
}

// Load reads the persisted snapshot. ok is false when no snapshot exists yet.
func (s *Store) Load(ctx context.Context) ([]models.CanonicalItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	f, err := os.Open(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open snapshot %s: %w", s.Path(), err)
	}
	defer gz.Close()

	doc, err := io.ReadAll(gz)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot %s: %w", s.Path(), err)
	}

	if err := ValidateDocument(doc); err != nil {
		return nil, false, err
	}

	var items []models.CanonicalItem
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s.Log.Debug("Loaded snapshot", "path", s.Path(), "items", len(items))

	return items, true, nil
}

// Save replaces the snapshot. The new file is written next to the old one
// and renamed over it, so a failed write leaves the previous snapshot.
func (s *Store) Save(ctx context.Context, items []models.CanonicalItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if items == nil {
		items = []models.CanonicalItem{}
	}

	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.OutputDir, "."+s.SnapshotFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	gz := gzip.NewWriter(tmp)

	if err := json.NewEncoder(gz).Encode(items); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.Log.Info("Saved snapshot", "path", s.Path(), "items", len(items))

	return nil
}

// Split groups items by store, stores ordered by first appearance.
func Split(items []models.CanonicalItem) ([]string, map[string][]models.CanonicalItem) {
	var order []string

	byStore := make(map[string][]models.CanonicalItem)

	for _, item := range items {
		if _, ok := byStore[item.Store]; !ok {
			order = append(order, item.Store)
		}

		byStore[item.Store] = append(byStore[item.Store], item)
	}

	return order, byStore
}

// Publish writes one JSON slice per store into DataDir and returns their manifest entries.
func (s *Store) Publish(ctx context.Context, items []models.CanonicalItem) ([]metadata.FileEntry, error) {
	if err := os.MkdirAll(s.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	stores, byStore := Split(items)
	entries := make([]metadata.FileEntry, len(stores))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for i, store := range stores {
		i, store := i, store
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			entry, err := s.writeSlice(store, byStore[store])
			if err != nil {
				return err
			}

			entries[i] = entry

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.Log.Info("Published store slices", "dir", s.DataDir, "stores", len(entries))

	return entries, nil
}

func (s *Store) writeSlice(store string, items []models.CanonicalItem) (metadata.FileEntry, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return metadata.FileEntry{}, fmt.Errorf("failed to marshal %s slice: %w", store, err)
	}

	name := SliceFileName(store)
	if err := os.WriteFile(filepath.Join(s.DataDir, name), data, 0644); err != nil {
		return metadata.FileEntry{}, fmt.Errorf("failed to write %s slice: %w", store, err)
	}

	s.Log.Debug("Wrote store slice", "store", store, "file", name, "items", len(items))

	return metadata.FileEntry{
		Store: store,
		File:  name,
		Items: len(items),
		Bytes: int64(len(data)),
		Hash:  metadata.CalculateHash(data),
	}, nil
}

// PublishFromSnapshot republishes the slices of the persisted snapshot.
func (s *Store) PublishFromSnapshot(ctx context.Context) ([]metadata.FileEntry, error) {
	items, ok, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w at %s", ErrNoSnapshot, s.Path())
	}

	return s.Publish(ctx, items)
}

// LoadSlice reads a store's published slice.
func (s *Store) LoadSlice(store string) ([]models.CanonicalItem, error) {
	data, err := os.ReadFile(filepath.Join(s.DataDir, SliceFileName(store)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s slice: %w", store, err)
	}

	var items []models.CanonicalItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s slice: %w", store, err)
	}

	return items, nil
}

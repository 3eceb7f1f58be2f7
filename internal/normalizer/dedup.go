package normalizer

import (
	"encoding/json"

	"hotprices/internal/logger"
	"hotprices/internal/models"
)

// Deduplicator drops repeated (store, id) identities, keeping the first seen.
type Deduplicator struct {
	log *logger.Logger
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(log *logger.Logger) *Deduplicator {
	return &Deduplicator{log: log}
}

// Dedup returns items with later duplicates removed and the per-store count of
// dropped entries. Order of first occurrences is preserved.
func (d *Deduplicator) Dedup(items []models.CanonicalItem) ([]models.CanonicalItem, map[string]int) {
	seen := make(map[models.ItemKey]struct{}, len(items))
	out := make([]models.CanonicalItem, 0, len(items))
	duplicates := make(map[string]int)

	for _, item := range items {
		key := item.Key()
		if _, ok := seen[key]; ok {
			duplicates[item.Store]++
			continue
		}

		seen[key] = struct{}{}
		out = append(out, item)
	}

	if len(duplicates) > 0 {
		// map keys are sorted by encoding/json, so the line is stable across runs
		summary, err := json.Marshal(duplicates)
		if err != nil {
			summary = []byte(err.Error())
		}

		d.log.Info("Deduplicated items", "duplicates", string(summary))
	}

	return out, duplicates
}

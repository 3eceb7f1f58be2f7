// Package history reconciles freshly canonicalized items with the previous snapshot.
package history

import (
	"hotprices/internal/logger"
	"hotprices/internal/models"
)

// Stats describes how a merge matched new items against the previous snapshot.
type Stats struct {
	Matched   int `json:"matched"`
	Unchanged int `json:"unchanged"`
	Changed   int `json:"changed"`
	New       int `json:"new"`
	Unmatched int `json:"unmatched"`
}

// Merger carries price history forward between runs.
type Merger struct {
	log *logger.Logger
}

// NewMerger creates a new merger.
func NewMerger(log *logger.Logger) *Merger {
	return &Merger{log: log}
}

// Merge reconciles newItems against old and returns newItems with their
// histories updated in place. When hasOld is false newItems is returned as is.
func (m *Merger) Merge(old []models.CanonicalItem, hasOld bool, newItems []models.CanonicalItem) []models.CanonicalItem {
	items, _ := m.Reconcile(old, hasOld, newItems)
	return items
}

// Reconcile is Merge plus the match counts.
//
// For every new item the old item with the same (store, id) is removed from
// the lookup. An unchanged current price keeps the old history verbatim; a
// changed price appends the old history after the fresh point. Old items left
// in the lookup are dropped.
func (m *Merger) Reconcile(
	old []models.CanonicalItem,
	hasOld bool,
	newItems []models.CanonicalItem,
) ([]models.CanonicalItem, Stats) {
	var stats Stats

	if !hasOld {
		stats.New = len(newItems)
		return newItems, stats
	}

	lookup := make(map[models.ItemKey]models.CanonicalItem, len(old))
	for _, item := range old {
		lookup[item.Key()] = item
	}

	for i := range newItems {
		item := &newItems[i]
		key := item.Key()

		prev, ok := lookup[key]
		if !ok {
			stats.New++
			continue
		}

		delete(lookup, key)
		stats.Matched++

		prevPrice, hasPrev := prev.CurrentPrice()
		curPrice, hasCur := item.CurrentPrice()

		switch {
		case !hasPrev:
			m.log.Debug("Previous item has no price history", "item", key.String())
		case !hasCur:
			item.PriceHistory = prev.PriceHistory
			stats.Unchanged++
		case prevPrice == curPrice:
			item.PriceHistory = prev.PriceHistory
			stats.Unchanged++
		default:
			history := make([]models.PricePoint, 0, len(item.PriceHistory)+len(prev.PriceHistory))
			history = append(history, item.PriceHistory...)
			history = append(history, prev.PriceHistory...)
			item.PriceHistory = history
			stats.Changed++
		}
	}

	stats.Unmatched = len(lookup)
	if stats.Unmatched > 0 {
		m.log.Info("Products not in latest list", "count", stats.Unmatched)
	}

	return newItems, stats
}

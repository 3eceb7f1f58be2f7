// Package normalizer turns a store's raw category groups into deduplicated canonical items.
package normalizer

import (
	"hotprices/internal/logger"
	"hotprices/internal/models"
	"hotprices/internal/sites"
)

// StoreStats summarises the processing of one store.
type StoreStats struct {
	Store         string `json:"store"`
	Groups        int    `json:"groups"`
	EmptyGroups   int    `json:"emptyGroups"`
	Records       int    `json:"records"`
	Produced      int    `json:"produced"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	Duplicates    int    `json:"duplicates"`
	Items         int    `json:"items"`
	Uncategorised int    `json:"uncategorised"`
}

// Processor canonicalizes and deduplicates one store at a time.
type Processor struct {
	canonicalizer *Canonicalizer
	dedup         *Deduplicator
	log           *logger.Logger
}

// NewProcessor creates a new processor instance.
func NewProcessor(log *logger.Logger) *Processor {
	return &Processor{
		canonicalizer: NewCanonicalizer(log),
		dedup:         NewDeduplicator(log),
		log:           log,
	}
}

// ProcessStore runs every group of a store through the adapter and deduplicates the result.
// Groups without a Products field are counted and skipped.
func (p *Processor) ProcessStore(adapter sites.Adapter, groups []models.CategoryGroup, day string) ([]models.CanonicalItem, StoreStats) {
	store := adapter.Name()
	stats := StoreStats{Store: store, Groups: len(groups)}

	categories := adapter.CategoryMapping(groups)

	var (
		items  []models.CanonicalItem
		totals CanonicalStats
	)

	for _, group := range groups {
		records, ok := group.Products()
		if !ok {
			stats.EmptyGroups++
			continue
		}

		converted, cs := p.canonicalizer.Canonicalize(adapter, records, categories, day)
		items = append(items, converted...)

		totals.Add(cs)
	}

	items, duplicates := p.dedup.Dedup(items)

	stats.Records = totals.Records
	stats.Produced = totals.Produced
	stats.Skipped = totals.Skipped
	stats.Failed = totals.Failed
	stats.Duplicates = duplicates[store]
	stats.Items = len(items)

	for i := range items {
		if !items[i].HasCategory() {
			stats.Uncategorised++
		}
	}

	p.log.Info("Total number of products",
		"store", store,
		"total", stats.Items,
		"uncategorised", stats.Uncategorised,
	)

	return items, stats
}

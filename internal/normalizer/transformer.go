package normalizer

import (
	"encoding/json"
	"errors"

	"hotprices/internal/logger"
	"hotprices/internal/models"
	"hotprices/internal/sites"
	"hotprices/pkg/utils"
)

// maxLoggedRecordBytes bounds the raw record dump attached to failure logs.
const maxLoggedRecordBytes = 2048

// CanonicalStats counts the outcomes of one Canonicalize call.
type CanonicalStats struct {
	Records  int
	Produced int
	Skipped  int
	Failed   int
}

// Add accumulates other into s.
func (s *CanonicalStats) Add(other CanonicalStats) {
	s.Records += other.Records
	s.Produced += other.Produced
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Canonicalizer drives a store adapter over raw records.
type Canonicalizer struct {
	validator *Validator
	log       *logger.Logger
}

// NewCanonicalizer creates a new canonicalizer.
func NewCanonicalizer(log *logger.Logger) *Canonicalizer {
	return &Canonicalizer{
		validator: NewValidator(),
		log:       log,
	}
}

// Canonicalize converts records with the adapter, tagging each item with the
// store and its resolved category. Failing records are logged and skipped.
func (c *Canonicalizer) Canonicalize(
	adapter sites.Adapter,
	records []models.RawRecord,
	categories models.CategoryMap,
	day string,
) ([]models.CanonicalItem, CanonicalStats) {
	store := adapter.Name()
	items := make([]models.CanonicalItem, 0, len(records))
	stats := CanonicalStats{Records: len(records)}

	for _, raw := range records {
		res := adapter.Canonical(raw, day)

		switch res.Status {
		case sites.Skipped:
			stats.Skipped++

			c.log.Debug("Skipping record", "store", store, "reason", res.Reason)

			continue
		case sites.Failed:
			stats.Failed++
			c.logFailure(store, raw, res.Err)

			continue
		case sites.Produced:
		}

		if err := c.validator.Validate(res.Item); err != nil {
			stats.Failed++
			c.logFailure(store, raw, err)

			continue
		}

		item := *res.Item
		item.Store = store
		item.Category = nil

		label, err := adapter.CategoryFromMap(categories, raw)
		switch {
		case err == nil:
			item.Category = models.CategoryPtr(label)
		case !errors.Is(err, sites.ErrCategoryNotFound):
			c.log.Debug("Category lookup failed", "store", store, "id", item.ID, "error", err)
		}

		stats.Produced++
		items = append(items, item)
	}

	return items, stats
}

func (c *Canonicalizer) logFailure(store string, raw models.RawRecord, err error) {
	dump, marshalErr := json.Marshal(raw)
	if marshalErr != nil {
		dump = []byte(marshalErr.Error())
	}

	c.log.Error("Unable to process store item",
		"store", store,
		"error", err,
		"record", utils.TruncateString(string(dump), maxLoggedRecordBytes),
	)
}

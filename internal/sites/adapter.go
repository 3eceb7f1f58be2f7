// Package sites contains the pluggable per-store adapters.
//
// An adapter turns one raw record scraped from a store into a canonical item
// and resolves the record's category. Adapters never see other stores' data
// and hold no state between records.
package sites

import (
	"errors"
	"fmt"

	"hotprices/internal/models"
)

// ErrCategoryNotFound is returned by CategoryFromMap when a record has no mapped category.
var ErrCategoryNotFound = errors.New("category not found")

// ErrMalformedRecord is the base error for records an adapter cannot read.
var ErrMalformedRecord = errors.New("malformed record")

// Status enumerates the outcomes of converting one raw record.
type Status int

// Produced, Skipped and Failed are the possible conversion outcomes.
const (
	Produced Status = iota
	Skipped
	Failed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Produced:
		return "produced"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}

	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of Adapter.Canonical.
type Result struct {
	Item   *models.CanonicalItem
	Reason string
	Err    error
	Status Status
}

// Item wraps a converted record.
func Item(item *models.CanonicalItem) Result {
	return Result{Status: Produced, Item: item}
}

// Skip signals that a record has no canonical form, e.g. an advert tile.
func Skip(reason string) Result {
	return Result{Status: Skipped, Reason: reason}
}

// Fail signals that a record could not be read.
func Fail(err error) Result {
	return Result{Status: Failed, Err: err}
}

// Failf builds a Failed result wrapping ErrMalformedRecord.
func Failf(format string, args ...any) Result {
	return Fail(fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...)))
}

// Adapter converts one store's raw records.
type Adapter interface {
	// Name is the store identifier written into every canonical item.
	Name() string

	// Canonical converts a raw record observed on day (YYYY-MM-DD).
	Canonical(raw models.RawRecord, day string) Result

	// CategoryMapping builds the store's category lookup from all raw groups.
	CategoryMapping(groups []models.CategoryGroup) models.CategoryMap

	// CategoryFromMap resolves the category label of a raw record.
	CategoryFromMap(m models.CategoryMap, raw models.RawRecord) (string, error)
}

// lookupCategory is the common CategoryFromMap body: read key from the record, look it up.
func lookupCategory(m models.CategoryMap, key string) (string, error) {
	if key == "" {
		return "", ErrCategoryNotFound
	}

	label, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCategoryNotFound, key)
	}

	return label, nil
}

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidItemID is returned when an item id is neither a JSON string nor a number.
var ErrInvalidItemID = errors.New("item id must be a string or a number")

// ItemID is a store-scoped product identifier.
// Older snapshots stored numeric ids, so both JSON strings and numbers are accepted.
type ItemID string

// UnmarshalJSON accepts `"123"` and `123`.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidItemID, err)
		}

		*id = ItemID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidItemID, string(data))
	}

	*id = ItemID(n.String())

	return nil
}

// String returns the id as a plain string.
func (id ItemID) String() string {
	return string(id)
}

// PricePoint is one price observation.
type PricePoint struct {
	Date  string  `json:"date" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// CanonicalItem is the normalized product record shared by all stores.
type CanonicalItem struct {
	ID           ItemID       `json:"id" validate:"required"`
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description,omitempty"`
	Price        float64      `json:"price" validate:"gte=0"`
	PriceHistory []PricePoint `json:"priceHistory" validate:"min=1,dive"`
	IsWeighted   bool         `json:"isWeighted,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	Quantity     float64      `json:"quantity,omitempty"`
	Store        string       `json:"store"`
	Category     *string      `json:"category"`
}

// ItemKey is the identity of a canonical item within a snapshot.
type ItemKey struct {
	Store string
	ID    ItemID
}

// String renders the key as store:id.
func (k ItemKey) String() string {
	return k.Store + ":" + k.ID.String()
}

// Key returns the (store, id) identity of the item.
func (c *CanonicalItem) Key() ItemKey {
	return ItemKey{Store: c.Store, ID: c.ID}
}

// CurrentPrice returns the most recent price in the history.
func (c *CanonicalItem) CurrentPrice() (float64, bool) {
	if len(c.PriceHistory) == 0 {
		return 0, false
	}

	return c.PriceHistory[0].Price, true
}

// HasCategory reports whether a category was resolved for the item.
func (c *CanonicalItem) HasCategory() bool {
	return c.Category != nil
}

// NewCanonicalItem builds an item whose history is seeded with today's observation.
func NewCanonicalItem(id, name string, price float64, day string) *CanonicalItem {
	return &CanonicalItem{
		ID:           ItemID(id),
		Name:         name,
		Price:        price,
		PriceHistory: []PricePoint{{Date: day, Price: price}},
	}
}

// FormatID renders a numeric JSON id the same way ItemID.UnmarshalJSON would.
func FormatID(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CategoryPtr returns a pointer to a copy of label.
func CategoryPtr(label string) *string {
	return &label
}

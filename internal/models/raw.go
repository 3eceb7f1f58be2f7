// Package models defines the raw and canonical product records handled by the pipeline.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ProductsField is the key under which a category group carries its raw records.
const ProductsField = "Products"

// RawRecord is one decoded product entry as scraped from a store.
// Accessors never panic on missing keys or unexpected types.
type RawRecord map[string]any

// CategoryGroup is one raw category grouping as written by the fetch stage.
type CategoryGroup map[string]any

// CategoryMap resolves an adapter-defined key to a category label.
type CategoryMap map[string]string

// Products returns the raw records of the group.
// ok is false when the group has no Products field.
func (g CategoryGroup) Products() ([]RawRecord, bool) {
	v, ok := g[ProductsField]
	if !ok || v == nil {
		return nil, false
	}

	list, ok := v.([]any)
	if !ok {
		return nil, false
	}

	records := make([]RawRecord, 0, len(list))

	for _, entry := range list {
		if m, isMap := entry.(map[string]any); isMap {
			records = append(records, RawRecord(m))
		}
	}

	return records, true
}

// Record returns the group as a RawRecord for field access.
func (g CategoryGroup) Record() RawRecord {
	return RawRecord(g)
}

// String returns a string field. Numbers are formatted without exponent.
func (r RawRecord) String(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		return v, true
	case float64:
		return FormatID(v), true
	case json.Number:
		return v.String(), true
	}

	return "", false
}

// Float returns a numeric field. Numeric strings such as "3.50" or "$3.50" are parsed.
func (r RawRecord) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(v), "$"), 64)
		return f, err == nil
	}

	return 0, false
}

// Bool returns a boolean field.
func (r RawRecord) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Map returns a nested object field.
func (r RawRecord) Map(key string) (RawRecord, bool) {
	m, ok := r[key].(map[string]any)
	if !ok {
		return nil, false
	}

	return RawRecord(m), true
}

// Slice returns a nested array field.
func (r RawRecord) Slice(key string) ([]any, bool) {
	s, ok := r[key].([]any)
	return s, ok
}

// IsNull reports whether the key is present with a JSON null value.
func (r RawRecord) IsNull(key string) bool {
	v, ok := r[key]
	return ok && v == nil
}

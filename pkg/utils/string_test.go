package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "Full Cream Milk 2L", NormalizeWhitespace("  Full\tCream \n Milk   2L "))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcde...", TruncateString("abcdefgh", 5))

	// "é" is two bytes; cutting inside it backs off to the rune start
	assert.Equal(t, "caf...", TruncateString("café au lait", 4))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "$3.49", want: 3.49, ok: true},
		{in: "Was $1,299.00", want: 1299, ok: true},
		{in: "2 for $5", want: 2, ok: true},
		{in: "N/A", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 0.0001, tt.in)
	}
}

func TestParseQuantity(t *testing.T) {
	qty, unit, ok := ParseQuantity("500g")
	assert.True(t, ok)
	assert.InDelta(t, 500.0, qty, 0.0001)
	assert.Equal(t, "g", unit)

	qty, unit, ok = ParseQuantity(" 1.5 L ")
	assert.True(t, ok)
	assert.InDelta(t, 1.5, qty, 0.0001)
	assert.Equal(t, "l", unit)

	_, _, ok = ParseQuantity("each")
	assert.False(t, ok)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "fruit-vegetables", Slugify("Fruit & Vegetables"))
	assert.Equal(t, "bakery", Slugify("  Bakery "))
}

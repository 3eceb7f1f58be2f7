// Package utils provides common utility functions.
package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	pricePattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	quantityPattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]+)\s*$`)
)

// NormalizeWhitespace replaces multiple whitespace with single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString truncates string to max length, never splitting a UTF-8 sequence.
func TruncateString(str string, maxLength int) string {
	if len(str) <= maxLength {
		return str
	}

	cut := maxLength
	for cut > 0 && !isRuneStart(str[cut]) {
		cut--
	}

	return str[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ParsePrice extracts the first decimal number from text such as "$3.49 each".
func ParsePrice(text string) (float64, bool) {
	match := pricePattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	return val, true
}

// ParseQuantity splits a package size such as "500g" or "1.5 L" into amount and lower-cased unit.
func ParseQuantity(text string) (float64, string, bool) {
	m := quantityPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}

	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}

	return val, strings.ToLower(m[2]), true
}

// Slugify lower-cases text and joins its alphanumeric words with dashes.
func Slugify(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	return strings.Join(words, "-")
}

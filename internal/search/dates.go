package search

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers the formats the two APIs emit. ComprasGov mixes bare
// dates and local datetimes; PNCP uses RFC3339 with and without zone.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseAPIDate parses an upstream date string, returning nil when the value
// is empty or in a shape we don't recognize. Missing dates are a normal
// condition, never an error.
func parseAPIDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return nil
}

// toFloat coerces an upstream numeric value. The legacy endpoints sometimes
// serialize decimals as strings with comma separators.
func toFloat(v interface{}) *float64 {
	switch typed := v.(type) {
	case float64:
		f := typed
		return &f
	case int:
		f := float64(typed)
		return &f
	case string:
		clean := strings.ReplaceAll(strings.TrimSpace(typed), ",", ".")
		if clean == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return &f
		}
	}
	return nil
}

// toInt coerces an upstream integer value (JSON numbers decode as float64).
func toInt(v interface{}) *int {
	if f := toFloat(v); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

package segmentation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/audience-segments/internal/domain"
)

// Config values arrive from JSON, so numbers may be float64 or json.Number.
// The accessors below only accept values that are actually integral.

func operatorOf(c domain.FilterConfig) Operator {
	s, _ := stringField(c, KeyOperator)
	return Operator(s)
}

func stringField(c domain.FilterConfig, key string) (string, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func intField(c domain.FilterConfig, key string) (int64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	return asInt(v)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if !fitsInt64(n) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// fitsInt64 reports whether f converts to int64 without leaving its range.
// NaN and the infinities fail the comparison.
func fitsInt64(f float64) bool {
	return math.Abs(f) < math.MaxInt64
}

// stringListField reads a list of identifiers. Integral numbers are accepted
// and rendered in base 10 because legacy rows stored product ids as numbers.
func stringListField(c domain.FilterConfig, key string) ([]string, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch x := item.(type) {
			case string:
				out = append(out, x)
			default:
				n, ok := asInt(x)
				if !ok {
					return nil, false
				}
				out = append(out, strconv.FormatInt(n, 10))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate parses a calendar date and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func dateField(c domain.FilterConfig, key string) (time.Time, bool) {
	s, ok := stringField(c, key)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(s)
}

func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Nanosecond)
}

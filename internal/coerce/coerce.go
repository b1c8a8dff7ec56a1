// Package coerce converts loosely typed column values from the remote
// tables into codes, numbers and dates.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CodeLength is the width of INSEE and postal codes.
const CodeLength = 5

// Code renders a code as a zero-padded 5-character string.
// Numeric inputs lose any fractional ".0" introduced by float columns.
func Code(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		if x == math.Trunc(x) {
			s = strconv.FormatInt(int64(x), 10)
		} else {
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return ""
	}
	if len(s) < CodeLength {
		s = strings.Repeat("0", CodeLength-len(s)) + s
	}
	return s
}

var separators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// Number coerces a column value to a number. Strings may use a comma as
// decimal separator and spaces as thousands separators. It returns nil for
// null, empty and unparseable values.
func Number(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil
		}
		f = d.InexactFloat64()
	case string:
		s := separators.Replace(strings.TrimSpace(x))
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
		if err != nil {
			return nil
		}
		f = d.InexactFloat64()
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// Date parses a calendar date. The time of day is discarded.
func Date(v any) (time.Time, bool) {
	var s string
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return truncate(x), true
	case string:
		s = strings.TrimSpace(x)
	default:
		return time.Time{}, false
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}
	return time.Time{}, false
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

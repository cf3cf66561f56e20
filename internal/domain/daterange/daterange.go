// Package daterange resolves symbolic reporting ranges to concrete dates.
package daterange

import (
	"fmt"
	"time"
)

// Range keys accepted by the reporting endpoints.
const (
	KeyMonth     = "month"
	KeyLastMonth = "last_month"
	KeyYear      = "year"
	KeyAll       = "all"
	KeyCustom    = "custom"
)

const dayLayout = "2006-01-02"

// Resolve turns a symbolic range key into inclusive start/end dates relative
// to today. "all" yields nil bounds; "custom" requires explicit from/to in
// YYYY-MM-DD form. An empty key defaults to the current month.
func Resolve(key, from, to string, today time.Time) (*time.Time, *time.Time, error) {
	today = today.UTC().Truncate(24 * time.Hour)

	switch key {
	case KeyMonth, "":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return &start, &end, nil

	case KeyLastMonth:
		firstOfThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		start := firstOfThis.AddDate(0, -1, 0)
		end := firstOfThis.AddDate(0, 0, -1)
		return &start, &end, nil

	case KeyYear:
		start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(today.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
		return &start, &end, nil

	case KeyAll:
		return nil, nil, nil

	case KeyCustom:
		if from == "" || to == "" {
			return nil, nil, fmt.Errorf("custom range requires from and to dates")
		}
		start, err := time.ParseInLocation(dayLayout, from, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid from date %q: %w", from, err)
		}
		end, err := time.ParseInLocation(dayLayout, to, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		if end.Before(start) {
			return nil, nil, fmt.Errorf("to date %s precedes from date %s", to, from)
		}
		return &start, &end, nil

	default:
		return nil, nil, fmt.Errorf("unknown range %q", key)
	}
}

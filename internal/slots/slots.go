// Package slots holds the pure time math behind offer slot inventory:
// quantizing a meeting window into bookable 15-minute ticks.
package slots

import (
	"time"

	"github.com/pr-poehali-dev/legal-crypto-exchange/internal/domain"
)

// Interval is the booking granularity of a meeting window.
const Interval = 15 * time.Minute

// Ticks expands a meeting window into slot start times: one every 15 minutes
// from start (inclusive) to end (exclusive). An end at midnight that does not
// already follow start is treated as the end of start's day and rolls into the
// next day. Any other end before (or equal to) start is an invalid window.
func Ticks(start, end time.Time) ([]time.Time, error) {
	if !end.After(start) {
		if !isMidnight(end) {
			return nil, domain.ErrInvalidWindow
		}
		end = end.AddDate(0, 0, 1)
		if !end.After(start) {
			return nil, domain.ErrInvalidWindow
		}
	}

	n := int(end.Sub(start) / Interval)
	if n == 0 {
		return nil, domain.ErrInvalidWindow
	}
	out := make([]time.Time, 0, n)
	for t := start; t.Before(end); t = t.Add(Interval) {
		out = append(out, t)
	}
	return out, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

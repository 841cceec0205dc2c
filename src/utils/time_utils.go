package utils

import (
	"fmt"
	"math"
	"time"
)

// EpochSeconds converts t into fractional seconds since the Unix epoch, the unit of the state file.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds. Zero maps to the zero time.
func FromEpochSeconds(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// FormatAge renders how long ago ts was, relative to now.
// Pass a non-positive ts to get "never".
//
//	30s ago, 5m ago, 2h ago
func FormatAge(ts float64, now time.Time) string {
	if ts <= 0 {
		return "never"
	}
	delta := int64(EpochSeconds(now) - ts)
	if delta < 0 {
		delta = 0
	}
	switch {
	case delta < 60:
		return fmt.Sprintf("%ds ago", delta)
	case delta < 3600:
		return fmt.Sprintf("%dm ago", delta/60)
	default:
		return fmt.Sprintf("%dh ago", delta/3600)
	}
}

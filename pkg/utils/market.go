package utils

import (
	"time"
)

// EasternLocation is the timezone for US equity markets.
var EasternLocation *time.Location

func init() {
	var err error
	EasternLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to UTC-5 (ignores DST)
		EasternLocation = time.FixedZone("ET", -5*60*60)
	}
}

// Regular session boundaries, minutes from midnight ET.
const (
	marketOpenMinutes  = 9*60 + 30 // 09:30
	marketCloseMinutes = 16 * 60   // 16:00
)

// IsMarketOpen reports whether the given instant falls within the US equity
// regular session: 09:30-16:00 ET, weekdays. Exchange holidays are not
// modeled; a holiday calendar belongs to the broker adapter.
func IsMarketOpen(t time.Time) bool {
	et := t.In(EasternLocation)

	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}

	minutes := et.Hour()*60 + et.Minute()
	return minutes >= marketOpenMinutes && minutes < marketCloseMinutes
}

// NextMarketOpen returns the next regular session open at or after t.
func NextMarketOpen(t time.Time) time.Time {
	et := t.In(EasternLocation)

	next := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, EasternLocation)
	if !et.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// MarketClose returns the close time of the session containing t.
func MarketClose(t time.Time) time.Time {
	et := t.In(EasternLocation)
	return time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, EasternLocation)
}

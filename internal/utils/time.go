package utils

import (
	"sync"
	"time"
)

var (
	businessLocMu sync.RWMutex
	businessLoc   = mustLoadLocation("Asia/Kolkata")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetBusinessTimezone switches the office calendar zone. Called once from
// main before any tokens are issued.
func SetBusinessTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	businessLocMu.Lock()
	businessLoc = loc
	businessLocMu.Unlock()
	return nil
}

// BusinessLocation returns the office calendar zone.
func BusinessLocation() *time.Location {
	businessLocMu.RLock()
	defer businessLocMu.RUnlock()
	return businessLoc
}

// BusinessDate truncates t to midnight of its business-calendar day. Daily
// token counters are keyed on this value.
func BusinessDate(t time.Time) time.Time {
	local := t.In(BusinessLocation())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, BusinessLocation())
}

// SameBusinessDay reports whether a and b fall on the same business-calendar
// day. The zero time never matches anything, so an operator who has not
// issued a token yet always starts a fresh day.
func SameBusinessDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return BusinessDate(a).Equal(BusinessDate(b))
}

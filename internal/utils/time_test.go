package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessDateTruncatesToMidnight(t *testing.T) {
	loc := BusinessLocation()

	moment := time.Date(2025, 3, 14, 15, 30, 45, 0, loc)
	date := BusinessDate(moment)

	assert.Equal(t, 2025, date.Year())
	assert.Equal(t, time.March, date.Month())
	assert.Equal(t, 14, date.Day())
	assert.Equal(t, 0, date.Hour())
	assert.Equal(t, 0, date.Minute())
}

func TestSameBusinessDay(t *testing.T) {
	loc := BusinessLocation()

	morning := time.Date(2025, 3, 14, 0, 5, 0, 0, loc)
	evening := time.Date(2025, 3, 14, 23, 55, 0, 0, loc)
	nextDay := time.Date(2025, 3, 15, 0, 5, 0, 0, loc)

	assert.True(t, SameBusinessDay(morning, evening))
	assert.False(t, SameBusinessDay(evening, nextDay))
}

func TestSameBusinessDayZeroTimeNeverMatches(t *testing.T) {
	now := time.Now()

	assert.False(t, SameBusinessDay(time.Time{}, now))
	assert.False(t, SameBusinessDay(now, time.Time{}))
	assert.False(t, SameBusinessDay(time.Time{}, time.Time{}))
}

func TestSameBusinessDayCrossesUTCDate(t *testing.T) {
	require.NoError(t, SetBusinessTimezone("Asia/Kolkata"))
	loc := BusinessLocation()

	// 01:00 IST is still the previous day in UTC. Both stamps are the same
	// business day even though their UTC dates differ.
	early := time.Date(2025, 3, 14, 1, 0, 0, 0, loc)
	late := time.Date(2025, 3, 14, 22, 0, 0, 0, loc)

	assert.NotEqual(t, early.UTC().Day(), late.UTC().Day())
	assert.True(t, SameBusinessDay(early.UTC(), late.UTC()))
}

func TestSetBusinessTimezoneRejectsUnknownZone(t *testing.T) {
	assert.Error(t, SetBusinessTimezone("Not/AZone"))
}

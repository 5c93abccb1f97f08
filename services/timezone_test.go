package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/punchclock/models"
)

func TestDayBounds(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	// 12:00 UTC is 08:00 EDT on 2026-03-10.
	start, end := DayBounds(ny, at(12, 0))
	assert.Equal(t, time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 59, 59, int(999*time.Millisecond), time.UTC), end)
	assert.Equal(t, time.UTC, start.Location())

	// 02:00 UTC is still the previous local day.
	start, _ = DayBounds(ny, at(2, 0))
	assert.Equal(t, time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC), start)
}

func TestDayBoundsUTC(t *testing.T) {
	start, end, err := DayBoundsUTC("UTC", at(15, 30))
	require.NoError(t, err)
	assert.Equal(t, tuesday, start)
	assert.True(t, end.Before(tuesday.Add(24*time.Hour)))
	assert.Equal(t, 23, end.Hour())

	_, _, err = DayBoundsUTC("Mars/Olympus_Mons", at(15, 30))
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestLoadLocationRejectsImplicitZones(t *testing.T) {
	for _, tz := range []string{"", "Local", "Not/AZone"} {
		_, err := LoadLocation(tz)
		assert.True(t, IsConfiguration(err), "zone %q", tz)
	}
}

func TestResolveTimezone(t *testing.T) {
	assert.Equal(t, "Europe/Paris", ResolveTimezone(nil, "Europe/Paris"))
	assert.Equal(t, "UTC", ResolveTimezone(nil, ""))
	assert.Equal(t, "Europe/Paris", ResolveTimezone(&models.User{Timezone: "  "}, "Europe/Paris"))
	assert.Equal(t, "Asia/Tokyo", ResolveTimezone(&models.User{Timezone: "Asia/Tokyo"}, "Europe/Paris"))
}

func TestLocalDate(t *testing.T) {
	tokyo, err := LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", LocalDate(at(20, 0), time.UTC))
	assert.Equal(t, "2026-03-11", LocalDate(at(20, 0), tokyo))
}

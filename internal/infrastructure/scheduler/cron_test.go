package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyTriggerNextSameDay(t *testing.T) {
	t.Parallel()

	trigger, err := NewDailyTrigger(12, 0, time.UTC)
	require.NoError(t, err)

	now := time.Date(2025, time.November, 8, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC), trigger.Next(now).UTC())
}

func TestDailyTriggerNextIsStrictlyAfter(t *testing.T) {
	t.Parallel()

	trigger, err := NewDailyTrigger(12, 0, time.UTC)
	require.NoError(t, err)

	fired := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fired.Add(24*time.Hour), trigger.Next(fired).UTC())
}

func TestDailyTriggerHonoursZone(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("UTC+8", 8*3600)
	trigger, err := NewDailyTrigger(12, 0, shanghai)
	require.NoError(t, err)

	// 05:00 UTC is 13:00 in the zone, so the next push is tomorrow 04:00 UTC.
	now := time.Date(2025, time.November, 8, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.November, 9, 4, 0, 0, 0, time.UTC), trigger.Next(now).UTC())
}

func TestDailyTriggerRejectsBadClock(t *testing.T) {
	t.Parallel()

	_, err := NewDailyTrigger(24, 0, time.UTC)
	assert.Error(t, err)
	_, err = NewDailyTrigger(1, 60, time.UTC)
	assert.Error(t, err)
}

func TestDailyTriggerSpec(t *testing.T) {
	t.Parallel()

	trigger, err := NewDailyTrigger(7, 5, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "5 7 * * *", trigger.Spec())
	assert.Equal(t, "UTC", trigger.Zone())

	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	zoned, err := NewDailyTrigger(12, 0, shanghai)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", zoned.Zone())
}

package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MomentumTradeBot/internal/models"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

func TestNoBreachKeepsGatesOpen(t *testing.T) {
	c := NewLimitController(0.03, 0.08, 0.15, false, 10000)

	events := c.Evaluate(day(1, 0), 10000)
	require.Empty(t, events)

	events = c.Evaluate(day(1, 4), 9800)
	require.Empty(t, events)

	assert.True(t, c.MayOpenNewPosition())
	assert.Equal(t, 1.0, c.SizeMultiplier())
	assert.Equal(t, StateNormal, c.State())
}

func TestDailyBreachHaltsEntriesUntilNextDay(t *testing.T) {
	c := NewLimitController(0.03, 0.50, 0.50, false, 10000)

	c.Evaluate(day(2, 0), 10000)
	events := c.Evaluate(day(2, 4), 9600)

	require.Len(t, events, 1)
	assert.Equal(t, models.RiskEventDailyLimit, events[0].EventType)
	assert.InDelta(t, -0.04, events[0].LossPct, 1e-9)
	assert.False(t, c.MayOpenNewPosition())
	assert.Equal(t, StateDailyHalted, c.State())

	// Sticky for the rest of the day, but no duplicate event.
	events = c.Evaluate(day(2, 8), 9500)
	assert.Empty(t, events)
	assert.False(t, c.MayOpenNewPosition())

	// Next day the reference resets to current capital and the halt clears.
	events = c.Evaluate(day(3, 0), 9500)
	assert.Empty(t, events)
	assert.True(t, c.MayOpenNewPosition())
	assert.Equal(t, StateNormal, c.State())
}

func TestDailyBreachDoesNotTouchSizeMultiplier(t *testing.T) {
	c := NewLimitController(0.03, 0.50, 0.50, false, 10000)

	c.Evaluate(day(2, 0), 10000)
	c.Evaluate(day(2, 4), 9600)

	assert.Equal(t, 1.0, c.SizeMultiplier())
}

func TestWeeklyBreachHalvesSizeUntilNextWeek(t *testing.T) {
	// 2024-01-01 is a Monday, so days 1-7 share an ISO week.
	c := NewLimitController(0.10, 0.08, 0.50, false, 10000)

	c.Evaluate(day(1, 0), 10000)
	events := c.Evaluate(day(3, 0), 9150)

	require.Len(t, events, 1)
	assert.Equal(t, models.RiskEventWeeklyLimit, events[0].EventType)
	assert.Equal(t, 0.5, c.SizeMultiplier())
	assert.True(t, c.MayOpenNewPosition(), "weekly breach reduces size but does not halt entries")
	assert.Equal(t, StateSizeReduced, c.State())

	// Idempotent within the week.
	events = c.Evaluate(day(4, 0), 9000)
	assert.Empty(t, events)
	assert.Equal(t, 0.5, c.SizeMultiplier())

	// New ISO week restores full size and rebases the reference.
	events = c.Evaluate(day(8, 0), 9000)
	assert.Empty(t, events)
	assert.Equal(t, 1.0, c.SizeMultiplier())
}

func TestMonthlyBreachHaltsSystemPermanently(t *testing.T) {
	c := NewLimitController(0.50, 0.50, 0.15, true, 10000)

	c.Evaluate(day(1, 0), 10000)
	events := c.Evaluate(day(20, 0), 8400)

	require.Len(t, events, 1)
	assert.Equal(t, models.RiskEventMonthlyLimit, events[0].EventType)
	assert.True(t, c.SystemHalted())
	assert.False(t, c.MayOpenNewPosition())
	assert.Equal(t, StateSystemHalted, c.State())

	// A month rollover rebases the reference but never clears the halt.
	events = c.Evaluate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 8400)
	assert.Empty(t, events)
	assert.True(t, c.SystemHalted())
}

func TestMonthlyCheckDisabled(t *testing.T) {
	c := NewLimitController(0.50, 0.50, 0.15, false, 10000)

	c.Evaluate(day(1, 0), 10000)
	events := c.Evaluate(day(20, 0), 6000)

	assert.Empty(t, events)
	assert.False(t, c.SystemHalted())
}

func TestDayRolloverForgivesPriorLoss(t *testing.T) {
	c := NewLimitController(0.03, 0.50, 0.50, false, 10000)

	c.Evaluate(day(2, 0), 10000)
	c.Evaluate(day(2, 8), 9600)
	require.False(t, c.MayOpenNewPosition())

	// The new day measures from 9600, so a small further dip stays clear.
	events := c.Evaluate(day(3, 0), 9600)
	assert.Empty(t, events)
	events = c.Evaluate(day(3, 8), 9450)
	assert.Empty(t, events)
	assert.True(t, c.MayOpenNewPosition())
}

package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBaseCase(t *testing.T) {
	sizer := NewPositionSizer(0.02, 0.20, 0.50, 3)

	res := sizer.Calculate(10000, 50000, 0)

	require.True(t, res.CanOpen)
	assert.InDelta(t, 200.0, res.RiskUSD, 1e-9)
	assert.InDelta(t, 1000.0, res.SizeUSD, 1e-9)
	assert.InDelta(t, 0.10, res.SizePct, 1e-9)
	assert.InDelta(t, 0.02, res.Quantity, 1e-9)
}

func TestCalculateQuantityFromEntryPrice(t *testing.T) {
	sizer := NewPositionSizer(0.02, 0.20, 0.50, 3)

	res := sizer.Calculate(10000, 0.25, 0)

	require.True(t, res.CanOpen)
	assert.InDelta(t, 4000.0, res.Quantity, 1e-9)
}

func TestCalculateClampsToMaxPositionPct(t *testing.T) {
	// 5% risk with a 10% stop wants 50% of the account; cap is 20%.
	sizer := NewPositionSizer(0.05, 0.10, 0.20, 3)

	res := sizer.Calculate(10000, 100, 0)

	require.True(t, res.CanOpen)
	assert.InDelta(t, 2000.0, res.SizeUSD, 1e-9)
	assert.InDelta(t, 0.20, res.SizePct, 1e-9)
	// Risk is recomputed from the clamped size, not the requested one.
	assert.InDelta(t, 200.0, res.RiskUSD, 1e-9)
	assert.InDelta(t, 20.0, res.Quantity, 1e-9)
}

func TestCalculateRejectsWhenSlotsFull(t *testing.T) {
	sizer := NewPositionSizer(0.02, 0.20, 0.50, 3)

	res := sizer.Calculate(10000, 100, 3)

	require.False(t, res.CanOpen)
	assert.Contains(t, res.Reason, "max positions")
	assert.Zero(t, res.SizeUSD)
	assert.Zero(t, res.Quantity)
}

func TestCalculateTracksAccountSize(t *testing.T) {
	sizer := NewPositionSizer(0.02, 0.20, 0.50, 3)

	small := sizer.Calculate(5000, 100, 0)
	large := sizer.Calculate(20000, 100, 0)

	require.True(t, small.CanOpen)
	require.True(t, large.CanOpen)
	assert.InDelta(t, 500.0, small.SizeUSD, 1e-9)
	assert.InDelta(t, 2000.0, large.SizeUSD, 1e-9)
}

func TestPortfolioLimits(t *testing.T) {
	sizer := NewPositionSizer(0.02, 0.20, 0.50, 3)

	assert.InDelta(t, 600.0, sizer.MaxPortfolioRisk(10000), 1e-9)
	assert.InDelta(t, 3000.0, sizer.MaxPortfolioExposure(10000), 1e-9)
	assert.Equal(t, 3, sizer.MaxPositions())
}

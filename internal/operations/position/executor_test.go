package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor() *LiveExecutor {
	return &LiveExecutor{
		trailingStopPct: 0.10,
		stepSizes:       map[string]float64{"BTCUSDT": 0.001, "DOGEUSDT": 1},
		qtyPrecision:    map[string]int{"BTCUSDT": 3, "DOGEUSDT": 0},
		tickSizes:       map[string]float64{"BTCUSDT": 0.1, "DOGEUSDT": 0.00001},
		pricePrecision:  map[string]int{"BTCUSDT": 1, "DOGEUSDT": 5},
	}
}

func TestFormatQuantityFloorsToLotStep(t *testing.T) {
	e := testExecutor()

	qty, err := e.formatQuantity("BTCUSDT", 0.0123456)
	require.NoError(t, err)
	assert.Equal(t, "0.012", qty)

	qty, err = e.formatQuantity("DOGEUSDT", 1234.9)
	require.NoError(t, err)
	assert.Equal(t, "1234", qty)
}

func TestFormatQuantityRejectsDustAndUnknownSymbols(t *testing.T) {
	e := testExecutor()

	_, err := e.formatQuantity("BTCUSDT", 0.0009)
	assert.Error(t, err)

	_, err = e.formatQuantity("UNKNOWNUSDT", 1)
	assert.Error(t, err)
}

func TestFormatPriceFloorsToTick(t *testing.T) {
	e := testExecutor()

	price, err := e.formatPrice("BTCUSDT", 50123.456)
	require.NoError(t, err)
	assert.Equal(t, "50123.4", price)

	price, err = e.formatPrice("DOGEUSDT", 0.123456)
	require.NoError(t, err)
	assert.Equal(t, "0.12345", price)

	_, err = e.formatPrice("UNKNOWNUSDT", 1)
	assert.Error(t, err)
}

func TestCallbackRateBounds(t *testing.T) {
	e := testExecutor()
	assert.InDelta(t, 10.0, e.callbackRate(), 1e-9)

	e.trailingStopPct = 0.0005
	assert.InDelta(t, 0.1, e.callbackRate(), 1e-9)

	e.trailingStopPct = 0.25
	assert.InDelta(t, 10.0, e.callbackRate(), 1e-9)
}

func TestStepPrecision(t *testing.T) {
	assert.Equal(t, 3, stepPrecision("0.001"))
	assert.Equal(t, 1, stepPrecision("0.10000000"))
	assert.Equal(t, 0, stepPrecision("1"))
	assert.Equal(t, 0, stepPrecision("1.000"))
}

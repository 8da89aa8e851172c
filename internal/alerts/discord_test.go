package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MomentumTradeBot/internal/models"
)

type capturedEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type capturedPayload struct {
	Embeds []capturedEmbed `json:"embeds"`
}

func captureServer(t *testing.T, got *[]capturedPayload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload capturedPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		*got = append(*got, payload)
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestDiscordNotifierPostsEmbeds(t *testing.T) {
	var got []capturedPayload
	server := captureServer(t, &got)
	defer server.Close()

	notifier := NewDiscordNotifier(server.URL)
	require.True(t, notifier.Enabled())

	notifier.PositionOpened(&models.Position{
		Symbol:      "BTCUSDT",
		EntryPrice:  50000,
		NotionalUSD: 1998,
		Quantity:    0.04,
	})
	notifier.RiskEvent(&models.RiskEvent{
		EventType: models.RiskEventDailyLimit,
		LossPct:   -0.031,
		Capital:   9690,
	})

	require.Len(t, got, 2)
	require.Len(t, got[0].Embeds, 1)
	assert.Equal(t, "Position Opened: BTCUSDT", got[0].Embeds[0].Title)
	assert.Contains(t, got[0].Embeds[0].Description, "Notional: $1998.00")
	assert.Equal(t, colorBlue, got[0].Embeds[0].Color)

	assert.Equal(t, "Risk Limit Breached: daily_limit", got[1].Embeds[0].Title)
	assert.Contains(t, got[1].Embeds[0].Description, "Loss: -3.10%")
	assert.Equal(t, colorOrange, got[1].Embeds[0].Color)
}

func TestTradeClosedColorTracksOutcome(t *testing.T) {
	var got []capturedPayload
	server := captureServer(t, &got)
	defer server.Close()

	notifier := NewDiscordNotifier(server.URL)

	notifier.TradeClosed(&models.Trade{
		Symbol:     "BTCUSDT",
		ReturnPct:  0.05,
		ReturnUSD:  100,
		ExitReason: models.ExitReasonTrailingStop,
	})
	notifier.TradeClosed(&models.Trade{
		Symbol:     "ETHUSDT",
		ReturnPct:  -0.02,
		ReturnUSD:  -40,
		ExitReason: models.ExitReasonMAExit,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Trade Closed: BTCUSDT (+5.00%)", got[0].Embeds[0].Title)
	assert.Equal(t, colorGreen, got[0].Embeds[0].Color)
	assert.Equal(t, "Trade Closed: ETHUSDT (-2.00%)", got[1].Embeds[0].Title)
	assert.Equal(t, colorRed, got[1].Embeds[0].Color)
	assert.Contains(t, got[1].Embeds[0].Description, "Reason: ma_exit")
}

func TestDiscordNotifierDisabledWithoutURL(t *testing.T) {
	notifier := NewDiscordNotifier("")

	assert.False(t, notifier.Enabled())

	// Must not panic or attempt any network call.
	notifier.PositionOpened(&models.Position{Symbol: "BTCUSDT"})
	notifier.TradeClosed(&models.Trade{Symbol: "BTCUSDT"})
	notifier.RiskEvent(&models.RiskEvent{EventType: models.RiskEventDailyLimit})
	notifier.RunStarted("run-1", "backtest", 10000)
	notifier.RunStopped("run-1", 10000, 0)
}

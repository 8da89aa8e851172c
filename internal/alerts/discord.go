package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
)

// Embed colors
const (
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorBlue   = 0x3498DB
)

// DiscordNotifier posts engine events to a Discord webhook as embeds. A
// notifier built with an empty URL is a no-op, so callers never need to
// branch on whether alerting is configured.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *DiscordNotifier) Enabled() bool {
	return d.webhookURL != ""
}

// PositionOpened implements engine.Notifier.
func (d *DiscordNotifier) PositionOpened(pos *models.Position) {
	d.send(
		fmt.Sprintf("Position Opened: %s", pos.Symbol),
		fmt.Sprintf("Entry: $%.4f\nNotional: $%.2f\nQuantity: %.6f",
			pos.EntryPrice, pos.NotionalUSD, pos.Quantity),
		colorBlue,
	)
}

// TradeClosed implements engine.Notifier.
func (d *DiscordNotifier) TradeClosed(trade *models.Trade) {
	color := colorGreen
	if trade.ReturnUSD < 0 {
		color = colorRed
	}
	d.send(
		fmt.Sprintf("Trade Closed: %s (%+.2f%%)", trade.Symbol, trade.ReturnPct*100),
		fmt.Sprintf("Entry: $%.4f\nExit: $%.4f\nReturn: $%.2f\nHeld: %d bars\nReason: %s",
			trade.EntryPrice, trade.ExitPrice, trade.ReturnUSD, trade.HoldingBars, trade.ExitReason),
		color,
	)
}

// RiskEvent implements engine.Notifier.
func (d *DiscordNotifier) RiskEvent(event *models.RiskEvent) {
	d.send(
		fmt.Sprintf("Risk Limit Breached: %s", event.EventType),
		fmt.Sprintf("Loss: %.2f%%\nEquity: $%.2f\n%s",
			event.LossPct*100, event.Capital, event.Details),
		colorOrange,
	)
}

// RunStarted announces a new run. Not part of the engine interface; the
// drivers call it directly.
func (d *DiscordNotifier) RunStarted(runID, mode string, capital float64) {
	d.send(
		fmt.Sprintf("Run Started (%s)", mode),
		fmt.Sprintf("Run ID: %s\nInitial Capital: $%.2f", runID, capital),
		colorBlue,
	)
}

// RunStopped announces the end of a run with its final balance.
func (d *DiscordNotifier) RunStopped(runID string, finalCash float64, trades int) {
	d.send(
		"Run Stopped",
		fmt.Sprintf("Run ID: %s\nFinal Cash: $%.2f\nTrades: %d", runID, finalCash, trades),
		colorBlue,
	)
}

func (d *DiscordNotifier) send(title, description string, color int) {
	if !d.Enabled() {
		return
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": description,
				"color":       color,
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal discord payload")
		return
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("discord webhook post failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Str("title", title).Msg("discord webhook rejected")
	}
}

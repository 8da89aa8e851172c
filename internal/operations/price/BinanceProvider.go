package price

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/operations/binance"
)

// BinanceProvider loads candle series straight from the futures API.
type BinanceProvider struct {
	client *binance.BinanceClient
}

func NewBinanceProvider(client *binance.BinanceClient) *BinanceProvider {
	return &BinanceProvider{client: client}
}

// GetSeries fetches, converts and orders the range. Page overlaps from the
// exchange are deduplicated on open time.
func (p *BinanceProvider) GetSeries(ctx context.Context, symbol, timeFrame string, start, end time.Time) ([]models.Candle, error) {
	klines, err := p.client.GetKlinesRange(ctx, symbol, timeFrame, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s klines: %w", symbol, timeFrame, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		c := klineToCandle(symbol, timeFrame, k)
		if c.OpenTime.Before(start) || c.OpenTime.After(end) {
			continue
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	deduped := candles[:0]
	for i, c := range candles {
		if i > 0 && c.OpenTime.Equal(candles[i-1].OpenTime) {
			continue
		}
		deduped = append(deduped, c)
	}

	log.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeFrame).
		Int("bars", len(deduped)).
		Msg("series fetched")

	return deduped, nil
}

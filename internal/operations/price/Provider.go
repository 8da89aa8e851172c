package price

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
)

// Provider supplies candle series. Implementations exist for the exchange
// and for a database-backed cache in front of it.
type Provider interface {
	GetSeries(ctx context.Context, symbol, timeFrame string, start, end time.Time) ([]models.Candle, error)
}

// IntervalDuration maps a timeframe label to its bar duration.
func IntervalDuration(timeFrame string) (time.Duration, error) {
	switch timeFrame {
	case models.CandleTimeFrame5m:
		return 5 * time.Minute, nil
	case models.CandleTimeFrame15m:
		return 15 * time.Minute, nil
	case models.CandleTimeFrame1h:
		return time.Hour, nil
	case models.CandleTimeFrame4h:
		return 4 * time.Hour, nil
	case models.CandleTimeFrame1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", timeFrame)
	}
}

func klineToCandle(symbol, timeFrame string, k *futures.Kline) models.Candle {
	return models.Candle{
		Symbol:      symbol,
		TimeFrame:   timeFrame,
		OpenTime:    time.UnixMilli(k.OpenTime).UTC(),
		CloseTime:   time.UnixMilli(k.CloseTime).UTC(),
		Open:        parseFloat(k.Open),
		High:        parseFloat(k.High),
		Low:         parseFloat(k.Low),
		Close:       parseFloat(k.Close),
		Volume:      parseFloat(k.Volume),
		QuoteVolume: parseFloat(k.QuoteAssetVolume),
		TradeCount:  k.TradeNum,
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Error().Err(err).Str("value", s).Msg("error parsing float")
		return 0
	}
	return f
}

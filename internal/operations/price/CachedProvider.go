package price

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/repositories"
)

// CachedProvider reads series from the candle table and falls back to the
// source provider on a miss, writing fetched rows back for the next run.
// Cache problems never fail a read; the source is always authoritative.
type CachedProvider struct {
	source Provider
	repo   *repositories.CandleRepository
}

func NewCachedProvider(source Provider, repo *repositories.CandleRepository) *CachedProvider {
	return &CachedProvider{source: source, repo: repo}
}

func (p *CachedProvider) GetSeries(ctx context.Context, symbol, timeFrame string, start, end time.Time) ([]models.Candle, error) {
	interval, err := IntervalDuration(timeFrame)
	if err != nil {
		return nil, err
	}

	cached, err := p.repo.GetRange(symbol, timeFrame, start, end)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("candle cache read failed")
	} else if covers(cached, start, end, interval) {
		log.Debug().
			Str("symbol", symbol).
			Str("timeframe", timeFrame).
			Int("bars", len(cached)).
			Msg("series served from cache")
		return cached, nil
	}

	fetched, err := p.source.GetSeries(ctx, symbol, timeFrame, start, end)
	if err != nil {
		return nil, err
	}

	if len(fetched) > 0 {
		if err := p.repo.Upsert(fetched); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("candle cache write failed")
		}
	}
	return fetched, nil
}

// covers reports whether the cached rows span the requested range. The
// edges tolerate one bar of slack since ranges rarely align exactly with
// bar boundaries; interior gaps are the engine's problem, not the cache's.
func covers(cached []models.Candle, start, end time.Time, interval time.Duration) bool {
	if len(cached) == 0 {
		return false
	}
	first := cached[0].OpenTime
	last := cached[len(cached)-1].OpenTime
	if first.After(start.Add(interval)) {
		return false
	}
	// The final bar of a range that ends now may not be closed yet.
	return !last.Before(end.Add(-2 * interval))
}

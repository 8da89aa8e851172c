package universe

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/operations/binance"
	"MomentumTradeBot/internal/operations/price"
)

// Scanner produces a ranked symbol list as of a date.
type Scanner interface {
	Scan(ctx context.Context, asOf time.Time) ([]string, error)
}

type symbolTurnover struct {
	symbol   string
	turnover float64
}

// VolumeScanner ranks USDT perpetuals by average daily quote turnover.
// Recent scans take one ticker call; historical scans rebuild the average
// from daily candles so backtests see the universe as it was.
type VolumeScanner struct {
	client   *binance.BinanceClient
	provider price.Provider

	minDailyVolumeUSD float64
	maxSymbols        int
	windowDays        int
}

func NewVolumeScanner(client *binance.BinanceClient, provider price.Provider, minDailyVolumeUSD float64, maxSymbols, windowDays int) *VolumeScanner {
	return &VolumeScanner{
		client:            client,
		provider:          provider,
		minDailyVolumeUSD: minDailyVolumeUSD,
		maxSymbols:        maxSymbols,
		windowDays:        windowDays,
	}
}

func (s *VolumeScanner) Scan(ctx context.Context, asOf time.Time) ([]string, error) {
	candidates, err := s.tradableSymbols(ctx)
	if err != nil {
		return nil, err
	}

	if time.Since(asOf) < 24*time.Hour {
		return s.scanFromTickers(ctx, candidates)
	}
	return s.scanFromHistory(ctx, candidates, asOf)
}

// tradableSymbols filters exchange info down to live USDT perpetuals.
func (s *VolumeScanner) tradableSymbols(ctx context.Context) (map[string]bool, error) {
	info, err := s.client.GetExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, sym := range info.Symbols {
		if sym.QuoteAsset != "USDT" || sym.Status != "TRADING" {
			continue
		}
		if sym.ContractType != "PERPETUAL" {
			continue
		}
		out[sym.Symbol] = true
	}
	return out, nil
}

func (s *VolumeScanner) scanFromTickers(ctx context.Context, candidates map[string]bool) ([]string, error) {
	stats, err := s.client.GetPriceChangeStats(ctx)
	if err != nil {
		return nil, err
	}

	turnovers := make([]symbolTurnover, 0, len(stats))
	for _, st := range stats {
		if !candidates[st.Symbol] {
			continue
		}
		turnover, err := strconv.ParseFloat(st.QuoteVolume, 64)
		if err != nil {
			continue
		}
		turnovers = append(turnovers, symbolTurnover{symbol: st.Symbol, turnover: turnover})
	}

	return rankSymbols(turnovers, s.minDailyVolumeUSD, s.maxSymbols), nil
}

func (s *VolumeScanner) scanFromHistory(ctx context.Context, candidates map[string]bool, asOf time.Time) ([]string, error) {
	start := asOf.AddDate(0, 0, -s.windowDays)

	symbols := make([]string, 0, len(candidates))
	for sym := range candidates {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var turnovers []symbolTurnover
	for _, sym := range symbols {
		candles, err := s.provider.GetSeries(ctx, sym, models.CandleTimeFrame1d, start, asOf)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("scan skipped symbol, history unavailable")
			continue
		}
		avg := avgQuoteTurnover(candles)
		if avg <= 0 {
			continue
		}
		turnovers = append(turnovers, symbolTurnover{symbol: sym, turnover: avg})
	}

	return rankSymbols(turnovers, s.minDailyVolumeUSD, s.maxSymbols), nil
}

func avgQuoteTurnover(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.QuoteVolume
	}
	return sum / float64(len(candles))
}

// rankSymbols filters below-threshold turnover, sorts the rest by turnover
// with a symbol tie-break, and caps the list.
func rankSymbols(turnovers []symbolTurnover, minVolume float64, maxSymbols int) []string {
	kept := make([]symbolTurnover, 0, len(turnovers))
	for _, t := range turnovers {
		if t.turnover >= minVolume {
			kept = append(kept, t)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].turnover != kept[j].turnover {
			return kept[i].turnover > kept[j].turnover
		}
		return kept[i].symbol < kept[j].symbol
	})

	if maxSymbols > 0 && len(kept) > maxSymbols {
		kept = kept[:maxSymbols]
	}

	out := make([]string, len(kept))
	for i, t := range kept {
		out[i] = t.symbol
	}
	return out
}

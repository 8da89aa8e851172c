package position

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/operations/binance"
)

// LiveExecutor places real orders on Binance futures. Quantities are floored
// to each symbol's lot step, and every entry is followed by an exchange-side
// trailing stop so a position stays protected between polling ticks.
type LiveExecutor struct {
	client          *binance.BinanceClient
	trailingStopPct float64

	stepSizes      map[string]float64
	qtyPrecision   map[string]int
	tickSizes      map[string]float64
	pricePrecision map[string]int
}

// NewLiveExecutor loads the exchange lot-size filters once up front; symbols
// without a filter cannot be traded through this executor.
func NewLiveExecutor(ctx context.Context, client *binance.BinanceClient, trailingStopPct float64) (*LiveExecutor, error) {
	info, err := client.GetExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exchange filters: %w", err)
	}

	e := &LiveExecutor{
		client:          client,
		trailingStopPct: trailingStopPct,
		stepSizes:       make(map[string]float64),
		qtyPrecision:    make(map[string]int),
		tickSizes:       make(map[string]float64),
		pricePrecision:  make(map[string]int),
	}
	for _, sym := range info.Symbols {
		f := sym.LotSizeFilter()
		if f == nil {
			continue
		}
		step, err := strconv.ParseFloat(f.StepSize, 64)
		if err != nil || step <= 0 {
			continue
		}
		e.stepSizes[sym.Symbol] = step
		e.qtyPrecision[sym.Symbol] = stepPrecision(f.StepSize)

		if pf := sym.PriceFilter(); pf != nil {
			if tick, err := strconv.ParseFloat(pf.TickSize, 64); err == nil && tick > 0 {
				e.tickSizes[sym.Symbol] = tick
				e.pricePrecision[sym.Symbol] = stepPrecision(pf.TickSize)
			}
		}
	}

	log.Info().Int("symbols", len(e.stepSizes)).Msg("exchange lot filters loaded")
	return e, nil
}

func (e *LiveExecutor) OpenLong(ctx context.Context, symbol string, quantity, notionalUSD, price float64) error {
	qty, err := e.formatQuantity(symbol, quantity)
	if err != nil {
		return err
	}

	order, err := e.client.PlaceMarketOrder(ctx, symbol, futures.SideTypeBuy, qty, false)
	if err != nil {
		return fmt.Errorf("market buy %s: %w", symbol, err)
	}
	log.Info().
		Str("symbol", symbol).
		Str("quantity", qty).
		Int64("order_id", order.OrderID).
		Float64("notional_usd", notionalUSD).
		Msg("entry order placed")

	if _, err := e.client.PlaceTrailingStop(ctx, symbol, qty, e.callbackRate()); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("trailing stop placement failed, arming fixed stop")
		e.armFixedStop(ctx, symbol, qty, price)
	}
	return nil
}

// armFixedStop places a plain stop-market at the configured distance below
// entry when the exchange rejects a trailing stop. The polling exit checks
// still close the position if neither stop could be armed.
func (e *LiveExecutor) armFixedStop(ctx context.Context, symbol, qty string, entryPrice float64) {
	stop, err := e.formatPrice(symbol, entryPrice*(1-e.trailingStopPct))
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("fixed stop not armed")
		return
	}
	if _, err := e.client.PlaceStopMarket(ctx, symbol, qty, stop); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("stop_price", stop).Msg("fixed stop not armed")
	}
}

func (e *LiveExecutor) CloseLong(ctx context.Context, symbol string, quantity float64) error {
	// Clear the resting trailing stop first so it cannot fire against a
	// position that is already gone.
	if err := e.client.CancelAllOrders(ctx, symbol); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("cancel open orders failed before close")
	}

	qty, err := e.formatQuantity(symbol, quantity)
	if err != nil {
		return err
	}
	order, err := e.client.PlaceMarketOrder(ctx, symbol, futures.SideTypeSell, qty, true)
	if err != nil {
		return fmt.Errorf("market close %s: %w", symbol, err)
	}
	log.Info().
		Str("symbol", symbol).
		Str("quantity", qty).
		Int64("order_id", order.OrderID).
		Msg("close order placed")
	return nil
}

func (e *LiveExecutor) formatQuantity(symbol string, qty float64) (string, error) {
	step, ok := e.stepSizes[symbol]
	if !ok {
		return "", fmt.Errorf("no lot size filter for %s", symbol)
	}
	floored := math.Floor(qty/step) * step
	if floored <= 0 {
		return "", fmt.Errorf("quantity %.8f below lot step %.8f for %s", qty, step, symbol)
	}
	return strconv.FormatFloat(floored, 'f', e.qtyPrecision[symbol], 64), nil
}

// formatPrice floors a price onto the symbol's tick grid.
func (e *LiveExecutor) formatPrice(symbol string, price float64) (string, error) {
	tick, ok := e.tickSizes[symbol]
	if !ok {
		return "", fmt.Errorf("no price filter for %s", symbol)
	}
	floored := math.Floor(price/tick) * tick
	if floored <= 0 {
		return "", fmt.Errorf("price %.8f below tick %.8f for %s", price, tick, symbol)
	}
	return strconv.FormatFloat(floored, 'f', e.pricePrecision[symbol], 64), nil
}

// callbackRate converts the configured stop distance to the percent form the
// exchange expects. Binance bounds the callback rate to [0.1, 10] percent.
func (e *LiveExecutor) callbackRate() float64 {
	rate := e.trailingStopPct * 100
	if rate < 0.1 {
		rate = 0.1
	}
	if rate > 10 {
		rate = 10
	}
	return rate
}

func stepPrecision(step string) int {
	step = strings.TrimRight(step, "0")
	if i := strings.Index(step, "."); i >= 0 {
		return len(step) - i - 1
	}
	return 0
}

package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const klinePageLimit = 1500

type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Create futures client with custom HTTP client
	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	// Create rate limiter: 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "binance",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &BinanceClient{
		client:      futuresClient,
		rateLimiter: limiter,
		httpClient:  httpClient,
		breaker:     breaker,
	}
}

// do runs one API call through the rate limiter, circuit breaker and retry
// loop. Retries back off exponentially from 100ms.
func (c *BinanceClient) do(ctx context.Context, call func() error) error {
	maxRetries := 3
	backoff := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, call()
		})
		if err == nil {
			return nil
		}

		// If this was the last attempt, return the error
		if attempt == maxRetries {
			return err
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * backoff

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	var klines []*futures.Kline
	err := c.do(ctx, func() error {
		var callErr error
		klines, callErr = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(klinePageLimit).
			Do(ctx)
		return callErr
	})
	return klines, err
}

// GetKlinesRange pages through klines until the range is covered. Binance
// caps one response at 1500 rows, so longer ranges walk forward from the
// last close time of each page.
func (c *BinanceClient) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*futures.Kline, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var all []*futures.Kline
	for startMs < endMs {
		page, err := c.GetKlines(ctx, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		last := page[len(page)-1]
		if last.CloseTime+1 <= startMs {
			break
		}
		startMs = last.CloseTime + 1

		if len(page) < klinePageLimit {
			break
		}
		// Small delay between pages to avoid overwhelming the API
		time.Sleep(100 * time.Millisecond)
	}

	return all, nil
}

func (c *BinanceClient) GetExchangeInfo(ctx context.Context) (*futures.ExchangeInfo, error) {
	var info *futures.ExchangeInfo
	err := c.do(ctx, func() error {
		var callErr error
		info, callErr = c.client.NewExchangeInfoService().Do(ctx)
		return callErr
	})
	return info, err
}

// GetPriceChangeStats returns 24h rolling stats for every symbol.
func (c *BinanceClient) GetPriceChangeStats(ctx context.Context) ([]*futures.PriceChangeStats, error) {
	var stats []*futures.PriceChangeStats
	err := c.do(ctx, func() error {
		var callErr error
		stats, callErr = c.client.NewListPriceChangeStatsService().Do(ctx)
		return callErr
	})
	return stats, err
}

func (c *BinanceClient) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	var rows []*futures.PremiumIndex
	err := c.do(ctx, func() error {
		var callErr error
		rows, callErr = c.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		return callErr
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no mark price for %s", symbol)
	}
	return strconv.ParseFloat(rows[0].MarkPrice, 64)
}

// GetPositionAmt returns the signed position size on the exchange, zero
// when flat.
func (c *BinanceClient) GetPositionAmt(ctx context.Context, symbol string) (float64, error) {
	var rows []*futures.PositionRisk
	err := c.do(ctx, func() error {
		var callErr error
		rows, callErr = c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
		return callErr
	})
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if row.Symbol == symbol {
			return strconv.ParseFloat(row.PositionAmt, 64)
		}
	}
	return 0, nil
}

func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, symbol string, side futures.SideType, quantity string, reduceOnly bool) (*futures.CreateOrderResponse, error) {
	// One ID per logical order, kept across retries, so a retry after a
	// lost response cannot fill twice.
	orderID := uuid.NewString()
	var resp *futures.CreateOrderResponse
	err := c.do(ctx, func() error {
		svc := c.client.NewCreateOrderService().
			Symbol(symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(quantity).
			NewClientOrderID(orderID)
		if reduceOnly {
			svc = svc.ReduceOnly(true)
		}
		var callErr error
		resp, callErr = svc.Do(ctx)
		return callErr
	})
	return resp, err
}

// PlaceTrailingStop arms an exchange-side trailing stop sell. callbackRate
// is in percent with one decimal, Binance accepts 0.1 to 10.
func (c *BinanceClient) PlaceTrailingStop(ctx context.Context, symbol, quantity string, callbackRate float64) (*futures.CreateOrderResponse, error) {
	orderID := uuid.NewString()
	var resp *futures.CreateOrderResponse
	err := c.do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideTypeSell).
			Type(futures.OrderTypeTrailingStopMarket).
			Quantity(quantity).
			CallbackRate(fmt.Sprintf("%.1f", callbackRate)).
			ReduceOnly(true).
			NewClientOrderID(orderID).
			Do(ctx)
		return callErr
	})
	return resp, err
}

// PlaceStopMarket arms a fixed stop-loss sell at stopPrice, the fallback
// when a trailing stop cannot be placed.
func (c *BinanceClient) PlaceStopMarket(ctx context.Context, symbol, quantity, stopPrice string) (*futures.CreateOrderResponse, error) {
	orderID := uuid.NewString()
	var resp *futures.CreateOrderResponse
	err := c.do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideTypeSell).
			Type(futures.OrderTypeStopMarket).
			Quantity(quantity).
			StopPrice(stopPrice).
			ReduceOnly(true).
			NewClientOrderID(orderID).
			Do(ctx)
		return callErr
	})
	return resp, err
}

func (c *BinanceClient) CancelAllOrders(ctx context.Context, symbol string) error {
	return c.do(ctx, func() error {
		return c.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx)
	})
}

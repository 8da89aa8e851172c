package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
)

// Metrics exposes engine activity to Prometheus. It implements
// engine.Notifier so the engine stays unaware of instrumentation. Each
// instance carries its own registry.
type Metrics struct {
	registry *prometheus.Registry

	openPositions prometheus.Gauge
	cashUSD       prometheus.Gauge
	equityUSD     prometheus.Gauge

	stepsTotal     prometheus.Counter
	positionsTotal prometheus.Counter
	tradesTotal    *prometheus.CounterVec
	tradeReturnPct prometheus.Histogram
	riskTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_open_positions",
			Help: "Number of currently open positions",
		}),
		cashUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_cash_usd",
			Help: "Uncommitted cash balance in USD",
		}),
		equityUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_equity_usd",
			Help: "Mark-to-market equity in USD",
		}),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_steps_total",
			Help: "Decision steps processed",
		}),
		positionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_positions_opened_total",
			Help: "Positions opened since start",
		}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_trades_closed_total",
			Help: "Completed trades by exit reason and outcome",
		}, []string{"exit_reason", "outcome"}),
		tradeReturnPct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_trade_return_pct",
			Help:    "Per-trade fractional return",
			Buckets: []float64{-0.20, -0.10, -0.05, -0.02, 0, 0.02, 0.05, 0.10, 0.20, 0.50},
		}),
		riskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_risk_events_total",
			Help: "Loss limit breaches by type",
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		m.openPositions, m.cashUSD, m.equityUSD,
		m.stepsTotal, m.positionsTotal, m.tradesTotal, m.tradeReturnPct, m.riskTotal,
	)
	return m
}

// PositionOpened implements engine.Notifier.
func (m *Metrics) PositionOpened(pos *models.Position) {
	m.positionsTotal.Inc()
	m.openPositions.Inc()
}

// TradeClosed implements engine.Notifier. Zero-return trades count as
// losses, matching the performance aggregation.
func (m *Metrics) TradeClosed(trade *models.Trade) {
	outcome := "loss"
	if trade.ReturnPct > 0 {
		outcome = "win"
	}
	m.tradesTotal.WithLabelValues(trade.ExitReason, outcome).Inc()
	m.tradeReturnPct.Observe(trade.ReturnPct)
	m.openPositions.Dec()
}

// RiskEvent implements engine.Notifier.
func (m *Metrics) RiskEvent(event *models.RiskEvent) {
	m.riskTotal.WithLabelValues(event.EventType).Inc()
}

// PositionsRestored seeds the open-positions gauge with positions adopted
// from a previous run, which never pass through PositionOpened.
func (m *Metrics) PositionsRestored(n int) {
	m.openPositions.Set(float64(n))
}

// MarkStep records one processed decision step and the balances after it.
func (m *Metrics) MarkStep(cash, equity float64) {
	m.stepsTotal.Inc()
	m.cashUSD.Set(cash)
	m.equityUSD.Set(equity)
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics endpoint in the background and returns the
// server so the caller can shut it down. A nil server means telemetry is
// disabled.
func (m *Metrics) Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
	return server
}

// Shutdown stops a server returned by Serve. Safe on nil.
func Shutdown(ctx context.Context, server *http.Server) {
	if server == nil {
		return
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics endpoint shutdown failed")
	}
}

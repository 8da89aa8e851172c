package repositories

import (
	"MomentumTradeBot/internal/models"
	"context"

	"gorm.io/gorm"
)

// RunLedger fans engine output into the persistence repositories. It
// satisfies the engine's Ledger interface so the engine never sees gorm.
type RunLedger struct {
	positions  *PositionRepository
	trades     *TradeRepository
	equity     *EquityRepository
	riskEvents *RiskEventRepository
}

// NewRunLedger creates a ledger over all run output tables
func NewRunLedger(db *gorm.DB) *RunLedger {
	return &RunLedger{
		positions:  NewPositionRepository(db),
		trades:     NewTradeRepository(db),
		equity:     NewEquityRepository(db),
		riskEvents: NewRiskEventRepository(db),
	}
}

func (l *RunLedger) PositionOpened(ctx context.Context, pos *models.Position) error {
	return l.positions.Create(pos)
}

func (l *RunLedger) PositionClosed(ctx context.Context, pos *models.Position) error {
	return l.positions.Update(pos)
}

func (l *RunLedger) RecordTrade(ctx context.Context, trade *models.Trade) error {
	return l.trades.Create(trade)
}

func (l *RunLedger) RecordEquityPoint(ctx context.Context, point *models.EquityPoint) error {
	return l.equity.Upsert(point)
}

func (l *RunLedger) RecordRiskEvent(ctx context.Context, event *models.RiskEvent) error {
	return l.riskEvents.Create(event)
}

// OpenPositions returns positions a previous run left open, for adoption
// after a restart.
func (l *RunLedger) OpenPositions() ([]models.Position, error) {
	return l.positions.FindOpenPositions()
}

// LastCash returns the cash balance at the newest recorded equity point,
// or fallback when the table is empty.
func (l *RunLedger) LastCash(fallback float64) (float64, error) {
	point, err := l.equity.FindMostRecent()
	if err != nil {
		return fallback, err
	}
	if point == nil {
		return fallback, nil
	}
	return point.Cash, nil
}

package repositories

import (
	"MomentumTradeBot/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new instance of TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create adds a new Trade record to the database
func (r *TradeRepository) Create(trade *models.Trade) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	return r.db.Create(trade).Error
}

// FindByRunID retrieves all Trade records for a run, oldest first
func (r *TradeRepository) FindByRunID(runID string) ([]models.Trade, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var trades []models.Trade
	err := r.db.Where("run_id = ?", runID).
		Order("exit_time ASC").
		Find(&trades).Error
	return trades, err
}

// FindBySymbol retrieves all Trade records for a specific symbol
func (r *TradeRepository) FindBySymbol(symbol string) ([]models.Trade, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var trades []models.Trade
	err := r.db.Where("symbol = ?", symbol).Find(&trades).Error
	return trades, err
}

// FindByTimeRange retrieves Trade records whose exit falls inside the range
func (r *TradeRepository) FindByTimeRange(start, end time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.Where("exit_time BETWEEN ? AND ?", start, end).
		Order("exit_time ASC").
		Find(&trades).Error
	return trades, err
}

// GetTotalReturnUSD sums realized pnl for a run
func (r *TradeRepository) GetTotalReturnUSD(runID string) (float64, error) {
	var total float64
	err := r.db.Model(&models.Trade{}).
		Where("run_id = ?", runID).
		Select("COALESCE(SUM(return_usd), 0) as total").
		Scan(&total).Error
	return total, err
}

package repositories

import (
	"MomentumTradeBot/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository creates a new instance of CandleRepository
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Upsert stores candles, skipping rows already present for the same
// symbol/timeframe/open time.
func (r *CandleRepository) Upsert(candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(candles, 500).Error
}

// GetRange retrieves candles for a symbol and timeframe ordered by open time
func (r *CandleRepository) GetRange(symbol, timeFrame string, start, end time.Time) ([]models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}
	var candles []models.Candle
	err := r.db.Where("symbol = ? AND time_frame = ? AND open_time BETWEEN ? AND ?",
		symbol, timeFrame, start, end).
		Order("open_time ASC").
		Find(&candles).Error
	return candles, err
}

// GetLatest retrieves the most recent candle for a symbol and timeframe
func (r *CandleRepository) GetLatest(symbol, timeFrame string) (*models.Candle, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}
	var candle models.Candle
	err := r.db.Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order("open_time DESC").
		First(&candle).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &candle, err
}

// Count reports how many candles are cached for a symbol and timeframe
func (r *CandleRepository) Count(symbol, timeFrame string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Candle{}).
		Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Count(&count).Error
	return count, err
}

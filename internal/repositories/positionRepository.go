package repositories

import (
	"MomentumTradeBot/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
)

type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new instance of PositionRepository
func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create adds a new Position record to the database
func (r *PositionRepository) Create(position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.Create(position).Error
}

// Update modifies an existing Position record
func (r *PositionRepository) Update(position *models.Position) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.Save(position).Error
}

// FindByID retrieves a Position record by its ID
func (r *PositionRepository) FindByID(id uint) (*models.Position, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var position models.Position
	err := r.db.First(&position, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &position, err
}

// FindOpenPositions retrieves all open Position records
func (r *PositionRepository) FindOpenPositions() ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("status = ?", models.PositionStatusOpen).Find(&positions).Error
	return positions, err
}

// FindOpenPositionBySymbol retrieves the open Position for a symbol, if any
func (r *PositionRepository) FindOpenPositionBySymbol(symbol string) (*models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var position models.Position
	err := r.db.Where("symbol = ? AND status = ?", symbol, models.PositionStatusOpen).
		First(&position).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &position, err
}

// FindByTimeRange retrieves Position records opened within a time range
func (r *PositionRepository) FindByTimeRange(start, end time.Time) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("entry_time BETWEEN ? AND ?", start, end).Find(&positions).Error
	return positions, err
}

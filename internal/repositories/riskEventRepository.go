package repositories

import (
	"MomentumTradeBot/internal/models"
	"errors"

	"gorm.io/gorm"
)

type RiskEventRepository struct {
	db *gorm.DB
}

// NewRiskEventRepository creates a new instance of RiskEventRepository
func NewRiskEventRepository(db *gorm.DB) *RiskEventRepository {
	return &RiskEventRepository{db: db}
}

// Create adds a new RiskEvent record to the database
func (r *RiskEventRepository) Create(event *models.RiskEvent) error {
	if event == nil {
		return errors.New("risk event cannot be nil")
	}
	return r.db.Create(event).Error
}

// FindByRunID retrieves all RiskEvent records for a run, oldest first
func (r *RiskEventRepository) FindByRunID(runID string) ([]models.RiskEvent, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var events []models.RiskEvent
	err := r.db.Where("run_id = ?", runID).
		Order("timestamp ASC").
		Find(&events).Error
	return events, err
}

// FindByType retrieves all RiskEvent records of one type
func (r *RiskEventRepository) FindByType(eventType string) ([]models.RiskEvent, error) {
	if eventType == "" {
		return nil, errors.New("invalid event type")
	}
	var events []models.RiskEvent
	err := r.db.Where("event_type = ?", eventType).
		Order("timestamp ASC").
		Find(&events).Error
	return events, err
}

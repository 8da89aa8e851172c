package repositories

import (
	"MomentumTradeBot/internal/models"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EquityRepository struct {
	db *gorm.DB
}

// NewEquityRepository creates a new instance of EquityRepository
func NewEquityRepository(db *gorm.DB) *EquityRepository {
	return &EquityRepository{db: db}
}

// Create adds a new EquityPoint record to the database
func (r *EquityRepository) Create(point *models.EquityPoint) error {
	if point == nil {
		return errors.New("equity point cannot be nil")
	}
	return r.db.Create(point).Error
}

// Upsert stores the point, replacing an existing row for the same run and
// timestamp. A forced close re-marks the step it lands on.
func (r *EquityRepository) Upsert(point *models.EquityPoint) error {
	if point == nil {
		return errors.New("equity point cannot be nil")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"cash", "positions_value", "equity", "open_positions"}),
	}).Create(point).Error
}

// CreateBatch inserts a full equity curve in one statement
func (r *EquityRepository) CreateBatch(points []models.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.CreateInBatches(points, 500).Error
}

// FindByRunID retrieves the equity curve for a run, oldest first
func (r *EquityRepository) FindByRunID(runID string) ([]models.EquityPoint, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var points []models.EquityPoint
	err := r.db.Where("run_id = ?", runID).
		Order("timestamp ASC").
		Find(&points).Error
	return points, err
}

// FindMostRecent retrieves the newest equity point across all runs
func (r *EquityRepository) FindMostRecent() (*models.EquityPoint, error) {
	var point models.EquityPoint
	err := r.db.Order("timestamp DESC").First(&point).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &point, err
}

// FindLatest retrieves the most recent equity point for a run
func (r *EquityRepository) FindLatest(runID string) (*models.EquityPoint, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var point models.EquityPoint
	err := r.db.Where("run_id = ?", runID).
		Order("timestamp DESC").
		First(&point).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &point, err
}

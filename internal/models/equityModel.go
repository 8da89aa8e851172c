package models

import "time"

// EquityPoint is one row of the equity curve, recorded after every step. A
// run has at most one point per timestamp; a re-mark replaces the row.
type EquityPoint struct {
	ID             uint      `gorm:"primaryKey"`
	RunID          string    `gorm:"uniqueIndex:idx_equity_run_ts"`
	Timestamp      time.Time `gorm:"uniqueIndex:idx_equity_run_ts;index;not null"`
	Cash           float64   `gorm:"type:decimal(20,8);not null"`
	PositionsValue float64   `gorm:"type:decimal(20,8);not null"`
	Equity         float64   `gorm:"type:decimal(20,8);not null"`
	OpenPositions  int       `gorm:"not null"`
}

// TableName sets the table name for EquityPoint model
func (EquityPoint) TableName() string {
	return "equity_points"
}

package models

import "time"

// RiskEvent records a loss-limit transition. Breaches are control flow, not
// errors, so they land in their own table rather than the log only.
type RiskEvent struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"index"`
	Timestamp time.Time `gorm:"index;not null"`
	EventType string    `gorm:"index;not null"`
	LossPct   float64   `gorm:"type:decimal(20,8)"`
	Capital   float64   `gorm:"type:decimal(20,8)"`
	Details   string
}

const (
	RiskEventDailyLimit   = "daily_limit"
	RiskEventWeeklyLimit  = "weekly_limit"
	RiskEventMonthlyLimit = "monthly_limit"
)

// TableName sets the table name for RiskEvent model
func (RiskEvent) TableName() string {
	return "risk_events"
}

package models

import "time"

// Trade is a completed round trip. Immutable once created.
type Trade struct {
	ID                  uint      `gorm:"primaryKey"`
	RunID               string    `gorm:"index"`
	Symbol              string    `gorm:"index;not null"`
	EntryTime           time.Time `gorm:"index;not null"`
	EntryPrice          float64   `gorm:"type:decimal(20,8);not null"`
	ExitTime            time.Time `gorm:"index;not null"`
	ExitPrice           float64   `gorm:"type:decimal(20,8);not null"`
	NotionalUSD         float64   `gorm:"type:decimal(20,8);not null"`
	Quantity            float64   `gorm:"type:decimal(20,8);not null"`
	ReturnPct           float64   `gorm:"type:decimal(20,8);not null"`
	ReturnUSD           float64   `gorm:"type:decimal(20,8);not null"`
	HoldingBars         int       `gorm:"not null"`
	ExitReason          string    `gorm:"index;not null"`
	PeakPrice           float64   `gorm:"type:decimal(20,8)"`
	MaxAdverseExcursion float64   `gorm:"type:decimal(20,8)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	ExitReasonTrailingStop        = "trailing_stop"
	ExitReasonMAExit              = "ma_exit"
	ExitReasonRemovedFromUniverse = "removed_from_universe"
	ExitReasonEndOfRun            = "end_of_run"
	ExitReasonExchangeStop        = "exchange_stop"
	ExitReasonShutdown            = "system_shutdown"
)

// TableName sets the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

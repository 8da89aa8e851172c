package models

import "time"

// Position is an open holding. The engine owns the in-memory instance; the
// repository persists it in live mode so open positions survive a restart.
type Position struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"index"`
	Symbol      string    `gorm:"index;not null"`
	EntryTime   time.Time `gorm:"index;not null"`
	EntryIndex  int       `gorm:"not null"`
	EntryPrice  float64   `gorm:"type:decimal(20,8);not null"`
	NotionalUSD float64   `gorm:"type:decimal(20,8);not null"`
	Quantity    float64   `gorm:"type:decimal(20,8);not null"`
	PeakPrice   float64   `gorm:"type:decimal(20,8);not null"`
	PeakTime    time.Time
	Status      string `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// TableName sets the table name for Position model
func (Position) TableName() string {
	return "positions"
}

// UpdatePeak raises the peak watermark when a new high prints. The peak never
// moves down.
func (p *Position) UpdatePeak(price float64, ts time.Time) {
	if price > p.PeakPrice {
		p.PeakPrice = price
		p.PeakTime = ts
	}
}

package models

import "time"

// Candle is one OHLCV row. Cached in Postgres so repeated backtests do not
// re-fetch the same history.
type Candle struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"uniqueIndex:idx_candle_key;not null"`
	TimeFrame   string    `gorm:"uniqueIndex:idx_candle_key;not null"`
	OpenTime    time.Time `gorm:"uniqueIndex:idx_candle_key;index;not null"`
	CloseTime   time.Time `gorm:"index"`
	Open        float64   `gorm:"type:decimal(20,8)"`
	High        float64   `gorm:"type:decimal(20,8)"`
	Low         float64   `gorm:"type:decimal(20,8)"`
	Close       float64   `gorm:"type:decimal(20,8)"`
	Volume      float64   `gorm:"type:decimal(20,8)"`
	QuoteVolume float64   `gorm:"type:decimal(20,8)"`
	TradeCount  int64
}

const (
	CandleTimeFrame5m  = "5m"
	CandleTimeFrame15m = "15m"
	CandleTimeFrame1h  = "1h"
	CandleTimeFrame4h  = "4h"
	CandleTimeFrame1d  = "1d"
)

// TableName sets the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

package sizing

import "fmt"

// PositionSizer converts account equity and risk parameters into a position
// size. It holds configuration only; every calculation is pure, so one
// instance serves both simulated and live paths.
type PositionSizer struct {
	riskPerTradePct float64
	stopLossPct     float64
	maxPositionPct  float64
	maxPositions    int
}

// Result is either a funded size or a rejection with a reason. A rejection is
// a normal outcome, not an error.
type Result struct {
	CanOpen  bool
	Reason   string
	SizeUSD  float64
	SizePct  float64
	Quantity float64
	RiskUSD  float64
}

// NewPositionSizer creates a new instance of PositionSizer
func NewPositionSizer(riskPerTradePct, stopLossPct, maxPositionPct float64, maxPositions int) *PositionSizer {
	return &PositionSizer{
		riskPerTradePct: riskPerTradePct,
		stopLossPct:     stopLossPct,
		maxPositionPct:  maxPositionPct,
		maxPositions:    maxPositions,
	}
}

// Calculate sizes a new position against current account equity.
//
//	size = (account * risk%) / stop%
//
// The size is clamped to maxPositionPct of the account; when clamped, the
// dollar risk is recomputed from the clamped size. The only rejection cause
// is the concurrent position cap; input validation is the caller's job.
func (s *PositionSizer) Calculate(accountSize, entryPrice float64, openPositions int) Result {
	if openPositions >= s.maxPositions {
		return Result{
			CanOpen: false,
			Reason:  fmt.Sprintf("max positions (%d) reached", s.maxPositions),
		}
	}

	riskUSD := accountSize * s.riskPerTradePct
	sizeUSD := riskUSD / s.stopLossPct
	sizePct := sizeUSD / accountSize

	if sizePct > s.maxPositionPct {
		sizePct = s.maxPositionPct
		sizeUSD = accountSize * s.maxPositionPct
		riskUSD = sizeUSD * s.stopLossPct
	}

	return Result{
		CanOpen:  true,
		Reason:   "position sizing calculated",
		SizeUSD:  sizeUSD,
		SizePct:  sizePct,
		Quantity: sizeUSD / entryPrice,
		RiskUSD:  riskUSD,
	}
}

// MaxPortfolioRisk is the dollar loss if every slot is filled and every stop
// is hit.
func (s *PositionSizer) MaxPortfolioRisk(accountSize float64) float64 {
	return float64(s.maxPositions) * accountSize * s.riskPerTradePct
}

// MaxPortfolioExposure is the dollar notional with every slot filled.
func (s *PositionSizer) MaxPortfolioExposure(accountSize float64) float64 {
	return float64(s.maxPositions) * accountSize * s.riskPerTradePct / s.stopLossPct
}

func (s *PositionSizer) MaxPositions() int {
	return s.maxPositions
}

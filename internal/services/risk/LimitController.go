package risk

import (
	"fmt"
	"time"

	"MomentumTradeBot/internal/models"
)

// Controller states, most severe first.
const (
	StateSystemHalted = "system_halted"
	StateDailyHalted  = "daily_halted"
	StateSizeReduced  = "size_reduced"
	StateNormal       = "normal"
)

// LimitController tracks realized capital against daily, weekly and monthly
// loss limits. It never closes positions; it only gates new entries and
// scales entry size. The engine calls Evaluate once per step before
// considering entries.
//
// Limit behavior:
//   - daily breach halts new entries until the next calendar day
//   - weekly breach halves entry size until the next ISO week
//   - monthly breach (live mode) halts the system permanently
type LimitController struct {
	dailyLimitPct   float64
	weeklyLimitPct  float64
	monthlyLimitPct float64
	monthlyEnabled  bool

	dailyStart   float64
	weeklyStart  float64
	monthlyStart float64

	curYear    int
	curYearDay int
	isoYear    int
	isoWeek    int
	monthYear  int
	month      time.Month

	dailyHalted    bool
	sizeMultiplier float64
	systemHalted   bool
}

// NewLimitController creates a new instance of LimitController. Monthly
// checking is optional; historical runs disable it.
func NewLimitController(dailyLimitPct, weeklyLimitPct, monthlyLimitPct float64, monthlyEnabled bool, initialCapital float64) *LimitController {
	return &LimitController{
		dailyLimitPct:   dailyLimitPct,
		weeklyLimitPct:  weeklyLimitPct,
		monthlyLimitPct: monthlyLimitPct,
		monthlyEnabled:  monthlyEnabled,
		dailyStart:      initialCapital,
		weeklyStart:     initialCapital,
		monthlyStart:    initialCapital,
		sizeMultiplier:  1.0,
	}
}

// Evaluate advances the controller to the given step. Period rollovers are
// applied first, then breach checks against the rolled references. Returned
// events cover state transitions only; a limit already breached this period
// does not re-emit.
func (c *LimitController) Evaluate(ts time.Time, capital float64) []models.RiskEvent {
	var events []models.RiskEvent

	year, yearDay := ts.Year(), ts.YearDay()
	if year != c.curYear || yearDay != c.curYearDay {
		c.curYear, c.curYearDay = year, yearDay
		c.dailyStart = capital
		c.dailyHalted = false
	}

	isoYear, isoWeek := ts.ISOWeek()
	if isoYear != c.isoYear || isoWeek != c.isoWeek {
		c.isoYear, c.isoWeek = isoYear, isoWeek
		c.weeklyStart = capital
		c.sizeMultiplier = 1.0
	}

	if c.monthlyEnabled && (ts.Year() != c.monthYear || ts.Month() != c.month) {
		c.monthYear, c.month = ts.Year(), ts.Month()
		c.monthlyStart = capital
	}

	if !c.dailyHalted {
		if loss := lossPct(capital, c.dailyStart); loss <= -c.dailyLimitPct {
			c.dailyHalted = true
			events = append(events, models.RiskEvent{
				Timestamp: ts,
				EventType: models.RiskEventDailyLimit,
				LossPct:   loss,
				Capital:   capital,
				Details:   fmt.Sprintf("daily loss %.2f%% breached %.2f%% limit, new entries halted for the day", -loss*100, c.dailyLimitPct*100),
			})
		}
	}

	if c.sizeMultiplier == 1.0 {
		if loss := lossPct(capital, c.weeklyStart); loss <= -c.weeklyLimitPct {
			c.sizeMultiplier = 0.5
			events = append(events, models.RiskEvent{
				Timestamp: ts,
				EventType: models.RiskEventWeeklyLimit,
				LossPct:   loss,
				Capital:   capital,
				Details:   fmt.Sprintf("weekly loss %.2f%% breached %.2f%% limit, entry size halved for the week", -loss*100, c.weeklyLimitPct*100),
			})
		}
	}

	if c.monthlyEnabled && !c.systemHalted {
		if loss := lossPct(capital, c.monthlyStart); loss <= -c.monthlyLimitPct {
			c.systemHalted = true
			events = append(events, models.RiskEvent{
				Timestamp: ts,
				EventType: models.RiskEventMonthlyLimit,
				LossPct:   loss,
				Capital:   capital,
				Details:   fmt.Sprintf("monthly loss %.2f%% breached %.2f%% limit, system halted", -loss*100, c.monthlyLimitPct*100),
			})
		}
	}

	return events
}

// MayOpenNewPosition reports whether entries are currently allowed. Open
// positions are unaffected either way.
func (c *LimitController) MayOpenNewPosition() bool {
	return !c.dailyHalted && !c.systemHalted
}

// SizeMultiplier returns the factor applied to new entry sizes.
func (c *LimitController) SizeMultiplier() float64 {
	return c.sizeMultiplier
}

// SystemHalted reports whether a monthly breach has stopped the run.
func (c *LimitController) SystemHalted() bool {
	return c.systemHalted
}

// State returns the most severe active state for logging and reports.
func (c *LimitController) State() string {
	switch {
	case c.systemHalted:
		return StateSystemHalted
	case c.dailyHalted:
		return StateDailyHalted
	case c.sizeMultiplier != 1.0:
		return StateSizeReduced
	default:
		return StateNormal
	}
}

func lossPct(capital, reference float64) float64 {
	if reference == 0 {
		return 0
	}
	return (capital - reference) / reference
}

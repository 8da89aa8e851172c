package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Membership answers which symbols are tradable at a point in time. The
// engine never calls this directly; drivers resolve it per step and pass
// the snapshot down.
type Membership interface {
	EffectiveUniverse(ctx context.Context, ts time.Time) ([]string, error)
}

// StaticUniverse is a fixed symbol list, the default for historical runs.
type StaticUniverse struct {
	symbols []string
}

func NewStaticUniverse(symbols []string) *StaticUniverse {
	owned := make([]string, len(symbols))
	copy(owned, symbols)
	return &StaticUniverse{symbols: owned}
}

func (u *StaticUniverse) EffectiveUniverse(ctx context.Context, ts time.Time) ([]string, error) {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out, nil
}

// DynamicUniverse rescans membership on a fixed cadence. Timestamps are
// quantized to scan boundaries counted from the anchor, so every step
// inside one cadence window sees the same snapshot, and a cached scan for
// a boundary is reused instead of re-fetched.
type DynamicUniverse struct {
	scanner     Scanner
	cache       ScanCache
	cadenceDays int
	anchor      time.Time
}

func NewDynamicUniverse(scanner Scanner, cache ScanCache, cadenceDays int, anchor time.Time) *DynamicUniverse {
	if cadenceDays < 1 {
		cadenceDays = 1
	}
	if cache == nil {
		cache = NewMemoryScanCache()
	}
	return &DynamicUniverse{
		scanner:     scanner,
		cache:       cache,
		cadenceDays: cadenceDays,
		anchor:      anchor.UTC(),
	}
}

func (u *DynamicUniverse) EffectiveUniverse(ctx context.Context, ts time.Time) ([]string, error) {
	boundary := u.boundaryFor(ts)

	symbols, err := u.cache.Get(ctx, boundary)
	if err != nil {
		log.Warn().Err(err).Time("scan_date", boundary).Msg("universe cache read failed")
	}
	if symbols != nil {
		return symbols, nil
	}

	symbols, err = u.scanner.Scan(ctx, boundary)
	if err != nil {
		return nil, fmt.Errorf("universe scan at %s: %w", boundary.Format("2006-01-02"), err)
	}

	log.Info().
		Time("scan_date", boundary).
		Int("symbols", len(symbols)).
		Msg("universe rescanned")

	if err := u.cache.Set(ctx, boundary, symbols); err != nil {
		log.Warn().Err(err).Time("scan_date", boundary).Msg("universe cache write failed")
	}
	return symbols, nil
}

func (u *DynamicUniverse) boundaryFor(ts time.Time) time.Time {
	if !ts.After(u.anchor) {
		return u.anchor
	}
	cadence := time.Duration(u.cadenceDays) * 24 * time.Hour
	elapsed := ts.Sub(u.anchor)
	return u.anchor.Add(elapsed / cadence * cadence)
}

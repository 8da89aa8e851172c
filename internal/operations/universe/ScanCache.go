package universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScanCache stores universe snapshots keyed by scan date. Get returns
// nil, nil on a miss.
type ScanCache interface {
	Get(ctx context.Context, scanDate time.Time) ([]string, error)
	Set(ctx context.Context, scanDate time.Time, symbols []string) error
}

const scanKeyLayout = "2006-01-02"

// MemoryScanCache keeps snapshots for the lifetime of one process. Every
// historical run gets one for free so repeated steps inside a cadence
// window cost a single scan.
type MemoryScanCache struct {
	mu    sync.RWMutex
	scans map[string][]string
}

func NewMemoryScanCache() *MemoryScanCache {
	return &MemoryScanCache{scans: make(map[string][]string)}
}

func (c *MemoryScanCache) Get(ctx context.Context, scanDate time.Time) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symbols, ok := c.scans[scanDate.Format(scanKeyLayout)]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(symbols))
	copy(out, symbols)
	return out, nil
}

func (c *MemoryScanCache) Set(ctx context.Context, scanDate time.Time, symbols []string) error {
	owned := make([]string, len(symbols))
	copy(owned, symbols)
	c.mu.Lock()
	c.scans[scanDate.Format(scanKeyLayout)] = owned
	c.mu.Unlock()
	return nil
}

// RedisScanCache shares snapshots across processes and restarts, so a
// crashed live bot does not rescan on every boot.
type RedisScanCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisScanCache(rdb *redis.Client, ttl time.Duration) *RedisScanCache {
	return &RedisScanCache{rdb: rdb, ttl: ttl}
}

func (c *RedisScanCache) Get(ctx context.Context, scanDate time.Time) ([]string, error) {
	raw, err := c.rdb.Get(ctx, c.key(scanDate)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("universe cache get: %w", err)
	}

	var symbols []string
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, fmt.Errorf("universe cache decode: %w", err)
	}
	return symbols, nil
}

func (c *RedisScanCache) Set(ctx context.Context, scanDate time.Time, symbols []string) error {
	payload, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("universe cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(scanDate), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("universe cache set: %w", err)
	}
	return nil
}

func (c *RedisScanCache) key(scanDate time.Time) string {
	return "universe:scan:" + scanDate.Format(scanKeyLayout)
}

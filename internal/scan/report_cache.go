package scan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
)

const reportCacheTTL = 10 * time.Minute

// ReportCache holds the serialized latest report
type ReportCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, payload []byte, ttl time.Duration) error
}

// RedisReportCache keeps the latest report under a single key
type RedisReportCache struct {
	client *redis.Client
	key    string
}

// NewRedisReportCache creates a Redis-backed report cache
func NewRedisReportCache(client *redis.Client, key string) *RedisReportCache {
	if key == "" {
		key = "scan:report:latest"
	}
	return &RedisReportCache{client: client, key: key}
}

func (c *RedisReportCache) Get(ctx context.Context) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, payload []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key, payload, ttl).Err()
}

// CachedReports decorates a ReportStore with a cache in front of Latest.
// Cache failures fall through to the inner store; report reads never fail
// because the cache is unavailable.
type CachedReports struct {
	inner  ReportStore
	cache  ReportCache
	logger *logging.Logger
}

// NewCachedReports creates the caching decorator
func NewCachedReports(inner ReportStore, cache ReportCache, logger *logging.Logger) *CachedReports {
	return &CachedReports{inner: inner, cache: cache, logger: logger}
}

// Save persists the report and refreshes the cache
func (c *CachedReports) Save(ctx context.Context, report *models.ScanReport) error {
	if err := c.inner.Save(ctx, report); err != nil {
		return err
	}
	if payload, err := json.Marshal(report); err == nil {
		if err := c.cache.Set(ctx, payload, reportCacheTTL); err != nil {
			c.logger.Warn("failed to cache scan report", logging.WithField("error", err.Error()))
		}
	}
	return nil
}

// Latest serves the cached report when present, falling back to the store
// and backfilling the cache on a miss
func (c *CachedReports) Latest(ctx context.Context) (*models.ScanReport, error) {
	payload, ok, err := c.cache.Get(ctx)
	if err != nil {
		c.logger.Warn("report cache read failed", logging.WithField("error", err.Error()))
	} else if ok {
		var report models.ScanReport
		if err := json.Unmarshal(payload, &report); err == nil {
			return &report, nil
		}
	}

	report, err := c.inner.Latest(ctx)
	if err != nil || report == nil {
		return report, err
	}
	if payload, err := json.Marshal(report); err == nil {
		if err := c.cache.Set(ctx, payload, reportCacheTTL); err != nil {
			c.logger.Warn("failed to backfill report cache", logging.WithField("error", err.Error()))
		}
	}
	return report, nil
}

var _ ReportStore = (*CachedReports)(nil)

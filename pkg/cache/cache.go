// Package cache keeps recent analysis results in memory, keyed by the
// digest of the analyzed content.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
)

type CacheCfg struct {
	Name     string
	Size     int
	TTL      time.Duration
	Strategy string
}

// Cache is safe for concurrent use. A nil *Cache is a disabled cache:
// lookups miss and stores are ignored.
type Cache[V any] struct {
	cfg    CacheCfg
	gc     gcache.Cache
	logger *log.Entry
}

// New builds a cache. It returns nil when the size is zero.
func New[V any](cfg CacheCfg) (*Cache[V], error) {
	if cfg.Size <= 0 {
		return nil, nil
	}

	builder := gcache.New(cfg.Size)

	switch cfg.Strategy {
	case "LRU", "":
		cfg.Strategy = "LRU"
		builder = builder.LRU()
	case "LFU":
		builder = builder.LFU()
	case "ARC":
		builder = builder.ARC()
	default:
		return nil, fmt.Errorf("unknown cache strategy '%s'", cfg.Strategy)
	}

	if cfg.TTL > 0 {
		builder = builder.Expiration(cfg.TTL)
	}

	return &Cache[V]{
		cfg:    cfg,
		gc:     builder.Build(),
		logger: log.WithField("cache", cfg.Name),
	}, nil
}

// Key digests the parts identifying a cached value.
func Key(parts ...[]byte) uint64 {
	d := xxhash.New()

	for _, p := range parts {
		_, _ = d.Write(p)
		// separator, so that ("ab", "c") and ("a", "bc") differ
		_, _ = d.Write([]byte{0})
	}

	return d.Sum64()
}

func (c *Cache[V]) Get(key uint64) (V, bool) {
	var zero V

	if c == nil {
		return zero, false
	}

	val, err := c.gc.Get(key)
	if err != nil {
		// do not warn or log if key not found
		if !errors.Is(err, gcache.KeyNotFoundError) {
			c.logger.Warningf("while getting key %x: %s", key, err)
		}

		metrics.CacheRequests.With(prometheus.Labels{"name": c.cfg.Name, "result": "miss"}).Inc()

		return zero, false
	}

	metrics.CacheRequests.With(prometheus.Labels{"name": c.cfg.Name, "result": "hit"}).Inc()

	return val.(V), true
}

func (c *Cache[V]) Set(key uint64, value V) {
	if c == nil {
		return
	}

	c.logger.Debugf("setting key %x", key)

	if err := c.gc.Set(key, value); err != nil {
		c.logger.Warningf("while setting key %x: %s", key, err)
	}

	metrics.CacheEntries.With(prometheus.Labels{"name": c.cfg.Name, "type": c.cfg.Strategy}).Set(float64(c.gc.Len(false)))
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}

	return c.gc.Len(true)
}

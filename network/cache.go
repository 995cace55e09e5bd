package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"flood-route-server/metrics"
	"flood-route-server/routing"
)

// OpenCache opens a badger store at dir, or an in-memory one when inMemory
// is set.
func OpenCache(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open network cache: %w", err)
	}
	return db, nil
}

// CachedSource keeps gob snapshots of fetched networks in badger. Every hit
// decodes a new graph, so callers never share one.
type CachedSource struct {
	next   Source
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSource(next Source, db *badger.DB, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{next: next, db: db, ttl: ttl, logger: logger}
}

// cacheKey rounds the center to 4 decimals (about 11 m).
func cacheKey(center routing.Coordinate, radiusMeters float64) []byte {
	return []byte(fmt.Sprintf("network:%.4f:%.4f:%.0f", center.Lat, center.Lon, radiusMeters))
}

func (c *CachedSource) Fetch(ctx context.Context, center routing.Coordinate, radiusMeters float64) (*routing.Graph, error) {
	key := cacheKey(center, radiusMeters)

	g, err := c.load(key)
	switch {
	case err == nil:
		metrics.NetworkCacheHits.Inc()
		c.logger.Debug("network cache hit", "key", string(key))
		return g, nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		c.logger.Warn("network cache read failed", "key", string(key), "error", err)
	}
	metrics.NetworkCacheMisses.Inc()

	g, err = c.next.Fetch(ctx, center, radiusMeters)
	if err != nil {
		return nil, err
	}

	if err := c.store(key, g); err != nil {
		c.logger.Warn("network cache write failed", "key", string(key), "error", err)
	}
	return g, nil
}

func (c *CachedSource) load(key []byte) (*routing.Graph, error) {
	var g *routing.Graph
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeSnapshot(bytes.NewReader(val))
			if err != nil {
				return err
			}
			g = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (c *CachedSource) store(key []byte, g *routing.Graph) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, g); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf.Bytes())
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Package cache implements the short-lived shared result cache and the
// epoch counter that invalidates it.
//
// Entries are keyed by (query fingerprint, cursor, epoch). The ingestor bumps
// the epoch once per committed batch, which retires every entry minted under
// the previous epoch without enumerating keys; TTL reclaims the storage.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/db"
)

const (
	pageKeyPrefix = "recallsearch:page:"
	epochKey      = "recallsearch:epoch"
)

// DefaultTTL bounds how long a cached page may be re-served within one epoch.
const DefaultTTL = 5 * time.Second

// Micro is the shared micro-cache. All access is best-effort: a backend
// failure degrades to a live ranking computation, never to an error.
type Micro struct {
	store      db.KVStore
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a micro-cache on the given backend.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(store db.KVStore, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Micro {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Micro{store: store, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Epoch returns the current invalidation epoch.
// INCRBY 0 reads the counter atomically on every backend.
func (m *Micro) Epoch(ctx context.Context) (int64, error) {
	n, err := m.store.IncrBy(ctx, epochKey, 0)
	if err != nil {
		return 0, fmt.Errorf("read epoch: %w", err)
	}
	return n, nil
}

// Bump advances the epoch, retiring all cached pages at once.
func (m *Micro) Bump(ctx context.Context) (int64, error) {
	n, err := m.store.IncrBy(ctx, epochKey, 1)
	if err != nil {
		return 0, fmt.Errorf("bump epoch: %w", err)
	}
	return n, nil
}

// GetPage returns a cached serialized page for the query+cursor under the
// given epoch, if present and fresh.
func (m *Micro) GetPage(ctx context.Context, fingerprint string, pageSize int, cursorToken string, epoch int64) ([]byte, bool) {
	data, err := m.store.Get(ctx, m.pageKey(fingerprint, pageSize, cursorToken, epoch))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			m.logger.Warn("failed to read cached page", zap.Error(err))
		}
		m.incCache("miss")
		return nil, false
	}
	m.incCache("hit")
	return data, true
}

// PutPage stores a serialized page under the given epoch.
func (m *Micro) PutPage(ctx context.Context, fingerprint string, pageSize int, cursorToken string, epoch int64, data []byte) {
	if err := m.store.SetWithTTL(ctx, m.pageKey(fingerprint, pageSize, cursorToken, epoch), data, m.ttl); err != nil {
		m.logger.Warn("failed to cache page", zap.Error(err))
	}
}

func (m *Micro) pageKey(fingerprint string, pageSize int, cursorToken string, epoch int64) string {
	h := sha256.Sum256([]byte(fingerprint + "|" + strconv.Itoa(pageSize) + "|" + cursorToken))
	return pageKeyPrefix + strconv.FormatInt(epoch, 10) + ":" + hex.EncodeToString(h[:])
}

func (m *Micro) incCache(result string) {
	if m.cacheTotal != nil {
		m.cacheTotal.WithLabelValues(result).Inc()
	}
}

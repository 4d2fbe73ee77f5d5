// Package page orchestrates ranking, cursors, and the micro-cache into
// snapshot-consistent pages of search results.
package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/domain"
	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
	"github.com/recallwatch/recallsearch/internal/logger"
)

// Defaults for cursor lifetime and store retries.
const (
	DefaultCursorTTL     = 15 * time.Minute
	DefaultRetryAttempts = 3
	defaultRetryBackoff  = 50 * time.Millisecond
)

// Service is the pagination engine.
type Service struct {
	ranker        Ranker
	cache         ResultCache
	codec         *cursor.Codec
	cursorTTL     time.Duration
	retryAttempts int
	retryBackoff  time.Duration
	now           func() time.Time
}

// New creates a pagination engine.
func New(ranker Ranker, cache ResultCache, codec *cursor.Codec) *Service {
	return &Service{
		ranker:        ranker,
		cache:         cache,
		codec:         codec,
		cursorTTL:     DefaultCursorTTL,
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
		now:           time.Now,
	}
}

// WithCursorTTL overrides the cursor lifetime.
func (s *Service) WithCursorTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.cursorTTL = ttl
	}
	return s
}

// WithRetry overrides the bounded retry policy for transient store failures.
func (s *Service) WithRetry(attempts int, backoff time.Duration) *Service {
	if attempts > 0 {
		s.retryAttempts = attempts
	}
	if backoff > 0 {
		s.retryBackoff = backoff
	}
	return s
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Page produces one page of results plus the continuation cursor.
//
// The first page fixes asOf = now; every later page of the session reuses
// the cursor's asOf, so interleaved writes are invisible to an already
// started pagination session. A next cursor is minted only when the page is
// full; a short page ends the session.
func (s *Service) Page(ctx context.Context, q *query.Query, cursorToken string) (result.Page, error) {
	var (
		now      = s.now()
		asOf     = now
		after    *cursor.Key
		pageSize = q.PageSize()
	)

	if cursorToken != "" {
		st, err := s.codec.Decode(cursorToken, q.Fingerprint(), now)
		if err != nil {
			return result.Page{}, err
		}
		// The cursor owns the session parameters.
		asOf = st.AsOf
		after = st.After
		pageSize = st.PageSize
	}

	epoch, epochErr := s.cache.Epoch(ctx)
	if epochErr == nil {
		if data, ok := s.cache.GetPage(ctx, q.Fingerprint(), pageSize, cursorToken, epoch); ok {
			pg, err := decodePage(data)
			if err == nil {
				return pg, nil
			}
			// A corrupt entry degrades to a live computation.
			logger.FromContext(ctx).Warn("discarding undecodable cached page", zap.Error(err))
		}
	}

	items, err := s.rankWithRetry(ctx, q, asOf, after, pageSize+1)
	if err != nil {
		return result.Page{}, err
	}

	pg := result.Page{AsOf: asOf}
	if len(items) > pageSize {
		pg.Items = items[:pageSize]
		token, err := s.mintNextCursor(q, asOf, pageSize, &pg.Items[pageSize-1], now)
		if err != nil {
			return result.Page{}, err
		}
		pg.NextCursor = token
	} else {
		pg.Items = items
	}

	if epochErr == nil {
		if data, err := encodePage(pg); err == nil {
			s.cache.PutPage(ctx, q.Fingerprint(), pageSize, cursorToken, epoch, data)
		}
	}
	return pg, nil
}

func (s *Service) mintNextCursor(
	q *query.Query, asOf time.Time, pageSize int, last *result.Item, now time.Time,
) (string, error) {
	st, err := cursor.NewState(
		q.Fingerprint(), asOf, pageSize,
		&cursor.Key{Score: last.Score(), Date: last.RecalledAt(), ID: last.ID()},
		now.Add(s.cursorTTL),
	)
	if err != nil {
		return "", fmt.Errorf("build cursor state: %w", err)
	}
	token, err := s.codec.Encode(st)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return token, nil
}

// rankWithRetry retries transient store failures with linear backoff before
// surfacing ErrStoreUnavailable. Cursor state is unaffected by a retry; it
// lives entirely in the token.
func (s *Service) rankWithRetry(
	ctx context.Context, q *query.Query, asOf time.Time, after *cursor.Key, limit int,
) ([]result.Item, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("rank canceled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * s.retryBackoff):
			}
		}

		items, err := s.ranker.Rank(ctx, q, asOf, after, limit)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

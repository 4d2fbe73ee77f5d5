// Package ranker executes search queries against the record store,
// producing scored candidates under one deterministic total order.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain"
	"github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
	recordrepo "github.com/recallwatch/recallsearch/internal/repository/record"
)

// Service ranks recall records for a query at a fixed snapshot.
type Service struct {
	repo  Repository
	floor float64
}

// New creates a ranker.
func New(repo Repository) *Service {
	return &Service{repo: repo, floor: DefaultSimilarityFloor}
}

// WithSimilarityFloor overrides the fuzzy-match cutoff.
func (s *Service) WithSimilarityFloor(floor float64) *Service {
	if floor > 0 {
		s.floor = floor
	}
	return s
}

// Rank executes a query as of the snapshot timestamp and returns up to
// limit items strictly after the continuation key, ordered by
// score DESC, date DESC, id ASC. An empty result is not an error.
func (s *Service) Rank(
	ctx context.Context, q *query.Query, asOf time.Time, after *cursor.Key, limit int,
) ([]result.Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive limit", domain.ErrInvalidQuery)
	}

	if q.IsExact() {
		return s.rankExact(ctx, q, asOf)
	}

	candidates, err := s.repo.Candidates(ctx, recordrepo.Criteria{
		Category: q.Category(),
		Severity: q.Severity(),
		DateFrom: q.DateFrom(),
		DateTo:   q.DateTo(),
		AsOf:     asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	scored := make([]result.Item, 0, len(candidates))
	for i := range candidates {
		rec := &candidates[i]
		if !matchesKeywords(rec, q.Keywords()) {
			continue
		}

		score := 1.0
		if q.Product() != "" {
			score = similarity(q.Product(), rec.Name())
			if score < s.floor {
				continue
			}
		}

		if after != nil {
			key := cursor.Key{Score: score, Date: rec.RecalledAt(), ID: rec.ID()}
			if !after.Less(key) {
				continue
			}
		}

		scored = append(scored, result.FromRecord(rec, score))
	}

	sortItems(scored)

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// rankExact resolves the exact-ID path: 0 or 1 item with score 1.0,
// bypassing every other criterion.
func (s *Service) rankExact(ctx context.Context, q *query.Query, asOf time.Time) ([]result.Item, error) {
	rec, err := s.repo.GetByID(ctx, q.ID(), asOf)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	return []result.Item{result.FromRecord(&rec, 1.0)}, nil
}

// matchesKeywords requires every keyword to be a case-insensitive substring
// of at least one searchable field. AND across keywords, OR across fields.
func matchesKeywords(rec *record.Record, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	fields := rec.SearchableFields()
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}

	for _, kw := range keywords {
		found := false
		for _, f := range lowered {
			if strings.Contains(f, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortItems applies the total order score DESC, date DESC, id ASC.
// The immutable-ID tie-break keeps equal-score, equal-date rows stable
// across pages, which keyset continuation depends on.
func sortItems(items []result.Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if !a.RecalledAt().Equal(b.RecalledAt()) {
			return a.RecalledAt().After(b.RecalledAt())
		}
		return a.ID() < b.ID()
	})
}

package page

import (
	"context"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
)

// Ranker produces ordered, scored items for a query at a fixed snapshot.
type Ranker interface {
	Rank(ctx context.Context, q *query.Query, asOf time.Time, after *cursor.Key, limit int) ([]result.Item, error)
}

// ResultCache is the injected shared micro-cache. Lookups are best-effort;
// a miss or backend failure falls through to a live ranking computation.
type ResultCache interface {
	Epoch(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, fingerprint string, pageSize int, cursorToken string, epoch int64) ([]byte, bool)
	PutPage(ctx context.Context, fingerprint string, pageSize int, cursorToken string, epoch int64, data []byte)
}

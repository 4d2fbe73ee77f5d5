package ranker

import (
	"context"
	"testing"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain"
	"github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	recordrepo "github.com/recallwatch/recallsearch/internal/repository/record"
)

// mockRepo implements the consumer interface for tests.
type mockRepo struct {
	getByIDFn    func(ctx context.Context, id string, asOf time.Time) (record.Record, error)
	candidatesFn func(ctx context.Context, c recordrepo.Criteria) ([]record.Record, error)
	lastCriteria recordrepo.Criteria
}

func (m *mockRepo) GetByID(ctx context.Context, id string, asOf time.Time) (record.Record, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id, asOf)
	}
	return record.Record{}, domain.ErrNotFound
}

func (m *mockRepo) Candidates(ctx context.Context, c recordrepo.Criteria) ([]record.Record, error) {
	m.lastCriteria = c
	if m.candidatesFn != nil {
		return m.candidatesFn(ctx, c)
	}
	return nil, nil
}

func makeRecord(t *testing.T, id, name string, recalledAt time.Time) record.Record {
	t.Helper()
	return record.Reconstruct(
		id, name, "", "", "",
		record.SeverityUnspecified, "", recalledAt, recalledAt,
	)
}

func makeQuery(t *testing.T, id, product string, keywords []string) *query.Query {
	t.Helper()
	q, err := query.New(id, product, keywords, "", record.SeverityUnspecified, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

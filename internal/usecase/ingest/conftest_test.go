package ingest

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

// mockRepo implements the consumer interface for tests.
type mockRepo struct {
	upsertFn     func(ctx context.Context, rec *domrec.Record, modifiedAt time.Time) (bool, error)
	bulkUpsertFn func(ctx context.Context, recs []domrec.Record, modifiedAt time.Time) ([]dombatch.Result, error)
	lastModified time.Time
}

func (m *mockRepo) Upsert(ctx context.Context, rec *domrec.Record, modifiedAt time.Time) (bool, error) {
	m.lastModified = modifiedAt
	if m.upsertFn != nil {
		return m.upsertFn(ctx, rec, modifiedAt)
	}
	return true, nil
}

func (m *mockRepo) BulkUpsert(ctx context.Context, recs []domrec.Record, modifiedAt time.Time) ([]dombatch.Result, error) {
	m.lastModified = modifiedAt
	if m.bulkUpsertFn != nil {
		return m.bulkUpsertFn(ctx, recs, modifiedAt)
	}
	results := make([]dombatch.Result, len(recs))
	for i := range recs {
		results[i] = dombatch.NewInserted(recs[i].ID())
	}
	return results, nil
}

// mockBumper counts epoch bumps.
type mockBumper struct {
	bumps int
	err   error
}

func (m *mockBumper) Bump(_ context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.bumps++
	return int64(m.bumps), nil
}

func makeRecord(t *testing.T, id string) domrec.Record {
	t.Helper()
	rec, err := domrec.New(id, "Product "+id, "", "", "",
		domrec.SeverityUnspecified, "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return rec
}

func makeRecords(t *testing.T, n int) []domrec.Record {
	t.Helper()
	recs := make([]domrec.Record, n)
	for i := range recs {
		recs[i] = makeRecord(t, "rec-"+string(rune('a'+i%26))+"-"+string(rune('0'+i/26%10)))
	}
	return recs
}

func testService(repo Repository, epochs EpochBumper) *Service {
	return New(repo, epochs, nil, zap.NewNop())
}

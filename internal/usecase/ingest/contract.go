package ingest

import (
	"context"
	"time"

	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

// Repository is the write side of the record store. Upsert is a single
// atomic conflict-resolving write per record.
type Repository interface {
	Upsert(ctx context.Context, rec *domrec.Record, modifiedAt time.Time) (created bool, err error)
	BulkUpsert(ctx context.Context, recs []domrec.Record, modifiedAt time.Time) ([]dombatch.Result, error)
}

// EpochBumper advances the shared cache invalidation epoch.
type EpochBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// Package ingest is the only writer path into the record store.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/domain"
	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

// MaxBatchSize is the maximum number of records per ingestion batch.
const MaxBatchSize = 500

// Service ingests recall records with per-record outcome reporting and
// bumps the cache epoch once per committed batch.
type Service struct {
	repo         Repository
	epochs       EpochBumper
	ingestTotal  *prometheus.CounterVec
	epochGauge   prometheus.Gauge
	logger       *zap.Logger
	maxBatchSize int
	now          func() time.Time
}

// New creates an ingestor.
// ingestTotal is a counter vec with label "status" ("inserted"/"updated"/"error"),
// passed explicitly; nil disables instrumentation.
func New(repo Repository, epochs EpochBumper, ingestTotal *prometheus.CounterVec, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		epochs:       epochs,
		ingestTotal:  ingestTotal,
		logger:       logger,
		maxBatchSize: MaxBatchSize,
		now:          time.Now,
	}
}

// WithEpochGauge exports the current epoch as a gauge after each bump.
func (s *Service) WithEpochGauge(g prometheus.Gauge) *Service {
	s.epochGauge = g
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Upsert ingests a single record: insert on first sight of the ID, update
// in place otherwise. The record's watermark advances to the ingestion time.
func (s *Service) Upsert(ctx context.Context, rec *domrec.Record) (dombatch.Result, error) {
	created, err := s.repo.Upsert(ctx, rec, s.now())
	if err != nil {
		s.incStatus(dombatch.StatusError)
		return dombatch.Result{}, fmt.Errorf("upsert %s: %w", rec.ID(), err)
	}

	s.bumpEpoch(ctx)

	if created {
		s.incStatus(dombatch.StatusInserted)
		return dombatch.NewInserted(rec.ID()), nil
	}
	s.incStatus(dombatch.StatusUpdated)
	return dombatch.NewUpdated(rec.ID()), nil
}

// BulkUpsert ingests a batch in one store round trip. A failing record does
// not abort the batch; the epoch is bumped exactly once, and only when at
// least one record succeeded.
func (s *Service) BulkUpsert(ctx context.Context, recs []domrec.Record) ([]dombatch.Result, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	if len(recs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidQuery, s.maxBatchSize)
	}

	results, err := s.repo.BulkUpsert(ctx, recs, s.now())
	if err != nil {
		return nil, fmt.Errorf("bulk upsert: %w", err)
	}

	counts := dombatch.Tally(results)
	if counts.Inserted+counts.Updated > 0 {
		s.bumpEpoch(ctx)
	}

	for _, r := range results {
		s.incStatus(r.Status())
		if r.Err() != nil {
			s.logger.Warn("record ingestion failed",
				zap.String("recall_id", r.ID()), zap.Error(r.Err()))
		}
	}

	s.logger.Info("ingestion batch committed",
		zap.Int("inserted", counts.Inserted),
		zap.Int("updated", counts.Updated),
		zap.Int("failed", counts.Failed),
	)
	return results, nil
}

// bumpEpoch retires all cached search pages. A failed bump is logged, not
// fatal: the cache TTL still bounds how long stale pages can be served.
func (s *Service) bumpEpoch(ctx context.Context) {
	n, err := s.epochs.Bump(ctx)
	if err != nil {
		s.logger.Error("failed to bump cache epoch", zap.Error(err))
		return
	}
	if s.epochGauge != nil {
		s.epochGauge.Set(float64(n))
	}
}

func (s *Service) incStatus(status dombatch.ItemStatus) {
	if s.ingestTotal != nil {
		s.ingestTotal.WithLabelValues(string(status)).Inc()
	}
}

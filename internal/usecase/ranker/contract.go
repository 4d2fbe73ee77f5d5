package ranker

import (
	"context"
	"time"

	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
	recordrepo "github.com/recallwatch/recallsearch/internal/repository/record"
)

// Repository is the read side of the record store.
type Repository interface {
	GetByID(ctx context.Context, id string, asOf time.Time) (domrec.Record, error)
	Candidates(ctx context.Context, c recordrepo.Criteria) ([]domrec.Record, error)
}

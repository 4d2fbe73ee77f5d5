package record

import (
	"time"

	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

// recallRow is the flat storage shape of a recall record.
type recallRow struct {
	RecallID     string `db:"recall_id"`
	Name         string `db:"name"`
	Brand        string `db:"brand"`
	Description  string `db:"description"`
	Hazard       string `db:"hazard"`
	Severity     string `db:"severity"`
	Category     string `db:"category"`
	RecalledAt   int64  `db:"recalled_at"`
	LastModified int64  `db:"last_modified"`
}

func (r *recallRow) toDomain() domrec.Record {
	return domrec.Reconstruct(
		r.RecallID, r.Name, r.Brand, r.Description, r.Hazard,
		domrec.Severity(r.Severity), r.Category,
		time.UnixMilli(r.RecalledAt).UTC(), time.UnixMilli(r.LastModified).UTC(),
	)
}

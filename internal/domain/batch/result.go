package batch

// ItemStatus is the ingestion outcome of a single record.
type ItemStatus string

// Ingestion outcome values.
const (
	StatusInserted ItemStatus = "inserted"
	StatusUpdated  ItemStatus = "updated"
	StatusError    ItemStatus = "error"
)

// Result is the outcome of ingesting one record in a batch.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewInserted creates a result for a first-seen record.
func NewInserted(id string) Result { return Result{id: id, status: StatusInserted} }

// NewUpdated creates a result for an in-place update.
func NewUpdated(id string) Result { return Result{id: id, status: StatusUpdated} }

// NewError creates a failed ingestion result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the recall identifier.
func (r Result) ID() string { return r.id }

// Status returns the ingestion outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Counts aggregates per-record outcomes for observability.
type Counts struct {
	Inserted int
	Updated  int
	Failed   int
}

// Tally counts outcomes across a batch.
func Tally(results []Result) Counts {
	var c Counts
	for _, r := range results {
		switch r.Status() {
		case StatusInserted:
			c.Inserted++
		case StatusUpdated:
			c.Updated++
		case StatusError:
			c.Failed++
		}
	}
	return c
}

package chi

import (
	"fmt"
	"time"

	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
)

// errorCode is the machine-readable error code in error responses.
type errorCode string

// Error response codes.
const (
	codeBadRequest           errorCode = "bad_request"
	codeUnauthorized         errorCode = "unauthorized"
	codeValidationFailed     errorCode = "validation_failed"
	codeInvalidCursor        errorCode = "invalid_cursor"
	codeCursorExpired        errorCode = "cursor_expired"
	codeCursorFilterMismatch errorCode = "cursor_filter_mismatch"
	codeInvalidQuery         errorCode = "invalid_query"
	codeRecallNotFound       errorCode = "recall_not_found"
	codeStoreUnavailable     errorCode = "store_unavailable"
	codeInternalError        errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	ID       string   `json:"id,omitempty"`
	Product  string   `json:"product,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Category string   `json:"category,omitempty"`
	Severity string   `json:"severity,omitempty"`
	DateFrom string   `json:"date_from,omitempty"`
	DateTo   string   `json:"date_to,omitempty"`
	PageSize int      `json:"page_size,omitempty"`
	Cursor   string   `json:"cursor,omitempty"`
}

type searchResultItem struct {
	ID         string    `json:"id"`
	Score      float64   `json:"score"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Category   string    `json:"category,omitempty"`
	RecalledAt time.Time `json:"recalled_at"`
}

type searchResponse struct {
	Items      []searchResultItem `json:"items"`
	NextCursor *string            `json:"next_cursor,omitempty"`
	AsOf       time.Time          `json:"as_of"`
}

type recallPayload struct {
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
	Hazard      string `json:"hazard,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Category    string `json:"category,omitempty"`
	RecalledAt  string `json:"recalled_at"`
}

type recallResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand,omitempty"`
	Description  string    `json:"description,omitempty"`
	Hazard       string    `json:"hazard,omitempty"`
	Severity     string    `json:"severity,omitempty"`
	Category     string    `json:"category,omitempty"`
	RecalledAt   time.Time `json:"recalled_at"`
	LastModified time.Time `json:"last_modified"`
}

type upsertOutcome struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type batchRecord struct {
	ID string `json:"id"`
	recallPayload
}

type batchUpsertRequest struct {
	Records []batchRecord `json:"records"`
}

type batchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *errorResponse `json:"error,omitempty"`
}

type batchUpsertResponse struct {
	Items    []batchResultItem `json:"items"`
	Inserted int               `json:"inserted"`
	Updated  int               `json:"updated"`
	Failed   int               `json:"failed"`
}

func recordFromPayload(id string, p recallPayload) (domrec.Record, error) {
	recalledAt, err := parseDate(p.RecalledAt)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("recalled_at: %w", err)
	}
	rec, err := domrec.New(
		id, p.Name, p.Brand, p.Description, p.Hazard,
		domrec.Severity(p.Severity), p.Category, recalledAt,
	)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("build record: %w", err)
	}
	return rec, nil
}

func recordToResponse(rec *domrec.Record) recallResponse {
	return recallResponse{
		ID:           rec.ID(),
		Name:         rec.Name(),
		Brand:        rec.Brand(),
		Description:  rec.Description(),
		Hazard:       rec.Hazard(),
		Severity:     string(rec.Severity()),
		Category:     rec.Category(),
		RecalledAt:   rec.RecalledAt(),
		LastModified: rec.LastModified(),
	}
}

func itemToResponse(it *result.Item) searchResultItem {
	return searchResultItem{
		ID:         it.ID(),
		Score:      it.Score(),
		Name:       it.Name(),
		Brand:      it.Brand(),
		Severity:   string(it.Severity()),
		Category:   it.Category(),
		RecalledAt: it.RecalledAt(),
	}
}

func batchItemToResponse(r dombatch.Result) batchResultItem {
	item := batchResultItem{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    codeValidationFailed,
			Message: r.Err().Error(),
		}
	}
	return item
}

// parseDate accepts RFC3339 timestamps and bare dates. An empty value is
// the zero time (unbounded).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

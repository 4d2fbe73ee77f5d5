// Package query defines the validated search query value object.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain/record"
)

// Search parameter limits.
const (
	// MaxPhraseLength is the maximum allowed product phrase length.
	MaxPhraseLength = 512
	MaxKeywords     = 16
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Query is a validated, exhaustively enumerated search query.
// When an exact ID is present all other criteria are ignored and the
// query resolves to at most one record.
type Query struct {
	id       string
	product  string
	keywords []string
	category string
	severity record.Severity
	dateFrom time.Time
	dateTo   time.Time
	pageSize int
}

// New validates and normalizes search criteria.
// Keywords are lowercased, deduplicated and sorted so that logically equal
// conjunctions produce the same fingerprint. Page size defaults to 20 and is
// clamped to 50 regardless of the caller's request.
func New(
	id, product string,
	keywords []string,
	category string,
	severity record.Severity,
	dateFrom, dateTo time.Time,
	pageSize int,
) (Query, error) {
	if len(product) > MaxPhraseLength {
		return Query{}, fmt.Errorf("product phrase too long (max %d chars)", MaxPhraseLength)
	}
	if len(keywords) > MaxKeywords {
		return Query{}, fmt.Errorf("too many keywords (max %d)", MaxKeywords)
	}
	if !severity.IsValid() {
		return Query{}, fmt.Errorf("unknown severity %q", severity)
	}
	if !dateFrom.IsZero() && !dateTo.IsZero() && dateTo.Before(dateFrom) {
		return Query{}, fmt.Errorf("date range is inverted")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	if id != "" {
		// Exact-ID lookups ignore every other criterion.
		return Query{id: id, pageSize: pageSize}, nil
	}

	normalized := normalizeKeywords(keywords)
	if id == "" && product == "" && len(normalized) == 0 &&
		category == "" && severity == record.SeverityUnspecified &&
		dateFrom.IsZero() && dateTo.IsZero() {
		return Query{}, fmt.Errorf("at least one search criterion is required")
	}

	return Query{
		product:  strings.TrimSpace(product),
		keywords: normalized,
		category: category,
		severity: severity,
		dateFrom: dateFrom.UTC(),
		dateTo:   dateTo.UTC(),
		pageSize: pageSize,
	}, nil
}

// ID returns the exact recall identifier, if any.
func (q *Query) ID() string { return q.id }

// Product returns the free-text product phrase for fuzzy matching.
func (q *Query) Product() string { return q.product }

// Keywords returns the normalized conjunctive keywords.
func (q *Query) Keywords() []string { return q.keywords }

// Category returns the categorical filter.
func (q *Query) Category() string { return q.category }

// Severity returns the severity filter.
func (q *Query) Severity() record.Severity { return q.severity }

// DateFrom returns the inclusive lower recall-date bound (zero = unbounded).
func (q *Query) DateFrom() time.Time { return q.dateFrom }

// DateTo returns the inclusive upper recall-date bound (zero = unbounded).
func (q *Query) DateTo() time.Time { return q.dateTo }

// PageSize returns the clamped page size.
func (q *Query) PageSize() int { return q.pageSize }

// IsExact reports whether this is an exact-ID lookup.
func (q *Query) IsExact() bool { return q.id != "" }

// Fingerprint returns a stable hash of every criterion except the page size.
// A cursor is only valid against the fingerprint it was minted for.
func (q *Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString("id=")
	b.WriteString(q.id)
	b.WriteString("|product=")
	b.WriteString(strings.ToLower(q.product))
	b.WriteString("|kw=")
	b.WriteString(strings.Join(q.keywords, ","))
	b.WriteString("|cat=")
	b.WriteString(q.category)
	b.WriteString("|sev=")
	b.WriteString(string(q.severity))
	b.WriteString("|from=")
	b.WriteString(canonicalTime(q.dateFrom))
	b.WriteString("|to=")
	b.WriteString(canonicalTime(q.dateTo))

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}

func canonicalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

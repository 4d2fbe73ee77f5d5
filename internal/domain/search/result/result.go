package result

import (
	"time"

	"github.com/recallwatch/recallsearch/internal/domain/record"
)

// Item is a single ranked search hit: a recall record projected with its
// relevance score in [0,1]. Constructed per request, never persisted.
type Item struct {
	id         string
	score      float64
	name       string
	brand      string
	severity   record.Severity
	category   string
	recalledAt time.Time
}

// FromRecord projects a record into a scored result item.
func FromRecord(r *record.Record, score float64) Item {
	return Item{
		id:         r.ID(),
		score:      score,
		name:       r.Name(),
		brand:      r.Brand(),
		severity:   r.Severity(),
		category:   r.Category(),
		recalledAt: r.RecalledAt(),
	}
}

// ID returns the recall identifier.
func (i *Item) ID() string { return i.id }

// Score returns the relevance score.
func (i *Item) Score() float64 { return i.score }

// Name returns the product name.
func (i *Item) Name() string { return i.name }

// Brand returns the brand name.
func (i *Item) Brand() string { return i.brand }

// Severity returns the hazard severity.
func (i *Item) Severity() record.Severity { return i.severity }

// Category returns the categorical tag.
func (i *Item) Category() string { return i.category }

// RecalledAt returns the recall date.
func (i *Item) RecalledAt() time.Time { return i.recalledAt }

// Page is one page of ranked results plus the continuation token.
type Page struct {
	Items      []Item
	NextCursor string
	AsOf       time.Time
}

package page

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
)

// pageWire is the cache serialization of a result page.
type pageWire struct {
	Items      []itemWire `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
	AsOf       int64      `json:"as_of"`
}

type itemWire struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand,omitempty"`
	Severity   string  `json:"severity,omitempty"`
	Category   string  `json:"category,omitempty"`
	RecalledAt int64   `json:"recalled_at"`
}

func encodePage(pg result.Page) ([]byte, error) {
	w := pageWire{
		Items:      make([]itemWire, len(pg.Items)),
		NextCursor: pg.NextCursor,
		AsOf:       pg.AsOf.UnixMilli(),
	}
	for i := range pg.Items {
		it := &pg.Items[i]
		w.Items[i] = itemWire{
			ID:         it.ID(),
			Score:      it.Score(),
			Name:       it.Name(),
			Brand:      it.Brand(),
			Severity:   string(it.Severity()),
			Category:   it.Category(),
			RecalledAt: it.RecalledAt().UnixMilli(),
		}
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal cached page: %w", err)
	}
	return data, nil
}

func decodePage(data []byte) (result.Page, error) {
	var w pageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return result.Page{}, fmt.Errorf("unmarshal cached page: %w", err)
	}

	pg := result.Page{
		Items:      make([]result.Item, len(w.Items)),
		NextCursor: w.NextCursor,
		AsOf:       time.UnixMilli(w.AsOf).UTC(),
	}
	for i, it := range w.Items {
		rec := record.Reconstruct(
			it.ID, it.Name, it.Brand, "", "",
			record.Severity(it.Severity), it.Category,
			time.UnixMilli(it.RecalledAt).UTC(), time.Time{},
		)
		pg.Items[i] = result.FromRecord(&rec, it.Score)
	}
	return pg, nil
}

package record

import (
	"testing"
	"time"

	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

func testRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func makeRecord(t *testing.T, id, name string, sev domrec.Severity, category string, recalledAt time.Time) domrec.Record {
	t.Helper()
	rec, err := domrec.New(id, name, "BrandCo", "a product", "a hazard", sev, category, recalledAt)
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return rec
}

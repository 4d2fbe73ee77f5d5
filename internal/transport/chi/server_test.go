package chi

import (
	"net/http"
	"testing"
)

func TestSearch_ExactID(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "FDA-2024-001", recallPayloadFixture("Infant Sleeper"))
	ts.putRecall(t, "FDA-2024-002", recallPayloadFixture("Toy Crane"))

	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{"id": "FDA-2024-001"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBody[searchResponse](t, w)
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].ID != "FDA-2024-001" || resp.Items[0].Score != 1.0 {
		t.Errorf("unexpected item %+v", resp.Items[0])
	}
	if resp.NextCursor != nil {
		t.Error("exact lookups must not paginate")
	}
}

func TestSearch_ExactIDMissIsEmptyPage(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{"id": "missing"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an exact miss, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[searchResponse](t, w)
	if len(resp.Items) != 0 {
		t.Errorf("expected an empty page, got %d items", len(resp.Items))
	}
}

func TestSearch_KeywordConjunction(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "r1", map[string]any{
		"name": "Organic Baby Food", "recalled_at": "2024-03-01",
	})
	ts.putRecall(t, "r2", map[string]any{
		"name": "Baby Shampoo", "recalled_at": "2024-03-01",
	})

	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"keywords": []string{"baby", "organic"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[searchResponse](t, w)
	if len(resp.Items) != 1 || resp.Items[0].ID != "r1" {
		t.Errorf("expected only r1 to match both keywords, got %+v", resp.Items)
	}
}

func TestSearch_FuzzyProduct(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "r1", map[string]any{
		"name": "Triacting Night Time Cold", "recalled_at": "2024-03-01",
	})

	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"product": "Triacting Nite Time Cold",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[searchResponse](t, w)
	if len(resp.Items) != 1 {
		t.Fatalf("expected the typo variant to match, got %+v", resp.Items)
	}
	if s := resp.Items[0].Score; s <= 0 || s >= 1 {
		t.Errorf("expected a fuzzy score in (0,1), got %g", s)
	}
}

func TestSearch_PaginationWalk(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 5; i++ {
		id := "rec-" + string(rune('a'+i))
		ts.putRecall(t, id, map[string]any{
			"name": "Widget Sleeper", "category": "nursery", "recalled_at": "2024-03-01",
		})
	}

	seen := make(map[string]bool)
	body := map[string]any{"category": "nursery", "page_size": 2}
	pages := 0
	for {
		w := ts.do(t, http.MethodPost, "/api/v1/search", body)
		if w.Code != http.StatusOK {
			t.Fatalf("page %d: status %d: %s", pages, w.Code, w.Body.String())
		}
		resp := decodeBody[searchResponse](t, w)
		for _, it := range resp.Items {
			if seen[it.ID] {
				t.Errorf("item %s served twice", it.ID)
			}
			seen[it.ID] = true
		}
		pages++
		if resp.NextCursor == nil {
			break
		}
		body["cursor"] = *resp.NextCursor
	}

	if len(seen) != 5 {
		t.Errorf("expected all 5 records across pages, got %d", len(seen))
	}
	if pages != 3 {
		t.Errorf("expected 3 pages of size 2, got %d", pages)
	}
}

func TestSearch_TamperedCursorIs400(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"category": "nursery", "cursor": "forged.token",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[errorResponse](t, w)
	if resp.Code != codeInvalidCursor {
		t.Errorf("expected code %q, got %q", codeInvalidCursor, resp.Code)
	}
}

func TestSearch_CursorFilterMismatchIs400(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.putRecall(t, "rec-"+string(rune('a'+i)), map[string]any{
			"name": "Sleeper", "category": "nursery", "recalled_at": "2024-03-01",
		})
	}

	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"category": "nursery", "page_size": 2,
	})
	resp := decodeBody[searchResponse](t, w)
	if resp.NextCursor == nil {
		t.Fatal("expected a continuation cursor")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"category": "bath", "cursor": *resp.NextCursor,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	errResp := decodeBody[errorResponse](t, w)
	if errResp.Code != codeCursorFilterMismatch {
		t.Errorf("expected code %q, got %q", codeCursorFilterMismatch, errResp.Code)
	}
}

func TestSearch_EmptyQueryIs400(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSearch_SetsCacheHeaders(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/search", map[string]any{"category": "nursery"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected an ETag on search responses")
	}
	if w.Header().Get("Cache-Control") != "public, max-age=5" {
		t.Errorf("unexpected Cache-Control %q", w.Header().Get("Cache-Control"))
	}
}

func TestGetRecall(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "FDA-2024-001", recallPayloadFixture("Infant Sleeper"))

	w := ts.do(t, http.MethodGet, "/api/v1/recalls/FDA-2024-001", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[recallResponse](t, w)
	if resp.ID != "FDA-2024-001" || resp.Name != "Infant Sleeper" {
		t.Errorf("unexpected record %+v", resp)
	}
	if w.Header().Get("ETag") == "" || w.Header().Get("Last-Modified") == "" {
		t.Error("expected ETag and Last-Modified on detail responses")
	}
	if w.Header().Get("Cache-Control") != "public, max-age=300, stale-while-revalidate=60" {
		t.Errorf("unexpected Cache-Control %q", w.Header().Get("Cache-Control"))
	}
}

func TestGetRecall_NotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/recalls/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[errorResponse](t, w)
	if resp.Code != codeRecallNotFound {
		t.Errorf("expected code %q, got %q", codeRecallNotFound, resp.Code)
	}
}

func TestGetRecall_ConditionalRevalidation(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "FDA-2024-001", recallPayloadFixture("Infant Sleeper"))

	first := ts.do(t, http.MethodGet, "/api/v1/recalls/FDA-2024-001", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	w := ts.doWithHeader(t, http.MethodGet, "/api/v1/recalls/FDA-2024-001", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Error("a 304 must carry no body")
	}

	// Re-ingestion changes the watermark; the old validator no longer matches.
	ts.putRecall(t, "FDA-2024-001", recallPayloadFixture("Inclined Infant Sleeper"))
	w = ts.doWithHeader(t, http.MethodGet, "/api/v1/recalls/FDA-2024-001", "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after the record changed, got %d", w.Code)
	}
}

func TestUpsertRecall_CreatedThenUpdated(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/v1/recalls/FDA-2024-001", recallPayloadFixture("Infant Sleeper"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for a first-seen ID, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/recalls/FDA-2024-001" {
		t.Errorf("unexpected Location %q", loc)
	}
	out := decodeBody[upsertOutcome](t, w)
	if out.Status != "inserted" {
		t.Errorf("expected inserted, got %q", out.Status)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/recalls/FDA-2024-001", recallPayloadFixture("Inclined Infant Sleeper"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a re-ingestion, got %d: %s", w.Code, w.Body.String())
	}
	out = decodeBody[upsertOutcome](t, w)
	if out.Status != "updated" {
		t.Errorf("expected updated, got %q", out.Status)
	}
}

func TestUpsertRecall_ValidationFailure(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/api/v1/recalls/bad%20id", map[string]any{
		"name": "x", "recalled_at": "2024-03-01",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBatchUpsert_MixedOutcomes(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "existing", recallPayloadFixture("Old Product"))

	w := ts.do(t, http.MethodPost, "/api/v1/recalls/batch", map[string]any{
		"records": []map[string]any{
			{"id": "existing", "name": "Old Product v2", "recalled_at": "2024-03-01"},
			{"id": "brand-new", "name": "New Product", "recalled_at": "2024-03-01"},
			{"id": "bad id", "name": "Broken", "recalled_at": "2024-03-01"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBody[batchUpsertResponse](t, w)
	if resp.Inserted != 1 || resp.Updated != 1 || resp.Failed != 1 {
		t.Errorf("expected 1/1/1 outcomes, got %d/%d/%d", resp.Inserted, resp.Updated, resp.Failed)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 per-record results, got %d", len(resp.Items))
	}
	// Results keep the request order.
	if resp.Items[0].Status != "updated" || resp.Items[1].Status != "inserted" || resp.Items[2].Status != "error" {
		t.Errorf("unexpected per-record statuses: %+v", resp.Items)
	}
	if resp.Items[2].Error == nil {
		t.Error("expected an error detail for the rejected record")
	}
}

func TestBatchUpsert_EmptyIs400(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/recalls/batch", map[string]any{"records": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBatchUpsert_InvalidatesSearchCache(t *testing.T) {
	ts := newTestServer(t)
	ts.putRecall(t, "r1", map[string]any{
		"name": "Sleeper", "category": "nursery", "recalled_at": "2024-03-01",
	})

	body := map[string]any{"category": "nursery"}
	first := decodeBody[searchResponse](t, ts.do(t, http.MethodPost, "/api/v1/search", body))
	if len(first.Items) != 1 {
		t.Fatalf("expected 1 item before ingestion, got %d", len(first.Items))
	}

	// A new matching record lands; the micro-cache entry must not survive.
	ts.putRecall(t, "r2", map[string]any{
		"name": "Crib", "category": "nursery", "recalled_at": "2024-03-01",
	})

	second := decodeBody[searchResponse](t, ts.do(t, http.MethodPost, "/api/v1/search", body))
	if len(second.Items) != 2 {
		t.Errorf("expected the new record after the epoch bump, got %d items", len(second.Items))
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

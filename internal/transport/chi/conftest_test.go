package chi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/recallwatch/recallsearch/internal/cache"
	"github.com/recallwatch/recallsearch/internal/db/memory"
	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	recordrepo "github.com/recallwatch/recallsearch/internal/repository/record"
	healthuc "github.com/recallwatch/recallsearch/internal/usecase/health"
	ingestuc "github.com/recallwatch/recallsearch/internal/usecase/ingest"
	pageuc "github.com/recallwatch/recallsearch/internal/usecase/page"
	rankeruc "github.com/recallwatch/recallsearch/internal/usecase/ranker"
)

// testServer wires real services over an in-memory record store and cache
// backend, behind a chi router, like the composition root does.
type testServer struct {
	router *chi.Mux
	repo   *recordrepo.Repo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithKeys(t, nil)
}

func newTestServerWithKeys(t *testing.T, apiKeys []string) *testServer {
	t.Helper()

	repo, err := recordrepo.Open(":memory:")
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	store := memory.NewStore()
	micro := cache.New(store, time.Minute, nil, zap.NewNop())

	codec, err := cursor.NewCodec([]byte("test-secret"))
	if err != nil {
		t.Fatalf("cursor codec: %v", err)
	}

	ranker := rankeruc.New(repo)
	pages := pageuc.New(ranker, micro, codec)
	ingest := ingestuc.New(repo, micro, nil, zap.NewNop())
	health := healthuc.New(repo, store)

	srv := NewServer(pages, ingest, repo, health, zap.NewNop()).WithAPIKeys(apiKeys)
	r := chi.NewRouter()
	srv.Routes(r)

	return &testServer{router: r, repo: repo}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) doWithHeader(t *testing.T, method, path, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(header, value)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) putRecall(t *testing.T, id string, payload map[string]any) {
	t.Helper()
	w := ts.do(t, http.MethodPut, "/api/v1/recalls/"+id, payload)
	if w.Code != http.StatusCreated && w.Code != http.StatusOK {
		t.Fatalf("put recall %s: status %d, body %s", id, w.Code, w.Body.String())
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func recallPayloadFixture(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"brand":       "BrandCo",
		"severity":    "high",
		"category":    "nursery",
		"recalled_at": "2024-03-01",
	}
}

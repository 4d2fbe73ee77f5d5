package page

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/recallwatch/recallsearch/internal/domain/record"
	"github.com/recallwatch/recallsearch/internal/domain/search/cursor"
	"github.com/recallwatch/recallsearch/internal/domain/search/query"
	"github.com/recallwatch/recallsearch/internal/domain/search/result"
)

// mockRanker serves ranked items from a fixed ordered list, honoring the
// continuation key and limit the way the real ranker does.
type mockRanker struct {
	items    []result.Item
	err      error
	errCount int // fail this many calls before succeeding
	calls    int
	lastAsOf time.Time
}

func (m *mockRanker) Rank(
	_ context.Context, _ *query.Query, asOf time.Time, after *cursor.Key, limit int,
) ([]result.Item, error) {
	m.calls++
	m.lastAsOf = asOf
	if m.err != nil {
		if m.errCount == 0 || m.calls <= m.errCount {
			return nil, m.err
		}
	}

	out := make([]result.Item, 0, limit)
	for i := range m.items {
		it := &m.items[i]
		if after != nil {
			key := cursor.Key{Score: it.Score(), Date: it.RecalledAt(), ID: it.ID()}
			if !after.Less(key) {
				continue
			}
		}
		out = append(out, *it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// mockCache is an in-test ResultCache with a controllable epoch.
type mockCache struct {
	epoch    int64
	epochErr error
	pages    map[string][]byte
	puts     int
	gets     int
}

func newMockCache() *mockCache {
	return &mockCache{pages: make(map[string][]byte)}
}

func (m *mockCache) key(fp string, ps int, tok string, epoch int64) string {
	return fmt.Sprintf("%s|%d|%s|%d", fp, ps, tok, epoch)
}

func (m *mockCache) Epoch(_ context.Context) (int64, error) {
	return m.epoch, m.epochErr
}

func (m *mockCache) GetPage(_ context.Context, fp string, ps int, tok string, epoch int64) ([]byte, bool) {
	m.gets++
	data, ok := m.pages[m.key(fp, ps, tok, epoch)]
	return data, ok
}

func (m *mockCache) PutPage(_ context.Context, fp string, ps int, tok string, epoch int64, data []byte) {
	m.puts++
	m.pages[m.key(fp, ps, tok, epoch)] = data
}

func testItems(t *testing.T, n int, recalledAt time.Time) []result.Item {
	t.Helper()
	items := make([]result.Item, n)
	for i := range items {
		id := "rec-" + string(rune('a'+i))
		rec := record.Reconstruct(id, "Product "+id, "", "", "",
			record.SeverityUnspecified, "", recalledAt, recalledAt)
		items[i] = result.FromRecord(&rec, 1.0)
	}
	return items
}

func testQuery(t *testing.T, pageSize int) *query.Query {
	t.Helper()
	q, err := query.New("", "", []string{"product"}, "", record.SeverityUnspecified,
		time.Time{}, time.Time{}, pageSize)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func testService(t *testing.T, ranker Ranker, cache ResultCache) *Service {
	t.Helper()
	codec, err := cursor.NewCodec([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return New(ranker, cache, codec)
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/counseldesk/gateway/internal/vectorstore"
	"github.com/counseldesk/gateway/pkg/retry"
)

type fakeScroller struct {
	pages []*vectorstore.Page
	err   error
	calls int
}

func (f *fakeScroller) ScrollPage(ctx context.Context, offset any) (*vectorstore.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return &vectorstore.Page{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func point(payload map[string]any) vectorstore.Point {
	return vectorstore.Point{ID: "p", Payload: payload}
}

func singlePage(points ...vectorstore.Point) []*vectorstore.Page {
	return []*vectorstore.Page{{Points: points}}
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 1}
}

func TestDeriveRepoIsTotal(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"form submission", map[string]any{"source_url": "form://acme/Policy A"}, "acme"},
		{"form without segment", map[string]any{"source_url": "form://"}, "general"},
		{"drive import", map[string]any{"source_url": "gdrive://folder/doc"}, "google-drive"},
		{"explicit repo field", map[string]any{"repo": "contracts"}, "contracts"},
		{"form wins over repo field", map[string]any{"source_url": "form://acme/x", "repo": "contracts"}, "acme"},
		{"plain url with repo", map[string]any{"source_url": "https://example.com/doc", "repo": "contracts"}, "contracts"},
		{"nothing", map[string]any{}, "ungrouped"},
		{"nil payload", nil, "ungrouped"},
		{"non-string fields", map[string]any{"source_url": 42, "repo": true}, "ungrouped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveRepo(tt.payload)
			if got == "" {
				t.Fatal("repo derivation returned empty string")
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestListGroupsChunksIntoDocuments(t *testing.T) {
	scroller := &fakeScroller{pages: singlePage(
		point(map[string]any{
			"source_url":    "form://acme/Policy A",
			"title":         "Policy A",
			"document_type": "policy",
			"jurisdictions": []any{"US", "EU"},
			"topics":        []any{"termination"},
			"chunk_index":   float64(0),
		}),
		point(map[string]any{
			"source_url":  "form://acme/Policy A",
			"title":       "Policy A",
			"chunk_index": float64(1),
		}),
	)}

	agg := NewAggregator(scroller, nil, 50, fastRetry())
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cat.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(cat.Documents))
	}
	doc := cat.Documents[0]
	if doc.Repo != "acme" || doc.Title != "Policy A" {
		t.Errorf("unexpected key: %s/%s", doc.Repo, doc.Title)
	}
	if doc.ChunkCount != 2 {
		t.Errorf("expected 2 chunks, got %d", doc.ChunkCount)
	}
	// The first point seeds the descriptive fields.
	if doc.DocumentType != "policy" || len(doc.Jurisdictions) != 2 {
		t.Errorf("descriptive fields not seeded from first point: %+v", doc)
	}
	if cat.TotalChunks != 2 {
		t.Errorf("expected total chunks 2, got %d", cat.TotalChunks)
	}
	if cat.Truncated {
		t.Error("single-page scan must not be truncated")
	}
}

func TestListUntitledDefault(t *testing.T) {
	scroller := &fakeScroller{pages: singlePage(point(map[string]any{"repo": "contracts"}))}

	agg := NewAggregator(scroller, nil, 50, fastRetry())
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat.Documents[0].Title != "Untitled" {
		t.Errorf("expected Untitled, got %q", cat.Documents[0].Title)
	}
}

func TestListRepoSummariesSortedByDocCount(t *testing.T) {
	scroller := &fakeScroller{pages: singlePage(
		point(map[string]any{"repo": "small", "title": "Doc 1"}),
		point(map[string]any{"repo": "big", "title": "Doc 2"}),
		point(map[string]any{"repo": "big", "title": "Doc 3"}),
		point(map[string]any{"repo": "big", "title": "Doc 3"}),
	)}

	agg := NewAggregator(scroller, nil, 50, fastRetry())
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cat.Repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(cat.Repos))
	}
	if cat.Repos[0].Name != "big" || cat.Repos[0].DocCount != 2 || cat.Repos[0].TotalChunks != 3 {
		t.Errorf("unexpected first summary: %+v", cat.Repos[0])
	}
	if cat.Repos[1].Name != "small" || cat.Repos[1].DocCount != 1 {
		t.Errorf("unexpected second summary: %+v", cat.Repos[1])
	}
}

func TestListGroupingIsOrderInsensitive(t *testing.T) {
	points := []vectorstore.Point{
		point(map[string]any{"repo": "a", "title": "One"}),
		point(map[string]any{"repo": "b", "title": "Two"}),
		point(map[string]any{"repo": "a", "title": "One"}),
	}
	reversed := []vectorstore.Point{points[2], points[1], points[0]}

	collect := func(input []vectorstore.Point) map[string]int {
		scroller := &fakeScroller{pages: singlePage(input...)}
		agg := NewAggregator(scroller, nil, 50, fastRetry())
		cat, err := agg.List(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := make(map[string]int)
		for _, doc := range cat.Documents {
			got[doc.Repo+"/"+doc.Title] = doc.ChunkCount
		}
		return got
	}

	forward := collect(points)
	backward := collect(reversed)

	if len(forward) != len(backward) {
		t.Fatalf("document sets differ: %v vs %v", forward, backward)
	}
	for key, chunks := range forward {
		if backward[key] != chunks {
			t.Errorf("key %s: %d vs %d chunks", key, chunks, backward[key])
		}
	}
}

func TestListFollowsCursorAcrossPages(t *testing.T) {
	scroller := &fakeScroller{pages: []*vectorstore.Page{
		{
			Points:     []vectorstore.Point{point(map[string]any{"repo": "a", "title": "One"})},
			NextOffset: "cursor-2",
		},
		{
			Points: []vectorstore.Point{point(map[string]any{"repo": "a", "title": "One"})},
		},
	}}

	agg := NewAggregator(scroller, nil, 50, fastRetry())
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scroller.calls != 2 {
		t.Errorf("expected 2 page fetches, got %d", scroller.calls)
	}
	if cat.Documents[0].ChunkCount != 2 {
		t.Errorf("expected chunks accumulated across pages, got %d", cat.Documents[0].ChunkCount)
	}
	if cat.Truncated {
		t.Error("complete scan must not be truncated")
	}
}

func TestListPageCeilingSetsTruncated(t *testing.T) {
	// A misbehaving store that always hands back another cursor.
	endless := &endlessScroller{}

	agg := NewAggregator(endless, nil, 3, fastRetry())
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cat.Truncated {
		t.Error("expected truncated catalog when the page ceiling is hit")
	}
	if endless.calls != 3 {
		t.Errorf("expected exactly 3 page fetches, got %d", endless.calls)
	}
}

type endlessScroller struct {
	calls int
}

func (e *endlessScroller) ScrollPage(ctx context.Context, offset any) (*vectorstore.Page, error) {
	e.calls++
	return &vectorstore.Page{
		Points:     []vectorstore.Point{{Payload: map[string]any{"repo": "loop", "title": "Doc"}}},
		NextOffset: e.calls,
	}, nil
}

func TestListAbortsOnPageFailure(t *testing.T) {
	scroller := &fakeScroller{err: errors.New("connection reset")}

	agg := NewAggregator(scroller, nil, 50, fastRetry())
	cat, err := agg.List(context.Background())

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if cat != nil {
		t.Error("no partial catalog may be returned on failure")
	}
}

func TestListRetriesPageBeforeFailing(t *testing.T) {
	scroller := &fakeScroller{err: errors.New("flaky")}
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 1}

	agg := NewAggregator(scroller, nil, 50, cfg)
	if _, err := agg.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if scroller.calls != 3 {
		t.Errorf("expected 3 attempts on the failing page, got %d", scroller.calls)
	}
}

type fakeCache struct {
	snapshot    *Catalog
	gets, sets  int
	invalidated int
}

func (f *fakeCache) Get(ctx context.Context, dst any) (bool, error) {
	f.gets++
	if f.snapshot == nil {
		return false, nil
	}
	*(dst.(*Catalog)) = *f.snapshot
	return true, nil
}

func (f *fakeCache) Set(ctx context.Context, v any) error {
	f.sets++
	c := v.(*Catalog)
	f.snapshot = c
	return nil
}

func TestListUsesSnapshotCache(t *testing.T) {
	scroller := &fakeScroller{pages: singlePage(point(map[string]any{"repo": "a", "title": "One"}))}
	cache := &fakeCache{}

	agg := NewAggregator(scroller, cache, 50, fastRetry())

	if _, err := agg.List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("expected snapshot to be cached, sets=%d", cache.sets)
	}

	calls := scroller.calls
	cat, err := agg.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scroller.calls != calls {
		t.Error("cache hit must not trigger a scan")
	}
	if len(cat.Documents) != 1 {
		t.Errorf("cached catalog lost documents: %+v", cat)
	}
}

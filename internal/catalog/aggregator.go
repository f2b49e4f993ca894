package catalog

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/metrics"
	"github.com/counseldesk/gateway/internal/vectorstore"
	"github.com/counseldesk/gateway/pkg/logger"
	"github.com/counseldesk/gateway/pkg/retry"
)

// Scroller pages through the vector store's point listing.
type Scroller interface {
	ScrollPage(ctx context.Context, offset any) (*vectorstore.Page, error)
}

// SnapshotCache holds one serialized catalog snapshot. Both methods are
// best-effort; the aggregator works without a cache.
type SnapshotCache interface {
	Get(ctx context.Context, dst any) (bool, error)
	Set(ctx context.Context, v any) error
}

type Aggregator struct {
	scroller Scroller
	cache    SnapshotCache
	maxPages int
	retryCfg retry.Config
}

// NewAggregator builds an aggregator. cache may be nil, in which case
// every listing scans the store.
func NewAggregator(scroller Scroller, cache SnapshotCache, maxPages int, retryCfg retry.Config) *Aggregator {
	if maxPages <= 0 {
		maxPages = 50
	}

	return &Aggregator{
		scroller: scroller,
		cache:    cache,
		maxPages: maxPages,
		retryCfg: retryCfg,
	}
}

// List pages through the store, deduplicates chunks into logical
// documents grouped by (repo, title), and folds repo summaries. Any
// page-fetch failure (after the per-page retry budget) aborts the whole
// listing; no partial catalog is returned.
func (a *Aggregator) List(ctx context.Context) (*Catalog, error) {
	if a.cache != nil {
		var cached Catalog
		hit, err := a.cache.Get(ctx, &cached)
		if err != nil {
			logger.Warn("Catalog cache read failed", zap.Error(err))
		} else if hit {
			metrics.CatalogCacheHits.Inc()
			return &cached, nil
		}
		metrics.CatalogCacheMisses.Inc()
	}

	grouped := newGrouping()
	truncated := false
	pages := 0

	var offset any
	for {
		if pages >= a.maxPages {
			truncated = true
			logger.Warn("Catalog scan hit page ceiling, result truncated",
				zap.Int("max_pages", a.maxPages),
			)
			break
		}

		var page *vectorstore.Page
		err := retry.Do(ctx, a.retryCfg, func() error {
			var ferr error
			page, ferr = a.scroller.ScrollPage(ctx, offset)
			return ferr
		})
		if err != nil {
			metrics.CatalogScans.WithLabelValues("error").Inc()
			return nil, &UnavailableError{Err: err}
		}
		pages++

		for _, point := range page.Points {
			grouped.add(point)
		}

		if page.NextOffset == nil || len(page.Points) == 0 {
			break
		}
		offset = page.NextOffset
	}

	result := grouped.catalog(truncated)

	metrics.CatalogScans.WithLabelValues("ok").Inc()
	metrics.CatalogPagesPerScan.Observe(float64(pages))
	logger.Info("Catalog aggregated",
		zap.Int("pages", pages),
		zap.Int("documents", len(result.Documents)),
		zap.Int("repos", len(result.Repos)),
		zap.Int("total_chunks", result.TotalChunks),
		zap.Bool("truncated", truncated),
	)

	if a.cache != nil {
		if err := a.cache.Set(ctx, result); err != nil {
			logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

type groupKey struct {
	repo  string
	title string
}

// grouping accumulates points into logical documents, preserving
// first-encountered order so equal inputs yield equal outputs.
type grouping struct {
	docs  map[groupKey]*LogicalDocument
	order []groupKey
}

func newGrouping() *grouping {
	return &grouping{docs: make(map[groupKey]*LogicalDocument)}
}

func (g *grouping) add(point vectorstore.Point) {
	title := stringField(point.Payload, "title")
	if title == "" {
		title = "Untitled"
	}

	key := groupKey{repo: deriveRepo(point.Payload), title: title}

	doc, ok := g.docs[key]
	if !ok {
		// The first point observed for a key seeds the descriptive
		// fields; documents are assumed internally consistent.
		doc = &LogicalDocument{
			Title:         title,
			Repo:          key.repo,
			DocumentType:  stringField(point.Payload, "document_type"),
			Jurisdictions: stringSliceField(point.Payload, "jurisdictions"),
			Topics:        stringSliceField(point.Payload, "topics"),
		}
		g.docs[key] = doc
		g.order = append(g.order, key)
	}

	doc.ChunkCount++
}

func (g *grouping) catalog(truncated bool) *Catalog {
	documents := make([]LogicalDocument, 0, len(g.order))
	summaries := make(map[string]*RepoSummary)
	repoOrder := make([]string, 0)
	totalChunks := 0

	for _, key := range g.order {
		doc := g.docs[key]
		documents = append(documents, *doc)
		totalChunks += doc.ChunkCount

		summary, ok := summaries[doc.Repo]
		if !ok {
			summary = &RepoSummary{Name: doc.Repo}
			summaries[doc.Repo] = summary
			repoOrder = append(repoOrder, doc.Repo)
		}
		summary.DocCount++
		summary.TotalChunks += doc.ChunkCount
	}

	repos := make([]RepoSummary, 0, len(repoOrder))
	for _, name := range repoOrder {
		repos = append(repos, *summaries[name])
	}
	// Ties keep first-encountered order.
	sort.SliceStable(repos, func(i, j int) bool {
		return repos[i].DocCount > repos[j].DocCount
	})

	return &Catalog{
		Repos:       repos,
		Documents:   documents,
		TotalChunks: totalChunks,
		Truncated:   truncated,
	}
}

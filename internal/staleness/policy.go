// Package staleness couples ingestion events to query-log invalidation.
//
// The policy is deliberately conservative: every fresh log entry goes
// stale on any successful ingestion, because partial relevance cannot
// be determined without re-running retrieval. Citation-aware
// invalidation is explicitly out of scope.
package staleness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/metrics"
	"github.com/counseldesk/gateway/pkg/logger"
)

// LogStore is the slice of the query log store the policy needs.
type LogStore interface {
	MarkAllFreshAsStale(ctx context.Context, reason string) (int64, error)
}

// CatalogInvalidator drops the cached catalog snapshot.
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context) error
}

// Notifier publishes activity events to connected observers.
type Notifier interface {
	Publish(eventType, detail string)
}

type Policy struct {
	store    LogStore
	cache    CatalogInvalidator
	notifier Notifier
}

// NewPolicy builds the invalidation policy. cache and notifier may be
// nil.
func NewPolicy(store LogStore, cache CatalogInvalidator, notifier Notifier) *Policy {
	return &Policy{store: store, cache: cache, notifier: notifier}
}

// OnIngest runs after a successful ingestion, before success is
// acknowledged to the caller. Failures here are logged and swallowed:
// invalidation must never break the ingestion response.
func (p *Policy) OnIngest(ctx context.Context, title string, at time.Time) {
	reason := fmt.Sprintf("Knowledge base updated: ingested %q at %s", title, at.UTC().Format(time.RFC3339))

	marked, err := p.store.MarkAllFreshAsStale(ctx, reason)
	if err != nil {
		logger.Error("Failed to mark query log stale after ingestion",
			zap.String("title", title),
			zap.Error(err),
		)
	} else {
		metrics.StaleRowsMarked.Add(float64(marked))
	}

	if p.cache != nil {
		if err := p.cache.InvalidateCatalog(ctx); err != nil {
			logger.Warn("Failed to invalidate catalog snapshot", zap.Error(err))
		}
	}

	if p.notifier != nil {
		p.notifier.Publish("stale", reason)
	}
}

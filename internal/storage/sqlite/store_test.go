package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/counseldesk/gateway/internal/storage/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "querylog.db"))
	t.Cleanup(func() { store.Close() })
	return store
}

func appendEntry(t *testing.T, store *Store, question string) *models.QueryLogEntry {
	t.Helper()
	entry := &models.QueryLogEntry{
		Question:        question,
		Answer:          "answer",
		Confidence:      "HIGH",
		Verdict:         "APPROVED",
		QualityScore:    0.9,
		CitationCount:   2,
		Routing:         "auto",
		ProcessingTimeS: 1.5,
	}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	return entry
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)

	appendEntry(t, store, "first question here")
	appendEntry(t, store, "second question here")

	entries, err := store.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Question != "second question here" {
		t.Errorf("expected newest first, got %q", entries[0].Question)
	}
	if entries[0].Stale {
		t.Error("fresh entry must not be stale")
	}
	if entries[0].Feedback != nil {
		t.Error("new entry must have no feedback")
	}
	if entries[0].CitationCount != 2 {
		t.Errorf("expected citation count 2, got %d", entries[0].CitationCount)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		appendEntry(t, store, "a question here")
	}

	entries, err := store.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestMarkAllFreshAsStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		appendEntry(t, store, "a question here")
	}

	marked, err := store.MarkAllFreshAsStale(ctx, `Knowledge base updated: ingested "Policy B" at 2026-01-01T00:00:00Z`)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if marked != 3 {
		t.Errorf("expected 3 rows marked, got %d", marked)
	}

	entries, err := store.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	for _, e := range entries {
		if !e.Stale {
			t.Errorf("entry %d still fresh", e.ID)
		}
		if e.StaleReason == nil || !strings.Contains(*e.StaleReason, "Policy B") {
			t.Errorf("entry %d missing stale reason", e.ID)
		}
	}

	// Idempotent: nothing fresh remains, so a second run touches nothing.
	marked, err = store.MarkAllFreshAsStale(ctx, "second run")
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if marked != 0 {
		t.Errorf("expected 0 rows on second run, got %d", marked)
	}

	// A new insert after the marking is fresh again.
	appendEntry(t, store, "a newer question")
	marked, err = store.MarkAllFreshAsStale(ctx, "third run")
	if err != nil {
		t.Fatalf("third mark failed: %v", err)
	}
	if marked != 1 {
		t.Errorf("expected only the new row marked, got %d", marked)
	}
}

func TestAttachFeedbackTargetsNewestWithout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := appendEntry(t, store, "same question text")
	second := appendEntry(t, store, "same question text")

	if err := store.AttachFeedback(ctx, "same question text", models.FeedbackUp); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	entries, _ := store.Recent(ctx, 100)
	byID := make(map[int64]models.QueryLogEntry)
	for _, e := range entries {
		byID[e.ID] = e
	}

	if fb := byID[second.ID].Feedback; fb == nil || *fb != models.FeedbackUp {
		t.Error("newest row did not get the feedback")
	}
	if byID[first.ID].Feedback != nil {
		t.Error("older row must be untouched")
	}

	// The next attach lands on the remaining feedback-less row.
	if err := store.AttachFeedback(ctx, "same question text", models.FeedbackDown); err != nil {
		t.Fatalf("second attach failed: %v", err)
	}
	entries, _ = store.Recent(ctx, 100)
	for _, e := range entries {
		if e.ID == first.ID && (e.Feedback == nil || *e.Feedback != models.FeedbackDown) {
			t.Error("older row did not get the second feedback")
		}
	}
}

func TestAttachFeedbackNoMatchIsNoop(t *testing.T) {
	store := newTestStore(t)

	if err := store.AttachFeedback(context.Background(), "never asked", models.FeedbackUp); err != nil {
		t.Errorf("no-op attach must not error, got %v", err)
	}
}

func TestSummaryStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.SummaryStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalQueries != 0 {
		t.Errorf("expected empty log, got %d", stats.TotalQueries)
	}
	// Averages over zero rows are an explicit absence.
	if stats.AvgQualityScore != nil || stats.AvgProcessingTimeS != nil {
		t.Error("averages over an empty log must be nil")
	}

	appendEntry(t, store, "a question here")
	appendEntry(t, store, "a question here")
	store.AttachFeedback(ctx, "a question here", models.FeedbackUp)
	store.MarkAllFreshAsStale(ctx, "reason")

	stats, err = store.SummaryStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalQueries != 2 || stats.StaleCount != 2 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.FeedbackUp != 1 || stats.FeedbackDown != 0 {
		t.Errorf("unexpected feedback counts: %+v", stats)
	}
	if stats.AvgQualityScore == nil || *stats.AvgQualityScore != 0.9 {
		t.Errorf("unexpected avg quality: %v", stats.AvgQualityScore)
	}
	if stats.AvgProcessingTimeS == nil || *stats.AvgProcessingTimeS != 1.5 {
		t.Errorf("unexpected avg processing time: %v", stats.AvgProcessingTimeS)
	}
}

func TestUnavailableBackendDegrades(t *testing.T) {
	// Parent directory does not exist, so the open fails on first use.
	store := NewStore(filepath.Join(t.TempDir(), "missing", "querylog.db"))
	ctx := context.Background()

	// Writes degrade to no-ops.
	if err := store.Append(ctx, &models.QueryLogEntry{Question: "q"}); err != nil {
		t.Errorf("degraded append must not error, got %v", err)
	}
	if _, err := store.MarkAllFreshAsStale(ctx, "reason"); err != nil {
		t.Errorf("degraded mark must not error, got %v", err)
	}
	if err := store.AttachFeedback(ctx, "q", models.FeedbackUp); err != nil {
		t.Errorf("degraded attach must not error, got %v", err)
	}

	// Reads surface the unavailability explicitly.
	if _, err := store.Recent(ctx, 10); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.SummaryStats(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestAcquireRetriesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "late", "querylog.db"))
	ctx := context.Background()

	if _, err := store.Recent(ctx, 10); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected unavailable before directory exists, got %v", err)
	}

	// Once the backend becomes reachable the next acquisition succeeds;
	// a failed open must not wedge the store permanently.
	if err := os.MkdirAll(filepath.Join(dir, "late"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Recent(ctx, 10); err != nil {
		t.Errorf("expected recovery after backend became available, got %v", err)
	}

	store.Close()
}

func TestAppendIsInsertOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e1 := appendEntry(t, store, "duplicate question")
	e2 := appendEntry(t, store, "duplicate question")

	if e1.ID == e2.ID {
		t.Error("appends must create distinct rows")
	}

	entries, _ := store.Recent(ctx, 100)
	if len(entries) != 2 {
		t.Errorf("expected 2 rows, got %d", len(entries))
	}
}

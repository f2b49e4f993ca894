package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/ingestion"
	"github.com/counseldesk/gateway/internal/metrics"
	"github.com/counseldesk/gateway/internal/staleness"
	"github.com/counseldesk/gateway/internal/storage/models"
	"github.com/counseldesk/gateway/pkg/circuitbreaker"
	"github.com/counseldesk/gateway/pkg/logger"
)

const minQuestionRunes = 5

// Caller performs one JSON-over-HTTP upstream call.
type Caller interface {
	Call(ctx context.Context, targetURL string, payload any, timeout time.Duration) (map[string]any, error)
}

// LogStore is the slice of the query log store the gateway writes to.
type LogStore interface {
	Append(ctx context.Context, entry *models.QueryLogEntry) error
	AttachFeedback(ctx context.Context, question, feedback string) error
}

// Notifier publishes activity events to connected observers.
type Notifier interface {
	Publish(eventType, detail string)
}

type Options struct {
	AskURL        string
	IngestURL     string
	AskTimeout    time.Duration
	IngestTimeout time.Duration
}

// Service orchestrates the ask/ingest/feedback flows: validation,
// upstream calls, audit logging and the staleness hook.
type Service struct {
	upstream Caller
	store    LogStore
	policy   *staleness.Policy
	breaker  *circuitbreaker.Breaker
	notifier Notifier
	opts     Options
}

// NewService wires the gateway. breaker and notifier may be nil.
func NewService(upstream Caller, store LogStore, policy *staleness.Policy, breaker *circuitbreaker.Breaker, notifier Notifier, opts Options) *Service {
	return &Service{
		upstream: upstream,
		store:    store,
		policy:   policy,
		breaker:  breaker,
		notifier: notifier,
		opts:     opts,
	}
}

// Ask proxies a question to the answering service and records the
// transaction. Audit failures never alter the answer: the upstream
// response is returned even when the append fails.
func (s *Service) Ask(ctx context.Context, question string) (map[string]any, error) {
	requestID := uuid.New().String()

	trimmed := strings.TrimSpace(question)
	if utf8.RuneCountInString(trimmed) < minQuestionRunes {
		return nil, &ValidationError{Msg: fmt.Sprintf("question must be at least %d characters", minQuestionRunes)}
	}

	logger.Info("Processing question",
		zap.String("request_id", requestID),
		zap.String("question", trimmed),
	)

	payload := map[string]any{
		"question": trimmed,
		"channel":  "web",
		"user":     "anonymous",
	}

	start := time.Now()
	var resp map[string]any
	call := func() error {
		var callErr error
		resp, callErr = s.upstream.Call(ctx, s.opts.AskURL, payload, s.opts.AskTimeout)
		return callErr
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(call)
	} else {
		err = call()
	}
	metrics.UpstreamDuration.WithLabelValues("ask").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AskTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	entry := entryFromResponse(trimmed, resp)
	if appendErr := s.store.Append(ctx, entry); appendErr != nil {
		// Log-and-ignore boundary: the answer was already computed.
		logger.Error("Failed to append query log entry",
			zap.String("request_id", requestID),
			zap.Error(appendErr),
		)
	}

	metrics.AskTotal.WithLabelValues("ok").Inc()
	if s.notifier != nil {
		s.notifier.Publish("ask", trimmed)
	}

	return resp, nil
}

type IngestRequest struct {
	Title        string
	DocumentType string
	Repo         string
	Content      string
}

// Ingest forwards a document to the ingestion service. On success the
// staleness policy runs before the upstream body is handed back
// verbatim.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (map[string]any, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.Content) == "" {
		return nil, &ValidationError{Msg: "title and content are required"}
	}

	docType := req.DocumentType
	if docType == "" {
		docType = "document"
	}
	repo := strings.TrimSpace(req.Repo)
	if repo == "" {
		repo = "general"
	}

	payload := map[string]any{
		"title":         title,
		"document_type": docType,
		"repo":          repo,
		"content":       ingestion.NormalizeContent(req.Content),
		"source_url":    fmt.Sprintf("form://%s/%s", repo, title),
		"source":        "web_form",
	}

	start := time.Now()
	resp, err := s.upstream.Call(ctx, s.opts.IngestURL, payload, s.opts.IngestTimeout)
	metrics.UpstreamDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.policy.OnIngest(ctx, title, time.Now())

	metrics.IngestTotal.WithLabelValues("ok").Inc()
	if s.notifier != nil {
		s.notifier.Publish("ingest", title)
	}

	logger.Info("Document ingested",
		zap.String("title", title),
		zap.String("repo", repo),
	)

	return resp, nil
}

// Feedback attaches up/down feedback to the most recent matching log
// entry. Unlike the ask flow, persistence failures surface here: the
// whole point of the call is the write.
func (s *Service) Feedback(ctx context.Context, question, feedback string) error {
	if feedback != models.FeedbackUp && feedback != models.FeedbackDown {
		return &ValidationError{Msg: `feedback must be "up" or "down"`}
	}

	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return &ValidationError{Msg: "question is required"}
	}

	if err := s.store.AttachFeedback(ctx, trimmed, feedback); err != nil {
		return err
	}

	metrics.FeedbackTotal.WithLabelValues(feedback).Inc()
	return nil
}

func entryFromResponse(question string, resp map[string]any) *models.QueryLogEntry {
	return &models.QueryLogEntry{
		Question:        question,
		Answer:          stringField(resp, "answer"),
		Confidence:      stringField(resp, "confidence"),
		Verdict:         stringField(resp, "judge_verdict"),
		QualityScore:    floatField(resp, "judge_quality"),
		Category:        stringField(resp, "category"),
		Complexity:      stringField(resp, "complexity"),
		CitationCount:   int(floatField(resp, "citation_count")),
		Routing:         stringField(resp, "routing"),
		ProcessingTimeS: floatField(resp, "processing_time_s"),
		CreatedAt:       time.Now(),
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

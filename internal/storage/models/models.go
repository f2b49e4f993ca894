package models

import "time"

// Feedback values accepted on a query log entry.
const (
	FeedbackUp   = "up"
	FeedbackDown = "down"
)

// QueryLogEntry is one persisted question/answer transaction. Entries
// are insert-only; feedback is set at most once and stale flips
// false→true exactly once, never back.
type QueryLogEntry struct {
	ID              int64     `json:"id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Confidence      string    `json:"confidence"`
	Verdict         string    `json:"verdict"`
	QualityScore    float64   `json:"quality_score"`
	Category        string    `json:"category"`
	Complexity      string    `json:"complexity"`
	CitationCount   int       `json:"citation_count"`
	Routing         string    `json:"routing"`
	ProcessingTimeS float64   `json:"processing_time_s"`
	Feedback        *string   `json:"feedback"`
	CreatedAt       time.Time `json:"created_at"`
	Stale           bool      `json:"stale"`
	StaleReason     *string   `json:"stale_reason"`
}

// Stats summarizes the query log. The averages are nil when the log is
// empty; an average over zero rows is an explicit absence, not zero.
type Stats struct {
	TotalQueries       int      `json:"total_queries"`
	StaleCount         int      `json:"stale_count"`
	FeedbackUp         int      `json:"feedback_up"`
	FeedbackDown       int      `json:"feedback_down"`
	AvgQualityScore    *float64 `json:"avg_quality_score"`
	AvgProcessingTimeS *float64 `json:"avg_processing_time_s"`
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/storage/models"
	"github.com/counseldesk/gateway/pkg/logger"
)

// ErrStoreUnavailable signals that the persistence backend could not be
// reached. Read operations surface it; write operations degrade to
// logged no-ops so answering and ingestion keep working.
var ErrStoreUnavailable = errors.New("query log store unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS query_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer TEXT,
	confidence TEXT,
	verdict TEXT,
	quality_score REAL DEFAULT 0,
	category TEXT,
	complexity TEXT,
	citation_count INTEGER DEFAULT 0,
	routing TEXT,
	processing_time_s REAL DEFAULT 0,
	feedback TEXT,
	created_at INTEGER NOT NULL,
	stale INTEGER DEFAULT 0,
	stale_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_query_log_question ON query_log(question);
CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);
CREATE INDEX IF NOT EXISTS idx_query_log_stale ON query_log(stale);
`

// Store persists the query log. The connection is acquired lazily on
// first use and memoized on success only: a failed open is retried on
// the next acquisition instead of wedging the process.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) acquire() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Query log store initialized", zap.String("path", s.path))

	s.db = db
	return db, nil
}

// Append inserts a new row. It never overwrites. When the backend is
// unavailable the append degrades to a logged no-op; the caller's
// answer must not depend on audit logging.
func (s *Store) Append(ctx context.Context, entry *models.QueryLogEntry) error {
	db, err := s.acquire()
	if err != nil {
		logger.Warn("Query log unavailable, append skipped", zap.Error(err))
		return nil
	}

	query := `
		INSERT INTO query_log (question, answer, confidence, verdict, quality_score,
			category, complexity, citation_count, routing, processing_time_s,
			feedback, created_at, stale, stale_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, 0, NULL)
	`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := db.ExecContext(
		ctx,
		query,
		entry.Question,
		entry.Answer,
		entry.Confidence,
		entry.Verdict,
		entry.QualityScore,
		entry.Category,
		entry.Complexity,
		entry.CitationCount,
		entry.Routing,
		entry.ProcessingTimeS,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append query log entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	entry.CreatedAt = createdAt

	logger.Debug("Query log entry appended",
		zap.Int64("id", entry.ID),
		zap.String("question", entry.Question),
	)

	return nil
}

// MarkAllFreshAsStale flips every currently-fresh row to stale with the
// given reason. Idempotent: a second run with no intervening inserts
// touches zero rows. Returns the number of rows marked.
func (s *Store) MarkAllFreshAsStale(ctx context.Context, reason string) (int64, error) {
	db, err := s.acquire()
	if err != nil {
		logger.Warn("Query log unavailable, stale marking skipped", zap.Error(err))
		return 0, nil
	}

	result, err := db.ExecContext(
		ctx,
		`UPDATE query_log SET stale = 1, stale_reason = ? WHERE stale = 0`,
		reason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries stale: %w", err)
	}

	marked, _ := result.RowsAffected()
	logger.Info("Query log entries marked stale",
		zap.Int64("marked", marked),
		zap.String("reason", reason),
	)

	return marked, nil
}

// AttachFeedback sets feedback on the most recent feedback-less row
// matching the exact question text. A no-op when no such row exists.
func (s *Store) AttachFeedback(ctx context.Context, question, feedback string) error {
	db, err := s.acquire()
	if err != nil {
		logger.Warn("Query log unavailable, feedback skipped", zap.Error(err))
		return nil
	}

	query := `
		UPDATE query_log SET feedback = ?
		WHERE id = (
			SELECT id FROM query_log
			WHERE question = ? AND feedback IS NULL
			ORDER BY id DESC
			LIMIT 1
		)
	`

	result, err := db.ExecContext(ctx, query, feedback, question)
	if err != nil {
		return fmt.Errorf("failed to attach feedback: %w", err)
	}

	affected, _ := result.RowsAffected()
	logger.Info("Feedback attached",
		zap.String("question", question),
		zap.String("feedback", feedback),
		zap.Int64("rows", affected),
	)

	return nil
}

// Recent returns rows newest-first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.QueryLogEntry, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, question, answer, confidence, verdict, quality_score,
			category, complexity, citation_count, routing, processing_time_s,
			feedback, created_at, stale, stale_reason
		FROM query_log
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read query log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.QueryLogEntry, 0, limit)
	for rows.Next() {
		var e models.QueryLogEntry
		var answer, confidence, verdict, category, complexity, routing sql.NullString
		var feedback, staleReason sql.NullString
		var createdAt int64
		var stale int

		err := rows.Scan(
			&e.ID, &e.Question, &answer, &confidence, &verdict, &e.QualityScore,
			&category, &complexity, &e.CitationCount, &routing, &e.ProcessingTimeS,
			&feedback, &createdAt, &stale, &staleReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.Answer = answer.String
		e.Confidence = confidence.String
		e.Verdict = verdict.String
		e.Category = category.String
		e.Complexity = complexity.String
		e.Routing = routing.String
		e.CreatedAt = time.Unix(createdAt, 0)
		e.Stale = stale != 0
		if feedback.Valid {
			e.Feedback = &feedback.String
		}
		if staleReason.Valid {
			e.StaleReason = &staleReason.String
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SummaryStats aggregates the whole log. Averages are nil when the log
// is empty.
func (s *Store) SummaryStats(ctx context.Context) (*models.Stats, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(stale), 0),
			COALESCE(SUM(CASE WHEN feedback = 'up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN feedback = 'down' THEN 1 ELSE 0 END), 0),
			AVG(quality_score),
			AVG(processing_time_s)
		FROM query_log
	`

	var stats models.Stats
	var avgQuality, avgProcessing sql.NullFloat64

	err = db.QueryRowContext(ctx, query).Scan(
		&stats.TotalQueries,
		&stats.StaleCount,
		&stats.FeedbackUp,
		&stats.FeedbackDown,
		&avgQuality,
		&avgProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read query log stats: %w", err)
	}

	if avgQuality.Valid {
		stats.AvgQualityScore = &avgQuality.Float64
	}
	if avgProcessing.Valid {
		stats.AvgProcessingTimeS = &avgProcessing.Float64
	}

	return &stats, nil
}

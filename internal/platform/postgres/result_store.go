package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/platform/logger"
	"github.com/mquint/readflow-api/internal/store"
)

// ResultStore implements store.ResultStore on PostgreSQL.
type ResultStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewResultStore creates a PostgreSQL implementation of store.ResultStore.
func NewResultStore(db store.DBTX, logger *slog.Logger) *ResultStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultStore{
		db:     db,
		logger: logger.With(slog.String("component", "result_store")),
	}
}

var _ store.ResultStore = (*ResultStore)(nil)

const resultColumns = `id, user_id, paragraph_id, book_id, reading_time_seconds,
	words_per_minute, correct_count, total_questions, comprehension_rate, skipped, created_at`

// WithTx returns a ResultStore bound to the given transaction.
func (s *ResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return &ResultStore{db: tx, logger: s.logger}
}

// Create implements store.ResultStore.Create.
func (s *ResultStore) Create(ctx context.Context, result *domain.TestResult, answers []*domain.AnswerRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := result.Validate(); err != nil {
		return err
	}

	insertResult := `
		INSERT INTO test_results (id, user_id, paragraph_id, book_id, reading_time_seconds,
			words_per_minute, correct_count, total_questions, comprehension_rate, skipped, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, insertResult,
		result.ID, result.UserID, result.ParagraphID, result.BookID,
		result.ReadingTimeSeconds, result.WordsPerMinute,
		result.CorrectCount, result.TotalQuestions,
		result.ComprehensionRate, result.Skipped, result.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced entity not found", store.ErrInvalidEntity)
		}
		return fmt.Errorf("failed to insert test result: %w", err)
	}

	insertAnswer := `
		INSERT INTO answer_records (id, result_id, question_id, user_answer, is_correct)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, a := range answers {
		if _, err := s.db.ExecContext(ctx, insertAnswer,
			a.ID, a.ResultID, a.QuestionID, a.UserAnswer, a.IsCorrect); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: question %s not found", store.ErrInvalidEntity, a.QuestionID)
			}
			return fmt.Errorf("failed to insert answer record: %w", err)
		}
	}

	log.Info("test result created",
		slog.String("result_id", result.ID.String()),
		slog.String("user_id", result.UserID.String()),
		slog.Bool("skipped", result.Skipped),
		slog.Int("answers", len(answers)))
	return nil
}

// GetByID implements store.ResultStore.GetByID.
func (s *ResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TestResult, error) {
	query := `SELECT ` + resultColumns + ` FROM test_results WHERE id = $1`
	return scanResult(s.db.QueryRowContext(ctx, query, id))
}

// ListByUser implements store.ResultStore.ListByUser.
func (s *ResultStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.TestResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + resultColumns + `
		FROM test_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list test results",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer closeRows(rows, log)

	results := []*domain.TestResult{}
	for rows.Next() {
		var r domain.TestResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.ParagraphID, &r.BookID,
			&r.ReadingTimeSeconds, &r.WordsPerMinute, &r.CorrectCount,
			&r.TotalQuestions, &r.ComprehensionRate, &r.Skipped, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// ListAnswers implements store.ResultStore.ListAnswers.
func (s *ResultStore) ListAnswers(ctx context.Context, resultID uuid.UUID) ([]*domain.AnswerRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, result_id, question_id, user_answer, is_correct
		FROM answer_records
		WHERE result_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, resultID)
	if err != nil {
		log.Error("failed to list answer records",
			slog.String("error", err.Error()),
			slog.String("result_id", resultID.String()))
		return nil, err
	}
	defer closeRows(rows, log)

	answers := []*domain.AnswerRecord{}
	for rows.Next() {
		var a domain.AnswerRecord
		if err := rows.Scan(&a.ID, &a.ResultID, &a.QuestionID, &a.UserAnswer, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}

// Delete implements store.ResultStore.Delete. Answer records go with the
// result via ON DELETE CASCADE.
func (s *ResultStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM test_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete test result: %w", err)
	}
	return checkAffected(result, store.ErrResultNotFound)
}

// DeleteByUserAndBook implements store.ResultStore.DeleteByUserAndBook.
func (s *ResultStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM test_results WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete test results: %w", err)
	}
	return nil
}

// AverageStats implements store.ResultStore.AverageStats. Speed averages over
// every attempt; comprehension averages only over scored attempts, since a
// skipped result stores NULL and AVG ignores NULLs.
func (s *ResultStore) AverageStats(ctx context.Context, userID, bookID uuid.UUID) (float64, float64, error) {
	query := `
		SELECT COALESCE(AVG(words_per_minute), 0),
		       COALESCE(AVG(comprehension_rate), 0)
		FROM test_results
		WHERE user_id = $1 AND book_id = $2
	`
	var avgWPM, avgComprehension float64
	err := s.db.QueryRowContext(ctx, query, userID, bookID).Scan(&avgWPM, &avgComprehension)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to compute average stats: %w", err)
	}
	return avgWPM, avgComprehension, nil
}

func scanResult(row *sql.Row) (*domain.TestResult, error) {
	var r domain.TestResult
	err := row.Scan(&r.ID, &r.UserID, &r.ParagraphID, &r.BookID,
		&r.ReadingTimeSeconds, &r.WordsPerMinute, &r.CorrectCount,
		&r.TotalQuestions, &r.ComprehensionRate, &r.Skipped, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ProgressStore implements store.ProgressStore on PostgreSQL.
type ProgressStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewProgressStore creates a PostgreSQL implementation of store.ProgressStore.
func NewProgressStore(db store.DBTX, logger *slog.Logger) *ProgressStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressStore{
		db:     db,
		logger: logger.With(slog.String("component", "progress_store")),
	}
}

var _ store.ProgressStore = (*ProgressStore)(nil)

// WithTx returns a ProgressStore bound to the given transaction.
func (s *ProgressStore) WithTx(tx *sql.Tx) store.ProgressStore {
	return &ProgressStore{db: tx, logger: s.logger}
}

// MarkCompleted implements store.ProgressStore.MarkCompleted. Re-reading a
// paragraph refreshes the completion timestamp rather than erroring.
func (s *ProgressStore) MarkCompleted(ctx context.Context, progress *domain.ReadingProgress) error {
	query := `
		INSERT INTO reading_progress (user_id, book_id, paragraph_id, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, paragraph_id) DO UPDATE
		SET completed_at = EXCLUDED.completed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		progress.UserID, progress.BookID, progress.ParagraphID, progress.CompletedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced entity not found", store.ErrInvalidEntity)
		}
		return fmt.Errorf("failed to mark paragraph completed: %w", err)
	}
	return nil
}

// CompletedCount implements store.ProgressStore.CompletedCount.
func (s *ProgressStore) CompletedCount(ctx context.Context, userID, bookID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reading_progress WHERE user_id = $1 AND book_id = $2`,
		userID, bookID).Scan(&count)
	return count, err
}

// DeleteByUserAndBook implements store.ProgressStore.DeleteByUserAndBook.
func (s *ProgressStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reading_progress WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete reading progress: %w", err)
	}
	return nil
}

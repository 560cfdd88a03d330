package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
)

// ResultStore defines persistence operations for test results and their
// answer records.
type ResultStore interface {
	// Create inserts a result together with its answer records. Callers
	// run it inside a transaction so the pair is atomic.
	Create(ctx context.Context, result *domain.TestResult, answers []*domain.AnswerRecord) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.TestResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TestResult, error)
	ListAnswers(ctx context.Context, resultID uuid.UUID) ([]*domain.AnswerRecord, error)

	// Delete removes a result and its answer records.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByUserAndBook clears a user's result history for one book.
	DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error

	// AverageStats returns a user's average words-per-minute and average
	// comprehension rate over their scored results for a book. Skipped
	// results contribute to neither average's comprehension side.
	AverageStats(ctx context.Context, userID, bookID uuid.UUID) (avgWPM, avgComprehension float64, err error)

	// WithTx returns a ResultStore bound to the given transaction.
	WithTx(tx *sql.Tx) ResultStore
}

// ProgressStore defines persistence operations for reading progress.
type ProgressStore interface {
	// MarkCompleted upserts the completion row for (user, paragraph).
	MarkCompleted(ctx context.Context, progress *domain.ReadingProgress) error

	// CompletedCount counts the user's completed paragraphs in a book.
	CompletedCount(ctx context.Context, userID, bookID uuid.UUID) (int, error)

	// DeleteByUserAndBook resets a user's progress in one book.
	DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error

	// WithTx returns a ProgressStore bound to the given transaction.
	WithTx(tx *sql.Tx) ProgressStore
}

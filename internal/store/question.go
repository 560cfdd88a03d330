package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
)

// QuestionStore defines persistence operations for generated questions.
type QuestionStore interface {
	// CreateBatch inserts a paragraph's full question set. Callers run it
	// inside the same transaction that flips the generation status to
	// ready, so a poller never observes a partial set.
	CreateBatch(ctx context.Context, questions []*domain.Question) error

	ListByParagraph(ctx context.Context, paragraphID uuid.UUID) ([]*domain.Question, error)
	CountByParagraph(ctx context.Context, paragraphID uuid.UUID) (int, error)

	// WithTx returns a QuestionStore bound to the given transaction.
	WithTx(tx *sql.Tx) QuestionStore
}

// GenerationStatusStore coordinates the per-paragraph generation state
// machine. All mutation is serialized per paragraph by the database row.
type GenerationStatusStore interface {
	// TryStart atomically claims generation for the paragraph. It reports
	// true when the caller acquired the claim: either no row existed (a
	// fresh insert as generating) or the previous attempt failed (a
	// compare-and-set failed -> generating). It reports false when a row
	// already exists as generating or ready, making concurrent EnsureGeneration
	// calls collapse to at most one in-flight job.
	TryStart(ctx context.Context, paragraphID uuid.UUID) (bool, error)

	// Get returns the paragraph's status row, or ErrNotFound when
	// generation has never been started.
	Get(ctx context.Context, paragraphID uuid.UUID) (*domain.GenerationStatus, error)

	// MarkReady flips the state to ready.
	MarkReady(ctx context.Context, paragraphID uuid.UUID) error

	// MarkFailed flips the state to failed.
	MarkFailed(ctx context.Context, paragraphID uuid.UUID) error

	// ExpireStale flips generating rows older than the given age to
	// failed, and returns how many were flipped. Covers jobs lost to a
	// crash so pollers are not stuck on generating forever.
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)

	// WithTx returns a GenerationStatusStore bound to the given transaction.
	WithTx(tx *sql.Tx) GenerationStatusStore
}

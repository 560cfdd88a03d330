package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/platform/logger"
	"github.com/mquint/readflow-api/internal/store"
)

// QuestionStore implements store.QuestionStore on PostgreSQL.
type QuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewQuestionStore creates a PostgreSQL implementation of store.QuestionStore.
func NewQuestionStore(db store.DBTX, logger *slog.Logger) *QuestionStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "question_store")),
	}
}

var _ store.QuestionStore = (*QuestionStore)(nil)

// WithTx returns a QuestionStore bound to the given transaction.
func (s *QuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return &QuestionStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.QuestionStore.CreateBatch.
func (s *QuestionStore) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(questions) == 0 {
		return nil
	}

	query := `
		INSERT INTO questions (id, paragraph_id, question_text, option_a, option_b, option_c, option_d, correct_option, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare question insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close statement", slog.String("error", err.Error()))
		}
	}()

	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			q.ID, q.ParagraphID, q.QuestionText,
			q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			q.CorrectOption, q.CreatedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: paragraph %s not found", store.ErrInvalidEntity, q.ParagraphID)
			}
			return fmt.Errorf("failed to insert question: %w", err)
		}
	}

	log.Debug("questions created",
		slog.String("paragraph_id", questions[0].ParagraphID.String()),
		slog.Int("count", len(questions)))
	return nil
}

// ListByParagraph implements store.QuestionStore.ListByParagraph.
func (s *QuestionStore) ListByParagraph(ctx context.Context, paragraphID uuid.UUID) ([]*domain.Question, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, paragraph_id, question_text, option_a, option_b, option_c, option_d, correct_option, created_at
		FROM questions
		WHERE paragraph_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, paragraphID)
	if err != nil {
		log.Error("failed to list questions",
			slog.String("error", err.Error()),
			slog.String("paragraph_id", paragraphID.String()))
		return nil, err
	}
	defer closeRows(rows, log)

	questions := []*domain.Question{}
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.ParagraphID, &q.QuestionText,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectOption, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

// CountByParagraph implements store.QuestionStore.CountByParagraph.
func (s *QuestionStore) CountByParagraph(ctx context.Context, paragraphID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE paragraph_id = $1`, paragraphID).Scan(&count)
	return count, err
}

// GenerationStatusStore implements store.GenerationStatusStore on PostgreSQL.
type GenerationStatusStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewGenerationStatusStore creates a PostgreSQL implementation of
// store.GenerationStatusStore.
func NewGenerationStatusStore(db store.DBTX, logger *slog.Logger) *GenerationStatusStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationStatusStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_status_store")),
	}
}

var _ store.GenerationStatusStore = (*GenerationStatusStore)(nil)

// WithTx returns a GenerationStatusStore bound to the given transaction.
func (s *GenerationStatusStore) WithTx(tx *sql.Tx) store.GenerationStatusStore {
	return &GenerationStatusStore{db: tx, logger: s.logger}
}

// TryStart implements store.GenerationStatusStore.TryStart. The upsert only
// takes effect when no row exists or the existing row is failed, so exactly
// one of any set of concurrent callers observes an affected row.
func (s *GenerationStatusStore) TryStart(ctx context.Context, paragraphID uuid.UUID) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO generation_statuses (paragraph_id, state, updated_at)
		VALUES ($1, 'generating', $2)
		ON CONFLICT (paragraph_id) DO UPDATE
		SET state = 'generating', updated_at = $2
		WHERE generation_statuses.state = 'failed'
	`
	result, err := s.db.ExecContext(ctx, query, paragraphID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: paragraph %s not found", store.ErrInvalidEntity, paragraphID)
		}
		return false, fmt.Errorf("failed to claim generation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	claimed := affected == 1
	log.Debug("generation claim attempt",
		slog.String("paragraph_id", paragraphID.String()),
		slog.Bool("claimed", claimed))
	return claimed, nil
}

// Get implements store.GenerationStatusStore.Get.
func (s *GenerationStatusStore) Get(ctx context.Context, paragraphID uuid.UUID) (*domain.GenerationStatus, error) {
	var status domain.GenerationStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT paragraph_id, state, updated_at FROM generation_statuses WHERE paragraph_id = $1`,
		paragraphID).Scan(&status.ParagraphID, &status.State, &status.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &status, nil
}

// MarkReady implements store.GenerationStatusStore.MarkReady.
func (s *GenerationStatusStore) MarkReady(ctx context.Context, paragraphID uuid.UUID) error {
	return s.setState(ctx, paragraphID, domain.GenerationStateReady)
}

// MarkFailed implements store.GenerationStatusStore.MarkFailed.
func (s *GenerationStatusStore) MarkFailed(ctx context.Context, paragraphID uuid.UUID) error {
	return s.setState(ctx, paragraphID, domain.GenerationStateFailed)
}

func (s *GenerationStatusStore) setState(ctx context.Context, paragraphID uuid.UUID, state domain.GenerationState) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE generation_statuses SET state = $1, updated_at = $2 WHERE paragraph_id = $3`,
		state, time.Now().UTC(), paragraphID)
	if err != nil {
		return fmt.Errorf("failed to set generation state: %w", err)
	}
	return checkAffected(result, store.ErrNotFound)
}

// ExpireStale implements store.GenerationStatusStore.ExpireStale.
func (s *GenerationStatusStore) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx,
		`UPDATE generation_statuses SET state = 'failed', updated_at = $1
		 WHERE state = 'generating' AND updated_at < $2`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale statuses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		log.Warn("expired stale generation statuses", slog.Int64("count", affected))
	}
	return int(affected), nil
}

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

// ParagraphStore implements store.ParagraphStore on PostgreSQL.
type ParagraphStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewParagraphStore creates a PostgreSQL implementation of
// store.ParagraphStore.
func NewParagraphStore(db store.DBTX, logger *slog.Logger) *ParagraphStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParagraphStore{
		db:     db,
		logger: logger.With(slog.String("component", "paragraph_store")),
	}
}

var _ store.ParagraphStore = (*ParagraphStore)(nil)

const paragraphColumns = `id, book_id, ordinal_index, content, word_count, created_at`

// WithTx returns a ParagraphStore bound to the given transaction.
func (s *ParagraphStore) WithTx(tx *sql.Tx) store.ParagraphStore {
	return &ParagraphStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.ParagraphStore.CreateBatch.
func (s *ParagraphStore) CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(paragraphs) == 0 {
		return nil
	}

	query := `
		INSERT INTO paragraphs (id, book_id, ordinal_index, content, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare paragraph insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			log.Error("failed to close statement", slog.String("error", err.Error()))
		}
	}()

	for _, p := range paragraphs {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.BookID, p.OrdinalIndex, p.Content, p.WordCount, p.CreatedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: book %s not found", store.ErrInvalidEntity, p.BookID)
			}
			return fmt.Errorf("failed to insert paragraph %d: %w", p.OrdinalIndex, err)
		}
	}

	log.Info("paragraphs created",
		slog.String("book_id", paragraphs[0].BookID.String()),
		slog.Int("count", len(paragraphs)))
	return nil
}

// GetByID implements store.ParagraphStore.GetByID.
func (s *ParagraphStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
	query := `SELECT ` + paragraphColumns + ` FROM paragraphs WHERE id = $1`
	return s.scanParagraph(s.db.QueryRowContext(ctx, query, id))
}

// ListByBook implements store.ParagraphStore.ListByBook.
func (s *ParagraphStore) ListByBook(
	ctx context.Context,
	bookID uuid.UUID,
	limit, offset int,
) ([]*domain.Paragraph, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + paragraphColumns + `
		FROM paragraphs
		WHERE book_id = $1
		ORDER BY ordinal_index
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, bookID, limit, offset)
	if err != nil {
		log.Error("failed to list paragraphs",
			slog.String("error", err.Error()),
			slog.String("book_id", bookID.String()))
		return nil, err
	}
	defer closeRows(rows, log)

	paragraphs := []*domain.Paragraph{}
	for rows.Next() {
		var p domain.Paragraph
		if err := rows.Scan(&p.ID, &p.BookID, &p.OrdinalIndex, &p.Content, &p.WordCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		paragraphs = append(paragraphs, &p)
	}
	return paragraphs, rows.Err()
}

// CountByBook implements store.ParagraphStore.CountByBook.
func (s *ParagraphStore) CountByBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM paragraphs WHERE book_id = $1`, bookID).Scan(&count)
	return count, err
}

// NextUnread implements store.ParagraphStore.NextUnread. The anti-join
// against reading_progress picks the lowest-ordinal paragraph the user has
// not completed.
func (s *ParagraphStore) NextUnread(ctx context.Context, bookID, userID uuid.UUID) (*domain.Paragraph, error) {
	query := `
		SELECT ` + paragraphColumns + `
		FROM paragraphs p
		WHERE p.book_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM reading_progress rp
			WHERE rp.user_id = $2 AND rp.paragraph_id = p.id
		  )
		ORDER BY p.ordinal_index
		LIMIT 1
	`
	return s.scanParagraph(s.db.QueryRowContext(ctx, query, bookID, userID))
}

// Random implements store.ParagraphStore.Random.
func (s *ParagraphStore) Random(ctx context.Context) (*domain.Paragraph, error) {
	// ORDER BY random() is fine at this table's scale.
	query := `SELECT ` + paragraphColumns + ` FROM paragraphs ORDER BY random() LIMIT 1`
	return s.scanParagraph(s.db.QueryRowContext(ctx, query))
}

// Update implements store.ParagraphStore.Update.
func (s *ParagraphStore) Update(ctx context.Context, paragraph *domain.Paragraph) error {
	if err := paragraph.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE paragraphs SET content = $1, word_count = $2 WHERE id = $3`,
		paragraph.Content, paragraph.WordCount, paragraph.ID)
	if err != nil {
		return fmt.Errorf("failed to update paragraph: %w", err)
	}
	return checkAffected(result, store.ErrParagraphNotFound)
}

// Delete implements store.ParagraphStore.Delete. After the delete, the
// remaining ordinals of the book are renumbered to stay contiguous.
func (s *ParagraphStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var bookID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM paragraphs WHERE id = $1 RETURNING book_id`, id).Scan(&bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrParagraphNotFound
		}
		return fmt.Errorf("failed to delete paragraph: %w", err)
	}

	renumber := `
		UPDATE paragraphs p
		SET ordinal_index = ranked.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY ordinal_index) AS rn
			FROM paragraphs
			WHERE book_id = $1
		) ranked
		WHERE p.id = ranked.id AND p.ordinal_index <> ranked.rn
	`
	if _, err := s.db.ExecContext(ctx, renumber, bookID); err != nil {
		return fmt.Errorf("failed to renumber paragraphs: %w", err)
	}

	log.Info("paragraph deleted",
		slog.String("paragraph_id", id.String()),
		slog.String("book_id", bookID.String()))
	return nil
}

func (s *ParagraphStore) scanParagraph(row *sql.Row) (*domain.Paragraph, error) {
	var p domain.Paragraph
	err := row.Scan(&p.ID, &p.BookID, &p.OrdinalIndex, &p.Content, &p.WordCount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrParagraphNotFound
		}
		return nil, err
	}
	return &p, nil
}

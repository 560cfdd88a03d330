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

// BookStore implements store.BookStore on PostgreSQL.
type BookStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewBookStore creates a PostgreSQL implementation of store.BookStore.
func NewBookStore(db store.DBTX, logger *slog.Logger) *BookStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookStore{
		db:     db,
		logger: logger.With(slog.String("component", "book_store")),
	}
}

var _ store.BookStore = (*BookStore)(nil)

// WithTx returns a BookStore bound to the given transaction.
func (s *BookStore) WithTx(tx *sql.Tx) store.BookStore {
	return &BookStore{db: tx, logger: s.logger}
}

// Create implements store.BookStore.Create.
func (s *BookStore) Create(ctx context.Context, book *domain.Book) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := book.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO books (id, title, author, filename, total_paragraphs, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.Filename,
		book.TotalParagraphs,
		book.UploadedBy,
		book.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: uploader %s not found", store.ErrInvalidEntity, book.UploadedBy)
		}
		log.Error("failed to create book",
			slog.String("error", err.Error()),
			slog.String("book_id", book.ID.String()))
		return fmt.Errorf("failed to create book: %w", err)
	}

	log.Info("book created",
		slog.String("book_id", book.ID.String()),
		slog.String("title", book.Title))
	return nil
}

// GetByID implements store.BookStore.GetByID.
func (s *BookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	query := `
		SELECT id, title, author, filename, total_paragraphs, uploaded_by, created_at
		FROM books
		WHERE id = $1
	`
	var book domain.Book
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Filename,
		&book.TotalParagraphs,
		&book.UploadedBy,
		&book.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// List implements store.BookStore.List.
func (s *BookStore) List(ctx context.Context, limit, offset int) ([]*domain.Book, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, title, author, filename, total_paragraphs, uploaded_by, created_at
		FROM books
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list books", slog.String("error", err.Error()))
		return nil, err
	}
	defer closeRows(rows, log)

	books := []*domain.Book{}
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Author,
			&book.Filename,
			&book.TotalParagraphs,
			&book.UploadedBy,
			&book.CreatedAt,
		); err != nil {
			return nil, err
		}
		books = append(books, &book)
	}
	return books, rows.Err()
}

// UpdateTotalParagraphs implements store.BookStore.UpdateTotalParagraphs.
func (s *BookStore) UpdateTotalParagraphs(ctx context.Context, id uuid.UUID, total int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET total_paragraphs = $1 WHERE id = $2`, total, id)
	if err != nil {
		return fmt.Errorf("failed to update paragraph count: %w", err)
	}
	return checkAffected(result, store.ErrBookNotFound)
}

// Delete implements store.BookStore.Delete. Dependent rows cascade via
// schema-level foreign keys.
func (s *BookStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete book",
			slog.String("error", err.Error()),
			slog.String("book_id", id.String()))
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if err := checkAffected(result, store.ErrBookNotFound); err != nil {
		return err
	}

	log.Info("book deleted", slog.String("book_id", id.String()))
	return nil
}

// checkAffected converts a zero-row update into the given not-found error.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// closeRows closes rows and logs any close error.
func closeRows(rows *sql.Rows, log *slog.Logger) {
	if err := rows.Close(); err != nil {
		log.Error("failed to close rows", slog.String("error", err.Error()))
	}
}

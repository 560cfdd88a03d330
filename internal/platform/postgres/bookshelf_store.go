package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/platform/logger"
	"github.com/mquint/readflow-api/internal/store"
)

// BookshelfStore implements store.BookshelfStore on PostgreSQL.
type BookshelfStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewBookshelfStore creates a PostgreSQL implementation of
// store.BookshelfStore.
func NewBookshelfStore(db store.DBTX, logger *slog.Logger) *BookshelfStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookshelfStore{
		db:     db,
		logger: logger.With(slog.String("component", "bookshelf_store")),
	}
}

var _ store.BookshelfStore = (*BookshelfStore)(nil)

// WithTx returns a BookshelfStore bound to the given transaction.
func (s *BookshelfStore) WithTx(tx *sql.Tx) store.BookshelfStore {
	return &BookshelfStore{db: tx, logger: s.logger}
}

// Upsert implements store.BookshelfStore.Upsert. The conditional update only
// promotes uploaded to started; a started entry stays started no matter what
// the incoming status says.
func (s *BookshelfStore) Upsert(ctx context.Context, entry *domain.BookshelfEntry) error {
	query := `
		INSERT INTO bookshelf_entries (user_id, book_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET status = 'started'
		WHERE bookshelf_entries.status = 'uploaded'
		  AND EXCLUDED.status = 'started'
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.UserID, entry.BookID, entry.Status, entry.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user or book not found", store.ErrInvalidEntity)
		}
		return fmt.Errorf("failed to upsert bookshelf entry: %w", err)
	}
	return nil
}

// List implements store.BookshelfStore.List.
func (s *BookshelfStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.BookshelfEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, book_id, status, created_at
		FROM bookshelf_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list bookshelf entries",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer closeRows(rows, log)

	entries := []*domain.BookshelfEntry{}
	for rows.Next() {
		var e domain.BookshelfEntry
		if err := rows.Scan(&e.UserID, &e.BookID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete implements store.BookshelfStore.Delete.
func (s *BookshelfStore) Delete(ctx context.Context, userID, bookID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM bookshelf_entries WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete bookshelf entry: %w", err)
	}
	return checkAffected(result, store.ErrShelfEntryNotFound)
}

package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
)

// BookStore defines persistence operations for books.
type BookStore interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Book, error)

	// UpdateTotalParagraphs refreshes the cached paragraph count.
	UpdateTotalParagraphs(ctx context.Context, id uuid.UUID, total int) error

	// Delete removes the book. Paragraphs, questions, progress and results
	// cascade at the schema level.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a BookStore bound to the given transaction.
	WithTx(tx *sql.Tx) BookStore
}

// ParagraphStore defines persistence operations for paragraphs.
type ParagraphStore interface {
	// CreateBatch inserts paragraphs in ordinal order.
	CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error)
	ListByBook(ctx context.Context, bookID uuid.UUID, limit, offset int) ([]*domain.Paragraph, error)
	CountByBook(ctx context.Context, bookID uuid.UUID) (int, error)

	// NextUnread returns the lowest-ordinal paragraph of the book the user
	// has not completed. Returns ErrParagraphNotFound when the book is
	// finished or empty.
	NextUnread(ctx context.Context, bookID, userID uuid.UUID) (*domain.Paragraph, error)

	// Random returns a random paragraph from any book, for guest sessions.
	// Returns ErrParagraphNotFound when no paragraphs exist at all.
	Random(ctx context.Context) (*domain.Paragraph, error)

	// Update persists edited content and word count.
	Update(ctx context.Context, paragraph *domain.Paragraph) error

	// Delete removes the paragraph and renumbers the remaining ordinals of
	// the book so they stay contiguous.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a ParagraphStore bound to the given transaction.
	WithTx(tx *sql.Tx) ParagraphStore
}

// BookshelfStore maintains the derived user/book shelf entries.
type BookshelfStore interface {
	// Upsert creates the entry or promotes its status. An uploaded entry
	// becomes started once the user begins reading; it never demotes.
	Upsert(ctx context.Context, entry *domain.BookshelfEntry) error

	List(ctx context.Context, userID uuid.UUID) ([]*domain.BookshelfEntry, error)

	// Delete removes a user's entry for a book. Returns
	// ErrShelfEntryNotFound if absent.
	Delete(ctx context.Context, userID, bookID uuid.UUID) error

	// WithTx returns a BookshelfStore bound to the given transaction.
	WithTx(tx *sql.Tx) BookshelfStore
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/store"
)

// ShelfItem is one bookshelf entry joined with its book.
type ShelfItem struct {
	Book      *domain.Book           `json:"book"`
	Status    domain.BookshelfStatus `json:"status"`
	AddedAt   time.Time              `json:"added_at"`
	Completed int                    `json:"completed_paragraphs"`
}

// BookshelfService exposes a user's shelf: the books they uploaded or
// started reading, with their position in each.
type BookshelfService struct {
	bookshelf store.BookshelfStore
	books     store.BookStore
	progress  store.ProgressStore
	logger    *slog.Logger
}

// NewBookshelfService creates a BookshelfService.
func NewBookshelfService(
	bookshelf store.BookshelfStore,
	books store.BookStore,
	progress store.ProgressStore,
	logger *slog.Logger,
) *BookshelfService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookshelfService{
		bookshelf: bookshelf,
		books:     books,
		progress:  progress,
		logger:    logger.With("component", "bookshelf_service"),
	}
}

// Shelf returns the user's entries joined with their books, newest first.
// Entries whose book has since been deleted are skipped.
func (s *BookshelfService) Shelf(ctx context.Context, userID uuid.UUID) ([]*ShelfItem, error) {
	entries, err := s.bookshelf.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookshelf: %w", err)
	}

	items := make([]*ShelfItem, 0, len(entries))
	for _, entry := range entries {
		book, err := s.books.GetByID(ctx, entry.BookID)
		if err != nil {
			if errors.Is(err, store.ErrBookNotFound) {
				continue
			}
			return nil, err
		}

		completed, err := s.progress.CompletedCount(ctx, userID, entry.BookID)
		if err != nil {
			return nil, fmt.Errorf("failed to count progress: %w", err)
		}

		items = append(items, &ShelfItem{
			Book:      book,
			Status:    entry.Status,
			AddedAt:   entry.CreatedAt,
			Completed: completed,
		})
	}
	return items, nil
}

// Remove takes a book off the user's shelf. The book itself and the user's
// history stay untouched.
func (s *BookshelfService) Remove(ctx context.Context, userID, bookID uuid.UUID) error {
	if err := s.bookshelf.Delete(ctx, userID, bookID); err != nil {
		return err
	}

	s.logger.Info("bookshelf entry removed",
		"user_id", userID,
		"book_id", bookID)
	return nil
}

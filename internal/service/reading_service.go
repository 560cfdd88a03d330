package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/store"
)

// ReadingStats summarizes a user's performance in one book.
type ReadingStats struct {
	AverageWPM           float64 `json:"average_wpm"`
	AverageComprehension float64 `json:"average_comprehension"`
}

// ReadingService drives reading sessions: serving the next paragraph,
// kicking off question generation ahead of the quiz, and reporting progress.
type ReadingService struct {
	txRunner    store.TxRunner
	books       store.BookStore
	paragraphs  store.ParagraphStore
	progress    store.ProgressStore
	results     store.ResultStore
	bookshelf   store.BookshelfStore
	coordinator *GenerationCoordinator
	logger      *slog.Logger
}

// NewReadingService creates a ReadingService.
func NewReadingService(
	txRunner store.TxRunner,
	books store.BookStore,
	paragraphs store.ParagraphStore,
	progress store.ProgressStore,
	results store.ResultStore,
	bookshelf store.BookshelfStore,
	coordinator *GenerationCoordinator,
	logger *slog.Logger,
) *ReadingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingService{
		txRunner:    txRunner,
		books:       books,
		paragraphs:  paragraphs,
		progress:    progress,
		results:     results,
		bookshelf:   bookshelf,
		coordinator: coordinator,
		logger:      logger.With("component", "reading_service"),
	}
}

// NextParagraph returns the lowest-ordinal paragraph of the book the user
// has not completed along with the user's position in the book, promotes the
// user's bookshelf entry to started, and kicks off question generation so
// the set is usually ready by the time the reader finishes. Returns
// ErrBookFinished when every paragraph is done.
func (s *ReadingService) NextParagraph(
	ctx context.Context,
	userID, bookID uuid.UUID,
) (*domain.Paragraph, domain.GenerationState, domain.BookProgress, error) {
	// Surface a missing book as such rather than as a finished one.
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, "", domain.BookProgress{}, err
	}

	completed, err := s.progress.CompletedCount(ctx, userID, bookID)
	if err != nil {
		return nil, "", domain.BookProgress{}, fmt.Errorf("failed to count progress: %w", err)
	}
	progress := domain.BookProgress{
		Completed: completed,
		Total:     book.TotalParagraphs,
	}

	paragraph, err := s.paragraphs.NextUnread(ctx, bookID, userID)
	if err != nil {
		if errors.Is(err, store.ErrParagraphNotFound) {
			return nil, "", progress, ErrBookFinished
		}
		return nil, "", progress, fmt.Errorf("failed to find next paragraph: %w", err)
	}

	entry := &domain.BookshelfEntry{
		UserID:    userID,
		BookID:    bookID,
		Status:    domain.BookshelfStatusStarted,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.bookshelf.Upsert(ctx, entry); err != nil {
		// Reading can proceed without the shelf promotion.
		s.logger.Error("failed to promote bookshelf entry",
			"user_id", userID,
			"book_id", bookID,
			"error", err)
	}

	state, err := s.coordinator.EnsureGeneration(ctx, paragraph.ID)
	if err != nil {
		// Generation trouble must not block reading; the poll endpoint will
		// report failed and the client can retry.
		s.logger.Error("failed to start question generation",
			"paragraph_id", paragraph.ID,
			"error", err)
		state = domain.GenerationStateFailed
	}

	return paragraph, state, progress, nil
}

// GuestParagraph serves an anonymous session: a random paragraph from the
// whole library, with generation started the same way. Guests get no
// progress tracking and no bookshelf.
func (s *ReadingService) GuestParagraph(ctx context.Context) (*domain.Paragraph, domain.GenerationState, error) {
	paragraph, err := s.paragraphs.Random(ctx)
	if err != nil {
		if errors.Is(err, store.ErrParagraphNotFound) {
			return nil, "", ErrNoParagraphs
		}
		return nil, "", fmt.Errorf("failed to pick a paragraph: %w", err)
	}

	state, err := s.coordinator.EnsureGeneration(ctx, paragraph.ID)
	if err != nil {
		s.logger.Error("failed to start question generation",
			"paragraph_id", paragraph.ID,
			"error", err)
		state = domain.GenerationStateFailed
	}

	return paragraph, state, nil
}

// Progress reports the user's position and averages for one book.
func (s *ReadingService) Progress(
	ctx context.Context,
	userID, bookID uuid.UUID,
) (domain.BookProgress, ReadingStats, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return domain.BookProgress{}, ReadingStats{}, err
	}

	completed, err := s.progress.CompletedCount(ctx, userID, bookID)
	if err != nil {
		return domain.BookProgress{}, ReadingStats{}, fmt.Errorf("failed to count progress: %w", err)
	}

	avgWPM, avgComprehension, err := s.results.AverageStats(ctx, userID, bookID)
	if err != nil {
		return domain.BookProgress{}, ReadingStats{}, fmt.Errorf("failed to compute averages: %w", err)
	}

	progress := domain.BookProgress{
		Completed: completed,
		Total:     book.TotalParagraphs,
	}
	stats := ReadingStats{
		AverageWPM:           avgWPM,
		AverageComprehension: avgComprehension,
	}
	return progress, stats, nil
}

// ResetBook wipes the user's history for a book: progress rows and test
// results go together in one transaction, so a re-read starts clean.
func (s *ReadingService) ResetBook(ctx context.Context, userID, bookID uuid.UUID) error {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return err
	}

	err := s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.results.WithTx(tx).DeleteByUserAndBook(ctx, userID, bookID); err != nil {
			return fmt.Errorf("failed to delete test results: %w", err)
		}
		if err := s.progress.WithTx(tx).DeleteByUserAndBook(ctx, userID, bookID); err != nil {
			return fmt.Errorf("failed to delete reading progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("book history reset",
		"user_id", userID,
		"book_id", bookID)
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/ingest"
	"github.com/mquint/readflow-api/internal/store"
)

// BookService handles document upload and the book/paragraph lifecycle.
type BookService struct {
	txRunner   store.TxRunner
	books      store.BookStore
	paragraphs store.ParagraphStore
	bookshelf  store.BookshelfStore
	uploadDir  string
	logger     *slog.Logger
}

// NewBookService creates a BookService. uploadDir may be empty to skip
// keeping the original files on disk.
func NewBookService(
	txRunner store.TxRunner,
	books store.BookStore,
	paragraphs store.ParagraphStore,
	bookshelf store.BookshelfStore,
	uploadDir string,
	logger *slog.Logger,
) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		txRunner:   txRunner,
		books:      books,
		paragraphs: paragraphs,
		bookshelf:  bookshelf,
		uploadDir:  uploadDir,
		logger:     logger.With("component", "book_service"),
	}
}

// UploadBook extracts text from the uploaded document, splits it into
// reading paragraphs, and commits the book, its paragraphs and the
// uploader's bookshelf entry in one transaction. A parse failure persists
// nothing.
func (s *BookService) UploadBook(
	ctx context.Context,
	uploader *domain.User,
	filename, title, author string,
	data []byte,
) (*domain.Book, error) {
	text, err := ingest.Extract(filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			return nil, ErrUnsupportedFormat
		case errors.Is(err, ingest.ErrEmptyDocument):
			return nil, ErrEmptyDocument
		default:
			return nil, fmt.Errorf("failed to extract document text: %w", err)
		}
	}

	chunks := ingest.SplitParagraphs(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	book, err := domain.NewBook(uploader.ID, title, author, filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	book.TotalParagraphs = len(chunks)

	paragraphs := make([]*domain.Paragraph, 0, len(chunks))
	for i, chunk := range chunks {
		p, err := domain.NewParagraph(book.ID, i+1, chunk)
		if err != nil {
			return nil, err
		}
		paragraphs = append(paragraphs, p)
	}

	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.books.WithTx(tx).Create(ctx, book); err != nil {
			return fmt.Errorf("failed to store book: %w", err)
		}
		if err := s.paragraphs.WithTx(tx).CreateBatch(ctx, paragraphs); err != nil {
			return fmt.Errorf("failed to store paragraphs: %w", err)
		}

		entry := &domain.BookshelfEntry{
			UserID:    uploader.ID,
			BookID:    book.ID,
			Status:    domain.BookshelfStatusUploaded,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.bookshelf.WithTx(tx).Upsert(ctx, entry); err != nil {
			return fmt.Errorf("failed to create bookshelf entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.keepOriginal(book.ID, filename, data)

	s.logger.Info("book uploaded",
		"book_id", book.ID,
		"user_id", uploader.ID,
		"paragraphs", len(paragraphs))
	return book, nil
}

// keepOriginal archives the uploaded file. Failures are logged only; the
// book is already committed and the original is not needed to serve it.
func (s *BookService) keepOriginal(bookID uuid.UUID, filename string, data []byte) {
	if s.uploadDir == "" {
		return
	}

	path := filepath.Join(s.uploadDir, bookID.String()+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		s.logger.Error("failed to archive uploaded file",
			"book_id", bookID,
			"path", path,
			"error", err)
	}
}

// removeOriginal deletes the archived upload. Failures are logged only; the
// book row is already gone.
func (s *BookService) removeOriginal(bookID uuid.UUID, filename string) {
	if s.uploadDir == "" {
		return
	}

	path := filepath.Join(s.uploadDir, bookID.String()+strings.ToLower(filepath.Ext(filename)))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("failed to remove archived file",
			"book_id", bookID,
			"path", path,
			"error", err)
	}
}

// GetBook returns a book by ID.
func (s *BookService) GetBook(ctx context.Context, bookID uuid.UUID) (*domain.Book, error) {
	return s.books.GetByID(ctx, bookID)
}

// ListBooks returns the shared library, newest first.
func (s *BookService) ListBooks(ctx context.Context, limit, offset int) ([]*domain.Book, error) {
	return s.books.List(ctx, limit, offset)
}

// ListParagraphs returns a book's paragraphs in reading order.
func (s *BookService) ListParagraphs(
	ctx context.Context,
	bookID uuid.UUID,
	limit, offset int,
) ([]*domain.Paragraph, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, err
	}
	return s.paragraphs.ListByBook(ctx, bookID, limit, offset)
}

// GetParagraph returns a paragraph by ID.
func (s *BookService) GetParagraph(ctx context.Context, paragraphID uuid.UUID) (*domain.Paragraph, error) {
	return s.paragraphs.GetByID(ctx, paragraphID)
}

// UpdateParagraph replaces a paragraph's text. Only the book's uploader or
// an admin may edit.
func (s *BookService) UpdateParagraph(
	ctx context.Context,
	requester *domain.User,
	paragraphID uuid.UUID,
	content string,
) (*domain.Paragraph, error) {
	paragraph, err := s.paragraphs.GetByID(ctx, paragraphID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requester, paragraph.BookID); err != nil {
		return nil, err
	}

	if err := paragraph.SetContent(content); err != nil {
		return nil, err
	}
	if err := s.paragraphs.Update(ctx, paragraph); err != nil {
		return nil, err
	}

	s.logger.Info("paragraph updated",
		"paragraph_id", paragraphID,
		"requester_id", requester.ID)
	return paragraph, nil
}

// DeleteParagraph removes a paragraph, renumbers the rest of the book, and
// refreshes the book's cached paragraph count in the same transaction.
func (s *BookService) DeleteParagraph(
	ctx context.Context,
	requester *domain.User,
	paragraphID uuid.UUID,
) error {
	paragraph, err := s.paragraphs.GetByID(ctx, paragraphID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, requester, paragraph.BookID); err != nil {
		return err
	}

	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txParagraphs := s.paragraphs.WithTx(tx)
		if err := txParagraphs.Delete(ctx, paragraphID); err != nil {
			return err
		}

		total, err := txParagraphs.CountByBook(ctx, paragraph.BookID)
		if err != nil {
			return fmt.Errorf("failed to count remaining paragraphs: %w", err)
		}
		if err := s.books.WithTx(tx).UpdateTotalParagraphs(ctx, paragraph.BookID, total); err != nil {
			return fmt.Errorf("failed to update paragraph count: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("paragraph deleted",
		"paragraph_id", paragraphID,
		"book_id", paragraph.BookID,
		"requester_id", requester.ID)
	return nil
}

// DeleteBook removes a book and its archived upload. Paragraphs, questions,
// progress and results cascade at the schema level. Only the uploader or an
// admin may delete.
func (s *BookService) DeleteBook(ctx context.Context, requester *domain.User, bookID uuid.UUID) error {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if !requester.IsAdmin && book.UploadedBy != requester.ID {
		return ErrNotOwned
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		return err
	}

	s.removeOriginal(bookID, book.Filename)

	s.logger.Info("book deleted",
		"book_id", bookID,
		"requester_id", requester.ID)
	return nil
}

// authorize allows the book's uploader and admins through.
func (s *BookService) authorize(ctx context.Context, requester *domain.User, bookID uuid.UUID) error {
	if requester.IsAdmin {
		return nil
	}
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if book.UploadedBy != requester.ID {
		return ErrNotOwned
	}
	return nil
}

package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Book represents an uploaded document that has been split into paragraphs.
type Book struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author,omitempty"`
	Filename        string    `json:"filename"`
	TotalParagraphs int       `json:"total_paragraphs"`
	UploadedBy      uuid.UUID `json:"uploaded_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewBook creates a new Book owned by the given user.
func NewBook(uploadedBy uuid.UUID, title, author, filename string) (*Book, error) {
	book := &Book{
		ID:         uuid.New(),
		Title:      title,
		Author:     author,
		Filename:   filename,
		UploadedBy: uploadedBy,
		CreatedAt:  time.Now().UTC(),
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}

	return book, nil
}

// Validate checks if the Book has valid data.
func (b *Book) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBookID
	}
	if b.Title == "" {
		return ErrEmptyBookTitle
	}
	if b.UploadedBy == uuid.Nil {
		return ErrEmptyUserID
	}
	return nil
}

// Paragraph is one reading unit of a book. Immutable once created except
// through explicit edit; owned by its book.
type Paragraph struct {
	ID           uuid.UUID `json:"id"`
	BookID       uuid.UUID `json:"book_id"`
	OrdinalIndex int       `json:"ordinal_index"`
	Content      string    `json:"content"`
	WordCount    int       `json:"word_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewParagraph creates a paragraph with the word count derived from content.
func NewParagraph(bookID uuid.UUID, ordinal int, content string) (*Paragraph, error) {
	p := &Paragraph{
		ID:           uuid.New(),
		BookID:       bookID,
		OrdinalIndex: ordinal,
		Content:      content,
		WordCount:    CountWords(content),
		CreatedAt:    time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks if the Paragraph has valid data.
func (p *Paragraph) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyParagraphID
	}
	if p.BookID == uuid.Nil {
		return ErrEmptyBookID
	}
	if p.OrdinalIndex < 1 {
		return ErrInvalidOrdinal
	}
	if strings.TrimSpace(p.Content) == "" {
		return ErrEmptyParagraphText
	}
	return nil
}

// SetContent replaces the paragraph text and recomputes the word count.
func (p *Paragraph) SetContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyParagraphText
	}
	p.Content = content
	p.WordCount = CountWords(content)
	return nil
}

// CountWords counts reading units in text. Whitespace-separated runs count
// as one word each, except that every Han character counts individually so
// that reading speed stays meaningful for unspaced CJK text.
func CountWords(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		han := 0
		for _, r := range field {
			if unicode.Is(unicode.Han, r) {
				han++
			}
		}
		if han > 0 {
			count += han
		} else {
			count++
		}
	}
	return count
}

// BookshelfStatus tracks how a book ended up on a user's shelf.
type BookshelfStatus string

const (
	BookshelfStatusUploaded BookshelfStatus = "uploaded"
	BookshelfStatusStarted  BookshelfStatus = "started"
)

// BookshelfEntry links a user to a book they uploaded or started reading.
// Maintained automatically; never created directly by a request.
type BookshelfEntry struct {
	UserID    uuid.UUID       `json:"user_id"`
	BookID    uuid.UUID       `json:"book_id"`
	Status    BookshelfStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

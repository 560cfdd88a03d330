package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadingProgress marks a paragraph as completed by a user. One row per
// (user, paragraph); advancing past a paragraph upserts it.
type ReadingProgress struct {
	UserID      uuid.UUID `json:"user_id"`
	BookID      uuid.UUID `json:"book_id"`
	ParagraphID uuid.UUID `json:"paragraph_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// BookProgress summarizes a user's position in a book.
type BookProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Finished reports whether every paragraph of the book has been completed.
func (p BookProgress) Finished() bool {
	return p.Total > 0 && p.Completed >= p.Total
}

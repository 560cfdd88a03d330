// Package generation defines the interface to the external question
// generation service and its error taxonomy. The concrete Gemini-backed
// implementation lives in platform/gemini.
package generation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
)

// Common generation errors. Handlers and the coordinator distinguish
// transient failures (retryable by a fresh EnsureGeneration) from
// configuration problems.
var (
	// ErrInvalidConfig indicates the generator was constructed with
	// unusable configuration.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrInvalidResponse indicates the model returned output that does not
	// parse or validate as a complete question set.
	ErrInvalidResponse = errors.New("invalid model response")

	// ErrContentBlocked indicates the model refused the content.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTransientFailure indicates a temporary API failure after
	// exhausting retries.
	ErrTransientFailure = errors.New("transient generation failure")
)

// Generator produces a paragraph's full multiple-choice question set from
// its text. Implementations must return exactly
// domain.QuestionsPerParagraph validated questions or an error; partial
// sets are never returned.
type Generator interface {
	GenerateQuestions(ctx context.Context, paragraphID uuid.UUID, paragraphText string) ([]*domain.Question, error)
}

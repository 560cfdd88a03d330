package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionsPerParagraph is the number of multiple-choice questions generated
// for each paragraph. A paragraph's question set is only ever visible as a
// whole: readers observe zero questions or exactly this many.
const QuestionsPerParagraph = 5

// Options a question's correct answer may take.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

// Question is one multiple-choice comprehension question for a paragraph.
// Created only by the background generator.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ParagraphID   uuid.UUID `json:"paragraph_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption string    `json:"-"` // Never leaked to the quiz-taking client
	CreatedAt     time.Time `json:"created_at"`
}

// NewQuestion creates a validated Question for the given paragraph.
func NewQuestion(paragraphID uuid.UUID, text, a, b, c, d, correct string) (*Question, error) {
	q := &Question{
		ID:            uuid.New(),
		ParagraphID:   paragraphID,
		QuestionText:  text,
		OptionA:       a,
		OptionB:       b,
		OptionC:       c,
		OptionD:       d,
		CorrectOption: strings.ToUpper(strings.TrimSpace(correct)),
		CreatedAt:     time.Now().UTC(),
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	return q, nil
}

// Validate checks if the Question has valid data.
func (q *Question) Validate() error {
	if q.ID == uuid.Nil {
		return ErrEmptyQuestionID
	}
	if q.ParagraphID == uuid.Nil {
		return ErrEmptyParagraphID
	}
	if q.QuestionText == "" {
		return ErrEmptyQuestionText
	}
	if q.OptionA == "" || q.OptionB == "" || q.OptionC == "" || q.OptionD == "" {
		return ErrMissingOption
	}
	if !IsValidOption(q.CorrectOption) {
		return ErrInvalidOption
	}
	return nil
}

// IsValidOption reports whether s names one of the four answer options.
func IsValidOption(s string) bool {
	switch s {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	default:
		return false
	}
}

// GenerationState is the coordination state of question generation for one
// paragraph.
type GenerationState string

// State transitions are strictly
// not_started -> generating -> {ready|failed}, with failed -> generating
// allowed on retry. not_started is represented by the absence of a status
// row; the constant exists for API responses.
const (
	GenerationStateNotStarted GenerationState = "not_started"
	GenerationStateGenerating GenerationState = "generating"
	GenerationStateReady      GenerationState = "ready"
	GenerationStateFailed     GenerationState = "failed"
)

// GenerationStatus is the per-paragraph record driving the polling contract.
// One row per paragraph; the single source of truth for in-flight work.
type GenerationStatus struct {
	ParagraphID uuid.UUID       `json:"paragraph_id"`
	State       GenerationState `json:"state"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsValidGenerationState reports whether s is a persistable state.
// not_started is excluded: it is never stored.
func IsValidGenerationState(s GenerationState) bool {
	switch s {
	case GenerationStateGenerating, GenerationStateReady, GenerationStateFailed:
		return true
	default:
		return false
	}
}

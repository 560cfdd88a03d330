package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TestResult records one completed or skipped reading attempt. Never mutated
// after creation; deletable by its owner or an admin. Repeated attempts on
// the same paragraph create additional rows (reading history).
type TestResult struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	ParagraphID        uuid.UUID `json:"paragraph_id"`
	BookID             uuid.UUID `json:"book_id"`
	ReadingTimeSeconds int       `json:"reading_time_seconds"`
	WordsPerMinute     int       `json:"words_per_minute"`
	CorrectCount       int       `json:"correct_count"`
	TotalQuestions     int       `json:"total_questions"`

	// ComprehensionRate is nil when the attempt was skipped: a skipped
	// result has no defined comprehension.
	ComprehensionRate *int      `json:"comprehension_rate,omitempty"`
	Skipped           bool      `json:"skipped"`
	CreatedAt         time.Time `json:"created_at"`
}

// AnswerRecord is one graded answer belonging to a TestResult. Created
// atomically with its parent; a skipped result has none.
type AnswerRecord struct {
	ID         uuid.UUID `json:"id"`
	ResultID   uuid.UUID `json:"result_id"`
	QuestionID uuid.UUID `json:"question_id"`
	UserAnswer string    `json:"user_answer"`
	IsCorrect  bool      `json:"is_correct"`
}

// NewTestResult builds a scored result. correctCount and totalQuestions come
// from grading the submitted answers against the paragraph's questions.
func NewTestResult(
	userID, paragraphID, bookID uuid.UUID,
	readingTimeSeconds, wordCount, correctCount, totalQuestions int,
) (*TestResult, error) {
	if readingTimeSeconds < 0 {
		return nil, ErrNegativeReadingTime
	}

	rate := ComprehensionRate(correctCount, totalQuestions)
	r := &TestResult{
		ID:                 uuid.New(),
		UserID:             userID,
		ParagraphID:        paragraphID,
		BookID:             bookID,
		ReadingTimeSeconds: readingTimeSeconds,
		WordsPerMinute:     WordsPerMinute(wordCount, readingTimeSeconds),
		CorrectCount:       correctCount,
		TotalQuestions:     totalQuestions,
		ComprehensionRate:  &rate,
		CreatedAt:          time.Now().UTC(),
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewSkippedTestResult builds a result for a reader who opted out of the
// quiz. Reading time and speed are still recorded; comprehension is left
// undefined.
func NewSkippedTestResult(
	userID, paragraphID, bookID uuid.UUID,
	readingTimeSeconds, wordCount int,
) (*TestResult, error) {
	if readingTimeSeconds < 0 {
		return nil, ErrNegativeReadingTime
	}

	r := &TestResult{
		ID:                 uuid.New(),
		UserID:             userID,
		ParagraphID:        paragraphID,
		BookID:             bookID,
		ReadingTimeSeconds: readingTimeSeconds,
		WordsPerMinute:     WordsPerMinute(wordCount, readingTimeSeconds),
		Skipped:            true,
		CreatedAt:          time.Now().UTC(),
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

// Validate checks if the TestResult has valid data.
func (r *TestResult) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyResultID
	}
	if r.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if r.ParagraphID == uuid.Nil {
		return ErrEmptyParagraphID
	}
	if r.BookID == uuid.Nil {
		return ErrEmptyBookID
	}
	if r.ReadingTimeSeconds < 0 {
		return ErrNegativeReadingTime
	}
	if r.Skipped && (r.TotalQuestions != 0 || r.ComprehensionRate != nil) {
		return ErrSkippedWithAnswers
	}
	return nil
}

// WordsPerMinute computes reading speed, guarding the divide by zero: a
// zero-second reading time yields 0, not infinity.
func WordsPerMinute(wordCount, readingTimeSeconds int) int {
	if readingTimeSeconds <= 0 {
		return 0
	}
	return int(math.Round(60 * float64(wordCount) / float64(readingTimeSeconds)))
}

// ComprehensionRate computes the percentage of questions answered correctly,
// rounded to the nearest integer. Zero total questions yields 0.
func ComprehensionRate(correctCount, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correctCount) / float64(totalQuestions)))
}

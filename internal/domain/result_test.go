package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestWordsPerMinute(t *testing.T) {
	cases := []struct {
		name     string
		words    int
		seconds  int
		expected int
	}{
		{"three hundred wpm", 900, 180, 300},
		{"rounds to nearest", 250, 59, 254},
		{"zero seconds yields zero", 500, 0, 0},
		{"negative seconds yields zero", 500, -10, 0},
		{"zero words", 0, 60, 0},
	}

	for _, tc := range cases {
		if got := WordsPerMinute(tc.words, tc.seconds); got != tc.expected {
			t.Errorf("%s: WordsPerMinute(%d, %d) = %d, expected %d",
				tc.name, tc.words, tc.seconds, got, tc.expected)
		}
	}
}

func TestComprehensionRate(t *testing.T) {
	cases := []struct {
		name     string
		correct  int
		total    int
		expected int
	}{
		{"three of five", 3, 5, 60},
		{"all correct", 5, 5, 100},
		{"none correct", 0, 5, 0},
		{"rounds to nearest", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"zero total yields zero", 3, 0, 0},
	}

	for _, tc := range cases {
		if got := ComprehensionRate(tc.correct, tc.total); got != tc.expected {
			t.Errorf("%s: ComprehensionRate(%d, %d) = %d, expected %d",
				tc.name, tc.correct, tc.total, got, tc.expected)
		}
	}
}

func TestNewTestResult(t *testing.T) {
	userID := uuid.New()
	paragraphID := uuid.New()
	bookID := uuid.New()

	result, err := NewTestResult(userID, paragraphID, bookID, 180, 900, 3, 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}
	if result.WordsPerMinute != 300 {
		t.Errorf("Expected 300 wpm, got %d", result.WordsPerMinute)
	}
	if result.ComprehensionRate == nil || *result.ComprehensionRate != 60 {
		t.Errorf("Expected comprehension rate 60, got %v", result.ComprehensionRate)
	}
	if result.Skipped {
		t.Error("Expected scored result not to be skipped")
	}
	if result.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Negative reading time is rejected
	_, err = NewTestResult(userID, paragraphID, bookID, -1, 900, 3, 5)
	if err != ErrNegativeReadingTime {
		t.Errorf("Expected error %v, got %v", ErrNegativeReadingTime, err)
	}
}

func TestNewSkippedTestResult(t *testing.T) {
	result, err := NewSkippedTestResult(uuid.New(), uuid.New(), uuid.New(), 120, 600)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.Skipped {
		t.Error("Expected skipped result")
	}
	if result.ComprehensionRate != nil {
		t.Errorf("Expected nil comprehension rate, got %v", *result.ComprehensionRate)
	}
	if result.TotalQuestions != 0 {
		t.Errorf("Expected zero total questions, got %d", result.TotalQuestions)
	}
	if result.WordsPerMinute != 300 {
		t.Errorf("Expected 300 wpm, got %d", result.WordsPerMinute)
	}
}

func TestTestResultValidate(t *testing.T) {
	rate := 60
	valid := TestResult{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		ParagraphID:        uuid.New(),
		BookID:             uuid.New(),
		ReadingTimeSeconds: 180,
		WordsPerMinute:     300,
		CorrectCount:       3,
		TotalQuestions:     5,
		ComprehensionRate:  &rate,
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	invalid := valid
	invalid.ID = uuid.Nil
	if err := invalid.Validate(); err != ErrEmptyResultID {
		t.Errorf("Expected error %v, got %v", ErrEmptyResultID, err)
	}

	invalid = valid
	invalid.UserID = uuid.Nil
	if err := invalid.Validate(); err != ErrEmptyUserID {
		t.Errorf("Expected error %v, got %v", ErrEmptyUserID, err)
	}

	// A skipped result must not carry question data
	invalid = valid
	invalid.Skipped = true
	if err := invalid.Validate(); err != ErrSkippedWithAnswers {
		t.Errorf("Expected error %v, got %v", ErrSkippedWithAnswers, err)
	}
}

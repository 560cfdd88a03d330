package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewQuestion(t *testing.T) {
	paragraphID := uuid.New()

	q, err := NewQuestion(paragraphID, "What color is the sky?",
		"Blue", "Green", "Red", "Yellow", "A")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if q.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}
	if q.ParagraphID != paragraphID {
		t.Errorf("Expected paragraph ID %v, got %v", paragraphID, q.ParagraphID)
	}
	if q.CorrectOption != "A" {
		t.Errorf("Expected correct option A, got %s", q.CorrectOption)
	}

	// The correct option is normalized before validation
	q, err = NewQuestion(paragraphID, "Question?", "w", "x", "y", "z", " c ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if q.CorrectOption != "C" {
		t.Errorf("Expected normalized correct option C, got %s", q.CorrectOption)
	}

	// Invalid correct option
	_, err = NewQuestion(paragraphID, "Question?", "w", "x", "y", "z", "E")
	if err != ErrInvalidOption {
		t.Errorf("Expected error %v, got %v", ErrInvalidOption, err)
	}

	// Empty question text
	_, err = NewQuestion(paragraphID, "", "w", "x", "y", "z", "A")
	if err != ErrEmptyQuestionText {
		t.Errorf("Expected error %v, got %v", ErrEmptyQuestionText, err)
	}

	// Missing option
	_, err = NewQuestion(paragraphID, "Question?", "w", "", "y", "z", "A")
	if err != ErrMissingOption {
		t.Errorf("Expected error %v, got %v", ErrMissingOption, err)
	}
}

func TestIsValidOption(t *testing.T) {
	for _, opt := range []string{"A", "B", "C", "D"} {
		if !IsValidOption(opt) {
			t.Errorf("Expected %s to be a valid option", opt)
		}
	}
	for _, opt := range []string{"", "a", "E", "AB"} {
		if IsValidOption(opt) {
			t.Errorf("Expected %s to be invalid", opt)
		}
	}
}

func TestIsValidGenerationState(t *testing.T) {
	for _, s := range []GenerationState{GenerationStateGenerating, GenerationStateReady, GenerationStateFailed} {
		if !IsValidGenerationState(s) {
			t.Errorf("Expected %s to be a valid state", s)
		}
	}

	// not_started is never persisted
	if IsValidGenerationState(GenerationStateNotStarted) {
		t.Error("Expected not_started to be rejected")
	}
	if IsValidGenerationState("done") {
		t.Error("Expected unknown state to be rejected")
	}
}

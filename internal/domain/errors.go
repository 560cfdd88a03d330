package domain

import "errors"

// Common validation errors shared across domain entities.
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")

	ErrEmptyBookID        = errors.New("book ID cannot be empty")
	ErrEmptyBookTitle     = errors.New("book title cannot be empty")
	ErrEmptyParagraphID   = errors.New("paragraph ID cannot be empty")
	ErrEmptyParagraphText = errors.New("paragraph content cannot be empty")
	ErrInvalidOrdinal     = errors.New("paragraph ordinal must be positive")

	ErrEmptyQuestionID   = errors.New("question ID cannot be empty")
	ErrEmptyQuestionText = errors.New("question text cannot be empty")
	ErrMissingOption     = errors.New("question must have all four options")
	ErrInvalidOption     = errors.New("option must be one of A, B, C, D")

	ErrInvalidGenerationState = errors.New("invalid generation state")

	ErrEmptyResultID       = errors.New("test result ID cannot be empty")
	ErrNegativeReadingTime = errors.New("reading time cannot be negative")
	ErrSkippedWithAnswers  = errors.New("skipped result cannot carry answers")
)

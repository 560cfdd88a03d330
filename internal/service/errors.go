// Package service provides application-level services for reading sessions,
// books, question generation and test submission.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent expected conditions that callers check for with
// errors.Is(); the API layer maps them to HTTP status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer maps this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrQuestionsNotReady indicates a test was submitted for a paragraph
	// whose question set has not been generated yet.
	ErrQuestionsNotReady = errors.New("questions are not ready for this paragraph")

	// ErrIncompleteAnswers indicates a scored submission did not answer
	// every question of the paragraph exactly once.
	ErrIncompleteAnswers = errors.New("submission must answer every question exactly once")

	// ErrMismatchedQuestion indicates a submitted answer references a
	// question that does not belong to the paragraph under test.
	ErrMismatchedQuestion = errors.New("answer references a question from another paragraph")

	// ErrInvalidAnswerOption indicates a submitted answer is not one of
	// A, B, C or D.
	ErrInvalidAnswerOption = errors.New("answer must be one of A, B, C or D")

	// ErrBookFinished indicates the reader has completed every paragraph of
	// the book, so there is no next paragraph to serve.
	ErrBookFinished = errors.New("no unread paragraphs remain in this book")

	// ErrNoParagraphs indicates the system holds no paragraphs at all, so a
	// guest session cannot be served.
	ErrNoParagraphs = errors.New("no paragraphs available")

	// ErrUnsupportedFormat indicates an uploaded file's extension is not one
	// of the supported document formats.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates an uploaded file produced no usable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

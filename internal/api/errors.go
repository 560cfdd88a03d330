package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/service"
	"github.com/mquint/readflow-api/internal/service/auth"
	"github.com/mquint/readflow-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrBookNotFound),
		errors.Is(err, store.ErrParagraphNotFound),
		errors.Is(err, store.ErrResultNotFound),
		errors.Is(err, store.ErrShelfEntryNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists),
		errors.Is(err, store.ErrUsernameExists):
		return http.StatusConflict

	// Submission state errors
	case errors.Is(err, service.ErrQuestionsNotReady):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrIncompleteAnswers),
		errors.Is(err, service.ErrMismatchedQuestion),
		errors.Is(err, service.ErrInvalidAnswerOption),
		errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrEmptyDocument),
		errors.Is(err, domain.ErrNegativeReadingTime):
		return http.StatusBadRequest

	// Special cases: nothing left to serve
	case errors.Is(err, service.ErrBookFinished),
		errors.Is(err, service.ErrNoParagraphs):
		return http.StatusNoContent

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid username or password"

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this resource"

	// Not found errors
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrBookNotFound):
		return "Book not found"

	case errors.Is(err, store.ErrParagraphNotFound):
		return "Paragraph not found"

	case errors.Is(err, store.ErrResultNotFound):
		return "Test result not found"

	case errors.Is(err, store.ErrShelfEntryNotFound):
		return "Bookshelf entry not found"

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, store.ErrUsernameExists):
		return "Username already exists"

	case errors.Is(err, service.ErrQuestionsNotReady):
		return "Questions are not ready yet"

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, service.ErrIncompleteAnswers):
		return "Every question must be answered exactly once"

	case errors.Is(err, service.ErrMismatchedQuestion):
		return "Answer references an unknown question"

	case errors.Is(err, service.ErrInvalidAnswerOption):
		return "Answers must be one of A, B, C or D"

	case errors.Is(err, service.ErrUnsupportedFormat):
		return "Unsupported document format"

	case errors.Is(err, service.ErrEmptyDocument):
		return "Document contains no extractable text"

	case errors.Is(err, domain.ErrNegativeReadingTime):
		return "Reading time cannot be negative"

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'LoginRequest.Email' Error:Field validation
		// for 'Email' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

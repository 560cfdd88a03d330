package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	// Entity-specific variants below wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or references a row that does not exist.
	ErrInvalidEntity = errors.New("invalid entity")

	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrBookNotFound       = fmt.Errorf("%w: book", ErrNotFound)
	ErrParagraphNotFound  = fmt.Errorf("%w: paragraph", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("%w: question", ErrNotFound)
	ErrResultNotFound     = fmt.Errorf("%w: test result", ErrNotFound)
	ErrShelfEntryNotFound = fmt.Errorf("%w: bookshelf entry", ErrNotFound)

	// ErrEmailExists and ErrUsernameExists are returned when registration
	// collides with an existing account.
	ErrEmailExists    = fmt.Errorf("%w: email", ErrDuplicate)
	ErrUsernameExists = fmt.Errorf("%w: username", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

package services

import (
	"errors"
	"fmt"

	"pokedex/internal/repositories"
)

var (
	// ErrValidation marks input that fails the request rules. Maps to 400.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by LoginUser for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateAccount is returned when the username or email is already registered.
	ErrDuplicateAccount = errors.New("username or email already registered")
	// ErrUnauthorized is returned when a token cannot be validated. Maps to 401.
	ErrUnauthorized = errors.New("invalid or expired token")
	// ErrAccountNotFound is returned when the authenticated identity no longer resolves. Maps to 404.
	ErrAccountNotFound = errors.New("user not found")
	// ErrFavoriteExists is returned when adding a pokemon that is already a favorite. Maps to 409.
	ErrFavoriteExists = errors.New("pokemon already in favorites")
	// ErrFavoriteNotFound is returned when removing a pokemon that is not a favorite. Maps to 404.
	ErrFavoriteNotFound = errors.New("favorite not found")
	// ErrNoFile is returned when a picture upload carries no file.
	ErrNoFile = errors.New("no file uploaded")
	// ErrUnsupportedImage is returned for uploads whose extension is not an accepted image type.
	ErrUnsupportedImage = errors.New("unsupported image type")
	// ErrPersistence wraps storage failures that are not part of the business rules. Maps to 500.
	ErrPersistence = errors.New("persistence failure")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateRepoError converts repository sentinels into service errors.
// Anything unrecognised is treated as a persistence failure.
func translateRepoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	case errors.Is(err, repositories.ErrFavoriteExists):
		return fmt.Errorf("%s: %w", op, ErrFavoriteExists)
	case errors.Is(err, repositories.ErrFavoriteNotFound):
		return fmt.Errorf("%s: %w", op, ErrFavoriteNotFound)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicateAccount)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
}

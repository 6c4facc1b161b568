package repositories

import (
	"context"
	"errors"

	"pokedex/internal/models"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when a unique username or email constraint is violated.
	ErrDuplicate = errors.New("account already exists")
	// ErrFavoriteExists is returned by AppendFavorite when the pokemon id is already present.
	ErrFavoriteExists = errors.New("favorite already exists")
	// ErrFavoriteNotFound is returned by RemoveFavorite when the pokemon id is absent.
	ErrFavoriteNotFound = errors.New("favorite not found")
	// ErrConcurrentUpdate is returned when a favorites mutation kept losing races with other writers.
	ErrConcurrentUpdate = errors.New("account was modified concurrently")
)

// AccountRepository defines the interface for account data access.
//
// AppendFavorite and RemoveFavorite are atomic with respect to other writers of the same account:
// the presence check and the write happen as one conditional update, so concurrent mutations
// for different pokemon ids never overwrite each other.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	AppendFavorite(ctx context.Context, id string, entry models.FavoriteEntry) (*models.Account, error)
	RemoveFavorite(ctx context.Context, id string, pokemonID int) (*models.Account, error)
	SetProfileImage(ctx context.Context, id string, ref string) (*models.Account, error)
}

package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pokedex/internal/models"

	"github.com/google/uuid"
)

// MemoryAccountRepository is an in-memory implementation of AccountRepository.
type MemoryAccountRepository struct {
	accounts map[string]*models.Account
	mu       sync.RWMutex
}

// NewMemoryAccountRepository creates a new instance of MemoryAccountRepository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*models.Account),
	}
}

// Create adds a new account, enforcing username and email uniqueness.
func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Username == account.Username {
			return fmt.Errorf("username %s: %w", account.Username, ErrDuplicate)
		}
		if existing.Email == account.Email {
			return fmt.Errorf("email %s: %w", account.Email, ErrDuplicate)
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = account.Clone()
	return nil
}

// GetByID returns an account by its ID.
func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	return account.Clone(), nil
}

// GetByUsername returns an account by its username.
func (r *MemoryAccountRepository) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Username == username }, "username "+username)
}

// GetByEmail returns an account by its email.
func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.Email == email }, "email "+email)
}

func (r *MemoryAccountRepository) find(match func(*models.Account) bool, what string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if match(account) {
			return account.Clone(), nil
		}
	}
	return nil, fmt.Errorf("account with %s: %w", what, ErrNotFound)
}

// AppendFavorite appends entry unless its pokemon id is already present.
func (r *MemoryAccountRepository) AppendFavorite(_ context.Context, id string, entry models.FavoriteEntry) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		next, ok := a.Favorites.With(entry)
		if !ok {
			return fmt.Errorf("pokemon %d: %w", entry.PokemonID, ErrFavoriteExists)
		}
		a.Favorites = next
		return nil
	})
}

// RemoveFavorite removes the entry with pokemonID.
func (r *MemoryAccountRepository) RemoveFavorite(_ context.Context, id string, pokemonID int) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		next, ok := a.Favorites.Without(pokemonID)
		if !ok {
			return fmt.Errorf("pokemon %d: %w", pokemonID, ErrFavoriteNotFound)
		}
		a.Favorites = next
		return nil
	})
}

// SetProfileImage stores the uploaded image reference on the account.
func (r *MemoryAccountRepository) SetProfileImage(_ context.Context, id string, ref string) (*models.Account, error) {
	return r.mutate(id, func(a *models.Account) error {
		a.ProfileImage = ref
		return nil
	})
}

func (r *MemoryAccountRepository) mutate(id string, fn func(*models.Account) error) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = time.Now()
	r.accounts[id] = next
	return next.Clone(), nil
}

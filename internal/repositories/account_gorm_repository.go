package repositories

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"pokedex/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// maxFavoriteRetries bounds how often a favorites mutation is re-applied after losing a version race.
	maxFavoriteRetries = 8
	// favoriteRetryDelay is the first pause before a retry; it doubles, with jitter, on each attempt.
	favoriteRetryDelay = 5 * time.Millisecond
)

// GORMAccountRepository is a GORM implementation of AccountRepository.
//
// Favorites are stored as a JSON column on the account row. Mutations use optimistic concurrency on
// the version column: the row is only written when its version still matches what was read. On
// PostgreSQL the read also takes a row lock inside a transaction, so concurrent writers queue
// instead of retrying.
type GORMAccountRepository struct {
	db       *gorm.DB
	rowLocks bool

	// afterLoad runs between reading an account and writing it back; tests use it to inject a racing writer.
	afterLoad func()
}

// NewGORMAccountRepository creates a new instance of GORMAccountRepository.
func NewGORMAccountRepository(db *gorm.DB) *GORMAccountRepository {
	return &GORMAccountRepository{
		db:       db,
		rowLocks: db.Dialector.Name() == "postgres",
	}
}

// Create creates a new account in the database.
func (r *GORMAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create account %s: %w", account.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID from the database.
func (r *GORMAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.first(ctx, "id = ?", id, "ID "+id)
}

// GetByUsername retrieves an account by its username from the database.
func (r *GORMAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.first(ctx, "username = ?", username, "username "+username)
}

// GetByEmail retrieves an account by its email from the database.
func (r *GORMAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.first(ctx, "email = ?", email, "email "+email)
}

func (r *GORMAccountRepository) first(ctx context.Context, query string, arg interface{}, what string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account with %s: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by %s: %w", what, err)
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	return &account, nil
}

// AppendFavorite appends entry unless its pokemon id is already present.
func (r *GORMAccountRepository) AppendFavorite(ctx context.Context, id string, entry models.FavoriteEntry) (*models.Account, error) {
	return r.mutateFavorites(ctx, id, func(favs models.Favorites) (models.Favorites, error) {
		next, ok := favs.With(entry)
		if !ok {
			return nil, fmt.Errorf("pokemon %d: %w", entry.PokemonID, ErrFavoriteExists)
		}
		return next, nil
	})
}

// RemoveFavorite removes the entry with pokemonID.
func (r *GORMAccountRepository) RemoveFavorite(ctx context.Context, id string, pokemonID int) (*models.Account, error) {
	return r.mutateFavorites(ctx, id, func(favs models.Favorites) (models.Favorites, error) {
		next, ok := favs.Without(pokemonID)
		if !ok {
			return nil, fmt.Errorf("pokemon %d: %w", pokemonID, ErrFavoriteNotFound)
		}
		return next, nil
	})
}

// mutateFavorites loads the account, applies fn and writes the result only if nobody else wrote in between.
// A lost race backs off, reloads and re-applies fn, so the presence checks always run against the latest list.
func (r *GORMAccountRepository) mutateFavorites(ctx context.Context, id string, fn func(models.Favorites) (models.Favorites, error)) (*models.Account, error) {
	delay := favoriteRetryDelay
	for attempt := 0; attempt < maxFavoriteRetries; attempt++ {
		if attempt > 0 {
			if err := sleepJittered(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		var (
			account *models.Account
			written bool
			err     error
		)
		if r.rowLocks {
			err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var txErr error
				account, written, txErr = r.applyFavorites(tx, id, true, fn)
				return txErr
			})
		} else {
			account, written, err = r.applyFavorites(r.db.WithContext(ctx), id, false, fn)
		}
		if err != nil {
			return nil, err
		}
		if written {
			return account, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", id, ErrConcurrentUpdate)
}

// applyFavorites is one read-modify-write attempt. written is false when the version moved underneath it.
func (r *GORMAccountRepository) applyFavorites(db *gorm.DB, id string, lock bool, fn func(models.Favorites) (models.Favorites, error)) (*models.Account, bool, error) {
	query := db
	if lock {
		query = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.Account
	if err := query.First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to get account by ID %s: %w", id, err)
	}
	if r.afterLoad != nil {
		r.afterLoad()
	}

	next, err := fn(account.Favorites)
	if err != nil {
		return nil, false, err
	}

	updated := models.Account{
		Favorites: next,
		Version:   account.Version + 1,
		UpdatedAt: time.Now(),
	}
	res := db.Model(&models.Account{}).
		Where("id = ? AND version = ?", id, account.Version).
		Select("Favorites", "Version", "UpdatedAt").
		Updates(&updated)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to update favorites for account %s: %w", id, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, false, nil
	}
	account.Favorites = next
	account.Version = updated.Version
	account.UpdatedAt = updated.UpdatedAt
	return &account, true, nil
}

// sleepJittered waits between d/2 and d, or until ctx is done.
func sleepJittered(ctx context.Context, d time.Duration) error {
	d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetProfileImage stores the uploaded image reference on the account.
func (r *GORMAccountRepository) SetProfileImage(ctx context.Context, id string, ref string) (*models.Account, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"profile_image": ref, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update profile image for account %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

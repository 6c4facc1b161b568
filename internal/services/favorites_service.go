package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"pokedex/internal/metrics"
	"pokedex/internal/models"
	"pokedex/internal/repositories"

	"go.uber.org/zap"
)

const (
	opAdd    = "add"
	opRemove = "remove"
)

// FavoritesService owns the rules for a user's favorites list.
// The list is only ever changed through the repository's atomic mutations.
type FavoritesService struct {
	accountRepo repositories.AccountRepository
	publisher   EventPublisher
	log         *zap.Logger
}

// NewFavoritesService creates a new FavoritesService. publisher may be nil.
func NewFavoritesService(accountRepo repositories.AccountRepository, publisher EventPublisher, log *zap.Logger) *FavoritesService {
	return &FavoritesService{
		accountRepo: accountRepo,
		publisher:   publisher,
		log:         nopIfNil(log),
	}
}

// GetProfile returns the account behind an authenticated identity.
func (s *FavoritesService) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, translateRepoError("failed to load profile", err)
	}
	return account, nil
}

// ListFavorites returns the ordered favorites list of an account.
func (s *FavoritesService) ListFavorites(ctx context.Context, accountID string) (models.Favorites, error) {
	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.Favorites.Clone(), nil
}

// AddFavorite appends entry to the account's favorites unless the pokemon is already present.
func (s *FavoritesService) AddFavorite(ctx context.Context, accountID string, entry models.FavoriteEntry) (*models.Account, error) {
	entry.PokemonName = strings.TrimSpace(entry.PokemonName)
	entry.Image = strings.TrimSpace(entry.Image)
	if entry.PokemonID <= 0 {
		metrics.RecordFavoriteMutation(opAdd, "invalid")
		return nil, validationError("pokemonId must be a positive integer")
	}
	if entry.PokemonName == "" {
		metrics.RecordFavoriteMutation(opAdd, "invalid")
		return nil, validationError("pokemonName is required")
	}

	account, err := s.accountRepo.AppendFavorite(ctx, accountID, entry)
	if err != nil {
		err = translateRepoError("failed to add favorite", err)
		metrics.RecordFavoriteMutation(opAdd, resultLabel(err))
		return nil, err
	}
	metrics.RecordFavoriteMutation(opAdd, "ok")

	s.log.Debug("favorite added",
		zap.String("account_id", accountID),
		zap.Int("pokemon_id", entry.PokemonID),
		zap.Int("count", len(account.Favorites)),
	)
	publishEvent(ctx, s.publisher, s.log, EventFavoriteAdded, FavoriteEvent{
		AccountID:   accountID,
		PokemonID:   entry.PokemonID,
		PokemonName: entry.PokemonName,
		Count:       len(account.Favorites),
		OccurredAt:  time.Now().UTC(),
	})
	return account, nil
}

// RemoveFavorite removes the pokemon from the account's favorites.
// Removing a pokemon that is not a favorite is an error, also on repeat.
func (s *FavoritesService) RemoveFavorite(ctx context.Context, accountID string, pokemonID int) (*models.Account, error) {
	if pokemonID <= 0 {
		metrics.RecordFavoriteMutation(opRemove, "invalid")
		return nil, validationError("pokemonId is required")
	}

	account, err := s.accountRepo.RemoveFavorite(ctx, accountID, pokemonID)
	if err != nil {
		err = translateRepoError("failed to remove favorite", err)
		metrics.RecordFavoriteMutation(opRemove, resultLabel(err))
		return nil, err
	}
	metrics.RecordFavoriteMutation(opRemove, "ok")

	s.log.Debug("favorite removed",
		zap.String("account_id", accountID),
		zap.Int("pokemon_id", pokemonID),
		zap.Int("count", len(account.Favorites)),
	)
	publishEvent(ctx, s.publisher, s.log, EventFavoriteRemoved, FavoriteEvent{
		AccountID:  accountID,
		PokemonID:  pokemonID,
		Count:      len(account.Favorites),
		OccurredAt: time.Now().UTC(),
	})
	return account, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrFavoriteExists):
		return "conflict"
	case errors.Is(err, ErrFavoriteNotFound), errors.Is(err, ErrAccountNotFound):
		return "not_found"
	default:
		return "error"
	}
}

package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pokedex/internal/models"
	"pokedex/internal/repositories"
	"pokedex/internal/server"
	"pokedex/internal/services"
	"pokedex/internal/session"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := repositories.NewMemoryAccountRepository()
	app := server.New(server.Dependencies{
		Auth:      services.NewAuthService(repo, services.AuthConfig{Secret: "secret", TokenTTL: time.Hour}, nil, nil),
		Favorites: services.NewFavoritesService(repo, nil, nil),
		Profile:   services.NewProfileService(repo, nil, nil, nil),
	})
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionAgainstServer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	api := session.NewHTTPClient(srv.URL+"/api", nil, 5*time.Second)
	store := session.NewMemoryStore()
	s := session.New(api, store, nil)

	_, err := s.Register(ctx, "ash", "ash@example.com", "pikachu")
	require.NoError(t, err)
	_, err = s.Register(ctx, "ash2", "ash@example.com", "pikachu")
	require.Error(t, err)
	assert.True(t, session.IsStatus(err, http.StatusBadRequest))
	assert.False(t, s.LoggedIn())

	_, err = s.Login(ctx, "ash@example.com", "pikachu")
	require.NoError(t, err)
	exp, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	_, err = s.AddFavorite(ctx, models.FavoriteEntry{PokemonID: 25, PokemonName: "pikachu"})
	require.NoError(t, err)
	_, err = s.AddFavorite(ctx, models.FavoriteEntry{PokemonID: 1, PokemonName: "bulbasaur"})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 1}, s.Favorites().IDs())

	_, err = s.AddFavorite(ctx, models.FavoriteEntry{PokemonID: 25, PokemonName: "pikachu"})
	require.Error(t, err)
	assert.True(t, session.IsStatus(err, http.StatusConflict))
	assert.Equal(t, []int{25, 1}, s.Favorites().IDs())

	_, err = s.RemoveFavorite(ctx, 25)
	require.NoError(t, err)
	_, err = s.RemoveFavorite(ctx, 25)
	assert.True(t, session.IsStatus(err, http.StatusNotFound))
	assert.Equal(t, []int{1}, s.Favorites().IDs())

	// A new container over the same store picks up where this one left off.
	other := session.New(api, store, nil)
	require.NoError(t, other.Restore(ctx))
	assert.Equal(t, []int{1}, other.Favorites().IDs())
	refreshed, err := other.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, refreshed.Favorites.IDs())
}

func TestSessionWithForgedToken(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	api := session.NewHTTPClient(srv.URL+"/api", nil, 5*time.Second)

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.KeyToken, []byte("forged")))
	require.NoError(t, store.Set(ctx, session.KeyAccount, []byte(`{"id":"x","username":"mallory","favorites":[]}`)))

	s := session.New(api, store, nil)
	require.NoError(t, s.Restore(ctx))
	require.True(t, s.LoggedIn())

	_, err := s.AddFavorite(ctx, models.FavoriteEntry{PokemonID: 4, PokemonName: "charmander"})
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired token", err.Error())
	assert.True(t, s.LoggedIn())

	_, err = s.Refresh(ctx)
	require.Error(t, err)
	assert.False(t, s.LoggedIn())
}

// Package session holds the client side of a logged-in user: the token, the account as last
// returned by the server, and a durable copy of both.
//
// The local favorites list is never edited in place. Every change is a request to the server and
// the account in the response replaces the local one wholesale.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pokedex/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrNotLoggedIn is returned by operations that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in")

// Keys under which the snapshot is stored.
const (
	KeyToken   = "token"
	KeyAccount = "account"
)

// State is the client-side session container. It is safe for concurrent use; mutations are
// serialized so responses are applied in the order their requests were sent.
type State struct {
	api   API
	store Store
	log   *zap.Logger

	// opMu is held for the whole round trip of a mutation.
	opMu sync.Mutex

	mu      sync.RWMutex
	token   string
	account *models.Account
}

// New creates an empty State. Call Restore to load a stored session.
func New(api API, store Store, log *zap.Logger) *State {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &State{api: api, store: store, log: log}
}

// Restore loads the stored session, if any. A stored account that cannot be decoded clears the store.
func (s *State) Restore(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	token, okToken, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		return err
	}
	rawAccount, okAccount, err := s.store.Get(ctx, KeyAccount)
	if err != nil {
		return err
	}
	if !okToken || !okAccount || len(token) == 0 {
		s.set("", nil)
		return nil
	}

	var account models.Account
	if err := json.Unmarshal(rawAccount, &account); err != nil || account.ID == "" {
		s.log.Warn("stored session is corrupt, clearing it", zap.Error(err))
		s.set("", nil)
		return s.store.Clear(ctx)
	}

	s.set(string(token), &account)
	s.log.Debug("session restored", zap.String("username", account.Username))
	return nil
}

// Register creates an account on the server. It does not log in.
func (s *State) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	return s.api.Register(ctx, username, email, password)
}

// Login authenticates and replaces the session with the server's token and account.
func (s *State) Login(ctx context.Context, email, password string) (*models.Account, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	token, account, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, token, account); err != nil {
		return nil, err
	}
	s.log.Info("logged in", zap.String("username", account.Username))
	return account.Clone(), nil
}

// Logout forgets the session locally and in the store.
func (s *State) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.set("", nil)
	return s.store.Clear(ctx)
}

// Refresh reloads the account from the server. A 401 means the token is no longer accepted and
// ends the session.
func (s *State) Refresh(ctx context.Context) (*models.Account, error) {
	return s.mutate(ctx, func(token string) (*models.Account, error) {
		account, err := s.api.Profile(ctx, token)
		if IsStatus(err, http.StatusUnauthorized) {
			s.set("", nil)
			if clearErr := s.store.Clear(ctx); clearErr != nil {
				s.log.Warn("failed to clear expired session", zap.Error(clearErr))
			}
		}
		return account, err
	})
}

// AddFavorite asks the server to add the pokemon and adopts the returned account.
func (s *State) AddFavorite(ctx context.Context, entry models.FavoriteEntry) (*models.Account, error) {
	return s.mutate(ctx, func(token string) (*models.Account, error) {
		return s.api.AddFavorite(ctx, token, entry)
	})
}

// RemoveFavorite asks the server to remove the pokemon and adopts the returned account.
func (s *State) RemoveFavorite(ctx context.Context, pokemonID int) (*models.Account, error) {
	return s.mutate(ctx, func(token string) (*models.Account, error) {
		return s.api.RemoveFavorite(ctx, token, pokemonID)
	})
}

// mutate runs one server round trip and, on success, replaces the local account with the response.
// On failure the local state is left as it was.
func (s *State) mutate(ctx context.Context, call func(token string) (*models.Account, error)) (*models.Account, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	token := s.Token()
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	account, err := call(token)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, token, account); err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// commit installs token and account in memory and then persists them together. The in-memory copy
// follows the server even when persisting fails; the stored pair is then dropped so a later Restore
// cannot match this token with an older account.
func (s *State) commit(ctx context.Context, token string, account *models.Account) error {
	if account == nil {
		return errors.New("server returned no account")
	}
	if account.Favorites == nil {
		account.Favorites = models.Favorites{}
	}
	s.set(token, account.Clone())

	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	err = s.store.SetAll(ctx, map[string][]byte{
		KeyToken:   []byte(token),
		KeyAccount: raw,
	})
	if err != nil {
		s.log.Warn("failed to persist session", zap.Error(err))
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.log.Warn("failed to drop stale session", zap.Error(clearErr))
		}
	}
	return nil
}

func (s *State) set(token string, account *models.Account) {
	s.mu.Lock()
	s.token = token
	s.account = account
	s.mu.Unlock()
}

// Token returns the current bearer token, or "" when logged out.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a session is held.
func (s *State) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.account != nil
}

// Snapshot returns a copy of the current account, or nil when logged out.
func (s *State) Snapshot() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account.Clone()
}

// Favorites returns a copy of the current favorites in server order.
func (s *State) Favorites() models.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return models.Favorites{}
	}
	return s.account.Favorites.Clone()
}

// IsFavorite reports whether the pokemon is in the current favorites.
func (s *State) IsFavorite(pokemonID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account != nil && s.account.Favorites.Contains(pokemonID)
}

// ExpiresAt returns the token's exp claim. The signature is not checked here; the server does that.
func (s *State) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

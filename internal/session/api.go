package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pokedex/internal/models"
)

// API is the part of the server the session talks to.
type API interface {
	Register(ctx context.Context, username, email, password string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, *models.Account, error)
	Profile(ctx context.Context, token string) (*models.Account, error)
	AddFavorite(ctx context.Context, token string, entry models.FavoriteEntry) (*models.Account, error)
	RemoveFavorite(ctx context.Context, token string, pokemonID int) (*models.Account, error)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

// Error returns the server's detail, falling back to its summary.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// HTTPClient calls the server's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL (for example http://localhost:8080/api).
// A nil httpClient gets a client with the given timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client, timeout time.Duration) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type userResponse struct {
	Token string          `json:"token"`
	User  *models.Account `json:"user"`
}

func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	var out userResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	var out userResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", nil, err
	}
	if out.Token == "" || out.User == nil {
		return "", nil, errors.New("login response is missing token or user")
	}
	return out.Token, out.User, nil
}

func (c *HTTPClient) Profile(ctx context.Context, token string) (*models.Account, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/profile", token, nil, &out); err != nil {
		return nil, err
	}
	return requireUser(out)
}

func (c *HTTPClient) AddFavorite(ctx context.Context, token string, entry models.FavoriteEntry) (*models.Account, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodPost, "/favorites/add", token, entry, &out); err != nil {
		return nil, err
	}
	return requireUser(out)
}

func (c *HTTPClient) RemoveFavorite(ctx context.Context, token string, pokemonID int) (*models.Account, error) {
	var out userResponse
	if err := c.do(ctx, http.MethodPost, "/favorites/remove", token, map[string]int{"pokemonId": pokemonID}, &out); err != nil {
		return nil, err
	}
	return requireUser(out)
}

func requireUser(out userResponse) (*models.Account, error) {
	if out.User == nil {
		return nil, errors.New("response is missing user")
	}
	return out.User, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Message, apiErr.Detail = e.Message, e.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package services_test

import (
	"context"
	"io"

	"pokedex/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of repositories.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	args := m.Called(ctx, username)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountRepository) AppendFavorite(ctx context.Context, id string, entry models.FavoriteEntry) (*models.Account, error) {
	args := m.Called(ctx, id, entry)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountRepository) RemoveFavorite(ctx context.Context, id string, pokemonID int) (*models.Account, error) {
	args := m.Called(ctx, id, pokemonID)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func (m *MockAccountRepository) SetProfileImage(ctx context.Context, id string, ref string) (*models.Account, error) {
	args := m.Called(ctx, id, ref)
	return accountOrNil(args.Get(0)), args.Error(1)
}

func accountOrNil(v interface{}) *models.Account {
	if v == nil {
		return nil
	}
	return v.(*models.Account)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

// MockImageStore is a mock implementation of services.ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Save(ctx context.Context, name string, contentType string, size int64, body io.Reader) (string, error) {
	args := m.Called(ctx, name, contentType, size, body)
	return args.String(0), args.Error(1)
}

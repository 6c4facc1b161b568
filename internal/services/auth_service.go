package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"pokedex/internal/models"
	"pokedex/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig configures token issuance.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Identity is the account identity carried by a valid token.
type Identity struct {
	AccountID string
	Email     string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	accountRepo repositories.AccountRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	publisher   EventPublisher
	log         *zap.Logger
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(accountRepo repositories.AccountRepository, cfg AuthConfig, publisher EventPublisher, log *zap.Logger) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		accountRepo: accountRepo,
		jwtSecret:   []byte(cfg.Secret),
		tokenTTL:    ttl,
		publisher:   publisher,
		log:         nopIfNil(log),
	}
}

// RegisterUser creates an account with a hashed password.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, validationError("username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, validationError("email %q is not a valid address", in.Email)
	}

	// Check if username or email already exists
	if existing, err := s.accountRepo.GetByUsername(ctx, in.Username); err == nil && existing != nil {
		return nil, fmt.Errorf("username '%s' already taken: %w", in.Username, ErrDuplicateAccount)
	}
	if existing, err := s.accountRepo.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("email '%s' already registered: %w", in.Email, ErrDuplicateAccount)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hashedPassword),
		Favorites: models.Favorites{},
	}
	// The repository still enforces uniqueness when two registrations race past the checks above.
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, translateRepoError("failed to register user", err)
	}

	s.log.Info("account registered", zap.String("account_id", account.ID), zap.String("username", account.Username))
	publishEvent(ctx, s.publisher, s.log, EventAccountRegistered, AccountEvent{
		AccountID:  account.ID,
		Username:   account.Username,
		Email:      account.Email,
		OccurredAt: time.Now().UTC(),
	})
	return account, nil
}

// LoginUser authenticates by email and password and returns a signed token with the account.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, *models.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, translateRepoError("failed to load account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	tokenString, err := s.issueToken(account)
	if err != nil {
		return "", nil, err
	}
	return tokenString, account, nil
}

func (s *AuthService) issueToken(account *models.Account) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": account.ID,
		"email":   account.Email,
		"iat":     now.Unix(),
		"exp":     now.Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token and returns the identity it carries.
// It never touches the account store.
func (s *AuthService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}
	// MapClaims.Valid accepts tokens without exp; issued tokens always carry one.
	if _, ok := claims["exp"]; !ok {
		return nil, fmt.Errorf("%w: missing exp claim", ErrUnauthorized)
	}

	accountID, _ := claims["user_id"].(string)
	if accountID == "" {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrUnauthorized)
	}
	email, _ := claims["email"].(string)

	return &Identity{AccountID: accountID, Email: email}, nil
}

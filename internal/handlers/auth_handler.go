package handlers

import (
	"pokedex/internal/middleware"
	"pokedex/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for registration, login and the caller's profile.
type AuthHandler struct {
	authService      *services.AuthService
	favoritesService *services.FavoritesService
	validate         *validator.Validate
	log              *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, favoritesService *services.FavoritesService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		favoritesService: favoritesService,
		validate:         newValidator(),
		log:              log,
	}
}

// RegisterRoutes registers the authentication routes. auth guards the profile route.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Get("/profile", auth, h.HandleProfile)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	account, err := h.authService.RegisterUser(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.log.Info("registration rejected", zap.String("username", req.Username), zap.Error(err))
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    account,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	token, account, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		h.log.Info("login failed", zap.String("email", req.Email), zap.Error(err))
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    account,
	})
}

// HandleProfile returns the authenticated user's account.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	account, err := h.favoritesService.GetProfile(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"user": account})
}

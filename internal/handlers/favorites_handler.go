package handlers

import (
	"pokedex/internal/middleware"
	"pokedex/internal/models"
	"pokedex/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FavoritesHandler handles HTTP requests for the caller's favorites list.
type FavoritesHandler struct {
	service  *services.FavoritesService
	validate *validator.Validate
	log      *zap.Logger
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(service *services.FavoritesService, log *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		service:  service,
		validate: newValidator(),
		log:      log,
	}
}

// RegisterRoutes registers the favorites routes on an authenticated router.
func (h *FavoritesHandler) RegisterRoutes(router fiber.Router) {
	favRoutes := router.Group("/favorites")
	favRoutes.Get("/", h.HandleList)
	favRoutes.Post("/add", h.HandleAdd)
	favRoutes.Post("/remove", h.HandleRemove)
}

// AddFavoriteRequest represents the request body for adding a favorite.
// pokemonId may be sent as a number or a numeric string.
type AddFavoriteRequest struct {
	PokemonID   models.PokemonID `json:"pokemonId" validate:"required,gt=0"`
	PokemonName string           `json:"pokemonName" validate:"required"`
	Image       string           `json:"image" validate:"omitempty,max=2048"`
}

// RemoveFavoriteRequest represents the request body for removing a favorite.
type RemoveFavoriteRequest struct {
	PokemonID models.PokemonID `json:"pokemonId" validate:"required,gt=0"`
}

// HandleList returns the caller's favorites in insertion order.
func (h *FavoritesHandler) HandleList(c *fiber.Ctx) error {
	favorites, err := h.service.ListFavorites(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"favorites": favorites})
}

// HandleAdd adds a pokemon to the caller's favorites and returns the updated account.
func (h *FavoritesHandler) HandleAdd(c *fiber.Ctx) error {
	var req AddFavoriteRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	account, err := h.service.AddFavorite(c.UserContext(), middleware.AccountID(c), models.FavoriteEntry{
		PokemonID:   req.PokemonID.Int(),
		PokemonName: req.PokemonName,
		Image:       req.Image,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"message": "Pokemon added to favorites",
		"user":    account,
	})
}

// HandleRemove removes a pokemon from the caller's favorites and returns the updated account.
func (h *FavoritesHandler) HandleRemove(c *fiber.Ctx) error {
	var req RemoveFavoriteRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	account, err := h.service.RemoveFavorite(c.UserContext(), middleware.AccountID(c), req.PokemonID.Int())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"message": "Pokemon removed from favorites",
		"user":    account,
	})
}

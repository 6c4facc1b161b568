package handlers

import (
	"context"
	"strconv"

	"pokedex/internal/catalog"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Catalog is the read-only pokemon catalog served by CatalogHandler.
type Catalog interface {
	ListPokemon(ctx context.Context, limit, offset int) (*catalog.Page, error)
	GetPokemon(ctx context.Context, nameOrID string) (*catalog.Detail, error)
	Search(ctx context.Context, q string) ([]string, error)
	TypeRelations(ctx context.Context, typeName string) (*catalog.TypeRelations, error)
	Compare(ctx context.Context, first, second string) (*catalog.Comparison, error)
}

// CatalogHandler handles the public pokemon catalog routes.
type CatalogHandler struct {
	catalog Catalog
	log     *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c Catalog, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, log: log}
}

// RegisterRoutes registers the catalog routes.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	pokemon := router.Group("/pokemon")
	pokemon.Get("/", h.HandleList)
	// Literal segments must be registered before the :name parameter.
	pokemon.Get("/search", h.HandleSearch)
	pokemon.Get("/compare", h.HandleCompare)
	pokemon.Get("/:name", h.HandleGet)
	router.Get("/types/:name", h.HandleType)
}

func queryInt(c *fiber.Ctx, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}

// HandleList returns one page of pokemon summaries.
func (h *CatalogHandler) HandleList(c *fiber.Ctx) error {
	limit, ok := queryInt(c, "limit", catalog.DefaultLimit)
	if !ok || limit < 1 || limit > catalog.MaxLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid catalog request",
			"error":   "limit must be an integer between 1 and " + strconv.Itoa(catalog.MaxLimit),
		})
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok || offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid catalog request",
			"error":   "offset must be a non-negative integer",
		})
	}

	page, err := h.catalog.ListPokemon(c.UserContext(), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(page)
}

// HandleSearch returns the pokemon names matching q.
func (h *CatalogHandler) HandleSearch(c *fiber.Ctx) error {
	results, err := h.catalog.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

// HandleCompare compares the pokemon named by the first and second query parameters.
func (h *CatalogHandler) HandleCompare(c *fiber.Ctx) error {
	first, second := c.Query("first"), c.Query("second")
	if first == "" || second == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid catalog request",
			"error":   "first and second are required",
		})
	}

	cmp, err := h.catalog.Compare(c.UserContext(), first, second)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(cmp)
}

// HandleGet returns the detail of one pokemon.
func (h *CatalogHandler) HandleGet(c *fiber.Ctx) error {
	detail, err := h.catalog.GetPokemon(c.UserContext(), c.Params("name"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(detail)
}

// HandleType returns the damage relations of one type.
func (h *CatalogHandler) HandleType(c *fiber.Ctx) error {
	rel, err := h.catalog.TypeRelations(c.UserContext(), c.Params("name"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(rel)
}

package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"pokedex/internal/catalog"
	"pokedex/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errorStatus maps service and catalog errors to a status code and a summary message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, "Validation failed"
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusBadRequest, "Invalid credentials"
	case errors.Is(err, services.ErrDuplicateAccount):
		return fiber.StatusBadRequest, "User already exists"
	case errors.Is(err, services.ErrNoFile):
		return fiber.StatusBadRequest, "No file uploaded"
	case errors.Is(err, services.ErrUnsupportedImage):
		return fiber.StatusBadRequest, "Only image files are allowed"
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, services.ErrAccountNotFound):
		return fiber.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrFavoriteNotFound):
		return fiber.StatusNotFound, "Pokemon not found in favorites"
	case errors.Is(err, services.ErrFavoriteExists):
		return fiber.StatusConflict, "Pokemon already in favorites"
	case errors.Is(err, catalog.ErrInvalidArgument):
		return fiber.StatusBadRequest, "Invalid catalog request"
	case errors.Is(err, catalog.ErrNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, catalog.ErrUpstream):
		return fiber.StatusBadGateway, "Pokemon catalog is unavailable"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// respondError writes the {"message","error"} body for err. Server-side failures are logged and
// answered with a generic message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, message := errorStatus(err)
	detail := message
	if status < fiber.StatusInternalServerError {
		detail = err.Error()
	} else {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   detail,
	})
}

// respondValidation writes a 400 for request structs that fail validator tags.
func respondValidation(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	errorMessages := make(map[string]string, len(validationErrors))
	summary := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msg := fieldMessage(e)
		errorMessages[e.Field()] = msg
		summary = append(summary, msg)
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"error":   strings.Join(summary, "; "),
		"errors":  errorMessages,
	})
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", e.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
}

// parseBody decodes the JSON body into dst and writes a 400 on failure. ok is false when a response was written.
func parseBody(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	return true, nil
}

// newValidator reports json field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

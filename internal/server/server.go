package server

import (
	"errors"
	"time"

	"pokedex/internal/handlers"
	"pokedex/internal/metrics"
	"pokedex/internal/middleware"
	"pokedex/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Options controls the HTTP surface of the app.
type Options struct {
	CORSOrigins string
	BodyLimitMB int
	// UploadDir is served under /uploads when set.
	UploadDir string
	// RequestsPerMinute caps requests per client IP. Zero disables the limiter.
	RequestsPerMinute int
}

// Dependencies are the services the app routes to.
type Dependencies struct {
	Auth      *services.AuthService
	Favorites *services.FavoritesService
	Profile   *services.ProfileService
	Catalog   handlers.Catalog
	Log       *zap.Logger
	Options   Options
}

// New assembles the Fiber app with middleware and all routes.
func New(deps Dependencies) *fiber.App {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	opts := deps.Options
	if opts.BodyLimitMB <= 0 {
		opts.BodyLimitMB = 5
	}

	app := fiber.New(fiber.Config{
		AppName:               "pokedex",
		BodyLimit:             opts.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(metrics.Middleware())
	if opts.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: opts.CORSOrigins != "*",
		}))
	}
	if opts.RequestsPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RequestsPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health" || c.Path() == "/metrics"
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"message": "Too many requests",
					"error":   "rate limit exceeded",
				})
			},
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if opts.UploadDir != "" {
		app.Static("/uploads", opts.UploadDir)
	}

	api := app.Group("/api")
	auth := middleware.AuthRequired(deps.Auth, log)

	handlers.NewAuthHandler(deps.Auth, deps.Favorites, log).RegisterRoutes(api, auth)
	if deps.Catalog != nil {
		handlers.NewCatalogHandler(deps.Catalog, log).RegisterRoutes(api)
	}

	protected := api.Group("", auth)
	handlers.NewFavoritesHandler(deps.Favorites, log).RegisterRoutes(protected)
	handlers.NewProfileHandler(deps.Profile, log).RegisterRoutes(protected)

	return app
}

// errorHandler renders errors that escaped the handlers as the JSON error body.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		detail := message
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		} else {
			detail = err.Error()
		}
		return c.Status(code).JSON(fiber.Map{
			"message": message,
			"error":   detail,
		})
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pokedex/internal/catalog"
	"pokedex/internal/config"
	"pokedex/internal/database"
	"pokedex/internal/logging"
	"pokedex/internal/repositories"
	"pokedex/internal/server"
	"pokedex/internal/services"
	"pokedex/internal/storage"
	"pokedex/pkg/rabbitmq"
)

// closer releases one resource acquired by newApp.
type closer func() error

// newApp wires configuration into stores, services and the Fiber app.
// The returned cleanup releases every resource in reverse order of acquisition.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*fiber.App, func(), error) {
	var closers []closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("cleanup failed", zap.Error(err))
			}
		}
	}
	fail := func(err error) (*fiber.App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// --- User Store ---
	var accountRepo repositories.AccountRepository
	switch cfg.StoreDriver {
	case config.StoreSQLite, config.StorePostgres:
		db, err := database.OpenGORM(cfg.StoreDriver, cfg.DatabaseDSN, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { return database.CloseGORM(db) })
		accountRepo = repositories.NewGORMAccountRepository(db)
	case config.StoreMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { return client.Disconnect(context.Background()) })
		repo, err := repositories.NewMongoAccountRepository(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			return fail(err)
		}
		accountRepo = repo
	default:
		log.Warn("using in-memory account store; data is lost on restart")
		accountRepo = repositories.NewMemoryAccountRepository()
	}

	// --- Image Store ---
	var images services.ImageStore
	uploadDir := ""
	switch cfg.UploadDriver {
	case config.UploadS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fail(err)
		}
		images = s3Store
	default:
		disk, err := storage.NewDiskStore(cfg.UploadDir)
		if err != nil {
			return fail(err)
		}
		images = disk
		uploadDir = disk.Dir()
	}

	// --- Events ---
	// publisher stays a nil interface when events are disabled.
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable; events disabled", zap.Error(err))
		} else {
			closers = append(closers, mqClient.Close)
			publisher = mqClient
			if err := mqClient.ConsumeEvents(rabbitmq.LogEvent(log.Named("events"))); err != nil {
				log.Warn("failed to start event consumer", zap.Error(err))
			}
		}
	}

	// --- Catalog ---
	var cache catalog.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, rdb.Close)
		cache = catalog.NewRedisCache(rdb, "pokedex:catalog:")
	} else {
		cache = catalog.NewMemoryCache()
	}
	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:   cfg.CatalogBaseURL,
		CacheTTL:  cfg.CatalogCacheTTL,
		RateLimit: cfg.CatalogRateLimit,
	}, cache, log.Named("catalog"))

	// --- Services ---
	authService := services.NewAuthService(accountRepo, services.AuthConfig{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.JWTTTL,
	}, publisher, log)
	favoritesService := services.NewFavoritesService(accountRepo, publisher, log)
	profileService := services.NewProfileService(accountRepo, images, publisher, log)

	app := server.New(server.Dependencies{
		Auth:      authService,
		Favorites: favoritesService,
		Profile:   profileService,
		Catalog:   catalogClient,
		Log:       log,
		Options: server.Options{
			CORSOrigins:       cfg.CORSOrigins,
			BodyLimitMB:       cfg.BodyLimitMB,
			UploadDir:         uploadDir,
			RequestsPerMinute: cfg.RateLimitPerMinute,
		},
	})
	return app, cleanup, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.Port), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		listenErr <- app.Listen(cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

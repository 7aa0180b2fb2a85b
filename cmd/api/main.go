package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/partsdesk/api/internal/di"
	"github.com/partsdesk/api/internal/handlers"
	"github.com/partsdesk/api/internal/platform/config"
	"github.com/partsdesk/api/internal/platform/jobs"
	"github.com/partsdesk/api/internal/platform/observability"
	platformpg "github.com/partsdesk/api/internal/platform/postgres"
	"github.com/partsdesk/api/internal/platform/secrets"
	platformstorage "github.com/partsdesk/api/internal/platform/storage"
	repopg "github.com/partsdesk/api/internal/repositories/postgres"
	"github.com/partsdesk/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := platformpg.NewProvider(platformpg.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	defer provider.Close()

	pool, err := provider.Pool(ctx)
	if err != nil {
		logger.Fatal("failed to initialise database pool", zap.Error(err))
	}
	if err := repopg.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to apply database schema", zap.Error(err))
	}

	uow, err := platformpg.NewUnitOfWork(pool)
	if err != nil {
		logger.Fatal("failed to initialise unit of work", zap.Error(err))
	}

	uploader, closeStorage, err := newImageUploader(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise image uploader", zap.Error(err))
	}
	defer closeStorage()

	publisher, closeEvents, err := newEventPublisher(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}
	defer closeEvents()

	container, err := di.NewContainer(di.ContainerDeps{
		Config:     cfg,
		UnitOfWork: uow,
		Uploader:   uploader,
		Events:     publisher,
		Logger:     observability.ServiceLogger(logger.Named("services")),
	})
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	authHandlers := handlers.NewAuthHandlers(container.Authenticator, container.Services.Identity)
	itemHandlers := handlers.NewItemHandlers(container.Authenticator, container.Services.Catalog)
	categoryHandlers := handlers.NewCategoryHandlers(container.Authenticator, container.Services.Catalog)
	orderHandlers := handlers.NewOrderHandlers(container.Authenticator, container.Services.Orders)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, cfg, startedAt)),
		handlers.WithHealthReadyCheck("postgres", func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			return provider.Ping(pingCtx)
		}),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthRoutes(authHandlers.Routes),
		handlers.WithItemRoutes(itemHandlers.Routes),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("partsdesk api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if projectID := strings.TrimSpace(env["API_SECRET_PROJECT_ID"]); projectID != "" {
		opts = append(opts, secrets.WithProject(projectID))
	} else {
		opts = append(opts, secrets.WithoutAPI())
	}
	if fallback := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); fallback != "" {
		opts = append(opts, secrets.WithFallbackFile(fallback))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newImageUploader(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.ImageUploader, func(), error) {
	if strings.TrimSpace(cfg.Storage.ImagesBucket) == "" {
		logger.Info("image uploads disabled: no bucket configured")
		return nil, func() {}, nil
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}
	uploader, err := platformstorage.NewImageUploader(platformstorage.ImageUploaderDeps{
		Client:        client,
		Bucket:        cfg.Storage.ImagesBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}
	return uploader, closeFn, nil
}

func newEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, func(), error) {
	if strings.TrimSpace(cfg.Events.ProjectID) == "" || strings.TrimSpace(cfg.Events.Topic) == "" {
		logger.Info("order events disabled: no topic configured")
		return nil, func() {}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.Events.Topic)
	publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closeFn := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, closeFn, nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safemaint-backend/config"
	"safemaint-backend/internal/api"
	"safemaint-backend/internal/auth"
	"safemaint-backend/internal/db"
	"safemaint-backend/internal/document"
	"safemaint-backend/internal/events"
	"safemaint-backend/internal/logging"
	"safemaint-backend/internal/maintenance"
	"safemaint-backend/internal/mirror"
	"safemaint-backend/internal/notification"
	"safemaint-backend/internal/remote"
	"safemaint-backend/internal/store"
	"safemaint-backend/internal/syncer"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("safemaintd stopped", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local mirror
	backend, err := openMirror(cfg.Mirror)
	if err != nil {
		return err
	}
	mirrorStore := mirror.New(backend, mirror.Options{
		TruncateThreshold: cfg.Mirror.TruncateThreshold,
		InlineBlobBytes:   cfg.Mirror.InlineBlobBytes,
	}, logger)
	logger.Info("local mirror ready", zap.String("driver", cfg.Mirror.Driver))

	// Change feed and sessions
	var feed *remote.Feed
	var sessions auth.SessionStore = auth.NewMemoryStore()
	if cfg.Redis.URL != "" {
		rdb, err := remote.DialRedis(cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process sessions and interval sync", zap.Error(err))
		} else {
			defer rdb.Close()
			feed = remote.NewFeed(rdb, cfg.Redis.Channel, logger)
			sessions = auth.NewRedisStore(rdb)
		}
	}

	// Remote backend
	bus := events.NewBus()
	deps := store.Deps{Mirror: mirrorStore, Bus: bus, Logger: logger}
	var client *remote.GormClient
	var writer *remote.Writer
	if cfg.Database.DSN != "" {
		remoteDB, err := db.InitRemote(&cfg.Database)
		if err != nil {
			return err
		}
		var publisher remote.Publisher
		if feed != nil {
			publisher = feed
		}
		client = remote.NewGormClient(remoteDB, publisher, logger)
		writer = remote.NewWriter(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, client, logger)
		writer.Start(ctx)
		deps.Remote = client
		deps.Writer = writer
	} else {
		logger.Warn("no remote database configured, running on the local mirror only")
	}
	repos := store.NewRepositories(deps)

	// Push notifications
	var notifier maintenance.HandoffNotifier
	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, repos.Subscriptions, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Warn("VAPID keys not configured, handoff push alerts disabled")
	}

	// Services
	authSvc := auth.NewService(cfg.Auth, repos.Users, sessions, logger)
	apiDeps := api.Deps{
		Repos:       repos,
		Maintenance: maintenance.NewService(repos, notifier, logger),
		Documents:   document.NewService(repos.Documents, logger),
		Auth:        authSvc,
		Bus:         bus,
		Webpush:     webpushOptions,
		Logger:      logger,
	}

	if client != nil {
		var changes syncer.ChangeSource
		if feed != nil {
			changes = feed
		}
		syncSvc := syncer.NewService(cfg.Sync, repos.All(), client, changes, logger)
		apiDeps.Sync = syncSvc
		if cfg.Sync.Enabled {
			// Pull before seeding so an existing remote users table wins.
			if _, err := syncSvc.SyncOnce(ctx); err != nil {
				logger.Warn("initial sync skipped", zap.Error(err))
			}
		}
		go syncSvc.Run(ctx)
	}

	if err := authSvc.SeedAdmin(ctx); err != nil {
		logger.Warn("failed to seed administrator", zap.Error(err))
	}

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg.Server, apiDeps)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received, stopping services")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if writer != nil {
		if err := writer.Drain(shutdownCtx); err != nil {
			logger.Warn("pending remote writes abandoned", zap.Error(err))
		}
	}
	return nil
}

func openMirror(cfg config.MirrorConfig) (mirror.Backend, error) {
	switch cfg.Driver {
	case "memory":
		return mirror.NewMemoryBackend(cfg.QuotaBytes), nil
	case "sqlite":
		mirrorDB, err := db.InitMirror(cfg.Path)
		if err != nil {
			return nil, err
		}
		return mirror.NewSQLiteBackend(mirrorDB, cfg.QuotaBytes)
	default:
		return nil, fmt.Errorf("unknown mirror driver %q", cfg.Driver)
	}
}

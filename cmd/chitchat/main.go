package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chitchat/internal/auth"
	"chitchat/internal/config"
	"chitchat/internal/constants"
	"chitchat/internal/database"
	"chitchat/internal/fanout"
	"chitchat/internal/features"
	"chitchat/internal/metrics"
	"chitchat/internal/models"
	"chitchat/internal/retry"
	"chitchat/internal/service"
	"chitchat/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes message content)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ChitChat %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warn("Failed to load .env file")
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting ChitChat")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLogLevel(logger, cfg.LogLevel)

	tracer := tracing.NewProvider(cfg.Tracing, logger)
	if err := tracer.Start(ctx); err != nil {
		logger.Warnf("Failed to start tracing: %v", err)
	}
	defer func() {
		if err := tracer.Stop(context.Background()); err != nil {
			logger.Warnf("Failed to stop tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := metrics.GetRegistry()

	flags := features.NewFlagManager()
	if err := flags.LoadFromConfig(cfg.Features); err != nil {
		return fmt.Errorf("invalid feature flags: %w", err)
	}
	flags.LoadFromEnvironment()

	tokens, err := newTokenManager(cfg.Auth, logger)
	if err != nil {
		return err
	}

	hub := fanout.NewHub(cfg.Fanout.SendBufferSize, logger, registry)
	var wg sync.WaitGroup
	if cfg.Fanout.RedisURL != "" {
		relay, err := fanout.NewRedisRelay(ctx, cfg.Fanout.RedisURL, cfg.Fanout.RedisChannel, logger)
		if err != nil {
			return fmt.Errorf("failed to start fan-out relay: %w", err)
		}
		defer relay.Close()
		hub.SetRelay(relay)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.RunRelay(ctx); err != nil {
				logger.WithError(err).Error("Fan-out relay stopped")
			}
		}()
		logger.WithField("channel", cfg.Fanout.RedisChannel).Info("Cross-instance fan-out enabled")
	}

	translator := service.NewTranslator(service.TranslatorConfig{
		Endpoint:        cfg.Translation.Endpoint,
		APIKey:          cfg.Translation.APIKey,
		Timeout:         time.Duration(cfg.Translation.TimeoutSec) * time.Second,
		BreakerFailures: uint32(cfg.Translation.BreakerFailures),
		BreakerTimeout:  time.Duration(cfg.Translation.BreakerTimeoutSec) * time.Second,
	}, registry, logger)

	engine := service.NewSchedulingEngine(db, db, db, flags, registry, logger)
	messageService := service.NewMessageService(engine, db, db, hub, translator, flags, logger)
	chatService := service.NewChatService(db, logger)
	userService := service.NewUserService(db, tokens, logger)

	interval := time.Duration(cfg.Scheduler.IntervalSec) * time.Second
	reconciler := service.NewReconciler(db, hub, service.ReconcilerConfig{
		Interval:    interval,
		WarmupDelay: time.Duration(cfg.Scheduler.WarmupDelaySec) * time.Second,
		ItemTimeout: time.Duration(cfg.Scheduler.ItemTimeoutSec) * time.Second,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
	}, registry, logger)
	monitor := service.NewDeliveryMonitor(db,
		time.Duration(cfg.Scheduler.MonitorIntervalSec)*time.Second, 2*interval, registry, logger)

	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		monitor.Start(ctx)
	}()
	defer func() {
		reconciler.Stop()
		monitor.Stop()
		wg.Wait()
	}()

	watcher := config.NewWatcher(*configPath, logger)
	watcher.OnChange(func(newCfg *models.Config) {
		if !*verbose {
			applyLogLevel(logger, newCfg.LogLevel)
		}
		if err := flags.LoadFromConfig(newCfg.Features); err != nil {
			logger.WithError(err).Warn("Ignoring feature flags from reloaded configuration")
			return
		}
		flags.LoadFromEnvironment()
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - message content will be logged")
	}

	server := NewServer(cfg, Services{
		Users:     userService,
		Chats:     chatService,
		Messages:  messageService,
		Hub:       hub,
		Tokens:    tokens,
		Directory: db,
		Flags:     flags,
		Registry:  registry,
	}, logger)
	if *verbose {
		server.EnableVerboseLogging()
	}

	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// applyLogLevel sets the level named in the config. The config loader has
// already rejected unparseable names.
func applyLogLevel(logger *logrus.Logger, name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openDatabase opens the store, retrying with exponential backoff while the
// file is locked or its directory is not yet mounted.
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	backoffConfig := retry.FromConfig(cfg.Retry)
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts

	var db *database.Database
	err := retry.NewBackoff(backoffConfig).
		OnRetry(func(attempt int, err error, delay time.Duration) {
			logger.WithError(err).WithFields(logrus.Fields{
				service.LogFieldAttempt: attempt,
				"retry_in":              delay.String(),
			}).Warn("Failed to open database, retrying")
		}).
		Retry(ctx, func(context.Context) error {
			var openErr error
			db, openErr = database.New(cfg.Database.Path, cfg.Database.EncryptContent)
			return openErr
		})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

// newTokenManager builds the token signer. Outside production an unset
// secret is replaced by a random one, which invalidates tokens on restart.
func newTokenManager(cfg models.AuthConfig, logger *logrus.Logger) (*auth.TokenManager, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("No JWT secret configured; using a random secret, tokens will not survive a restart")
	}

	tokens, err := auth.NewTokenManager(secret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	return tokens, nil
}

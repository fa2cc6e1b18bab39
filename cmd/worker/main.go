package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/addonhub/addonhub/internal/api"
	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/database"
	"github.com/addonhub/addonhub/internal/database/migrations"
	"github.com/addonhub/addonhub/internal/logging"
	"github.com/addonhub/addonhub/internal/models"
	"github.com/addonhub/addonhub/internal/packaging"
	"github.com/addonhub/addonhub/internal/signing"
	"github.com/addonhub/addonhub/internal/tasks"
)

const version = "v0.3.1"

func main() {
	// Parse command line flags
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logger := setupLogging(cfg)
	logger.Info().Str("version", version).Msg("Starting addonhub migration worker")

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect to database
	db, err := connectToDatabase(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	// Run migrations
	if err := runMigrations(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Make sure storage directories exist
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.TmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("Failed to create storage directory")
		}
	}

	// Create services
	signer := createSigner(cfg, logger)
	activity := tasks.NewActivityService(db.DB(), logger)

	themeMigrator := tasks.NewThemeMigrator(db.DB(), packaging.NewXPIThemeBuilder(), signer, activity, cfg.Migration, cfg.Storage.UploadDir, logger)
	taskService := api.TaskServices{
		Themes:       tasks.NewThemeBatchMigrator(db.DB(), themeMigrator, logger),
		Dictionaries: tasks.NewDictionaryMigrator(db.DB(), packaging.NewXPIDictionaryBuilder(), signer, activity, cfg.Storage.UploadDir, logger),
		Flagger:      tasks.NewSensitiveDataFlagger(db.DB(), cfg.Migration.SensitivePermissions, logger),
		Dispatcher:   tasks.NewDispatcher(cfg.Migration.ChunkSize, cfg.Migration.Concurrency, logger),
	}

	// Create the admin API server
	server, err := api.NewServer(cfg, db, taskService, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API server")
	}

	// Bootstrap the admin account
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := api.NewAuthService(db.DB(), cfg.JWT.Secret, logger).EnsureAdminUser(bootCtx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		bootCancel()
		logger.Fatal().Err(err).Msg("Failed to bootstrap admin user")
	}
	bootCancel()

	// Start API server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Port); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErrChan:
		logger.Error().Err(err).Msg("API server error")
	}

	// Graceful shutdown
	logger.Info().Msg("Starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
}

// loadConfiguration loads the application configuration
func loadConfiguration(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// If we can't load config, try with defaults
		cfg = config.NewDefault()

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogging configures the application logger
func setupLogging(cfg *config.Config) zerolog.Logger {
	logConfig := logging.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
		LogFile:    os.Getenv("LOG_FILE"),
	}

	logging.SetupGlobalLogger(logConfig)
	return logging.NewLogger(logConfig)
}

// connectToDatabase establishes database connection
func connectToDatabase(cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	logger.Info().Msg("Connecting to PostgreSQL database")

	dbConfig := map[string]interface{}{
		"host":               cfg.Database.Host,
		"port":               cfg.Database.Port,
		"user":               cfg.Database.User,
		"password":           cfg.Database.Password,
		"dbname":             cfg.Database.DBName,
		"sslmode":            cfg.Database.SSLMode,
		"max_open_conns":     cfg.Database.MaxConnections,
		"max_idle_conns":     cfg.Database.MaxIdleConns,
		"conn_max_lifetime":  cfg.Database.ConnMaxLifetime.String(),
		"conn_max_idle_time": cfg.Database.ConnMaxIdleTime.String(),
		"log_level":          cfg.Server.LogLevel,
	}

	db := database.NewDatabase(dbConfig)

	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Health(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.DBName).
		Msg("Successfully connected to database")

	return db, nil
}

// runMigrations runs schema auto-migration followed by the versioned
// migrations.
func runMigrations(db *database.Database, logger zerolog.Logger) error {
	logger.Info().Msg("Running database migrations")

	err := db.Migrate(
		&models.User{},
		&models.Addon{},
		&models.Version{},
		&models.File{},
		&models.FileUpload{},
		&models.License{},
		&models.Tag{},
		&models.Category{},
		&models.Rating{},
		&models.UpdateCount{},
		&models.ThemeUpdateCount{},
		&models.MigratedTheme{},
		&models.ActivityLog{},
		&models.AbuseReport{},
		&models.CinderJob{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	runner := database.NewMigrationRunner(db.DB(), logger)
	for _, m := range migrations.GetMigrations() {
		runner.Register(m)
	}
	if err := runner.Run(context.Background()); err != nil {
		return fmt.Errorf("failed to run versioned migrations: %w", err)
	}

	logger.Info().Msg("Database migrations completed successfully")
	return nil
}

// createSigner picks the configured signing backend
func createSigner(cfg *config.Config, logger zerolog.Logger) signing.Signer {
	if !cfg.Signing.Enabled {
		logger.Warn().Msg("No signing endpoint configured, using mock signer")
		return signing.NewMockSigner("")
	}

	signer, err := signing.NewHTTPSigner(&cfg.Signing, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create signing client, falling back to mock")
		return signing.NewMockSigner("")
	}

	return signer
}

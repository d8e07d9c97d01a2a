package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"insurisk/adapters/memory"
	"insurisk/adapters/postgres"
	"insurisk/app"
	"insurisk/domain/policy"
	"insurisk/internal"
	"insurisk/internal/api"
	"insurisk/internal/config"
	"insurisk/internal/errors"
	"insurisk/internal/migration"
	"insurisk/internal/pipeline"
	"insurisk/internal/testkit"
	"insurisk/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

// loadBook reads DATA_FILE, or generates a synthetic book when none is configured
func loadBook(appConfig *config.Config, logger *internal.Logger) ([]policy.Record, error) {
	if appConfig.Paths.DataFile == "" {
		logger.Warn("No DATA_FILE configured, analysing a synthetic book")
		return testkit.NewPolicyGenerator(testkit.DefaultPolicyConfig()).GenerateRecords(), nil
	}
	return app.LoadRecords(appConfig.Paths.DataFile, "", logger)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	defer logger.Sync()
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo ports.RunRepository
	if appConfig.Database.URL != "" {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			logger.Error("Failed to initialize database: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = postgres.NewRunRepository(db)
		logger.Info("Persisting runs to PostgreSQL")
	} else {
		repo = memory.NewRunRepository()
		logger.Info("DATABASE_URL not set, keeping runs in memory")
	}

	opts, err := pipeline.OptionsFromConfig(appConfig.Analysis)
	if err != nil {
		logger.Error("Invalid analysis configuration: %v", err)
		os.Exit(1)
	}

	records, err := loadBook(appConfig, logger)
	if err != nil {
		logger.Error("Failed to load data: %v", err)
		os.Exit(1)
	}

	start := time.Now()
	analysis, err := app.NewAnalysisService(opts, repo, logger).Analyze(ctx, records)
	if err != nil {
		logger.Error("Analysis failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Analysis finished in %s", time.Since(start))

	written, err := app.WriteOutputs(appConfig.Paths.OutputDir, analysis)
	if err != nil {
		logger.Warn("Failed to write outputs: %v", err)
	}
	for _, path := range written {
		logger.Debug("Wrote %s", path)
	}

	server := api.NewServer(repo, logger)
	server.PublishReport(analysis.Run.ID, analysis.HTML)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + appConfig.Server.Port)
	}()

	select {
	case err := <-errCh:
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("Shutting down")
	}
}

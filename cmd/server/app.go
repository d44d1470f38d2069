package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/application/service"
	"github.com/garyjia/store-ops/internal/config"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/internal/infrastructure/document"
	"github.com/garyjia/store-ops/internal/infrastructure/export"
	"github.com/garyjia/store-ops/internal/infrastructure/external/openai"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/repository"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/store-ops/internal/infrastructure/storage"
	"github.com/garyjia/store-ops/internal/infrastructure/worker"
	httpapi "github.com/garyjia/store-ops/internal/interfaces/http"
	"github.com/garyjia/store-ops/pkg/database"
)

// app owns every long-lived component of the server process
type app struct {
	cfg       *config.Config
	db        *database.DB
	bulletins *service.BulletinService
	returns   *service.ReturnsService
	server    *httpapi.Server
	workers   *worker.Manager
	logger    *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	bodyLimit, err := cfg.Server.BodyLimitBytes()
	if err != nil {
		return nil, err
	}

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.NewMigrator(db, logger).Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	txManager := sqlite.NewDB(db.DB, logger)
	docs := repository.NewDocumentRepository(db.DB, logger)
	manifests := repository.NewManifestRepository(db.DB, logger)
	items := repository.NewLineItemRepository(db.DB, logger)

	// Vision client
	prompts, err := openai.LoadPrompts(cfg.Vision.PromptsPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	vision := openai.NewVisionClient(openai.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		MaxTokens:      cfg.Vision.MaxTokens,
		RequestTimeout: cfg.Vision.RequestTimeout,
		MaxAttempts:    cfg.Vision.MaxAttempts,
		BaseBackoff:    cfg.Vision.BaseBackoff,
		MaxBackoff:     cfg.Vision.MaxBackoff,
	}, prompts, openai.PromptData{
		DefaultAudience: cfg.Extraction.DefaultAudience,
		NoiseTokens:     cfg.Extraction.NoiseTokens,
	}, logger)

	// Upload handling
	sniffer := document.Sniffer{}
	rasterizer := document.NewRasterizer(cfg.Extraction.JPEGQuality, logger)
	sheets := document.NewSpreadsheetReader(logger)
	var archive port.UploadArchive
	if cfg.Storage.UploadDir != "" {
		archive = storage.NewLocalUploadArchive(cfg.Storage.UploadDir, logger)
	} else {
		logger.Info("Upload archiving disabled")
	}

	classifier := extraction.NewClassifier(cfg.Extraction.NoiseTokens)

	// Services
	bulletins := service.NewBulletinService(docs, txManager, vision, sniffer, rasterizer, archive, classifier,
		service.BulletinConfig{
			DefaultAudience:    cfg.Extraction.DefaultAudience,
			MergeDuplicateDays: cfg.Bulletin.MergeDuplicateDays,
			MaxPDFPages:        cfg.Extraction.MaxPDFPages,
		}, logger)
	returns := service.NewReturnsService(manifests, items, txManager, vision, sniffer, rasterizer, sheets, archive,
		export.NewWeekReport(logger), classifier,
		service.ReturnsConfig{
			SessionTTL:  cfg.Returns.SessionTTL,
			MaxPDFPages: cfg.Extraction.MaxPDFPages,
		}, logger)
	extractionSvc := service.NewExtractionService(vision, sniffer, rasterizer, cfg.Extraction.MaxPDFPages, logger)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       bodyLimit,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, bulletins, returns, extractionSvc, logger)

	// Background jobs
	workers := worker.NewManager(logger)
	workers.Register(worker.NewSessionJanitor(returns, cfg.Returns.JanitorInterval, logger))
	if cfg.Bulletin.WorkdaysAhead > 0 {
		workers.Register(worker.NewWorkdayScheduler(bulletins, cfg.Bulletin.WorkdaysAhead, cfg.Bulletin.WorkdayInterval, logger))
	}

	return &app{
		cfg:       cfg,
		db:        db,
		bulletins: bulletins,
		returns:   returns,
		server:    server,
		workers:   workers,
		logger:    logger,
	}, nil
}

// Run repairs stored days if configured, starts the workers and serves HTTP until ctx is done
func (a *app) Run(ctx context.Context) error {
	if a.cfg.Bulletin.RepairOnStartup {
		report, err := a.bulletins.RepairDuplicateDays(ctx)
		if err != nil {
			return fmt.Errorf("failed to repair duplicate days: %w", err)
		}
		a.logger.Info("Duplicate day repair finished", zap.Any("report", report))
	}

	if err := a.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer func() {
		if err := a.workers.StopAll(); err != nil {
			a.logger.Error("Failed to stop workers", zap.Error(err))
		}
	}()

	return a.server.Start(ctx)
}

// Close releases the database
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", zap.Error(err))
	}
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/internal/browser"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
	"github.com/ainasago/FishBrowser-sub004/internal/observability"
	"github.com/ainasago/FishBrowser-sub004/internal/orchestrator"
	"github.com/ainasago/FishBrowser-sub004/internal/store"
	"github.com/ainasago/FishBrowser-sub004/internal/validator"
)

// Components holds every initialized service a command may need.
// This struct centralizes the lifecycle management of the dependencies.
type Components struct {
	Store        store.Repository
	Catalog      *catalog.Catalog
	Generator    *fingerprint.Generator
	Validator    *validator.Validator
	Compiler     *compiler.Compiler
	UserData     *browser.UserDataDirs
	Orchestrator *orchestrator.Orchestrator

	DBPool *pgxpool.Pool
}

// Shutdown releases components in reverse order of creation.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Stop running browsers first.
	if c.Orchestrator != nil {
		// Use a separate context with a timeout for shutdown to ensure it completes
		// even if the main application context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Orchestrator.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during orchestrator shutdown.", zap.Error(err))
		} else {
			logger.Debug("Orchestrator shut down.")
		}
	}

	// 2. Close the database connection pool.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Debug("All components shut down.")
}

// NewComponents wires store, catalog, generator, validator, compiler, driver and
// orchestrator from cfg. The catalog is seeded additively on every start.
func NewComponents(ctx context.Context, cfg *config.Config) (_ *Components, err error) {
	logger := observability.GetLogger()
	components := &Components{}

	// Ensure cleanup happens if initialization fails midway.
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			components.Shutdown()
		}
	}()

	// 1. Store
	if cfg.Postgres.URL == "" {
		components.Store = store.NewMemory(logger)
		logger.Debug("Using in-memory store (hint: set FISHBROWSER_POSTGRES_URL to persist).")
	} else {
		dbPool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		// Add to components immediately so the deferred Shutdown can close it if later steps fail.
		components.DBPool = dbPool

		dbStore, err := store.New(ctx, dbPool, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database store: %w", err)
		}
		components.Store = dbStore
		logger.Debug("Database store initialized.")
	}
	if err := components.Store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	// 2. Catalog
	seed, err := catalog.LoadSeedFiles(cfg.Catalog.SeedFiles)
	if err != nil {
		return nil, err
	}
	if _, err := components.Store.SeedCatalog(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}
	snap, err := components.Store.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	cat, err := catalog.New(snap)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	components.Catalog = cat
	logger.Debug("Trait catalog loaded.", zap.Int("definitions", len(snap.Definitions)), zap.Int("options", len(snap.Options)))

	// 3. Generator, validator and compiler
	components.Generator = fingerprint.NewGenerator(cat, cfg.Generator, logger)
	components.Validator = validator.New(cfg.Validator)
	components.Compiler = compiler.New(logger)

	// 4. Browser driver and orchestrator
	components.UserData = browser.NewUserDataDirs(cfg.Browser.UserDataRoot, logger)
	components.Orchestrator = orchestrator.New(orchestrator.Options{
		Driver:       browser.NewDriver(cfg.Browser, logger),
		Profiles:     components.Store,
		Compiler:     components.Compiler,
		Paths:        components.UserData,
		Proxies:      components.Store,
		CloseTimeout: cfg.Browser.CloseTimeout,
		Logger:       logger,
	})

	logger.Debug("All components initialized successfully.")
	return components, nil
}

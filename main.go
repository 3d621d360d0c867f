package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"sync"

	"optionDesk/config"
	"optionDesk/internal/adapters/logger"
	"optionDesk/internal/adapters/random"
	"optionDesk/internal/adapters/sqlite"
	"optionDesk/internal/api"
	"optionDesk/internal/app"
	"optionDesk/internal/ports"
	"optionDesk/internal/pricing"
	"optionDesk/internal/stream"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := newLogger(cfg)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Price Simulator
	priceSeed, outcomeSeed := cfg.RandomSeed, cfg.RandomSeed
	if cfg.RandomSeed != 0 {
		outcomeSeed = cfg.RandomSeed + 1
	}
	simulator, err := pricing.NewSimulator(cfg.Instruments, random.NewSource(priceSeed), cfg.PriceHistorySize, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price simulator")
		log.Fatalf("FATAL: Failed to initialize price simulator: %v", err)
	}
	appLogger.Info(context.Background(), "Price simulator initialized", map[string]interface{}{"instruments": len(cfg.Instruments)})

	// 5. Initialize Application Services
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		repo,
		repo,
		simulator,
		random.NewSource(outcomeSeed),
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	accountService, err := app.NewAccountService(cfg, appLogger, repo, repo, simulator)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize account service")
		log.Fatalf("FATAL: Failed to initialize account service: %v", err)
	}
	appLogger.Info(context.Background(), "Application services initialized")

	// 6. Initialize HTTP API and price stream
	hub := stream.NewHub(simulator, appLogger)
	server, err := api.NewServer(api.Config{
		Addr:    cfg.HTTPAddr,
		GinMode: cfg.GinMode,
		Logger:  appLogger,
	}, tradingService, accountService, hub)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize HTTP server")
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}

	// 7. Start the Service
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		accountService.RunPurge(ctx, cfg.SessionTTL/4)
	}()
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			appLogger.Error(ctx, err, "HTTP server exited with error")
			cancel()
		}
	}()

	// The trading service owns signal handling; its return stops everything else.
	runErr := tradingService.Start(ctx)
	cancel()
	wg.Wait()
	if runErr != nil {
		appLogger.Error(context.Background(), runErr, "Trading service exited with error")
		log.Printf("FATAL: Trading service exited with error: %v", runErr)
		os.Exit(1)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func newLogger(cfg *config.Config) ports.Logger {
	return logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"optionDesk/config"
	"optionDesk/internal/adapters/logger"
	"optionDesk/internal/adapters/random"
	"optionDesk/internal/domain"
	"optionDesk/internal/pricing"
	"optionDesk/internal/utils"
)

var (
	ticks  = flag.Int("ticks", 1800, "number of price ticks to simulate")
	seed   = flag.Int64("seed", 0, "random seed (0 uses RANDOM_SEED, then the clock)")
	output = flag.String("out", "", "output CSV path (default data/quotes_<start>.csv)")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Simulator
	s := *seed
	if s == 0 {
		s = cfg.RandomSeed
	}
	if *ticks <= 0 {
		log.Fatalf("ticks must be positive, got %d", *ticks)
	}
	sim, err := pricing.NewSimulator(cfg.Instruments, random.NewSource(s), *ticks, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price simulator")
		log.Fatalf("FATAL: Failed to initialize price simulator: %v", err)
	}

	// 4. Tick on a virtual clock
	start := time.Now().UTC().Truncate(time.Second)
	quotes := make([]domain.Quote, 0, *ticks*len(cfg.Instruments))
	for i := 1; i <= *ticks; i++ {
		quotes = append(quotes, sim.Tick(start.Add(time.Duration(i)*cfg.PriceTick))...)
	}
	appLogger.Info(context.Background(), "Simulated prices", map[string]interface{}{
		"ticks":       *ticks,
		"instruments": len(cfg.Instruments),
		"quotes":      len(quotes),
	})

	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("data/quotes_%s.csv", start.Format("20060102T150405"))
	}
	if err := utils.WriteQuotesCSVFile(quotes, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"optionDesk/config"
	"optionDesk/internal/adapters/logger"
	"optionDesk/internal/adapters/random"
	"optionDesk/internal/adapters/sqlite"
	"optionDesk/internal/app"
	"optionDesk/internal/domain"
	"optionDesk/internal/pricing"
	"optionDesk/internal/risk"
	"optionDesk/internal/utils"
)

var (
	traders   = flag.Int("traders", 4, "number of virtual traders")
	minutes   = flag.Int("minutes", 60, "simulated session length in minutes")
	stake     = flag.String("stake", "10", "stake per position")
	openRate  = flag.Float64("open-rate", 0.05, "chance per trader per tick of opening a position")
	seed      = flag.Int64("seed", 0, "random seed (0 uses RANDOM_SEED, then the clock)")
	outputDir = flag.String("out", "data", "directory for per-trader position CSVs")
)

// virtualClock is shared by both services so the whole session runs in simulated time.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type trader struct {
	name    string
	account *domain.Account
}

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	amount, err := decimal.NewFromString(*stake)
	if err != nil {
		log.Fatalf("FATAL: invalid stake %q: %v", *stake, err)
	}
	if *seed != 0 {
		cfg.RandomSeed = *seed
	}

	appLogger := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// 2. Scratch database
	dir, err := os.MkdirTemp("", "session-replay-*")
	if err != nil {
		log.Fatalf("FATAL: Failed to create scratch directory: %v", err)
	}
	defer os.RemoveAll(dir)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: filepath.Join(dir, "replay.db"), Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 3. Simulator and services on a virtual clock
	priceSeed, outcomeSeed, traderSeed := cfg.RandomSeed, cfg.RandomSeed, cfg.RandomSeed
	if cfg.RandomSeed != 0 {
		outcomeSeed, traderSeed = cfg.RandomSeed+1, cfg.RandomSeed+2
	}
	sim, err := pricing.NewSimulator(cfg.Instruments, random.NewSource(priceSeed), cfg.PriceHistorySize, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize price simulator: %v", err)
	}
	trading, err := app.NewTradingService(cfg, appLogger, repo, repo, sim, random.NewSource(outcomeSeed))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	accounts, err := app.NewAccountService(cfg, appLogger, repo, repo, sim)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize account service: %v", err)
	}
	clock := &virtualClock{now: time.Now().UTC().Truncate(time.Second)}
	trading.SetClock(clock.Now)
	accounts.SetClock(clock.Now)
	accounts.SetHashCost(bcrypt.MinCost)

	// 4. Register traders
	var desk []*trader
	for i := 1; i <= *traders; i++ {
		name := fmt.Sprintf("trader%02d", i)
		acct, _, err := accounts.Register(ctx, name, name+"@replay.local", "replay-"+name)
		if err != nil {
			log.Fatalf("FATAL: Failed to register %s: %v", name, err)
		}
		desk = append(desk, &trader{name: name, account: acct})
	}

	// 5. Replay
	decide := random.NewSource(traderSeed)
	instruments := sim.Instruments()
	var (
		mu       sync.Mutex
		opened   int
		rejected = make(map[string]int)
	)
	end := clock.Now().Add(time.Duration(*minutes) * time.Minute)
	for now := clock.Now(); now.Before(end); now = clock.Advance(cfg.PriceTick) {
		sim.Tick(now)

		var wg sync.WaitGroup
		for _, tr := range desk {
			if decide.Float64() >= *openRate {
				continue
			}
			req := domain.OpenRequest{
				Symbol:        instruments[int(decide.Float64()*float64(len(instruments)))].Symbol,
				Direction:     domain.Buy,
				Amount:        amount,
				ExpiryMinutes: cfg.ExpiryMinutes[int(decide.Float64()*float64(len(cfg.ExpiryMinutes)))],
			}
			if decide.Float64() < 0.5 {
				req.Direction = domain.Sell
			}

			wg.Add(1)
			go func(tr *trader, req domain.OpenRequest) {
				defer wg.Done()
				_, err := trading.Open(ctx, tr.account.ID, req)

				mu.Lock()
				defer mu.Unlock()
				var v *risk.Violation
				switch {
				case err == nil:
					opened++
				case errors.As(err, &v):
					rejected[v.Code]++
				default:
					appLogger.Error(ctx, err, "Open failed", map[string]interface{}{"trader": tr.name})
				}
			}(tr, req)
		}
		wg.Wait()

		trading.ResolveDue(ctx)
	}

	// Let every remaining position expire.
	longest := 0
	for _, m := range cfg.ExpiryMinutes {
		if m > longest {
			longest = m
		}
	}
	clock.Advance(time.Duration(longest) * time.Minute)
	trading.ResolveDue(ctx)

	appLogger.Info(ctx, "Replay finished", map[string]interface{}{
		"traders":  len(desk),
		"minutes":  *minutes,
		"opened":   opened,
		"rejected": summarize(rejected),
		"pending":  trading.Pending(),
	})

	// 6. Per-trader results
	for _, tr := range desk {
		result, err := trading.Stats(ctx, tr.account.ID)
		if err != nil {
			appLogger.Error(ctx, err, "Stats error", map[string]interface{}{"trader": tr.name})
			continue
		}
		appLogger.Info(ctx, "Trader result", map[string]interface{}{
			"Trader":  tr.name,
			"Trades":  result.TotalTrades,
			"WinRate": result.WinRate * 100,
			"PnL":     result.NetProfit.StringFixed(2),
			"MaxDD":   result.MaxDrawdown,
			"Balance": result.FinalBalance.StringFixed(2),
		})

		positions, err := trading.Positions(ctx, tr.account.ID)
		if err != nil {
			appLogger.Error(ctx, err, "Error loading positions", map[string]interface{}{"trader": tr.name})
			continue
		}
		filename := filepath.Join(*outputDir, fmt.Sprintf("replay_%s.csv", tr.name))
		if err := writePositions(positions, filename); err != nil {
			appLogger.Error(ctx, err, "Error writing positions CSV")
			continue
		}
		appLogger.Info(ctx, "Positions saved to", map[string]interface{}{"filename": filename})
	}
}

func writePositions(positions []*domain.Position, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return utils.WritePositionsCSV(file, positions)
}

func summarize(counts map[string]int) string {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := ""
	for i, code := range codes {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", code, counts[code])
	}
	return out
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/config"
	"optionDesk/internal/analytics"
	"optionDesk/internal/domain"
	"optionDesk/internal/id"
	"optionDesk/internal/indicators"
	"optionDesk/internal/ports"
	"optionDesk/internal/pricing"
	"optionDesk/internal/risk"
	"optionDesk/internal/schedule"
)

// priceRunner is implemented by price sources that advance on their own ticker.
type priceRunner interface {
	Run(ctx context.Context, interval time.Duration)
}

// TradingService owns balances and positions: every change to either goes through it.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	accounts  ports.AccountRepository
	positions ports.PositionRepository
	prices    ports.PriceSource
	outcomes  ports.RandomSource
	guards    *risk.Manager
	queue     *schedule.Queue
	now       func() time.Time

	mu sync.Mutex // serializes Open, Deposit and settlement
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	accounts ports.AccountRepository,
	positions ports.PositionRepository,
	prices ports.PriceSource,
	outcomes ports.RandomSource,
) (*TradingService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || accounts == nil || positions == nil || prices == nil || outcomes == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}

	// Validate config values needed by service
	if !cfg.PayoutRate.IsPositive() {
		return nil, fmt.Errorf("configuration PayoutRate must be positive")
	}
	if len(cfg.ExpiryMinutes) == 0 {
		return nil, fmt.Errorf("configuration ExpiryMinutes must not be empty")
	}
	if cfg.ResolveInterval <= 0 {
		return nil, fmt.Errorf("configuration ResolveInterval must be positive")
	}

	return &TradingService{
		cfg:       cfg,
		logger:    logger,
		accounts:  accounts,
		positions: positions,
		prices:    prices,
		outcomes:  outcomes,
		guards: risk.NewManager(risk.Policy{
			MinStake:         cfg.MinStake,
			MaxStake:         cfg.MaxStake,
			MaxStakeFraction: cfg.MaxStakeFraction,
			MaxDailyLoss:     cfg.MaxDailyLoss,
			Cooldown:         cfg.TradeCooldown,
			ExpiryMinutes:    cfg.ExpiryMinutes,
		}),
		queue: schedule.NewQueue(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock replaces the service clock. Times are truncated to milliseconds, the store's resolution.
func (s *TradingService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TradingService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Pending returns the number of positions waiting for resolution.
func (s *TradingService) Pending() int {
	return s.queue.Len()
}

// Start recovers open positions and runs the price and resolution loops until
// ctx is cancelled or the process receives SIGINT/SIGTERM.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	recovered, err := s.Recover(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to recover open positions")
		return fmt.Errorf("failed to recover open positions: %w", err)
	}
	s.logger.Info(ctx, "Open positions recovered", map[string]interface{}{"count": recovered})

	var wg sync.WaitGroup
	if runner, ok := s.prices.(priceRunner); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx, s.cfg.PriceTick)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.resolveLoop(ctx)
	}()

	<-ctx.Done()
	s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
	wg.Wait()
	s.logger.Info(ctx, "Trading Service stopped.")
	return nil
}

func (s *TradingService) resolveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ResolveInterval)
	defer ticker.Stop()

	// Positions that expired while the process was down resolve on the first pass.
	s.ResolveDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ResolveDue(ctx)
		}
	}
}

// Recover loads every OPEN position from the store into the expiry queue.
func (s *TradingService) Recover(ctx context.Context) (int, error) {
	open, err := s.positions.FindAllOpen(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range open {
		s.queue.Push(schedule.Entry{PositionID: p.ID, AccountID: p.AccountID, Deadline: p.Deadline()})
	}
	return len(open), nil
}

// Open validates req against the guard policy and, if it passes, debits the stake
// and records an OPEN position at the current simulated price.
func (s *TradingService) Open(ctx context.Context, accountID string, req domain.OpenRequest) (*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ports.ErrNotFound)
	}

	quote, err := s.prices.Quote(req.Symbol)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	snap := risk.Snapshot{Balance: acct.Balance, Now: now}
	if s.cfg.MaxDailyLoss.IsPositive() {
		if snap.RealizedToday, err = s.positions.RealizedSince(ctx, accountID, risk.DayStart(now)); err != nil {
			return nil, err
		}
	}
	if s.cfg.TradeCooldown > 0 {
		if snap.LastOpenedAt, err = s.positions.LastOpenedAt(ctx, accountID); err != nil {
			return nil, err
		}
	}
	intent := risk.Intent{Direction: req.Direction, Amount: req.Amount, ExpiryMinutes: req.ExpiryMinutes}
	if err := s.guards.Validate(intent, snap); err != nil {
		s.logger.Debug(ctx, "Open rejected", map[string]interface{}{"accountID": accountID, "reason": err.Error()})
		return nil, err
	}

	pos := &domain.Position{
		ID:            id.NewAt(now),
		AccountID:     accountID,
		Symbol:        req.Symbol,
		Amount:        req.Amount,
		Direction:     req.Direction,
		EntryPrice:    quote.Price,
		ExpiryMinutes: req.ExpiryMinutes,
		Status:        domain.StatusOpen,
		CreatedAt:     now,
	}
	balance := acct.Balance.Sub(req.Amount)
	if err := s.positions.OpenPosition(ctx, pos, balance); err != nil {
		s.logger.Error(ctx, err, "Failed to persist new position", map[string]interface{}{"accountID": accountID})
		return nil, fmt.Errorf("failed to open position: %w", err)
	}
	s.queue.Push(schedule.Entry{PositionID: pos.ID, AccountID: accountID, Deadline: pos.Deadline()})

	s.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"accountID":  accountID,
		"symbol":     pos.Symbol,
		"direction":  pos.Direction,
		"amount":     pos.Amount.String(),
		"entryPrice": pos.EntryPrice,
		"expiresAt":  pos.Deadline().Format(time.RFC3339),
		"balance":    balance.String(),
	})
	return pos, nil
}

// ResolveDue settles every queued position whose deadline has passed and
// returns how many were settled. Failed settlements are retried on the next pass.
func (s *TradingService) ResolveDue(ctx context.Context) int {
	resolved := 0
	for _, entry := range s.queue.PopDue(s.clock()) {
		settled, err := s.settle(ctx, entry)
		switch {
		case err == nil:
			if settled {
				resolved++
			}
		case errors.Is(err, ports.ErrAlreadySettled), errors.Is(err, ports.ErrNotFound):
			s.logger.Warn(ctx, "Skipping queued position", map[string]interface{}{"positionID": entry.PositionID, "reason": err.Error()})
		default:
			s.logger.Error(ctx, err, "Failed to settle position, will retry", map[string]interface{}{"positionID": entry.PositionID})
			s.queue.Push(entry)
		}
	}
	return resolved
}

func (s *TradingService) settle(ctx context.Context, entry schedule.Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.positions.FindPositionByID(ctx, entry.PositionID)
	if err != nil {
		return false, err
	}
	if pos == nil {
		return false, fmt.Errorf("position %s: %w", entry.PositionID, ports.ErrNotFound)
	}
	if !pos.IsOpen() {
		return false, fmt.Errorf("position %s: %w", pos.ID, ports.ErrAlreadySettled)
	}
	now := s.clock()
	if !pos.Expired(now) {
		// Queued with a stale deadline; put it back with the real one.
		s.queue.Push(schedule.Entry{PositionID: pos.ID, AccountID: pos.AccountID, Deadline: pos.Deadline()})
		return false, nil
	}

	acct, err := s.accounts.FindAccountByID(ctx, pos.AccountID)
	if err != nil {
		return false, err
	}
	if acct == nil {
		return false, fmt.Errorf("account %s: %w", pos.AccountID, ports.ErrNotFound)
	}

	won := s.outcomes.Float64() > s.cfg.WinThreshold
	settlement, credit := Resolution(pos, won, s.cfg.PayoutRate, s.cfg.ClosePriceOffset, s.precision(pos.Symbol), now)
	balance := acct.Balance.Add(credit)

	pos.Apply(settlement)
	if err := s.positions.SettlePosition(ctx, pos, balance); err != nil {
		return false, err
	}

	s.logger.Info(ctx, "Position resolved", map[string]interface{}{
		"positionID": pos.ID,
		"accountID":  pos.AccountID,
		"status":     pos.Status,
		"profitLoss": settlement.ProfitLoss.String(),
		"closePrice": settlement.ClosePrice,
		"balance":    balance.String(),
	})
	return true, nil
}

// Resolution computes the terminal fields of an open position and the amount
// to credit back to the owner. The close price is cosmetic: it sits offset
// from entry in the winning direction for a win and the losing one for a loss.
func Resolution(pos *domain.Position, won bool, payoutRate decimal.Decimal, offset float64, precision int, closedAt time.Time) (domain.Settlement, decimal.Decimal) {
	up := (pos.Direction == domain.Buy) == won
	closePrice := pos.EntryPrice * (1 - offset)
	if up {
		closePrice = pos.EntryPrice * (1 + offset)
	}
	closePrice = pricing.Round(closePrice, precision)

	if won {
		profit := pos.Amount.Mul(payoutRate).Round(2)
		return domain.Settlement{
			Status:           domain.StatusWon,
			ClosePrice:       closePrice,
			ProfitLoss:       profit,
			ProfitPercentage: payoutRate.Mul(decimal.NewFromInt(100)).InexactFloat64(),
			ClosedAt:         closedAt,
		}, pos.Amount.Add(profit)
	}
	return domain.Settlement{
		Status:           domain.StatusLost,
		ClosePrice:       closePrice,
		ProfitLoss:       pos.Amount.Neg(),
		ProfitPercentage: -100,
		ClosedAt:         closedAt,
	}, decimal.Zero
}

func (s *TradingService) precision(symbol string) int {
	for _, inst := range s.prices.Instruments() {
		if inst.Symbol == symbol {
			return inst.Precision
		}
	}
	return 2
}

// Deposit credits amount to the account balance.
func (s *TradingService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if !amount.IsPositive() || !risk.IsCents(amount) {
		return nil, &risk.Violation{
			Code: risk.CodeInvalidAmount,
			Msg:  "deposit amount must be a positive value with at most two decimals",
			Err:  ports.ErrInvalidRequest,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ports.ErrNotFound)
	}
	acct.Balance = acct.Balance.Add(amount)
	if err := s.accounts.UpdateBalance(ctx, accountID, acct.Balance); err != nil {
		s.logger.Error(ctx, err, "Failed to persist deposit", map[string]interface{}{"accountID": accountID})
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}
	s.logger.Info(ctx, "Deposit credited", map[string]interface{}{
		"accountID": accountID,
		"amount":    amount.String(),
		"balance":   acct.Balance.String(),
	})
	return acct, nil
}

// --- Queries ---

// Positions lists every position of the account, newest first.
func (s *TradingService) Positions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	return s.positions.FindPositions(ctx, accountID, domain.PositionFilter{})
}

// OpenPositions lists the account's unresolved positions, newest first.
func (s *TradingService) OpenPositions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	return s.positions.FindPositions(ctx, accountID, domain.PositionFilter{Status: domain.StatusOpen})
}

// History lists the account's resolved positions, newest first.
func (s *TradingService) History(ctx context.Context, accountID string) ([]*domain.Position, error) {
	return s.positions.FindPositions(ctx, accountID, domain.PositionFilter{Terminal: true})
}

// Markers returns the account's recent positions on symbol for chart annotation,
// newest first so the cap keeps the latest trades.
func (s *TradingService) Markers(ctx context.Context, accountID, symbol string) ([]*domain.Position, error) {
	return s.positions.FindPositions(ctx, accountID, domain.PositionFilter{
		Symbol: symbol,
		Since:  s.clock().Add(-s.cfg.MarkerWindow),
		Limit:  s.cfg.MarkerLimit,
	})
}

// Position returns one of the account's positions. Positions of other accounts are reported as not found.
func (s *TradingService) Position(ctx context.Context, accountID, positionID string) (*domain.Position, error) {
	pos, err := s.positions.FindPositionByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.AccountID != accountID {
		return nil, fmt.Errorf("position %s: %w", positionID, ports.ErrNotFound)
	}
	return pos, nil
}

// Stats computes performance metrics over the account's resolved positions.
// The equity base is the funded capital: current balance less realized
// profit plus stakes still held by open positions, so deposits count as
// capital rather than profit. FinalBalance values open stakes at par.
func (s *TradingService) Stats(ctx context.Context, accountID string) (*analytics.PerformanceMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ports.ErrNotFound)
	}
	history, err := s.History(ctx, accountID)
	if err != nil {
		return nil, err
	}
	open, err := s.OpenPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	base := acct.Balance
	for _, p := range history {
		if p.ProfitLoss != nil {
			base = base.Sub(*p.ProfitLoss)
		}
	}
	for _, p := range open {
		base = base.Add(p.Amount)
	}
	return analytics.AnalyzePerformance(history, base), nil
}

// Quote returns the current simulated price of symbol.
func (s *TradingService) Quote(symbol string) (domain.Quote, error) {
	return s.prices.Quote(symbol)
}

// Candles returns chart candles for symbol.
func (s *TradingService) Candles(symbol string, g domain.Granularity) ([]domain.Candle, error) {
	return s.prices.Candles(symbol, g)
}

// Study computes a chart indicator over the candles of symbol. Too little
// history yields an empty series rather than an error.
func (s *TradingService) Study(symbol string, g domain.Granularity, name string, period int) ([]indicators.Point, error) {
	ind, err := indicators.New(name, period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
	}
	candles, err := s.prices.Candles(symbol, g)
	if err != nil {
		return nil, err
	}
	if len(candles) < ind.RequiredDataPoints() {
		return []indicators.Point{}, nil
	}
	return ind.Series(candles)
}

// Instruments returns the tradable catalog.
func (s *TradingService) Instruments() []domain.Instrument {
	return s.prices.Instruments()
}

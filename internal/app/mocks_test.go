package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/config"
	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// memStore is an in-memory account, session and position repository.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account
	sessions  map[string]domain.Session
	positions map[string]domain.Position
	settleErr error // returned once by SettlePosition
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  make(map[string]domain.Account),
		sessions:  make(map[string]domain.Session),
		positions: make(map[string]domain.Position),
	}
}

func (m *memStore) CreateAccount(ctx context.Context, acct *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == acct.Email {
			return ports.ErrDuplicateEntry
		}
	}
	m.accounts[acct.ID] = *acct
	return nil
}

func (m *memStore) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.Balance = balance
	m.accounts[id] = a
	return nil
}

func (m *memStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Token] = *sess
	return nil
}

func (m *memStore) FindSession(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.Token]; !ok {
		return ports.ErrNotFound
	}
	m.sessions[sess.Token] = *sess
	return nil
}

func (m *memStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, tok)
			n++
		}
	}
	return n, nil
}

func (m *memStore) OpenPosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[pos.AccountID]
	if !ok {
		return ports.ErrNotFound
	}
	m.positions[pos.ID] = *pos
	a.Balance = balance
	m.accounts[a.ID] = a
	return nil
}

func (m *memStore) SettlePosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleErr != nil {
		err := m.settleErr
		m.settleErr = nil
		return err
	}
	stored, ok := m.positions[pos.ID]
	if !ok || stored.Status != domain.StatusOpen {
		return ports.ErrAlreadySettled
	}
	m.positions[pos.ID] = *pos
	a := m.accounts[pos.AccountID]
	a.Balance = balance
	m.accounts[a.ID] = a
	return nil
}

func (m *memStore) FindPositionByID(ctx context.Context, id string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) FindPositions(ctx context.Context, accountID string, f domain.PositionFilter) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0)
	for _, p := range m.positions {
		p := p
		switch {
		case p.AccountID != accountID:
			continue
		case f.Status != "" && p.Status != f.Status:
			continue
		case f.Status == "" && f.Terminal && !p.Status.Terminal():
			continue
		case f.Symbol != "" && p.Symbol != f.Symbol:
			continue
		case !f.Since.IsZero() && p.CreatedAt.Before(f.Since):
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) FindAllOpen(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0)
	for _, p := range m.positions {
		p := p
		if p.Status == domain.StatusOpen {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) RealizedSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, p := range m.positions {
		if p.AccountID == accountID && p.ClosedAt != nil && !p.ClosedAt.Before(since) {
			total = total.Add(*p.ProfitLoss)
		}
	}
	return total, nil
}

func (m *memStore) LastOpenedAt(ctx context.Context, accountID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last time.Time
	for _, p := range m.positions {
		if p.AccountID == accountID && p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
	}
	return last, nil
}

func (m *memStore) balance(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance.String()
}

// stubPrices serves fixed quotes.
type stubPrices struct {
	prices    map[string]float64
	candles   map[string][]domain.Candle
	precision map[string]int
}

func (s *stubPrices) Quote(symbol string) (domain.Quote, error) {
	p, ok := s.prices[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, symbol)
	}
	return domain.Quote{Symbol: symbol, Price: p, Time: time.Now()}, nil
}

func (s *stubPrices) Candles(symbol string, g domain.Granularity) ([]domain.Candle, error) {
	if _, err := s.Quote(symbol); err != nil {
		return nil, err
	}
	if c, ok := s.candles[symbol]; ok {
		return c, nil
	}
	return []domain.Candle{}, nil
}

func (s *stubPrices) Instruments() []domain.Instrument {
	out := make([]domain.Instrument, 0, len(s.prices))
	for sym, p := range s.prices {
		precision, ok := s.precision[sym]
		if !ok {
			precision = 2
		}
		out = append(out, domain.Instrument{Symbol: sym, SeedPrice: p, Precision: precision})
	}
	return out
}

// queuedRandom returns the queued draws in order, then 0.99.
type queuedRandom struct {
	mu    sync.Mutex
	draws []float64
}

func (q *queuedRandom) Float64() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.draws) == 0 {
		return 0.99
	}
	v := q.draws[0]
	q.draws = q.draws[1:]
	return v
}

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		DefaultSymbol:    "BTC/USD",
		PriceTick:        time.Hour,
		PriceHistorySize: 10,
		StartingBalance:  decimal.NewFromInt(10000),
		PayoutRate:       decimal.RequireFromString("0.86"),
		WinThreshold:     0.5,
		ClosePriceOffset: 0.01,
		ResolveInterval:  10 * time.Millisecond,
		ExpiryMinutes:    []int{1, 5, 15},
		MinStake:         decimal.NewFromInt(10),
		MaxStake:         decimal.NewFromInt(5000),
		MaxStakeFraction: decimal.RequireFromString("0.5"),
		MaxDailyLoss:     decimal.NewFromInt(2500),
		TradeCooldown:    2 * time.Second,
		SessionTTL:       24 * time.Hour,
		MarkerWindow:     24 * time.Hour,
		MarkerLimit:      10,
	}
}

package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

// DefaultHistorySize is the number of ticks kept per instrument when none is configured.
const DefaultHistorySize = 500

type feed struct {
	inst    domain.Instrument
	price   float64
	updated time.Time
	history []domain.Quote // oldest first, capped at historySize
}

// Simulator produces a random-walk price per instrument on a fixed tick.
// Only the goroutine calling Tick (normally via Run) changes prices.
type Simulator struct {
	mu          sync.RWMutex
	feeds       map[string]*feed
	order       []string
	rng         ports.RandomSource
	historySize int
	logger      ports.Logger

	subMu  sync.Mutex
	subs   map[int]chan domain.Quote
	nextID int
}

// NewSimulator creates a simulator seeded with each instrument's seed price.
func NewSimulator(instruments []domain.Instrument, rng ports.RandomSource, historySize int, logger ports.Logger) (*Simulator, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("%w: simulator needs at least one instrument", ports.ErrConfigurationError)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}

	s := &Simulator{
		feeds:       make(map[string]*feed, len(instruments)),
		order:       make([]string, 0, len(instruments)),
		rng:         rng,
		historySize: historySize,
		logger:      logger,
		subs:        make(map[int]chan domain.Quote),
	}
	now := time.Now().UTC()
	for _, inst := range instruments {
		if _, dup := s.feeds[inst.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate instrument %s", ports.ErrConfigurationError, inst.Symbol)
		}
		s.feeds[inst.Symbol] = &feed{inst: inst, price: inst.SeedPrice, updated: now}
		s.order = append(s.order, inst.Symbol)
	}
	return s, nil
}

// Tick advances every instrument by one random step and publishes the new quotes.
func (s *Simulator) Tick(now time.Time) []domain.Quote {
	now = now.UTC()
	quotes := make([]domain.Quote, 0, len(s.order))

	s.mu.Lock()
	for _, sym := range s.order {
		f := s.feeds[sym]
		u := (s.rng.Float64() - 0.5) * 2 * f.inst.Volatility
		f.price = Round(f.price*(1+u), f.inst.Precision)
		f.updated = now

		q := domain.Quote{Symbol: sym, Price: f.price, Time: now}
		f.history = append(f.history, q)
		if len(f.history) > s.historySize {
			f.history = f.history[len(f.history)-s.historySize:]
		}
		quotes = append(quotes, q)
	}
	s.mu.Unlock()

	s.publish(quotes)
	return quotes
}

// Run ticks every interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Price simulator started", map[string]interface{}{
		"instruments": len(s.order),
		"interval":    interval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Price simulator stopped")
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Quote returns the latest price of symbol.
func (s *Simulator) Quote(symbol string) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, symbol)
	}
	return domain.Quote{Symbol: symbol, Price: f.price, Time: f.updated}, nil
}

// Quotes returns the latest price of every instrument in catalog order.
func (s *Simulator) Quotes() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Quote, 0, len(s.order))
	for _, sym := range s.order {
		f := s.feeds[sym]
		out = append(out, domain.Quote{Symbol: sym, Price: f.price, Time: f.updated})
	}
	return out
}

// Instruments returns the simulated catalog in configuration order.
func (s *Simulator) Instruments() []domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Instrument, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.feeds[sym].inst)
	}
	return out
}

// History returns a copy of the buffered ticks for symbol, oldest first.
func (s *Simulator) History(symbol string) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.feeds[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, symbol)
	}
	out := make([]domain.Quote, len(f.history))
	copy(out, f.history)
	return out, nil
}

// Candles aggregates the buffered ticks of symbol into candles of the given granularity.
func (s *Simulator) Candles(symbol string, g domain.Granularity) ([]domain.Candle, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: unsupported granularity %q", ports.ErrInvalidRequest, g)
	}
	history, err := s.History(symbol)
	if err != nil {
		return nil, err
	}
	return Aggregate(history, g), nil
}

// Subscribe registers a listener for every published tick. Ticks are dropped
// for a subscriber whose buffer is full. The returned func unsubscribes.
func (s *Simulator) Subscribe(buffer int) (<-chan domain.Quote, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.Quote, buffer)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Simulator) publish(quotes []domain.Quote) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		for _, q := range quotes {
			select {
			case ch <- q:
			default:
			}
		}
	}
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

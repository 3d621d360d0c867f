package ports

import "optionDesk/internal/domain"

// PriceSource provides the current simulated price for an instrument.
type PriceSource interface {
	// Quote returns the latest quote. Returns ErrUnknownInstrument for symbols outside the catalog.
	Quote(symbol string) (domain.Quote, error)
	// Candles aggregates recent ticks of symbol into candles of the given granularity.
	Candles(symbol string, g domain.Granularity) ([]domain.Candle, error)
	// Instruments returns the simulated catalog.
	Instruments() []domain.Instrument
}

// RandomSource yields uniformly distributed values in [0, 1).
// It is injected so tests can force outcomes and price moves.
type RandomSource interface {
	Float64() float64
}

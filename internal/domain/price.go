package domain

import "time"

// Instrument is a tradable symbol with its simulation parameters.
type Instrument struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	SeedPrice  float64 `json:"seedPrice" yaml:"seed_price"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Precision  int     `json:"precision" yaml:"precision"`
}

// Quote is one simulated price tick.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Candle represents a single candlestick aggregated from ticks.
type Candle struct {
	OpenTime    time.Time   `json:"openTime"`
	CloseTime   time.Time   `json:"closeTime"`
	Symbol      string      `json:"symbol"`
	Granularity Granularity `json:"granularity"`
	Open        float64     `json:"open"`
	High        float64     `json:"high"`
	Low         float64     `json:"low"`
	Close       float64     `json:"close"`
	Ticks       int         `json:"ticks"`
}

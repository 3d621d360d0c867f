// Package indicators computes chart studies over simulated candles.
package indicators

import (
	"fmt"
	"strings"
	"time"

	"optionDesk/internal/domain"
)

// Zone classifies an oscillator value against its bands.
type Zone string

const (
	ZoneOverbought Zone = "overbought"
	ZoneOversold   Zone = "oversold"
)

// Point is one study value aligned with a candle's open time. Zone is set
// only by oscillators and only outside the neutral band.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Zone  Zone      `json:"zone,omitempty"`
}

// Indicator represents a technical study that can be drawn over candles
type Indicator interface {
	// Series computes one point per candle from the first candle with enough history
	Series(candles []domain.Candle) ([]Point, error)

	// RequiredDataPoints returns the minimum number of candles needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of candles needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// MaxPeriod bounds the period accepted by New.
const MaxPeriod = 200

// New builds a study by name (SMA, EMA, RSI or ATR, case-insensitive).
func New(name string, period int) (Indicator, error) {
	if period < 1 || period > MaxPeriod {
		return nil, fmt.Errorf("period must be between 1 and %d, got %d", MaxPeriod, period)
	}
	cfg := IndicatorConfig{Period: period}
	switch strings.ToUpper(name) {
	case string(SimpleMovingAverage):
		return NewMovingAverage(MovingAverageConfig{IndicatorConfig: cfg, Type: SimpleMovingAverage}), nil
	case string(ExponentialMovingAverage):
		return NewMovingAverage(MovingAverageConfig{IndicatorConfig: cfg, Type: ExponentialMovingAverage}), nil
	case "RSI":
		return NewRSI(RSIConfig{IndicatorConfig: cfg, Overbought: 70, Oversold: 30}), nil
	case "ATR":
		return NewATR(ATRConfig{IndicatorConfig: cfg}), nil
	default:
		return nil, fmt.Errorf("unknown indicator %q (supported: SMA, EMA, RSI, ATR)", name)
	}
}

// Last returns the most recent value of a series.
func Last(series []Point) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1].Value, true
}

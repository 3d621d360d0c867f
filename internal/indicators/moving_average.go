package indicators

import (
	"fmt"

	"optionDesk/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over candle closes
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Series computes the moving average based on the configured type
func (m *MovingAverage) Series(candles []domain.Candle) ([]Point, error) {
	if m.Config.Period < 1 {
		return nil, fmt.Errorf("invalid %s period %d", m.config.Type, m.Config.Period)
	}
	if len(candles) < m.Config.Period {
		return nil, fmt.Errorf("not enough data (%d) to calculate %s for period %d", len(candles), m.config.Type, m.Config.Period)
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.sma(candles), nil
	case ExponentialMovingAverage:
		return m.ema(candles), nil
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// sma keeps a running window sum.
func (m *MovingAverage) sma(candles []domain.Candle) []Point {
	period := m.Config.Period
	out := make([]Point, 0, len(candles)-period+1)

	total := 0.0
	for i, c := range candles {
		total += c.Close
		if i >= period {
			total -= candles[i-period].Close
		}
		if i >= period-1 {
			out = append(out, Point{Time: c.OpenTime, Value: total / float64(period)})
		}
	}
	return out
}

// ema seeds with the SMA of the first period closes.
func (m *MovingAverage) ema(candles []domain.Candle) []Point {
	period := m.Config.Period
	multiplier := 2.0 / float64(period+1)
	out := make([]Point, 0, len(candles)-period+1)

	seed := 0.0
	for _, c := range candles[:period] {
		seed += c.Close
	}
	ema := seed / float64(period)
	out = append(out, Point{Time: candles[period-1].OpenTime, Value: ema})

	for _, c := range candles[period:] {
		ema = (c.Close-ema)*multiplier + ema
		out = append(out, Point{Time: c.OpenTime, Value: ema})
	}
	return out
}

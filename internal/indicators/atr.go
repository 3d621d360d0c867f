package indicators

import (
	"fmt"
	"math"

	"optionDesk/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// Series computes the Average True Range using Wilder's smoothing method.
// The first true range is the candle's own high-low range.
func (a *ATR) Series(candles []domain.Candle) ([]Point, error) {
	period := a.Config.Period
	if period < 1 {
		return nil, fmt.Errorf("invalid ATR period %d", period)
	}
	if len(candles) < period {
		return nil, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period, len(candles))
	}

	trueRange := func(i int) float64 {
		c := candles[i]
		if i == 0 {
			return c.High - c.Low
		}
		prevClose := candles[i-1].Close
		return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRange(i)
	}
	atr /= float64(period)

	out := make([]Point, 0, len(candles)-period+1)
	out = append(out, Point{Time: candles[period-1].OpenTime, Value: atr})
	for i := period; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(i)) / float64(period)
		out = append(out, Point{Time: candles[i].OpenTime, Value: atr})
	}
	return out, nil
}

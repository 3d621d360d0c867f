package indicators

import (
	"fmt"
	"time"

	"optionDesk/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is one more than the period since RSI works on close-to-close changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Series computes RSI using Wilder's smoothing method
func (r *RSI) Series(candles []domain.Candle) ([]Point, error) {
	period := r.Config.Period
	if period < 1 {
		return nil, fmt.Errorf("invalid RSI period %d", period)
	}
	if len(candles) <= period {
		return nil, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(candles), period)
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]Point, 0, len(candles)-period)
	out = append(out, r.point(candles[period].OpenTime, rsiValue(avgGain, avgLoss)))

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, r.point(candles[i].OpenTime, rsiValue(avgGain, avgLoss)))
	}
	return out, nil
}

func (r *RSI) point(t time.Time, value float64) Point {
	p := Point{Time: t, Value: value}
	switch {
	case r.IsOverbought(value):
		p.Zone = ZoneOverbought
	case r.IsOversold(value):
		p.Zone = ZoneOversold
	}
	return p
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100
	}
	rsi := 100 - (100 / (1 + avgGain/avgLoss))
	if rsi > 100 {
		return 100
	} else if rsi < 0 {
		return 0
	}
	return rsi
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}

package indicators

import (
	"math"
	"testing"
	"time"

	"optionDesk/internal/domain"
)

var base = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func closes(values ...float64) []domain.Candle {
	out := make([]domain.Candle, len(values))
	for i, v := range values {
		out[i] = domain.Candle{
			OpenTime:    base.Add(time.Duration(i) * time.Minute),
			Open:        v,
			High:        v,
			Low:         v,
			Close:       v,
			Granularity: domain.Granularity1m,
		}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func TestMovingAverage_Series(t *testing.T) {
	candles := closes(100, 102, 101, 103, 104)

	tests := []struct {
		name        string
		config      MovingAverageConfig
		candles     []domain.Candle
		expectLast  float64
		expectLen   int
		expectError bool
	}{
		{
			name: "SMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            SimpleMovingAverage,
			},
			candles:    candles,
			expectLast: 102.666667, // (101 + 103 + 104) / 3
			expectLen:  3,
		},
		{
			name: "EMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            ExponentialMovingAverage,
			},
			candles:    candles,
			expectLast: 103.0,
			expectLen:  3,
		},
		{
			name: "Insufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 6},
				Type:            SimpleMovingAverage,
			},
			candles:     candles,
			expectError: true,
		},
		{
			name: "Invalid MA type",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            "INVALID",
			},
			candles:     candles,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := NewMovingAverage(tt.config).Series(tt.candles)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(series) != tt.expectLen {
				t.Fatalf("Expected %d points, got %d", tt.expectLen, len(series))
			}
			last, _ := Last(series)
			if !approx(last, tt.expectLast) {
				t.Errorf("Expected value %f, got %f", tt.expectLast, last)
			}
			if !series[0].Time.Equal(tt.candles[tt.config.Period-1].OpenTime) {
				t.Errorf("First point should align with candle %d", tt.config.Period-1)
			}
		})
	}
}

func TestSMA_WindowSlides(t *testing.T) {
	series, err := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 2},
		Type:            SimpleMovingAverage,
	}).Series(closes(1, 3, 5, 7))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []float64{2, 4, 6}
	for i, p := range series {
		if !approx(p.Value, want[i]) {
			t.Errorf("point %d: expected %f, got %f", i, want[i], p.Value)
		}
	}
}

func TestRSI_Series(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		candles     []domain.Candle
		expectLast  float64
		expectError bool
	}{
		{
			name:       "RSI with sufficient data",
			period:     3,
			candles:    closes(100, 102, 101, 103, 102, 104),
			expectLast: 77.272727, // Wilder's smoothing
		},
		{
			name:        "Insufficient data",
			period:      7,
			candles:     closes(100, 102, 101, 103, 102, 104),
			expectError: true,
		},
		{
			name:       "All gains",
			period:     3,
			candles:    closes(100, 102, 104, 106),
			expectLast: 100.0,
		},
		{
			name:       "All losses",
			period:     3,
			candles:    closes(106, 104, 102, 100),
			expectLast: 0.0,
		},
		{
			name:       "Flat",
			period:     2,
			candles:    closes(100, 100, 100),
			expectLast: 50.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}, Overbought: 70, Oversold: 30})
			series, err := rsi.Series(tt.candles)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(series) != len(tt.candles)-tt.period {
				t.Errorf("Expected %d points, got %d", len(tt.candles)-tt.period, len(series))
			}
			last, ok := Last(series)
			if !ok || !approx(last, tt.expectLast) {
				t.Errorf("Expected value %f, got %f", tt.expectLast, last)
			}
		})
	}
}

func TestRSI_IsOverboughtOversold(t *testing.T) {
	rsi := NewRSI(RSIConfig{
		IndicatorConfig: IndicatorConfig{Period: 14},
		Overbought:      70,
		Oversold:        30,
	})

	tests := []struct {
		value        float64
		isOverbought bool
		isOversold   bool
	}{
		{75.0, true, false},
		{25.0, false, true},
		{50.0, false, false},
		{70.0, true, false},
		{30.0, false, true},
	}

	for _, tt := range tests {
		if got := rsi.IsOverbought(tt.value); got != tt.isOverbought {
			t.Errorf("IsOverbought(%f) = %v, want %v", tt.value, got, tt.isOverbought)
		}
		if got := rsi.IsOversold(tt.value); got != tt.isOversold {
			t.Errorf("IsOversold(%f) = %v, want %v", tt.value, got, tt.isOversold)
		}
	}
}

func TestRSI_SeriesMarksZones(t *testing.T) {
	rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 2}, Overbought: 70, Oversold: 30})
	series, err := rsi.Series(closes(100, 102, 104, 104, 102, 98, 98))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []Zone{ZoneOverbought, ZoneOverbought, "", ZoneOversold, ZoneOversold}
	if len(series) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(series))
	}
	for i, p := range series {
		if p.Zone != want[i] {
			t.Errorf("point %d (%.2f): expected zone %q, got %q", i, p.Value, want[i], p.Zone)
		}
	}
}

func TestATR_Series(t *testing.T) {
	candles := []domain.Candle{
		{OpenTime: base, High: 12, Low: 10, Close: 11},
		{OpenTime: base.Add(time.Minute), High: 13, Low: 11, Close: 12},
		{OpenTime: base.Add(2 * time.Minute), High: 16, Low: 12, Close: 15},
		{OpenTime: base.Add(3 * time.Minute), High: 15, Low: 10, Close: 11},
	}

	series, err := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 2}}).Series(candles)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// true ranges 2, 2, 4, 5: seed (2+2)/2 = 2, then (2*1+4)/2 = 3, then (3*1+5)/2 = 4
	want := []float64{2, 3, 4}
	if len(series) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(series))
	}
	for i, p := range series {
		if !approx(p.Value, want[i]) {
			t.Errorf("point %d: expected %f, got %f", i, want[i], p.Value)
		}
	}

	if _, err := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 5}}).Series(candles); err == nil {
		t.Error("Expected error for insufficient data")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		expectName  string
		expectError bool
	}{
		{"sma", 20, "SMA", false},
		{"EMA", 9, "EMA", false},
		{"rsi", 14, "RSI", false},
		{"Atr", 14, "ATR", false},
		{"macd", 14, "", true},
		{"sma", 0, "", true},
		{"sma", MaxPeriod + 1, "", true},
	}

	for _, tt := range tests {
		ind, err := New(tt.name, tt.period)
		if tt.expectError {
			if err == nil {
				t.Errorf("New(%q, %d): expected error", tt.name, tt.period)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q, %d): unexpected error %v", tt.name, tt.period, err)
			continue
		}
		if ind.Name() != tt.expectName {
			t.Errorf("New(%q): expected name %s, got %s", tt.name, tt.expectName, ind.Name())
		}
	}

	rsi, _ := New("RSI", 14)
	if rsi.RequiredDataPoints() != 15 {
		t.Errorf("RSI should need period+1 candles, got %d", rsi.RequiredDataPoints())
	}
}

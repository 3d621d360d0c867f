package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/internal/domain"
)

// PerformanceMetrics summarizes an account's resolved positions.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int             `json:"totalTrades"`
	WinningTrades      int             `json:"winningTrades"`
	LosingTrades       int             `json:"losingTrades"`
	WinRate            float64         `json:"winRate"`
	NetProfit          decimal.Decimal `json:"netProfit"`
	TotalStaked        decimal.Decimal `json:"totalStaked"`
	StartingBalance    decimal.Decimal `json:"startingBalance"`
	FinalBalance       decimal.Decimal `json:"finalBalance"`
	ReturnOnInvestment float64         `json:"returnOnInvestment"`
	MaxDrawdown        float64         `json:"maxDrawdown"`
	ProfitFactor       float64         `json:"profitFactor"`
	AverageWin         float64         `json:"averageWin"`
	AverageLoss        float64         `json:"averageLoss"`

	// Advanced Metrics
	MaxConsecutiveWins   int                      `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                      `json:"maxConsecutiveLosses"`
	AverageDuration      time.Duration            `json:"averageDurationNs"`
	Expectancy           float64                  `json:"expectancy"`
	MonthlyReturns       map[string]float64       `json:"monthlyReturns"`
	BySymbol             map[string]*SymbolResult `json:"bySymbol"`
	Drawdowns            []Drawdown               `json:"drawdowns"`
	EquityCurve          []EquityPoint            `json:"equityCurve"`
}

// SymbolResult is the per-instrument breakdown.
type SymbolResult struct {
	Trades    int             `json:"trades"`
	Won       int             `json:"won"`
	Lost      int             `json:"lost"`
	NetProfit decimal.Decimal `json:"netProfit"`
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	StartValue float64       `json:"startValue"`
	EndValue   float64       `json:"endValue"`
	Depth      float64       `json:"depth"`
	Duration   time.Duration `json:"durationNs"`
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// AnalyzePerformance calculates performance metrics over the resolved positions.
// Open positions are ignored. startingBalance is the equity before the first resolution.
func AnalyzePerformance(positions []*domain.Position, startingBalance decimal.Decimal) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		StartingBalance: startingBalance,
		FinalBalance:    startingBalance,
		MonthlyReturns:  make(map[string]float64),
		BySymbol:        make(map[string]*SymbolResult),
		Drawdowns:       make([]Drawdown, 0),
		EquityCurve:     make([]EquityPoint, 0),
	}

	closed := make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Status.Terminal() && p.ProfitLoss != nil && p.ClosedAt != nil {
			closed = append(closed, p)
		}
	}
	if len(closed) == 0 {
		return metrics
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ClosedAt.Before(*closed[j].ClosedAt)
	})

	initial := startingBalance.InexactFloat64()
	currentBalance := initial
	peakBalance := initial
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var grossWin, grossLoss float64
	var totalDuration time.Duration

	for _, p := range closed {
		pl := p.ProfitLoss.InexactFloat64()
		closedAt := *p.ClosedAt

		metrics.TotalTrades++
		metrics.NetProfit = metrics.NetProfit.Add(*p.ProfitLoss)
		metrics.TotalStaked = metrics.TotalStaked.Add(p.Amount)
		totalDuration += closedAt.Sub(p.CreatedAt)

		sym, ok := metrics.BySymbol[p.Symbol]
		if !ok {
			sym = &SymbolResult{}
			metrics.BySymbol[p.Symbol] = sym
		}
		sym.Trades++
		sym.NetProfit = sym.NetProfit.Add(*p.ProfitLoss)

		if p.Status == domain.StatusWon {
			metrics.WinningTrades++
			sym.Won++
			consecutiveWins++
			consecutiveLosses = 0
			grossWin += pl
		} else {
			metrics.LosingTrades++
			sym.Lost++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += pl
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		currentBalance += pl
		metrics.MonthlyReturns[closedAt.UTC().Format("2006-01")] += pl

		if currentBalance >= peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = closedAt
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else {
			drawdown := relativeDrop(peakBalance, currentBalance)
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  closedAt,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			if drawdown > metrics.MaxDrawdown {
				metrics.MaxDrawdown = drawdown
			}
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     closedAt,
			Value:    currentBalance,
			Drawdown: relativeDrop(peakBalance, currentBalance),
		})
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = *closed[len(closed)-1].ClosedAt
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.FinalBalance = startingBalance.Add(metrics.NetProfit)
	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	metrics.AverageDuration = totalDuration / time.Duration(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossWin / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss != 0 {
		metrics.ProfitFactor = grossWin / -grossLoss
	}
	if startingBalance.IsPositive() {
		metrics.ReturnOnInvestment = metrics.NetProfit.Div(startingBalance).InexactFloat64()
	}
	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	return metrics
}

func relativeDrop(peak, current float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (peak - current) / peak
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time `json:"month"`
	Return float64   `json:"return"`
}

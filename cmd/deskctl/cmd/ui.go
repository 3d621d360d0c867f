package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"optionDesk/internal/analytics"
	"optionDesk/internal/client"
	"optionDesk/internal/domain"
	"optionDesk/internal/indicators"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	// Status styles
	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	wonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	lostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))
)

func statusStyle(s domain.PositionStatus) lipgloss.Style {
	switch s {
	case domain.StatusWon:
		return wonStyle
	case domain.StatusLost:
		return lostStyle
	default:
		return openStyle
	}
}

func keyValues(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-*s", width, r[0]))+"  "+r[1])
	}
	return strings.Join(lines, "\n")
}

func renderSession(w io.Writer, action string, s *client.Session) {
	body := keyValues([][2]string{
		{"Account", s.Account.ID},
		{"Name", s.Account.Name},
		{"Email", s.Account.Email},
		{"Balance", s.Account.Balance.StringFixed(2)},
		{"Expires", s.ExpiresAt.Local().Format(time.RFC1123)},
	})
	fmt.Fprintln(w, successStyle.Render("✓ "+action))
	fmt.Fprintln(w, boxStyle.Render(body))
}

func renderAccount(w io.Writer, a *domain.Account) {
	body := keyValues([][2]string{
		{"Account", a.ID},
		{"Name", a.Name},
		{"Email", a.Email},
		{"Balance", a.Balance.StringFixed(2)},
	})
	fmt.Fprintln(w, titleStyle.Render("Account"))
	fmt.Fprintln(w, boxStyle.Render(body))
}

func renderPosition(w io.Writer, p *domain.Position) {
	rows := [][2]string{
		{"ID", p.ID},
		{"Symbol", p.Symbol},
		{"Direction", string(p.Direction)},
		{"Amount", p.Amount.StringFixed(2)},
		{"Entry", formatPrice(p.EntryPrice)},
		{"Expiry", fmt.Sprintf("%dm (at %s)", p.ExpiryMinutes, p.Deadline().Local().Format(time.TimeOnly))},
		{"Status", statusStyle(p.Status).Render(string(p.Status))},
	}
	if p.ClosePrice != nil {
		rows = append(rows, [2]string{"Close", formatPrice(*p.ClosePrice)})
	}
	if p.ProfitLoss != nil {
		rows = append(rows, [2]string{"P/L", p.ProfitLoss.StringFixed(2)})
	}
	if p.ProfitPercentage != nil {
		rows = append(rows, [2]string{"P/L %", fmt.Sprintf("%.0f%%", *p.ProfitPercentage)})
	}
	fmt.Fprintln(w, boxStyle.Render(keyValues(rows)))
}

func renderPositions(w io.Writer, positions []*domain.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(w, labelStyle.Render("No positions."))
		return
	}
	header := fmt.Sprintf("%-26s %-8s %-4s %10s %12s %12s %-6s %10s", "ID", "SYMBOL", "DIR", "AMOUNT", "ENTRY", "CLOSE", "STATUS", "P/L")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, p := range positions {
		closePrice, pl := "-", "-"
		if p.ClosePrice != nil {
			closePrice = formatPrice(*p.ClosePrice)
		}
		if p.ProfitLoss != nil {
			pl = p.ProfitLoss.StringFixed(2)
		}
		status := statusStyle(p.Status).Render(fmt.Sprintf("%-6s", p.Status))
		fmt.Fprintf(w, "%-26s %-8s %-4s %10s %12s %12s %s %10s\n",
			p.ID, p.Symbol, p.Direction, p.Amount.StringFixed(2), formatPrice(p.EntryPrice), closePrice, status, pl)
	}
}

func renderQuotes(w io.Writer, quotes []domain.Quote) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %14s  %s", "SYMBOL", "PRICE", "TIME")))
	for _, q := range quotes {
		fmt.Fprintf(w, "%-10s %14s  %s\n", q.Symbol, formatPrice(q.Price), q.Time.Local().Format(time.TimeOnly))
	}
}

func renderInstruments(w io.Writer, instruments []domain.Instrument) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %-24s %-8s %s", "SYMBOL", "NAME", "TYPE", "PRECISION")))
	for _, inst := range instruments {
		fmt.Fprintf(w, "%-10s %-24s %-8s %d\n", inst.Symbol, inst.Name, inst.Type, inst.Precision)
	}
}

func renderCandles(w io.Writer, candles []domain.Candle) {
	if len(candles) == 0 {
		fmt.Fprintln(w, labelStyle.Render("No candles yet."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %12s %12s %12s %12s", "OPEN AT", "OPEN", "HIGH", "LOW", "CLOSE")))
	for _, c := range candles {
		fmt.Fprintf(w, "%-8s %12s %12s %12s %12s\n", c.OpenTime.Local().Format("15:04"),
			formatPrice(c.Open), formatPrice(c.High), formatPrice(c.Low), formatPrice(c.Close))
	}
}

func renderStudy(w io.Writer, title string, series []indicators.Point) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if len(series) == 0 {
		fmt.Fprintln(w, labelStyle.Render("Not enough candles yet."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %14s  %s", "AT", "VALUE", "ZONE")))
	for _, p := range series {
		zone := string(p.Zone)
		switch p.Zone {
		case indicators.ZoneOverbought:
			zone = lostStyle.Render(zone)
		case indicators.ZoneOversold:
			zone = wonStyle.Render(zone)
		}
		fmt.Fprintf(w, "%-8s %14s  %s\n", p.Time.Local().Format("15:04"), formatPrice(p.Value), zone)
	}
}

func renderChart(w io.Writer, ch *client.Chart) {
	body := keyValues([][2]string{
		{"Symbol", ch.Symbol},
		{"Granularity", string(ch.Granularity)},
		{"Expiry", fmt.Sprintf("%dm", ch.ExpiryMinutes)},
		{"Price", formatPrice(ch.Quote.Price)},
	})
	fmt.Fprintln(w, titleStyle.Render("Chart"))
	fmt.Fprintln(w, boxStyle.Render(body))
	renderCandles(w, ch.Candles)
	if len(ch.Markers) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Markers"))
		renderPositions(w, ch.Markers)
	}
}

func renderStats(w io.Writer, m *analytics.PerformanceMetrics) {
	body := keyValues([][2]string{
		{"Trades", fmt.Sprintf("%d (%d won, %d lost)", m.TotalTrades, m.WinningTrades, m.LosingTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100)},
		{"Net profit", m.NetProfit.StringFixed(2)},
		{"Equity", fmt.Sprintf("%s -> %s", m.StartingBalance.StringFixed(2), m.FinalBalance.StringFixed(2))},
		{"Total staked", m.TotalStaked.StringFixed(2)},
		{"ROI", fmt.Sprintf("%.2f%%", m.ReturnOnInvestment*100)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)},
		{"Profit factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Expectancy", fmt.Sprintf("%.2f", m.Expectancy)},
		{"Streaks", fmt.Sprintf("%d wins / %d losses", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)},
	})
	fmt.Fprintln(w, titleStyle.Render("Performance"))
	fmt.Fprintln(w, boxStyle.Render(body))

	if m.TotalTrades == 0 {
		return
	}
	symbols := make([]string, 0, len(m.BySymbol))
	for s := range m.BySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %6s %6s %6s %12s", "SYMBOL", "TRADES", "WON", "LOST", "NET")))
	for _, s := range symbols {
		r := m.BySymbol[s]
		fmt.Fprintf(w, "%-10s %6d %6d %6d %12s\n", s, r.Trades, r.Won, r.Lost, r.NetProfit.StringFixed(2))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %12s", "MONTH", "NET")))
	for _, mr := range m.GetMonthlyReturns() {
		fmt.Fprintf(w, "%-10s %12.2f\n", mr.Month.Format("2006-01"), mr.Return)
	}
}

func formatPrice(p float64) string {
	s := fmt.Sprintf("%.6f", p)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/internal/domain"
)

var positionColumns = []string{
	"id", "symbol", "direction", "amount", "entry_price", "expiry_minutes", "status",
	"close_price", "profit_loss", "profit_percentage", "created_at", "closed_at",
}

// WritePositionsCSV writes one row per position. Close fields are empty while a position is open.
func WritePositionsCSV(w io.Writer, positions []*domain.Position) error {
	writer := csv.NewWriter(w)

	writer.Write(positionColumns)

	for _, p := range positions {
		var closePrice, profitLoss, profitPct, closedAt string
		if p.ClosePrice != nil {
			closePrice = strconv.FormatFloat(*p.ClosePrice, 'f', -1, 64)
		}
		if p.ProfitLoss != nil {
			profitLoss = p.ProfitLoss.StringFixed(2)
		}
		if p.ProfitPercentage != nil {
			profitPct = strconv.FormatFloat(*p.ProfitPercentage, 'f', -1, 64)
		}
		if p.ClosedAt != nil {
			closedAt = p.ClosedAt.Format(time.RFC3339Nano)
		}
		writer.Write([]string{
			p.ID,
			p.Symbol,
			string(p.Direction),
			p.Amount.StringFixed(2),
			strconv.FormatFloat(p.EntryPrice, 'f', -1, 64),
			strconv.Itoa(p.ExpiryMinutes),
			string(p.Status),
			closePrice,
			profitLoss,
			profitPct,
			p.CreatedAt.Format(time.RFC3339Nano),
			closedAt,
		})
	}
	writer.Flush()
	return writer.Error()
}

// ReadPositionsCSV parses rows written by WritePositionsCSV.
func ReadPositionsCSV(r io.Reader) ([]*domain.Position, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(positionColumns)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	for i, col := range positionColumns {
		if records[0][i] != col {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i+1, records[0][i], col)
		}
	}

	positions := make([]*domain.Position, 0, len(records)-1)
	for i, record := range records[1:] {
		p, err := parsePositionRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// ReadPositionsCSVFile reads positions from filename.
func ReadPositionsCSVFile(filename string) ([]*domain.Position, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadPositionsCSV(file)
}

func parsePositionRecord(record []string) (*domain.Position, error) {
	amount, err := decimal.NewFromString(record[3])
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	entry, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return nil, fmt.Errorf("entry_price: %w", err)
	}
	expiry, err := strconv.Atoi(record[5])
	if err != nil {
		return nil, fmt.Errorf("expiry_minutes: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, record[10])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	p := &domain.Position{
		ID:            record[0],
		Symbol:        record[1],
		Direction:     domain.Direction(record[2]),
		Amount:        amount,
		EntryPrice:    entry,
		ExpiryMinutes: expiry,
		Status:        domain.PositionStatus(record[6]),
		CreatedAt:     createdAt,
	}
	if !p.Direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", record[2])
	}

	switch {
	case p.Status == domain.StatusOpen:
		return p, nil
	case !p.Status.Terminal():
		return nil, fmt.Errorf("invalid status %q", record[6])
	}

	closePrice, err := strconv.ParseFloat(record[7], 64)
	if err != nil {
		return nil, fmt.Errorf("close_price: %w", err)
	}
	pl, err := decimal.NewFromString(record[8])
	if err != nil {
		return nil, fmt.Errorf("profit_loss: %w", err)
	}
	pct, err := strconv.ParseFloat(record[9], 64)
	if err != nil {
		return nil, fmt.Errorf("profit_percentage: %w", err)
	}
	closedAt, err := time.Parse(time.RFC3339Nano, record[11])
	if err != nil {
		return nil, fmt.Errorf("closed_at: %w", err)
	}
	p.ClosePrice = &closePrice
	p.ProfitLoss = &pl
	p.ProfitPercentage = &pct
	p.ClosedAt = &closedAt
	return p, nil
}

// WriteQuotesCSV writes one row per simulated tick.
func WriteQuotesCSV(w io.Writer, quotes []domain.Quote) error {
	writer := csv.NewWriter(w)

	writer.Write([]string{"time", "symbol", "price"})

	for _, q := range quotes {
		writer.Write([]string{
			q.Time.Format(time.RFC3339),
			q.Symbol,
			strconv.FormatFloat(q.Price, 'f', -1, 64),
		})
	}
	writer.Flush()
	return writer.Error()
}

// WriteQuotesCSVFile creates filename (and its directory) and writes quotes to it.
func WriteQuotesCSVFile(quotes []domain.Quote, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteQuotesCSV(file, quotes)
}

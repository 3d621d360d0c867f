package utils

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/domain"
)

var t0 = time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC)

func TestWritePositionsCSV(t *testing.T) {
	open := &domain.Position{
		ID: "p-open", Symbol: "BTC/USD", Direction: domain.Buy, Amount: decimal.NewFromInt(20),
		EntryPrice: 84421.44, ExpiryMinutes: 1, Status: domain.StatusOpen, CreatedAt: t0,
	}
	won := &domain.Position{
		ID: "p-won", Symbol: "ETH/USD", Direction: domain.Sell, Amount: decimal.RequireFromString("12.5"),
		EntryPrice: 3150.25, ExpiryMinutes: 5, Status: domain.StatusOpen, CreatedAt: t0,
	}
	won.Apply(domain.Settlement{
		Status: domain.StatusWon, ClosePrice: 3118.75, ProfitLoss: decimal.RequireFromString("10.75"),
		ProfitPercentage: 86, ClosedAt: t0.Add(5 * time.Minute),
	})

	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, []*domain.Position{open, won}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{"p-open", "BTC/USD", "BUY", "20.00", "84421.44", "1", "OPEN", "", "", "", "2025-04-01T08:30:00Z", ""}, rows[1])
	assert.Equal(t, []string{"p-won", "ETH/USD", "SELL", "12.50", "3150.25", "5", "WON", "3118.75", "10.75", "86", "2025-04-01T08:30:00Z", "2025-04-01T08:35:00Z"}, rows[2])
}

func TestWriteQuotesCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quotes.csv")
	quotes := []domain.Quote{
		{Symbol: "BTC/USD", Price: 84421.44, Time: t0},
		{Symbol: "BTC/USD", Price: 84500.1, Time: t0.Add(2 * time.Second)},
	}
	require.NoError(t, WriteQuotesCSVFile(quotes, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "time,symbol,price\n2025-04-01T08:30:00Z,BTC/USD,84421.44\n2025-04-01T08:30:02Z,BTC/USD,84500.1\n", string(data))
}

func TestReadPositionsCSV_RoundTrip(t *testing.T) {
	pos := &domain.Position{
		ID: "p-lost", Symbol: "EUR/USD", Direction: domain.Buy, Amount: decimal.NewFromInt(10),
		EntryPrice: 1.085, ExpiryMinutes: 3, Status: domain.StatusOpen, CreatedAt: t0.Add(1500 * time.Millisecond),
	}
	pos.Apply(domain.Settlement{
		Status: domain.StatusLost, ClosePrice: 1.0742, ProfitLoss: decimal.NewFromInt(-10),
		ProfitPercentage: -100, ClosedAt: t0.Add(3 * time.Minute),
	})
	open := &domain.Position{
		ID: "p-open", Symbol: "AAPL", Direction: domain.Sell, Amount: decimal.NewFromInt(5),
		EntryPrice: 189.5, ExpiryMinutes: 1, Status: domain.StatusOpen, CreatedAt: t0,
	}

	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, []*domain.Position{pos, open}))

	got, err := ReadPositionsCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.StatusLost, got[0].Status)
	assert.True(t, got[0].CreatedAt.Equal(pos.CreatedAt))
	assert.Equal(t, 1.0742, *got[0].ClosePrice)
	assert.Equal(t, "-10", got[0].ProfitLoss.String())
	assert.Equal(t, -100.0, *got[0].ProfitPercentage)

	assert.True(t, got[1].IsOpen())
	assert.Nil(t, got[1].ClosePrice)
	assert.Nil(t, got[1].ClosedAt)
}

func TestReadPositionsCSV_Invalid(t *testing.T) {
	header := "id,symbol,direction,amount,entry_price,expiry_minutes,status,close_price,profit_loss,profit_percentage,created_at,closed_at\n"
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"wrong header", "a,b,c,d,e,f,g,h,i,j,k,l\n"},
		{"bad amount", header + "p1,BTC/USD,BUY,abc,1,1,OPEN,,,,2025-04-01T08:30:00Z,\n"},
		{"bad direction", header + "p1,BTC/USD,UP,1,1,1,OPEN,,,,2025-04-01T08:30:00Z,\n"},
		{"bad status", header + "p1,BTC/USD,BUY,1,1,1,PENDING,,,,2025-04-01T08:30:00Z,\n"},
		{"settled without close", header + "p1,BTC/USD,BUY,1,1,1,WON,,,,2025-04-01T08:30:00Z,\n"},
		{"short row", header + "p1,BTC/USD\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPositionsCSV(bytes.NewBufferString(tt.data))
			assert.Error(t, err)
		})
	}
}

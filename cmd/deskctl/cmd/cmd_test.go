package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/analytics"
	"optionDesk/internal/domain"
)

func TestSessionFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")

	missing, err := loadSession(path)
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := &savedSession{
		Server:    "http://desk:8080",
		Token:     "tok-1",
		AccountID: "acc-1",
		Email:     "ann@example.com",
		ExpiresAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, saveSession(path, want))

	got, err := loadSession(path)
	require.NoError(t, err)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.Server, got.Server)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, clearSession(path))
	require.NoError(t, clearSession(path))
	gone, err := loadSession(path)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_LoginThenTrade(t *testing.T) {
	var opened map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/sessions":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"account": map[string]interface{}{"id": "acc-1", "name": "Ann", "email": "ann@example.com", "balance": "10000"},
				"token":   "tok-1",
			})
		case "/api/positions":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&opened))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id": "pos-1", "symbol": "BTC/USD", "direction": "SELL", "amount": "20",
				"entryPrice": 84421.44, "expiryMinutes": 1, "status": "OPEN",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	session := filepath.Join(t.TempDir(), "session.yaml")

	out, err := run(t, "--server", srv.URL, "--session", session, "login", "--email", "ann@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	saved, err := loadSession(session)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "tok-1", saved.Token)
	assert.Equal(t, srv.URL, saved.Server)

	out, err = run(t, "--server", srv.URL, "--session", session, "trade", "sell", "--amount", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "pos-1")
	assert.Equal(t, "SELL", opened["direction"])
	assert.Equal(t, "20", opened["amount"])
}

func TestCommands_RequireLogin(t *testing.T) {
	session := filepath.Join(t.TempDir(), "none.yaml")
	_, err := run(t, "--session", session, "account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCommands_RejectsBadDirection(t *testing.T) {
	_, err := run(t, "trade", "up", "--amount", "1")
	assert.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "84421.44", formatPrice(84421.44))
	assert.Equal(t, "1.085", formatPrice(1.0850))
	assert.Equal(t, "190", formatPrice(190))
}

func TestRenderStats_MonthlyTable(t *testing.T) {
	settled := func(symbol string, pl string, closed time.Time) *domain.Position {
		profit := decimal.RequireFromString(pl)
		status := domain.StatusWon
		if profit.IsNegative() {
			status = domain.StatusLost
		}
		return &domain.Position{
			Symbol: symbol, Direction: domain.Buy, Amount: decimal.NewFromInt(20), Status: status,
			CreatedAt: closed.Add(-time.Minute), ClosedAt: &closed, ProfitLoss: &profit,
		}
	}
	metrics := analytics.AnalyzePerformance([]*domain.Position{
		settled("BTC/USD", "17.2", time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)),
		settled("ETH/USD", "-20", time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)),
		settled("BTC/USD", "17.2", time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)),
	}, decimal.NewFromInt(10000))

	var buf bytes.Buffer
	renderStats(&buf, metrics)
	out := buf.String()

	jan, feb := strings.Index(out, "2024-01"), strings.Index(out, "2024-02")
	require.NotEqual(t, -1, jan)
	require.NotEqual(t, -1, feb)
	assert.Less(t, jan, feb, "months are listed oldest first")
	assert.Contains(t, out, "-2.80")
	assert.Contains(t, out, "17.20")
	assert.Contains(t, out, "10000.00 -> 10014.40")
}

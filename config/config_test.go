package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/adapters/logger"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// t.Setenv restores anything a developer's .env or shell might set.
	for _, k := range []string{"MIN_STAKE", "MAX_STAKE", "PAYOUT_RATE", "EXPIRY_MINUTES", "LOG_FORMAT", "INSTRUMENTS_FILE", "DEFAULT_SYMBOL"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "BTC/USD", cfg.DefaultSymbol)
	assert.Equal(t, "10000", cfg.StartingBalance.String())
	assert.Equal(t, "0.86", cfg.PayoutRate.String())
	assert.Equal(t, 0.5, cfg.WinThreshold)
	assert.Equal(t, 2*time.Second, cfg.PriceTick)
	assert.Equal(t, time.Second, cfg.ResolveInterval)
	assert.Equal(t, []int{1, 5, 15}, cfg.ExpiryMinutes)
	assert.Equal(t, "10", cfg.MinStake.String())
	assert.Equal(t, 10, cfg.MarkerLimit)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Len(t, cfg.Instruments, 4)
	assert.True(t, cfg.IsAllowedExpiry(5))
	assert.False(t, cfg.IsAllowedExpiry(2))
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad payout", map[string]string{"PAYOUT_RATE": "abc"}, "invalid PAYOUT_RATE"},
		{"max below min", map[string]string{"MIN_STAKE": "100", "MAX_STAKE": "50"}, "MAX_STAKE must be greater"},
		{"bad expiry list", map[string]string{"EXPIRY_MINUTES": "1,x"}, "invalid EXPIRY_MINUTES"},
		{"negative expiry", map[string]string{"EXPIRY_MINUTES": "1,-5"}, "EXPIRY_MINUTES entries must be positive"},
		{"fraction above one", map[string]string{"MAX_STAKE_FRACTION": "1.5"}, "MAX_STAKE_FRACTION"},
		{"unknown default symbol", map[string]string{"DEFAULT_SYMBOL": "DOGE/USD"}, "not in the instrument catalog"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"win threshold out of range", map[string]string{"WIN_THRESHOLD": "1.5"}, "WIN_THRESHOLD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadInstruments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instruments:
  - symbol: SOL/USD
    name: Solana
    type: Crypto
    seed_price: 145.5
  - symbol: GBP/USD
    seed_price: 1.27
    volatility: 0.001
    precision: 5
  - symbol: NIKKEI
    seed_price: 38500
    precision: 0
`), 0o644))

	got, err := LoadInstruments(path)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "SOL/USD", got[0].Symbol)
	assert.Equal(t, 0.002, got[0].Volatility)
	assert.Equal(t, 2, got[0].Precision)
	assert.Equal(t, "GBP/USD", got[1].Name)
	assert.Equal(t, 5, got[1].Precision)
	assert.Equal(t, 0, got[2].Precision, "explicit zero precision means whole prices")
}

func TestLoadInstruments_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":     "instruments: []\n",
		"no price":  "instruments:\n  - symbol: X\n",
		"duplicate": "instruments:\n  - {symbol: X, seed_price: 1}\n  - {symbol: X, seed_price: 2}\n",
		"precision": "instruments:\n  - {symbol: X, seed_price: 1, precision: -1}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadInstruments(path)
			assert.Error(t, err)
		})
	}
}

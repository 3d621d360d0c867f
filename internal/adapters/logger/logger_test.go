package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/ports"
)

var _ ports.Logger = (*Logger)(nil)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" Error ", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, FormatText)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "position opened", map[string]interface{}{"symbol": "BTC/USD", "amount": "20"})
	l.Error(ctx, errors.New("boom"), "settle failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, lines[0], `level=info msg="position opened" amount=20 symbol=BTC/USD`)
	assert.Contains(t, lines[1], `level=error msg="settle failed" error=boom`)
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, FormatJSON)

	l.Warn(context.Background(), "cooldown", map[string]interface{}{"accountID": "acc-1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "cooldown", entry["msg"])
	assert.Equal(t, "acc-1", entry["accountID"])
}

func TestLogger_ErrorWithoutCause(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelError, FormatText).Error(context.Background(), nil, "no cause")
	assert.Contains(t, buf.String(), `msg="no cause"`)
	assert.NotContains(t, buf.String(), "error=")
}

package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

func defaultPolicy() Policy {
	return Policy{
		MinStake:         dec("10"),
		MaxStake:         dec("5000"),
		MaxStakeFraction: dec("0.5"),
		MaxDailyLoss:     dec("2500"),
		Cooldown:         2 * time.Second,
		ExpiryMinutes:    []int{1, 5, 15},
	}
}

func TestEvaluate(t *testing.T) {
	okIntent := Intent{Direction: domain.Buy, Amount: dec("20"), ExpiryMinutes: 1}
	okSnap := Snapshot{Balance: dec("10000"), Now: now}

	tests := []struct {
		name     string
		mutate   func(*Policy, *Intent, *Snapshot)
		wantCode string
		wantErr  error
	}{
		{"valid", func(*Policy, *Intent, *Snapshot) {}, "", nil},
		{"zero amount", func(_ *Policy, i *Intent, _ *Snapshot) { i.Amount = decimal.Zero }, CodeInvalidAmount, ports.ErrInvalidRequest},
		{"negative amount", func(_ *Policy, i *Intent, _ *Snapshot) { i.Amount = dec("-5") }, CodeInvalidAmount, ports.ErrInvalidRequest},
		{"three decimals", func(_ *Policy, i *Intent, _ *Snapshot) { i.Amount = dec("10.005") }, CodeInvalidAmount, ports.ErrInvalidRequest},
		{"bad direction", func(_ *Policy, i *Intent, _ *Snapshot) { i.Direction = "HOLD" }, CodeInvalidDirection, ports.ErrInvalidRequest},
		{"bad expiry", func(_ *Policy, i *Intent, _ *Snapshot) { i.ExpiryMinutes = 2 }, CodeInvalidExpiry, ports.ErrInvalidExpiry},
		{"stake 5 too low", func(_ *Policy, i *Intent, _ *Snapshot) { i.Amount = dec("5") }, CodeStakeTooLow, ports.ErrStakeOutOfBounds},
		{"stake too high", func(_ *Policy, i *Intent, s *Snapshot) { i.Amount = dec("5000.01"); s.Balance = dec("100000") }, CodeStakeTooHigh, ports.ErrStakeOutOfBounds},
		{"more than balance", func(_ *Policy, i *Intent, s *Snapshot) { i.Amount = dec("50"); s.Balance = dec("40") }, CodeInsufficientFunds, ports.ErrInsufficientFunds},
		{"over half of balance", func(_ *Policy, i *Intent, s *Snapshot) { i.Amount = dec("30"); s.Balance = dec("50") }, CodeBalanceFraction, ports.ErrInsufficientFunds},
		{"exactly half of balance", func(_ *Policy, i *Intent, s *Snapshot) { i.Amount = dec("25"); s.Balance = dec("50") }, "", nil},
		{"daily loss reached", func(_ *Policy, _ *Intent, s *Snapshot) { s.RealizedToday = dec("-2500") }, CodeDailyLossLimit, ports.ErrGuardLimit},
		{"daily loss disabled", func(p *Policy, _ *Intent, s *Snapshot) { p.MaxDailyLoss = decimal.Zero; s.RealizedToday = dec("-9000") }, "", nil},
		{"cooldown", func(_ *Policy, _ *Intent, s *Snapshot) { s.LastOpenedAt = now.Add(-time.Second) }, CodeCooldown, ports.ErrGuardLimit},
		{"cooldown elapsed", func(_ *Policy, _ *Intent, s *Snapshot) { s.LastOpenedAt = now.Add(-2 * time.Second) }, "", nil},
		{"cooldown disabled", func(p *Policy, _ *Intent, s *Snapshot) { p.Cooldown = 0; s.LastOpenedAt = now }, "", nil},
		{"first failing guard wins", func(_ *Policy, i *Intent, s *Snapshot) { i.Amount = dec("5"); i.ExpiryMinutes = 3; s.Balance = decimal.Zero }, CodeInvalidExpiry, ports.ErrInvalidExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, i, s := defaultPolicy(), okIntent, okSnap
			tt.mutate(&p, &i, &s)

			err := Evaluate(p, i, s)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var v *Violation
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tt.wantCode, v.Code)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotEmpty(t, v.Error())
		})
	}
}

func TestManager_Validate(t *testing.T) {
	m := NewManager(defaultPolicy())
	err := m.Validate(Intent{Direction: domain.Sell, Amount: dec("5"), ExpiryMinutes: 5}, Snapshot{Balance: dec("10000"), Now: now})
	assert.ErrorIs(t, err, ports.ErrStakeOutOfBounds)
	assert.Contains(t, err.Error(), "minimum stake is 10.00")
	assert.True(t, m.Policy().AllowsExpiry(15))
}

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	got := DayStart(time.Date(2025, 6, 2, 1, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestIsCents(t *testing.T) {
	assert.True(t, IsCents(dec("10")))
	assert.True(t, IsCents(dec("10.25")))
	assert.False(t, IsCents(dec("10.251")))
}

package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

// Violation codes, in the order Evaluate checks them.
const (
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInvalidDirection  = "INVALID_DIRECTION"
	CodeInvalidExpiry     = "INVALID_EXPIRY"
	CodeStakeTooLow       = "STAKE_TOO_LOW"
	CodeStakeTooHigh      = "STAKE_TOO_HIGH"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeBalanceFraction   = "BALANCE_FRACTION"
	CodeDailyLossLimit    = "DAILY_LOSS_LIMIT"
	CodeCooldown          = "COOLDOWN"
)

// Policy holds the limits applied to every new position.
type Policy struct {
	MinStake         decimal.Decimal
	MaxStake         decimal.Decimal
	MaxStakeFraction decimal.Decimal // of the current balance
	MaxDailyLoss     decimal.Decimal // 0 disables
	Cooldown         time.Duration   // 0 disables
	ExpiryMinutes    []int
}

// Intent is what the caller asked to open.
type Intent struct {
	Direction     domain.Direction
	Amount        decimal.Decimal
	ExpiryMinutes int
}

// Snapshot is the account state the intent is checked against.
type Snapshot struct {
	Balance       decimal.Decimal
	RealizedToday decimal.Decimal // P/L of positions closed since UTC midnight
	LastOpenedAt  time.Time       // zero if the account never traded
	Now           time.Time
}

// Violation reports the first guard an intent failed.
type Violation struct {
	Code string
	Msg  string
	Err  error // ports sentinel
}

func (v *Violation) Error() string {
	return v.Msg
}

func (v *Violation) Unwrap() error {
	return v.Err
}

func violation(code string, sentinel error, format string, args ...interface{}) *Violation {
	return &Violation{Code: code, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

// Manager applies a fixed Policy.
type Manager struct {
	policy Policy
}

// NewManager creates a new guard manager.
func NewManager(policy Policy) *Manager {
	return &Manager{policy: policy}
}

// Policy returns the limits the manager enforces.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Validate checks intent against the manager's policy.
func (m *Manager) Validate(intent Intent, snap Snapshot) error {
	return Evaluate(m.policy, intent, snap)
}

// AllowsExpiry reports whether minutes is one of the policy's expiry durations.
func (p Policy) AllowsExpiry(minutes int) bool {
	for _, m := range p.ExpiryMinutes {
		if m == minutes {
			return true
		}
	}
	return false
}

// Evaluate returns nil if intent passes every guard, or a *Violation for the first one it fails.
func Evaluate(p Policy, intent Intent, snap Snapshot) error {
	amount := intent.Amount

	if !amount.IsPositive() || !IsCents(amount) {
		return violation(CodeInvalidAmount, ports.ErrInvalidRequest,
			"amount must be a positive value with at most two decimals, got %s", amount.String())
	}
	if !intent.Direction.Valid() {
		return violation(CodeInvalidDirection, ports.ErrInvalidRequest,
			"direction must be BUY or SELL, got %q", intent.Direction)
	}
	if !p.AllowsExpiry(intent.ExpiryMinutes) {
		return violation(CodeInvalidExpiry, ports.ErrInvalidExpiry,
			"expiry of %d minutes is not allowed, choose one of %v", intent.ExpiryMinutes, p.ExpiryMinutes)
	}
	if amount.LessThan(p.MinStake) {
		return violation(CodeStakeTooLow, ports.ErrStakeOutOfBounds,
			"minimum stake is %s", p.MinStake.StringFixed(2))
	}
	if p.MaxStake.IsPositive() && amount.GreaterThan(p.MaxStake) {
		return violation(CodeStakeTooHigh, ports.ErrStakeOutOfBounds,
			"maximum stake is %s", p.MaxStake.StringFixed(2))
	}
	if amount.GreaterThan(snap.Balance) {
		return violation(CodeInsufficientFunds, ports.ErrInsufficientFunds,
			"insufficient balance: %s available, %s requested", snap.Balance.StringFixed(2), amount.StringFixed(2))
	}
	if p.MaxStakeFraction.IsPositive() {
		limit := snap.Balance.Mul(p.MaxStakeFraction)
		if amount.GreaterThan(limit) {
			return violation(CodeBalanceFraction, ports.ErrInsufficientFunds,
				"stake may not exceed %s%% of balance (%s)",
				p.MaxStakeFraction.Mul(decimal.NewFromInt(100)).String(), limit.StringFixed(2))
		}
	}
	if p.MaxDailyLoss.IsPositive() && snap.RealizedToday.LessThanOrEqual(p.MaxDailyLoss.Neg()) {
		return violation(CodeDailyLossLimit, ports.ErrGuardLimit,
			"daily loss limit of %s reached", p.MaxDailyLoss.StringFixed(2))
	}
	if p.Cooldown > 0 && !snap.LastOpenedAt.IsZero() {
		if wait := snap.LastOpenedAt.Add(p.Cooldown).Sub(snap.Now); wait > 0 {
			return violation(CodeCooldown, ports.ErrGuardLimit,
				"please wait %s before opening another position", wait.Round(100*time.Millisecond))
		}
	}
	return nil
}

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// DayStart returns UTC midnight of the day containing t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

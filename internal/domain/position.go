package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a single timed bet on price direction.
//
// ClosePrice, ProfitLoss, ProfitPercentage and ClosedAt are nil while the
// position is OPEN and are all set, exactly once, when it resolves.
type Position struct {
	ID               string           `json:"id"`
	AccountID        string           `json:"accountId"`
	Symbol           string           `json:"symbol"`
	Amount           decimal.Decimal  `json:"amount"`
	Direction        Direction        `json:"direction"`
	EntryPrice       float64          `json:"entryPrice"`
	ExpiryMinutes    int              `json:"expiryMinutes"`
	Status           PositionStatus   `json:"status"`
	ClosePrice       *float64         `json:"closePrice,omitempty"`
	ProfitLoss       *decimal.Decimal `json:"profitLoss,omitempty"`
	ProfitPercentage *float64         `json:"profitPercentage,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	ClosedAt         *time.Time       `json:"closedAt,omitempty"`
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Deadline is the instant from which the position may be resolved.
func (p *Position) Deadline() time.Time {
	return p.CreatedAt.Add(time.Duration(p.ExpiryMinutes) * time.Minute)
}

// Expired reports whether the position's expiry window has fully elapsed at now.
func (p *Position) Expired(now time.Time) bool {
	return !now.Before(p.Deadline())
}

// Settlement holds the close fields written when a position resolves.
type Settlement struct {
	Status           PositionStatus
	ClosePrice       float64
	ProfitLoss       decimal.Decimal
	ProfitPercentage float64
	ClosedAt         time.Time
}

// Apply moves an open position into its terminal state. It returns false and
// leaves the position untouched if it was already closed.
func (p *Position) Apply(s Settlement) bool {
	if !p.IsOpen() || !s.Status.Terminal() {
		return false
	}
	closePrice := s.ClosePrice
	pl := s.ProfitLoss
	pct := s.ProfitPercentage
	closedAt := s.ClosedAt

	p.Status = s.Status
	p.ClosePrice = &closePrice
	p.ProfitLoss = &pl
	p.ProfitPercentage = &pct
	p.ClosedAt = &closedAt
	return true
}

// OpenRequest carries the caller's input for opening a position.
type OpenRequest struct {
	Symbol        string
	Direction     Direction
	Amount        decimal.Decimal
	ExpiryMinutes int
}

// PositionFilter narrows position queries. Zero values mean "no restriction".
type PositionFilter struct {
	Status   PositionStatus
	Terminal bool // only WON/LOST; ignored when Status is set
	Symbol   string
	Since    time.Time
	Limit    int
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered user with a simulated balance.
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Session is an authenticated login together with the user's chart selection.
type Session struct {
	Token         string      `json:"token"`
	AccountID     string      `json:"accountId"`
	CreatedAt     time.Time   `json:"createdAt"`
	ExpiresAt     time.Time   `json:"expiresAt"`
	Symbol        string      `json:"symbol"`
	Granularity   Granularity `json:"granularity"`
	ExpiryMinutes int         `json:"expiryMinutes"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

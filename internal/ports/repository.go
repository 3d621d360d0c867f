package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"optionDesk/internal/domain"
)

// AccountRepository defines the interface for storing and retrieving accounts.
type AccountRepository interface {
	// CreateAccount saves a new account. Returns ErrDuplicateEntry if the email is taken.
	CreateAccount(ctx context.Context, acct *domain.Account) error
	// FindAccountByID retrieves an account by ID. Returns nil, nil if not found.
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	// FindAccountByEmail retrieves an account by email (case-insensitive). Returns nil, nil if not found.
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	// UpdateBalance overwrites the stored balance of an account.
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

// SessionRepository defines the interface for login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, sess *domain.Session) error
	// FindSession returns nil, nil if the token is unknown.
	FindSession(ctx context.Context, token string) (*domain.Session, error)
	// UpdateSession persists the chart selection of a session.
	UpdateSession(ctx context.Context, sess *domain.Session) error
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes sessions that expired before now and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// PositionRepository defines the interface for the trade ledger.
// Both mutating methods write the position and the owning account's balance atomically.
type PositionRepository interface {
	// OpenPosition inserts an OPEN position and sets the account balance in one transaction.
	OpenPosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error
	// SettlePosition writes the terminal fields of pos and sets the account balance in one
	// transaction. Returns ErrAlreadySettled if the stored position is no longer OPEN.
	SettlePosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error
	// FindPositionByID retrieves a position by ID. Returns nil, nil if not found.
	FindPositionByID(ctx context.Context, id string) (*domain.Position, error)
	// FindPositions lists positions of one account, newest first, narrowed by filter.
	FindPositions(ctx context.Context, accountID string, filter domain.PositionFilter) ([]*domain.Position, error)
	// FindAllOpen lists OPEN positions of every account, oldest first.
	FindAllOpen(ctx context.Context) ([]*domain.Position, error)
	// RealizedSince sums the profit/loss of positions of an account closed at or after since.
	RealizedSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, error)
	// LastOpenedAt returns the creation time of the account's newest position, zero if none.
	LastOpenedAt(ctx context.Context, accountID string) (time.Time, error)
}

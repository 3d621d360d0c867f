package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"optionDesk/config"
	"optionDesk/internal/domain"
	"optionDesk/internal/id"
	"optionDesk/internal/ports"
)

const minPasswordLength = 6

// AccountService handles registration, login sessions and the per-session chart selection.
// Balances are never written here; see TradingService.
type AccountService struct {
	cfg      *config.Config
	logger   ports.Logger
	accounts ports.AccountRepository
	sessions ports.SessionRepository
	prices   ports.PriceSource
	now      func() time.Time
	cost     int
}

// NewAccountService creates the account service.
func NewAccountService(
	cfg *config.Config,
	logger ports.Logger,
	accounts ports.AccountRepository,
	sessions ports.SessionRepository,
	prices ports.PriceSource,
) (*AccountService, error) {
	if cfg == nil || logger == nil || accounts == nil || sessions == nil || prices == nil {
		return nil, fmt.Errorf("missing required dependencies for AccountService")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("configuration SessionTTL must be positive")
	}
	return &AccountService{
		cfg:      cfg,
		logger:   logger,
		accounts: accounts,
		sessions: sessions,
		prices:   prices,
		now:      func() time.Time { return time.Now().UTC() },
		cost:     bcrypt.DefaultCost,
	}, nil
}

// SetClock replaces the service clock.
func (s *AccountService) SetClock(now func() time.Time) {
	s.now = now
}

// SetHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *AccountService) SetHashCost(cost int) {
	s.cost = cost
}

func (s *AccountService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Register creates an account with the starting balance and logs it in.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.Account, *domain.Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", ports.ErrInvalidRequest)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, nil, fmt.Errorf("%w: %q is not a valid email address", ports.ErrInvalidRequest, email)
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must be at least %d characters", ports.ErrInvalidRequest, minPasswordLength)
	}

	existing, err := s.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("email %s is already registered: %w", email, ports.ErrDuplicateEntry)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock()
	acct := &domain.Account{
		ID:           id.NewAt(now),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Balance:      s.cfg.StartingBalance,
		CreatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		return nil, nil, err
	}
	s.logger.Info(ctx, "Account registered", map[string]interface{}{"accountID": acct.ID})

	sess, err := s.openSession(ctx, acct.ID)
	if err != nil {
		return nil, nil, err
	}
	return acct, sess, nil
}

// Login verifies the credentials and opens a new session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, *domain.Session, error) {
	acct, err := s.accounts.FindAccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, err
	}
	if acct == nil {
		return nil, nil, ports.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, ports.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to verify password: %w", err)
	}

	sess, err := s.openSession(ctx, acct.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info(ctx, "Account logged in", map[string]interface{}{"accountID": acct.ID})
	return acct, sess, nil
}

func (s *AccountService) openSession(ctx context.Context, accountID string) (*domain.Session, error) {
	now := s.clock()
	sess := &domain.Session{
		Token:         uuid.NewString(),
		AccountID:     accountID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.SessionTTL),
		Symbol:        s.cfg.DefaultSymbol,
		Granularity:   domain.Granularity1m,
		ExpiryMinutes: s.cfg.ExpiryMinutes[0],
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its live session.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ports.ErrNotAuthenticated
	}
	sess, err := s.sessions.FindSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ports.ErrNotAuthenticated
	}
	if sess.Expired(s.clock()) {
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			s.logger.Warn(ctx, "Failed to delete expired session", map[string]interface{}{"error": err.Error()})
		}
		return nil, fmt.Errorf("session expired: %w", ports.ErrNotAuthenticated)
	}
	return sess, nil
}

// Account returns the account with the given ID.
func (s *AccountService) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ports.ErrNotFound)
	}
	return acct, nil
}

// ChartUpdate changes the chart selection of a session. Zero fields are left unchanged.
type ChartUpdate struct {
	Symbol        string             `json:"symbol"`
	Granularity   domain.Granularity `json:"granularity"`
	ExpiryMinutes int                `json:"expiryMinutes"`
}

// UpdateChart validates and stores a new chart selection for the session.
func (s *AccountService) UpdateChart(ctx context.Context, sess *domain.Session, upd ChartUpdate) (*domain.Session, error) {
	next := *sess
	if upd.Symbol != "" {
		if _, err := s.prices.Quote(upd.Symbol); err != nil {
			return nil, err
		}
		next.Symbol = upd.Symbol
	}
	if upd.Granularity != "" {
		if !upd.Granularity.Valid() {
			return nil, fmt.Errorf("%w: granularity must be one of 1m, 5m, 15m", ports.ErrInvalidRequest)
		}
		next.Granularity = upd.Granularity
	}
	if upd.ExpiryMinutes != 0 {
		if !s.cfg.IsAllowedExpiry(upd.ExpiryMinutes) {
			return nil, fmt.Errorf("%w: %d minutes", ports.ErrInvalidExpiry, upd.ExpiryMinutes)
		}
		next.ExpiryMinutes = upd.ExpiryMinutes
	}
	if err := s.sessions.UpdateSession(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AccountService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug(ctx, "Expired sessions purged", map[string]interface{}{"count": n})
	}
	return n, nil
}

// RunPurge purges expired sessions every interval until ctx is cancelled.
func (s *AccountService) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpiredSessions(ctx); err != nil {
				s.logger.Error(ctx, err, "Failed to purge expired sessions")
			}
		}
	}
}

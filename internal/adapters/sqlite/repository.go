package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

// Repository implements the account, session and position repositories using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/optiondesk.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrDBConnection, err)
	}

	// One connection serializes writers; the service already holds its own lock around balance changes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Amounts are stored as decimal TEXT, times as Unix milliseconds.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		granularity TEXT NOT NULL,
		expiry_minutes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		symbol TEXT NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		expiry_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		close_price REAL DEFAULT NULL,
		profit_loss TEXT DEFAULT NULL,
		profit_percentage REAL DEFAULT NULL,
		created_at INTEGER NOT NULL,
		closed_at INTEGER DEFAULT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts (lower(email));
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);
	CREATE INDEX IF NOT EXISTS idx_positions_account_created ON positions (account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- AccountRepository Implementation ---

// CreateAccount saves a new account. The email is unique regardless of case.
func (r *Repository) CreateAccount(ctx context.Context, acct *domain.Account) error {
	const query = `
	INSERT INTO accounts (id, name, email, password_hash, balance, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		acct.ID, acct.Name, acct.Email, acct.PasswordHash, acct.Balance.String(), toMillis(acct.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with email %s: %w", acct.Email, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("%w: failed to insert account %s: %v", ports.ErrQueryFailed, acct.ID, err)
	}
	r.logger.Debug(ctx, "Account created", map[string]interface{}{"accountID": acct.ID})
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *Repository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
	SELECT id, name, email, password_hash, balance, created_at
	FROM accounts WHERE id = ?`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query account %s: %v", ports.ErrQueryFailed, id, err)
	}
	return acct, nil
}

// FindAccountByEmail retrieves an account by email, ignoring case.
func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
	SELECT id, name, email, password_hash, balance, created_at
	FROM accounts WHERE lower(email) = lower(?)`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query account by email: %v", ports.ErrQueryFailed, err)
	}
	return acct, nil
}

// UpdateBalance overwrites the stored balance of an account.
func (r *Repository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return execAffectingOne(ctx, r.db, `UPDATE accounts SET balance = ? WHERE id = ?`,
		fmt.Sprintf("account %s", id), balance.String(), id)
}

// --- SessionRepository Implementation ---

// CreateSession saves a new login session.
func (r *Repository) CreateSession(ctx context.Context, sess *domain.Session) error {
	const query = `
	INSERT INTO sessions (token, account_id, created_at, expires_at, symbol, granularity, expiry_minutes)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		sess.Token, sess.AccountID, toMillis(sess.CreatedAt), toMillis(sess.ExpiresAt),
		sess.Symbol, string(sess.Granularity), sess.ExpiryMinutes)
	if err != nil {
		return fmt.Errorf("%w: failed to insert session for account %s: %v", ports.ErrQueryFailed, sess.AccountID, err)
	}
	return nil
}

// FindSession retrieves a session by token.
func (r *Repository) FindSession(ctx context.Context, token string) (*domain.Session, error) {
	const query = `
	SELECT token, account_id, created_at, expires_at, symbol, granularity, expiry_minutes
	FROM sessions WHERE token = ?`

	s := &domain.Session{}
	var created, expires int64
	var granularity string
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&s.Token, &s.AccountID, &created, &expires, &s.Symbol, &granularity, &s.ExpiryMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query session: %v", ports.ErrQueryFailed, err)
	}
	s.CreatedAt = fromMillis(created)
	s.ExpiresAt = fromMillis(expires)
	s.Granularity = domain.Granularity(granularity)
	return s, nil
}

// UpdateSession persists the chart selection of a session.
func (r *Repository) UpdateSession(ctx context.Context, sess *domain.Session) error {
	return execAffectingOne(ctx, r.db,
		`UPDATE sessions SET symbol = ?, granularity = ?, expiry_minutes = ? WHERE token = ?`,
		"session", sess.Symbol, string(sess.Granularity), sess.ExpiryMinutes, sess.Token)
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("%w: failed to delete session: %v", ports.ErrUpdateFailed, err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is at or before now.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge sessions: %v", ports.ErrUpdateFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for session purge: %w", err)
	}
	return n, nil
}

// --- PositionRepository Implementation ---

// OpenPosition inserts pos and sets the owner's balance in one transaction.
func (r *Repository) OpenPosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error {
	const insert = `
	INSERT INTO positions (id, account_id, symbol, amount, direction, entry_price, expiry_minutes, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert,
			pos.ID, pos.AccountID, pos.Symbol, pos.Amount.String(), string(pos.Direction),
			pos.EntryPrice, pos.ExpiryMinutes, string(pos.Status), toMillis(pos.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("position %s: %w", pos.ID, ports.ErrDuplicateEntry)
			}
			return fmt.Errorf("%w: failed to insert position %s: %v", ports.ErrQueryFailed, pos.ID, err)
		}
		if err := execAffectingOne(ctx, tx, `UPDATE accounts SET balance = ? WHERE id = ?`,
			fmt.Sprintf("account %s", pos.AccountID), balance.String(), pos.AccountID); err != nil {
			return err
		}
		r.logger.Debug(ctx, "Position opened", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
		return nil
	})
}

// SettlePosition writes the terminal fields of pos and the owner's balance in one transaction.
// The update only matches a row that is still OPEN, so a position settles at most once.
func (r *Repository) SettlePosition(ctx context.Context, pos *domain.Position, balance decimal.Decimal) error {
	if pos.ClosePrice == nil || pos.ProfitLoss == nil || pos.ProfitPercentage == nil || pos.ClosedAt == nil {
		return fmt.Errorf("%w: position %s has no settlement fields", ports.ErrInvalidRequest, pos.ID)
	}
	const update = `
	UPDATE positions
	SET status = ?, close_price = ?, profit_loss = ?, profit_percentage = ?, closed_at = ?
	WHERE id = ? AND status = ?`

	return r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, update,
			string(pos.Status), *pos.ClosePrice, pos.ProfitLoss.String(), *pos.ProfitPercentage,
			toMillis(*pos.ClosedAt), pos.ID, string(domain.StatusOpen))
		if err != nil {
			return fmt.Errorf("%w: failed to settle position %s: %v", ports.ErrUpdateFailed, pos.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for position %s: %w", pos.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("position %s: %w", pos.ID, ports.ErrAlreadySettled)
		}
		if err := execAffectingOne(ctx, tx, `UPDATE accounts SET balance = ? WHERE id = ?`,
			fmt.Sprintf("account %s", pos.AccountID), balance.String(), pos.AccountID); err != nil {
			return err
		}
		r.logger.Debug(ctx, "Position settled", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
		return nil
	})
}

const positionColumns = `id, account_id, symbol, amount, direction, entry_price, expiry_minutes,
	       status, close_price, profit_loss, profit_percentage, created_at, closed_at`

// FindPositionByID retrieves a position by its ID.
func (r *Repository) FindPositionByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Position not found by ID", map[string]interface{}{"positionID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query position %s: %v", ports.ErrQueryFailed, id, err)
	}
	return pos, nil
}

// FindPositions lists an account's positions newest first, narrowed by filter.
func (r *Repository) FindPositions(ctx context.Context, accountID string, filter domain.PositionFilter) ([]*domain.Position, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + positionColumns + ` FROM positions WHERE account_id = ?`)
	args := []interface{}{accountID}

	switch {
	case filter.Status != "":
		sb.WriteString(` AND status = ?`)
		args = append(args, string(filter.Status))
	case filter.Terminal:
		sb.WriteString(` AND status IN (?, ?)`)
		args = append(args, string(domain.StatusWon), string(domain.StatusLost))
	}
	if filter.Symbol != "" {
		sb.WriteString(` AND symbol = ?`)
		args = append(args, filter.Symbol)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, toMillis(filter.Since))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	return r.queryPositions(ctx, sb.String(), args...)
}

// FindAllOpen lists OPEN positions of every account, oldest first.
func (r *Repository) FindAllOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY created_at ASC, id ASC`
	return r.queryPositions(ctx, query, string(domain.StatusOpen))
}

// RealizedSince sums the profit/loss of an account's positions closed at or after since.
func (r *Repository) RealizedSince(ctx context.Context, accountID string, since time.Time) (decimal.Decimal, error) {
	const query = `
	SELECT profit_loss FROM positions
	WHERE account_id = ? AND closed_at IS NOT NULL AND closed_at >= ?`

	rows, err := r.db.QueryContext(ctx, query, accountID, toMillis(since))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to query realized P/L: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	// Summed in Go so TEXT amounts never pass through SQLite's float arithmetic.
	total := decimal.Zero
	for rows.Next() {
		var pl decimal.NullDecimal
		if err := rows.Scan(&pl); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan realized P/L: %w", err)
		}
		if pl.Valid {
			total = total.Add(pl.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating realized P/L rows: %w", err)
	}
	return total, nil
}

// LastOpenedAt returns when the account last opened a position, zero if never.
func (r *Repository) LastOpenedAt(ctx context.Context, accountID string) (time.Time, error) {
	const query = `SELECT MAX(created_at) FROM positions WHERE account_id = ?`
	var last sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("%w: failed to query last open time: %v", ports.ErrQueryFailed, err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return fromMillis(last.Int64), nil
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query positions: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ports.ErrDBConnection, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error(ctx, rbErr, "Transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ports.ErrUpdateFailed, err)
	}
	return nil
}

// --- Helpers ---

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// execAffectingOne runs an UPDATE and maps "no rows" to ErrNotFound.
func execAffectingOne(ctx context.Context, db execer, query, what string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update %s: %v", ports.ErrUpdateFailed, what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	a := &domain.Account{}
	var created int64
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Balance, &created); err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	a.CreatedAt = fromMillis(created)
	return a, nil
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var direction, status string
	var closePrice, profitPct sql.NullFloat64
	var profitLoss decimal.NullDecimal
	var created int64
	var closed sql.NullInt64
	err := s.Scan(
		&p.ID, &p.AccountID, &p.Symbol, &p.Amount, &direction, &p.EntryPrice, &p.ExpiryMinutes,
		&status, &closePrice, &profitLoss, &profitPct, &created, &closed)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Direction = domain.Direction(direction)
	p.Status = domain.PositionStatus(status)
	p.CreatedAt = fromMillis(created)
	if closePrice.Valid {
		v := closePrice.Float64
		p.ClosePrice = &v
	}
	if profitLoss.Valid {
		v := profitLoss.Decimal
		p.ProfitLoss = &v
	}
	if profitPct.Valid {
		v := profitPct.Float64
		p.ProfitPercentage = &v
	}
	if closed.Valid {
		v := fromMillis(closed.Int64)
		p.ClosedAt = &v
	}
	return p, nil
}

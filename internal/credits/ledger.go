package credits

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"
)

// Sentinel errors. Handlers map these to status codes instead of
// pattern-matching on message strings.
var (
	ErrAccountNotFound = errors.New("credits: account not found")
	ErrInvalidAmount   = errors.New("credits: amount must be a positive number")
)

// InsufficientCreditsError is the expected business rejection, not a fault.
// It carries the current balance so the caller can show it and route the
// user to the purchase flow.
type InsufficientCreditsError struct {
	Credits float64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits: insufficient balance (%.2f remaining)", e.Credits)
}

// Snapshot is the authoritative view of an account returned by every
// operation. HasUnlimited is evaluated at request time: it is true only
// while unlimited_until is strictly in the future.
type Snapshot struct {
	Credits        float64    `json:"credits"`
	HasUnlimited   bool       `json:"hasUnlimited"`
	UnlimitedUntil *time.Time `json:"unlimitedUntil"`
}

// Querier is the common subset of *sql.DB and *sql.Tx the ledger needs,
// so Credit/GrantUnlimited can run inside a caller-owned transaction
// (the webhook fulfillment joins them with its idempotency insert).
type Querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Ledger is the single source of truth for credit balances. Every
// mutation of 'credits_remaining' in the whole codebase goes through
// these methods.
type Ledger struct {
	DB *sql.DB

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{DB: db, now: time.Now}
}

// Check returns the current account snapshot. No side effects.
func (l *Ledger) Check(userID int64) (*Snapshot, error) {
	return l.snapshot(l.DB, userID)
}

// snapshot reads one account row through any Querier (DB or Tx).
func (l *Ledger) snapshot(q Querier, userID int64) (*Snapshot, error) {
	var row models.AiUserCredit
	var until sql.NullTime

	query := "SELECT credits_remaining, is_unlimited, unlimited_until FROM ai_user_credits WHERE user_id = ?"
	err := q.QueryRow(query, userID).Scan(&row.CreditsRemaining, &row.IsUnlimited, &until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read credit account: %w", err)
	}

	snap := &Snapshot{Credits: row.CreditsRemaining}
	if until.Valid {
		t := until.Time
		snap.UnlimitedUntil = &t
	}
	// The flag alone is not enough: expiry is checked per request, never
	// pre-computed, so a lapsed subscription falls back to balance checks
	// without any cleanup job having to flip the column.
	snap.HasUnlimited = row.IsUnlimited && until.Valid && until.Time.After(l.now())
	return snap, nil
}

// Deduct atomically subtracts amount from the user's balance.
//
// The spend decision is a single conditional UPDATE
// (... WHERE user_id = ? AND credits_remaining >= ?), so two concurrent
// deductions can never both read the same stale balance and both win:
// the row is the arbiter, and whichever statement runs second sees the
// already-reduced value. The read before it only resolves the unlimited
// override and NotFound; it takes part in no write decision.
//
// Returns ErrInvalidAmount for non-positive amounts, ErrAccountNotFound
// when no row exists, and *InsufficientCreditsError (with the untouched
// current balance) when the balance cannot cover the amount.
func (l *Ledger) Deduct(userID int64, amount float64) (*Snapshot, error) {
	// 1. --- Validate ---
	// "amount > 0" is false for NaN as well, which is exactly what we want.
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	// 2. --- Unlimited override? ---
	snap, err := l.snapshot(l.DB, userID)
	if err != nil {
		return nil, err
	}
	if snap.HasUnlimited {
		// Unlimited usage is free: the counter stays untouched, but the
		// turn is still recorded in the history for auditing.
		query := "INSERT INTO credit_transactions (user_id, type, amount, balance_after, notes, created_at) VALUES (?, 'usage', 0, ?, 'unlimited subscription', ?)"
		if _, err := l.DB.Exec(query, userID, snap.Credits, l.now()); err != nil {
			return nil, fmt.Errorf("failed to record unlimited usage: %w", err)
		}
		return snap, nil
	}

	// 3. --- Conditional deduction ---
	tx, err := l.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start deduction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE ai_user_credits SET credits_remaining = credits_remaining - ?, updated_at = ? WHERE user_id = ? AND credits_remaining >= ?",
		amount, l.now(), userID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deduct credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to deduct credits: %w", err)
	}

	if affected == 0 {
		// Rejected. Either the row vanished or the balance is short; a
		// plain re-read tells us which and reports the untouched balance.
		current, err := l.snapshot(l.DB, userID)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientCreditsError{Credits: current.Credits}
	}

	// 4. --- Record the mutation in the same transaction ---
	after, err := l.snapshot(tx, userID)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(
		"INSERT INTO credit_transactions (user_id, type, amount, balance_after, notes, created_at) VALUES (?, 'usage', ?, ?, ?, ?)",
		userID, -amount, after.Credits, "", l.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record deduction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deduction: %w", err)
	}
	return after, nil
}

// Credit adds amount to the user's balance unconditionally (no upper
// bound). The ledger trusts the caller's idempotency guard: purchase
// fulfillment passes its own *sql.Tx here so the unique purchase_events
// insert and the balance change commit or roll back together.
func (l *Ledger) Credit(q Querier, userID int64, amount float64, note string) (*Snapshot, error) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	// Upsert: a user whose row is missing (created before credit
	// provisioning existed) still gets credited.
	_, err := q.Exec(
		"INSERT INTO ai_user_credits (user_id, credits_remaining, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE credits_remaining = credits_remaining + VALUES(credits_remaining), updated_at = VALUES(updated_at)",
		userID, amount, l.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	after, err := l.snapshot(q, userID)
	if err != nil {
		return nil, err
	}
	_, err = q.Exec(
		"INSERT INTO credit_transactions (user_id, type, amount, balance_after, notes, created_at) VALUES (?, 'purchase', ?, ?, ?, ?)",
		userID, amount, after.Credits, note, l.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record credit: %w", err)
	}
	return after, nil
}

// GrantUnlimited sets the time-boxed unlimited override. Used by
// subscription fulfillment; the balance itself is left alone.
func (l *Ledger) GrantUnlimited(q Querier, userID int64, until time.Time, note string) error {
	_, err := q.Exec(
		"INSERT INTO ai_user_credits (user_id, credits_remaining, is_unlimited, unlimited_until, updated_at) VALUES (?, 0, TRUE, ?, ?) ON DUPLICATE KEY UPDATE is_unlimited = TRUE, unlimited_until = VALUES(unlimited_until), updated_at = VALUES(updated_at)",
		userID, until, l.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to grant unlimited: %w", err)
	}

	_, err = q.Exec(
		"INSERT INTO credit_transactions (user_id, type, amount, balance_after, notes, created_at) SELECT ?, 'grant', 0, credits_remaining, ?, ? FROM ai_user_credits WHERE user_id = ?",
		userID, note, l.now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to record grant: %w", err)
	}
	return nil
}

// EnsureAccount creates the credit row at user provisioning with the
// default starting balance. INSERT IGNORE keeps it safe to call twice.
func (l *Ledger) EnsureAccount(q Querier, userID int64, startingCredits float64) error {
	_, err := q.Exec(
		"INSERT IGNORE INTO ai_user_credits (user_id, credits_remaining, updated_at) VALUES (?, ?, ?)",
		userID, startingCredits, l.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create credit account: %w", err)
	}
	return nil
}

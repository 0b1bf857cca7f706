package models

import "time"

// AiUserCredit defines the model for the 'ai_user_credits' table.
// One row per user, created at registration with the starting balance.
// 'credits_remaining' is only ever changed through the credits.Ledger,
// which enforces the "never negative" rule with a conditional UPDATE.
type AiUserCredit struct {
	ID               int64      `json:"id" db:"id"`
	UserID           int64      `json:"userId" db:"user_id"`
	CreditsRemaining float64    `json:"creditsRemaining" db:"credits_remaining"`
	IsUnlimited      bool       `json:"isUnlimited" db:"is_unlimited"`
	UnlimitedUntil   *time.Time `json:"unlimitedUntil,omitempty" db:"unlimited_until"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// CreditTransaction is the model for the 'credit_transactions' table.
// Every balance mutation writes one of these (negative amount = usage,
// positive = purchase/grant), so the history behaves like a wallet ledger.
type CreditTransaction struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"userId" db:"user_id"`
	Type         string    `json:"type" db:"type"` // e.g., usage, purchase, grant
	Amount       float64   `json:"amount" db:"amount"`
	BalanceAfter float64   `json:"balanceAfter" db:"balance_after"`
	Notes        string    `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

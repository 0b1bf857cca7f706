package handlers

import (
	"database/sql"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/ai"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/payments"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB        *sql.DB          // Primary Read/Write connection
	Ledger    *credits.Ledger  // The authoritative credit ledger
	AIService *ai.AIService    // Gemini-backed resume assistant
	Payments  *payments.Service

	// StartingCredits is the balance a fresh account is provisioned with.
	StartingCredits float64
}

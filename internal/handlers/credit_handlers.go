package handlers

import (
	"errors"
	"net/http"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/metrics"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"

	"github.com/gin-gonic/gin"
)

// CreditActionInput is the tagged request body for POST /v1/credits.
// The action string selects the variant; "use" additionally needs a
// positive amount. Anything else is rejected at the boundary before
// any ledger call happens.
type CreditActionInput struct {
	Action string   `json:"action" binding:"required,oneof=check use"`
	Amount *float64 `json:"amount"`
}

// CreditAction is the handler for POST /v1/credits.
// AuthMiddleware has already resolved the identity, so by the time we
// are here the caller is known; 401s never reach this function.
func (h *Handlers) CreditAction(c *gin.Context) {
	// 1. --- Get User ID (set by AuthMiddleware) ---
	userIDRaw, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID := userIDRaw.(int64)

	// 2. --- Bind & Validate JSON ---
	var input CreditActionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. --- Dispatch on the action tag ---
	switch input.Action {
	case "check":
		h.checkCredits(c, userID)
	case "use":
		h.useCredits(c, userID, input.Amount)
	}
}

func (h *Handlers) checkCredits(c *gin.Context, userID int64) {
	metrics.CreditChecksTotal.Inc()

	snap, err := h.Ledger.Check(userID)
	if err != nil {
		if errors.Is(err, credits.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credit account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credits":        snap.Credits,
		"hasUnlimited":   snap.HasUnlimited,
		"unlimitedUntil": snap.UnlimitedUntil,
	})
}

func (h *Handlers) useCredits(c *gin.Context, userID int64, amount *float64) {
	// A missing amount is a malformed "use" request, not a zero deduction.
	if amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount is required for action 'use'"})
		return
	}

	snap, err := h.Ledger.Deduct(userID, *amount)
	if err != nil {
		var insufficient *credits.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			// Expected business outcome: the client shows the purchase
			// prompt and resyncs its cached balance from this payload.
			metrics.CreditDeductionsTotal.WithLabelValues("insufficient").Inc()
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":   "Insufficient credits",
				"credits": insufficient.Credits,
			})
		case errors.Is(err, credits.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be a positive number"})
		case errors.Is(err, credits.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Credit account not found"})
		default:
			metrics.CreditDeductionsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update credits"})
		}
		return
	}

	if snap.HasUnlimited {
		metrics.CreditDeductionsTotal.WithLabelValues("unlimited").Inc()
	} else {
		metrics.CreditDeductionsTotal.WithLabelValues("ok").Inc()
		metrics.CreditsDeducted.Add(*amount)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"credits":      snap.Credits,
		"hasUnlimited": snap.HasUnlimited,
	})
}

// GetCreditHistory is the handler for GET /v1/credits/history.
// Returns the most recent balance mutations, newest first.
func (h *Handlers) GetCreditHistory(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	query := `
		SELECT id, user_id, type, amount, balance_after, notes, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 50
	`
	rows, err := h.DB.Query(query, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	var history []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Notes, &t.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan transaction row"})
			return
		}
		history = append(history, t)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

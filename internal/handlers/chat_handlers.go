package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"

	"github.com/gin-gonic/gin"
)

// Per-action credit cost of one assistant turn. Planning turns only
// outline next steps, so they are billed at a fraction of a drafting turn.
var actionCost = map[string]float64{
	"chat": 1.0,
	"plan": 0.2,
}

// ChatInput defines the structure of the JSON request body.
type ChatInput struct {
	Message  string `json:"message" binding:"required"`
	Action   string `json:"action" binding:"omitempty,oneof=chat plan"`
	ResumeID string `json:"resumeId"` // optional resume public id for context
}

// ChatAI handles the interaction with the AI Assistant.
//
// The assistant call is gated behind a successful Deduct: if the ledger
// rejects the charge for any reason, the AI is never invoked. The client
// must never assume a turn will succeed before this returns.
func (h *Handlers) ChatAI(c *gin.Context) {
	// 1. --- Get User Context (set by AuthMiddleware) ---
	userIDRaw, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID := userIDRaw.(int64)

	// 2. --- Parse Input ---
	var input ChatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Action == "" {
		input.Action = "chat"
	}
	cost := actionCost[input.Action]

	// 3. --- Optional Resume Context ---
	var resumeJSON string
	var resumeID *int64
	if input.ResumeID != "" {
		var id int64
		var content []byte
		err := h.DB.QueryRow(
			"SELECT id, content FROM resumes WHERE public_id = ? AND user_id = ?",
			input.ResumeID, userID,
		).Scan(&id, &content)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
			return
		}
		resumeJSON = string(content)
		resumeID = &id
	}

	// 4. --- Charge First (the gate) ---
	snap, err := h.Ledger.Deduct(userID, cost)
	if err != nil {
		var insufficient *credits.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":   "Insufficient credits",
				"credits": insufficient.Credits,
			})
		case errors.Is(err, credits.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Credit account not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update credits"})
		}
		return
	}

	// 5. --- Call the AI Service ---
	modelName := os.Getenv("GEMINI_MODEL")
	aiResponse, tokensUsed, err := h.AIService.GenerateResponse(
		c.Request.Context(), input.Message, resumeJSON, input.Action, modelName,
	)
	if err != nil {
		// The turn never completed, so give the charge back. Best effort:
		// if the refund itself fails we log it and still report the error.
		if !snap.HasUnlimited {
			if _, refundErr := h.Ledger.Credit(h.DB, userID, cost, "refund: assistant call failed"); refundErr != nil {
				log.Printf("Warning: failed to refund %v credits to user %d: %v", cost, userID, refundErr)
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI Service unavailable: " + err.Error()})
		return
	}

	// 6. --- Save to History ---
	// We record the completed turn with its token and credit cost. A
	// history insert failure doesn't fail the request; the user already
	// got (and paid for) the answer.
	_, dbErr := h.DB.Exec(
		"INSERT INTO ai_chat_history (user_id, resume_id, action, user_message, ai_response, tokens_used, credits_cost, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		userID, resumeID, input.Action, input.Message, aiResponse, tokensUsed, cost, time.Now(),
	)
	if dbErr != nil {
		log.Printf("Warning: failed to save chat history for user %d: %v", userID, dbErr)
	}

	// 7. --- Return the Answer + Authoritative Balance ---
	c.JSON(http.StatusOK, gin.H{
		"response":     aiResponse,
		"tokensUsed":   tokensUsed,
		"credits":      snap.Credits,
		"hasUnlimited": snap.HasUnlimited,
	})
}

// GetChatHistory is the handler for GET /v1/ai/history.
// Returns the user's most recent assistant turns, newest first, so a
// fresh browser session can restore the conversation.
func (h *Handlers) GetChatHistory(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	query := `
		SELECT id, user_id, resume_id, action, user_message, ai_response, tokens_used, credits_cost, created_at
		FROM ai_chat_history
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

	var history []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.ResumeID, &m.Action, &m.UserMessage, &m.AIResponse, &m.TokensUsed, &m.CreditsCost, &m.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan chat row"})
			return
		}
		history = append(history, m)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": history})
}

package models

import "time"

// ChatMessage is the model for the 'ai_chat_history' table.
// We record every completed assistant turn for future reference/billing,
// including how many tokens it used and how many credits it cost.
type ChatMessage struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	ResumeID    *int64    `json:"resumeId,omitempty" db:"resume_id"`
	Action      string    `json:"action" db:"action"` // "chat" or "plan"
	UserMessage string    `json:"userMessage" db:"user_message"`
	AIResponse  string    `json:"aiResponse" db:"ai_response"`
	TokensUsed  int       `json:"tokensUsed" db:"tokens_used"`
	CreditsCost float64   `json:"creditsCost" db:"credits_cost"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

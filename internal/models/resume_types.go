package models

import (
	"encoding/json"
	"time"
)

// Resume is the model for the 'resumes' table.
// Content holds the raw JSON document the front end edits and renders;
// the API stores it verbatim and never interprets the shape.
type Resume struct {
	ID        int64           `json:"id" db:"id"`
	PublicID  string          `json:"publicId" db:"public_id"` // uuid, used in URLs
	UserID    int64           `json:"userId" db:"user_id"`
	Title     string          `json:"title" db:"title"`
	Template  string          `json:"template" db:"template"` // visual template key, e.g. "classic"
	Content   json.RawMessage `json:"content" db:"content"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

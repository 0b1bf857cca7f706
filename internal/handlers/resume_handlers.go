package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ResumeInput is the request body for creating/updating a resume.
// Content is stored verbatim; the server never interprets the document.
type ResumeInput struct {
	Title    string          `json:"title" binding:"required"`
	Template string          `json:"template"`
	Content  json.RawMessage `json:"content"`
}

// CreateResume is the handler for POST /v1/resumes.
func (h *Handlers) CreateResume(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	// 1. --- Bind & Validate JSON ---
	var input ResumeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Template == "" {
		input.Template = "classic"
	}
	if input.Content == nil {
		input.Content = json.RawMessage("{}")
	}

	// 2. --- Insert ---
	publicID := uuid.New().String()
	now := time.Now()
	res, err := h.DB.Exec(
		"INSERT INTO resumes (public_id, user_id, title, template, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		publicID, userID, input.Title, input.Template, []byte(input.Content), now, now,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create resume"})
		return
	}
	id, _ := res.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{
		"resume": models.Resume{
			ID:        id,
			PublicID:  publicID,
			UserID:    userID,
			Title:     input.Title,
			Template:  input.Template,
			Content:   input.Content,
			CreatedAt: now,
			UpdatedAt: now,
		},
	})
}

// GetMyResumes is the handler for GET /v1/resumes.
// Content is omitted in the list view; it can be large.
func (h *Handlers) GetMyResumes(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	rows, err := h.DB.Query(
		"SELECT id, public_id, title, template, created_at, updated_at FROM resumes WHERE user_id = ? ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	var resumes []models.Resume
	for rows.Next() {
		var r models.Resume
		r.UserID = userID
		if err := rows.Scan(&r.ID, &r.PublicID, &r.Title, &r.Template, &r.CreatedAt, &r.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan resume row"})
			return
		}
		resumes = append(resumes, r)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resumes": resumes})
}

// GetResume is the handler for GET /v1/resumes/:id (public id).
// Ownership is part of the WHERE clause, so another user's resume simply
// does not exist from the caller's point of view.
func (h *Handlers) GetResume(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	publicID := c.Param("id")

	var r models.Resume
	var content []byte
	err := h.DB.QueryRow(
		"SELECT id, public_id, user_id, title, template, content, created_at, updated_at FROM resumes WHERE public_id = ? AND user_id = ?",
		publicID, userID,
	).Scan(&r.ID, &r.PublicID, &r.UserID, &r.Title, &r.Template, &content, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	r.Content = json.RawMessage(content)

	c.JSON(http.StatusOK, gin.H{"resume": r})
}

// UpdateResume is the handler for PUT /v1/resumes/:id.
func (h *Handlers) UpdateResume(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	publicID := c.Param("id")

	var input ResumeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Content == nil {
		input.Content = json.RawMessage("{}")
	}
	if input.Template == "" {
		input.Template = "classic"
	}

	res, err := h.DB.Exec(
		"UPDATE resumes SET title = ?, template = ?, content = ?, updated_at = ? WHERE public_id = ? AND user_id = ?",
		input.Title, input.Template, []byte(input.Content), time.Now(), publicID, userID,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update resume"})
		return
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Resume updated"})
}

// DeleteResume is the handler for DELETE /v1/resumes/:id.
func (h *Handlers) DeleteResume(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)
	publicID := c.Param("id")

	res, err := h.DB.Exec(
		"DELETE FROM resumes WHERE public_id = ? AND user_id = ?",
		publicID, userID,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete resume"})
		return
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resume not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Resume deleted"})
}

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/metrics"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/payments"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
)

// GetCreditPackages is the handler for GET /v1/credits/packages (public).
func (h *Handlers) GetCreditPackages(c *gin.Context) {
	query := `
		SELECT id, name, description, credits, price, is_unlimited, duration_days
		FROM credit_packages
		WHERE is_public = 1
		ORDER BY price ASC
	`
	rows, err := h.DB.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}
	defer rows.Close()

	var packages []models.CreditPackage
	for rows.Next() {
		var p models.CreditPackage
		var desc sql.NullString // Handle nullable description
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.Credits, &p.Price, &p.IsUnlimited, &p.DurationDays); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan package row"})
			return
		}
		p.Description = desc.String
		packages = append(packages, p)
	}
	if err = rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// CheckoutInput is the request body for POST /v1/purchases/checkout.
type CheckoutInput struct {
	PackageID int64 `json:"packageId" binding:"required"`
}

// CreateCheckout is the handler for POST /v1/purchases/checkout.
// It returns the Stripe-hosted payment page URL; crediting happens only
// later, when the signed webhook confirms the session completed.
func (h *Handlers) CreateCheckout(c *gin.Context) {
	userIDRaw, _ := c.Get("userID")
	userID := userIDRaw.(int64)

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkg, err := h.getPackage(input.PackageID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database query failed"})
		return
	}

	url, sessionID, err := h.Payments.CreateCheckoutSession(userID, pkg)
	if err != nil {
		log.Printf("Failed to create checkout session for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"sessionId": sessionID,
	})
}

// StripeWebhook is the handler for POST /v1/purchases/webhook.
// Stripe retries webhooks, so fulfillment has to tolerate replays: the
// purchase_events insert below is the idempotency record that makes a
// given session credit at most once.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	// 1. --- Read & Verify ---
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 65536))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	event, err := h.Payments.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	// 2. --- We only fulfill completed checkouts ---
	if event.Type != "checkout.session.completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}
	completed, err := payments.ParseCompletedSession(&sess)
	if err != nil {
		log.Printf("Webhook with unusable metadata: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fulfillment metadata"})
		return
	}

	// 3. --- Fulfill ---
	if err := h.fulfillPurchase(completed); err != nil {
		metrics.PurchasesFulfilledTotal.WithLabelValues("error").Inc()
		log.Printf("Failed to fulfill session %s: %v", completed.SessionID, err)
		// 500 makes Stripe retry; the idempotency record keeps the retry safe.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fulfillment failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// fulfillPurchase credits the purchased package exactly once per session.
// The idempotency insert and the balance change share one transaction:
// either both commit or neither does.
func (h *Handlers) fulfillPurchase(completed *payments.CompletedSession) error {
	pkg, err := h.getPackage(completed.PackageID)
	if err != nil {
		return fmt.Errorf("failed to load package %d: %w", completed.PackageID, err)
	}

	tx, err := h.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to start fulfillment: %w", err)
	}
	defer tx.Rollback()

	// INSERT IGNORE + the UNIQUE index on stripe_session_id: a replayed
	// event affects zero rows, and we stop without touching the balance.
	res, err := tx.Exec(
		"INSERT IGNORE INTO purchase_events (stripe_session_id, user_id, package_id, credits_granted, created_at) VALUES (?, ?, ?, ?, ?)",
		completed.SessionID, completed.UserID, completed.PackageID, pkg.Credits, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record purchase event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record purchase event: %w", err)
	}
	if affected == 0 {
		// Already fulfilled. Tell Stripe everything is fine.
		metrics.PurchasesFulfilledTotal.WithLabelValues("duplicate").Inc()
		log.Printf("Session %s already fulfilled, skipping", completed.SessionID)
		return nil
	}

	note := "stripe session " + completed.SessionID
	if pkg.IsUnlimited {
		until := time.Now().Add(time.Duration(pkg.DurationDays) * 24 * time.Hour)
		if err := h.Ledger.GrantUnlimited(tx, completed.UserID, until, note); err != nil {
			return err
		}
	} else {
		if _, err := h.Ledger.Credit(tx, completed.UserID, pkg.Credits, note); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fulfillment: %w", err)
	}
	metrics.PurchasesFulfilledTotal.WithLabelValues("credited").Inc()
	return nil
}

func (h *Handlers) getPackage(id int64) (*models.CreditPackage, error) {
	var p models.CreditPackage
	var desc sql.NullString
	err := h.DB.QueryRow(
		"SELECT id, name, description, credits, price, stripe_price_id, is_unlimited, duration_days FROM credit_packages WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &desc, &p.Credits, &p.Price, &p.StripePriceID, &p.IsUnlimited, &p.DurationDays)
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

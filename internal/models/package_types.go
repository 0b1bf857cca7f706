package models

import "time"

// CreditPackage defines the model for the 'credit_packages' table.
// These are the purchasable bundles shown on the pricing page.
// A package with IsUnlimited=true does not add credits at all: on
// fulfillment it sets the time-boxed unlimited override instead.
type CreditPackage struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Credits       float64   `json:"credits" db:"credits"`
	Price         float64   `json:"price" db:"price"`
	StripePriceID string    `json:"-" db:"stripe_price_id"`
	IsUnlimited   bool      `json:"isUnlimited" db:"is_unlimited"`
	DurationDays  int       `json:"durationDays,omitempty" db:"duration_days"`
	IsPublic      bool      `json:"isPublic" db:"is_public"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// PurchaseEvent is the model for the 'purchase_events' table.
// It is the idempotency record for webhook fulfillment: the UNIQUE index
// on stripe_session_id makes a replayed checkout.session.completed event
// a duplicate-key insert, so the same purchase can never credit twice.
type PurchaseEvent struct {
	ID              int64     `json:"id" db:"id"`
	StripeSessionID string    `json:"stripeSessionId" db:"stripe_session_id"`
	UserID          int64     `json:"userId" db:"user_id"`
	PackageID       int64     `json:"packageId" db:"package_id"`
	CreditsGranted  float64   `json:"creditsGranted" db:"credits_granted"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

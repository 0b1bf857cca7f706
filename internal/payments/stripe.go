package payments

import (
	"fmt"
	"strconv"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/models"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service wraps the Stripe calls the purchase flow needs. The ledger
// itself never talks to Stripe: fulfillment hands it a plain credit
// amount after the webhook has been verified.
type Service struct {
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// New configures the global Stripe key and returns the service.
func New(apiKey, webhookSecret, successURL, cancelURL string) *Service {
	stripe.Key = apiKey
	return &Service{
		WebhookSecret: webhookSecret,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}
}

// CreateCheckoutSession starts a one-time payment for a credit package.
// The user and package ids ride along as metadata so the webhook can
// fulfill the purchase without any extra lookup of who paid for what.
// Returns the redirect URL and the session id.
func (s *Service) CreateCheckoutSession(userID int64, pkg *models.CreditPackage) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pkg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id":    strconv.FormatInt(userID, 10),
			"package_id": strconv.FormatInt(pkg.ID, 10),
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

// VerifyWebhook checks the Stripe signature and parses the event.
// Anything that fails here is a 400 to Stripe, never a fulfillment.
func (s *Service) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookSecret)
}

// CompletedSession is the subset of a checkout.session.completed event
// that fulfillment needs, with the metadata already parsed back into ids.
type CompletedSession struct {
	SessionID string
	UserID    int64
	PackageID int64
}

// ParseCompletedSession extracts and validates fulfillment fields from a
// verified checkout session object.
func ParseCompletedSession(sess *stripe.CheckoutSession) (*CompletedSession, error) {
	userID, err := strconv.ParseInt(sess.Metadata["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no valid user_id metadata", sess.ID)
	}
	packageID, err := strconv.ParseInt(sess.Metadata["package_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkout session %s has no valid package_id metadata", sess.ID)
	}
	return &CompletedSession{
		SessionID: sess.ID,
		UserID:    userID,
		PackageID: packageID,
	}, nil
}

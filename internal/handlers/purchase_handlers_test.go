package handlers

import (
	"regexp"
	"testing"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/payments"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectPackageSQL = "SELECT id, name, description, credits, price, stripe_price_id, is_unlimited, duration_days FROM credit_packages WHERE id = ?"

func newFulfillTest(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Handlers{DB: db, Ledger: credits.NewLedger(db)}, mock
}

func packageRow(id int64, creditAmount float64, unlimited bool, durationDays int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "credits", "price", "stripe_price_id", "is_unlimited", "duration_days"}).
		AddRow(id, "Starter", "30 credits", creditAmount, 4.90, "price_starter_30", unlimited, durationDays)
}

func TestFulfillPurchaseCreditsOnce(t *testing.T) {
	h, mock := newFulfillTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectPackageSQL)).
		WithArgs(int64(1)).
		WillReturnRows(packageRow(1, 30, false, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO purchase_events")).
		WithArgs("cs_test_123", int64(7), int64(1), 30.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_user_credits")).
		WithArgs(int64(7), 30.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT credits_remaining, is_unlimited, unlimited_until FROM ai_user_credits WHERE user_id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(34.0, false, nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_transactions")).
		WithArgs(int64(7), 30.0, 34.0, "stripe session cs_test_123", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := h.fulfillPurchase(&payments.CompletedSession{
		SessionID: "cs_test_123",
		UserID:    7,
		PackageID: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillPurchaseReplayIsNoop(t *testing.T) {
	// Same session id again: the idempotency insert affects zero rows and
	// fulfillment stops before any balance change.
	h, mock := newFulfillTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectPackageSQL)).
		WithArgs(int64(1)).
		WillReturnRows(packageRow(1, 30, false, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO purchase_events")).
		WithArgs("cs_test_123", int64(7), int64(1), 30.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := h.fulfillPurchase(&payments.CompletedSession{
		SessionID: "cs_test_123",
		UserID:    7,
		PackageID: 1,
	})
	require.NoError(t, err, "a replay is success, not an error, so Stripe stops retrying")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillPurchaseUnlimitedPackage(t *testing.T) {
	h, mock := newFulfillTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectPackageSQL)).
		WithArgs(int64(3)).
		WillReturnRows(packageRow(3, 0, true, 30))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO purchase_events")).
		WithArgs("cs_test_456", int64(7), int64(3), 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_user_credits")).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_transactions")).
		WithArgs(int64(7), "stripe session cs_test_456", sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := h.fulfillPurchase(&payments.CompletedSession{
		SessionID: "cs_test_456",
		UserID:    7,
		PackageID: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

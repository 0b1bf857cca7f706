package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/auth"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/handlers"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/routes"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectAccountSQL = "SELECT credits_remaining, is_unlimited, unlimited_until FROM ai_user_credits WHERE user_id = ?"

// setupCreditTest wires a real router (CORS, auth middleware, routes)
// over a mocked database, and returns a valid bearer token for user 7.
func setupCreditTest(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &handlers.Handlers{
		DB:     db,
		Ledger: credits.NewLedger(db),
	}
	router := routes.SetupRouter(h)

	token, err := auth.GenerateToken(7)
	require.NoError(t, err)
	return router, mock, token
}

func postCredits(router *gin.Engine, token string, body map[string]interface{}) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/credits", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreditActionRequiresAuth(t *testing.T) {
	// 401 must come before any business logic: the mock database has no
	// expectations, so any SQL would fail the test.
	router, mock, _ := setupCreditTest(t)

	t.Run("missing header", func(t *testing.T) {
		w := postCredits(router, "", map[string]interface{}{"action": "check"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := postCredits(router, "not-a-jwt", map[string]interface{}{"action": "check"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditCheck(t *testing.T) {
	router, mock, token := setupCreditTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(5.0, false, nil))

	w := postCredits(router, token, map[string]interface{}{"action": "check"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, 5.0, body["credits"])
	assert.Equal(t, false, body["hasUnlimited"])
	assert.Nil(t, body["unlimitedUntil"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditCheckNotFound(t *testing.T) {
	router, mock, token := setupCreditTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}))

	w := postCredits(router, token, map[string]interface{}{"action": "check"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreditUseSuccess(t *testing.T) {
	router, mock, token := setupCreditTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(5.0, false, nil))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ai_user_credits SET credits_remaining = credits_remaining - ?, updated_at = ? WHERE user_id = ? AND credits_remaining >= ?")).
		WithArgs(1.0, sqlmock.AnyArg(), int64(7), 1.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(4.0, false, nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credit_transactions")).
		WithArgs(int64(7), -1.0, 4.0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := postCredits(router, token, map[string]interface{}{"action": "use", "amount": 1})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 4.0, body["credits"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditUseInsufficient(t *testing.T) {
	router, mock, token := setupCreditTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(4.0, false, nil))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ai_user_credits")).
		WithArgs(5.0, sqlmock.AnyArg(), int64(7), 5.0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountSQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"credits_remaining", "is_unlimited", "unlimited_until"}).
			AddRow(4.0, false, nil))
	mock.ExpectRollback()

	w := postCredits(router, token, map[string]interface{}{"action": "use", "amount": 5})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "Insufficient credits", body["error"])
	assert.Equal(t, 4.0, body["credits"])
}

func TestCreditUseBadRequests(t *testing.T) {
	// Malformed shapes never reach the ledger (no SQL expectations set
	// except where validation happens inside Deduct itself).
	router, mock, token := setupCreditTest(t)

	t.Run("missing amount", func(t *testing.T) {
		w := postCredits(router, token, map[string]interface{}{"action": "use"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		w := postCredits(router, token, map[string]interface{}{"action": "refill"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		w := postCredits(router, token, map[string]interface{}{"action": "use", "amount": -2})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		w := postCredits(router, token, map[string]interface{}{"action": "use", "amount": "three"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

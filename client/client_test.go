package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creditRequest struct {
	Action string   `json:"action"`
	Amount *float64 `json:"amount"`
}

// fakeServer answers /v1/credits like the real handler would and records
// every request it sees.
func fakeServer(t *testing.T, handle func(req creditRequest, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/credits", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req creditRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		handle(req, w)
	}))
}

func TestCheckSeedsCache(t *testing.T) {
	srv := fakeServer(t, func(req creditRequest, w http.ResponseWriter) {
		require.Equal(t, "check", req.Action)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"credits":        5.0,
			"hasUnlimited":   false,
			"unlimitedUntil": nil,
		})
	})
	defer srv.Close()

	c := New(srv.URL, "test-token")
	assert.Nil(t, c.Cached(), "cache starts empty")

	snap, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, snap.Credits)

	cached := c.Cached()
	require.NotNil(t, cached)
	assert.Equal(t, 5.0, cached.Credits)
}

func TestUseNeverPreDecrements(t *testing.T) {
	// The server reports the authoritative post-deduction balance; the
	// cache takes that value, not a locally computed one.
	srv := fakeServer(t, func(req creditRequest, w http.ResponseWriter) {
		if req.Action == "check" {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{"credits": 5.0, "hasUnlimited": false})
			return
		}
		require.Equal(t, "use", req.Action)
		require.NotNil(t, req.Amount)
		w.WriteHeader(http.StatusOK)
		// Server-side truth diverged from the cache (another device spent
		// 2 in between): 5 - 1 would be 4, the server says 2.
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "credits": 2.0, "hasUnlimited": false})
	})
	defer srv.Close()

	c := New(srv.URL, "test-token")
	_, err := c.Check(context.Background())
	require.NoError(t, err)

	snap, err := c.Use(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap.Credits, "cache reflects the server, not cache-minus-amount")
	assert.Equal(t, 2.0, c.Cached().Credits)
}

func TestUseInsufficientResyncsCache(t *testing.T) {
	srv := fakeServer(t, func(req creditRequest, w http.ResponseWriter) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "Insufficient credits", "credits": 4.0})
	})
	defer srv.Close()

	c := New(srv.URL, "test-token")
	_, err := c.Use(context.Background(), 5)

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4.0, insufficient.Credits)

	// Even on rejection the displayed number is the authoritative one.
	cached := c.Cached()
	require.NotNil(t, cached)
	assert.Equal(t, 4.0, cached.Credits)
}

func TestUseTransportErrorLeavesCacheUntouched(t *testing.T) {
	srv := fakeServer(t, func(req creditRequest, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"credits": 5.0, "hasUnlimited": false})
	})

	c := New(srv.URL, "test-token")
	_, err := c.Check(context.Background())
	require.NoError(t, err)

	// Kill the server: the next Use fails in transport, outcome unknown.
	srv.Close()
	_, err = c.Use(context.Background(), 1)
	require.Error(t, err)

	var insufficient *InsufficientCreditsError
	assert.False(t, err == ErrUnauthorized || err == ErrAccountNotFound, "transport errors are not business errors")
	assert.NotErrorAs(t, err, &insufficient)

	cached := c.Cached()
	require.NotNil(t, cached)
	assert.Equal(t, 5.0, cached.Credits, "no optimistic decrement on an ambiguous failure")
}

func TestUseStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrAccountNotFound},
		{"bad amount", http.StatusBadRequest, ErrInvalidAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeServer(t, func(req creditRequest, w http.ResponseWriter) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]interface{}{"error": tc.name})
			})
			defer srv.Close()

			c := New(srv.URL, "test-token")
			_, err := c.Use(context.Background(), 1)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, c.Cached(), "failed calls never seed the cache")
		})
	}
}

// Package client is a small Go client for the credits API.
//
// It keeps a local copy of the last balance the server reported, so a
// caller can render a credit figure without a round trip. The cache is
// never the system of record: it is only ever overwritten by an
// authoritative server payload, and Use never pre-decrements it on the
// assumption that a deduction will succeed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnauthorized means the credential was missing or rejected; the
	// caller should re-authenticate, not retry.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrAccountNotFound means the identity has no credit account.
	ErrAccountNotFound = errors.New("client: credit account not found")
	// ErrInvalidAmount mirrors the server-side 400 for non-positive amounts.
	ErrInvalidAmount = errors.New("client: amount must be a positive number")
)

// InsufficientCreditsError is the expected rejection when the balance is
// too low; Credits is the authoritative balance the server reported, and
// the cache has already been resynchronized to it.
type InsufficientCreditsError struct {
	Credits float64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("client: insufficient credits (%.2f remaining)", e.Credits)
}

// Snapshot is the balance view cached from the last successful response.
type Snapshot struct {
	Credits        float64    `json:"credits"`
	HasUnlimited   bool       `json:"hasUnlimited"`
	UnlimitedUntil *time.Time `json:"unlimitedUntil"`
}

// Client talks to the credits endpoint with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	// mu guards the cached snapshot only. The spend decision itself
	// needs no client-side locking: the server row is the arbiter.
	mu     sync.Mutex
	cached *Snapshot
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Cached returns a copy of the last snapshot seen from the server, or
// nil before the first successful call. Display purposes only.
func (c *Client) Cached() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil
	}
	snap := *c.cached
	return &snap
}

func (c *Client) setCached(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = &snap
}

// Check fetches the current balance and overwrites the cache with it.
// Also the reconciliation call after an ambiguous (timed-out) Use.
func (c *Client) Check(ctx context.Context) (*Snapshot, error) {
	status, body, err := c.post(ctx, map[string]interface{}{"action": "check"})
	if err != nil {
		// Transport failure: unknown outcome, cache untouched.
		return nil, err
	}

	switch status {
	case http.StatusOK:
		var snap Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return nil, fmt.Errorf("client: malformed response: %w", err)
		}
		c.setCached(snap)
		return &snap, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrAccountNotFound
	default:
		return nil, fmt.Errorf("client: unexpected status %d", status)
	}
}

// Use asks the server to deduct amount and returns the authoritative
// post-deduction snapshot. On an insufficient-balance rejection the
// cache is resynchronized from the reported balance, so the displayed
// number is correct even on failure. On a transport error nothing is
// assumed: the action that would consume the credit must not proceed,
// and no local decrement happens.
func (c *Client) Use(ctx context.Context, amount float64) (*Snapshot, error) {
	status, body, err := c.post(ctx, map[string]interface{}{"action": "use", "amount": amount})
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		var resp struct {
			Credits      float64 `json:"credits"`
			HasUnlimited bool    `json:"hasUnlimited"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("client: malformed response: %w", err)
		}
		snap := Snapshot{Credits: resp.Credits, HasUnlimited: resp.HasUnlimited}
		// The use response carries no expiry timestamp; keep the one from
		// the last check rather than inventing or dropping it.
		if prev := c.Cached(); prev != nil {
			snap.UnlimitedUntil = prev.UnlimitedUntil
		}
		c.setCached(snap)
		return &snap, nil

	case http.StatusPaymentRequired:
		var resp struct {
			Credits float64 `json:"credits"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("client: malformed response: %w", err)
		}
		snap := Snapshot{Credits: resp.Credits}
		if prev := c.Cached(); prev != nil {
			snap.UnlimitedUntil = prev.UnlimitedUntil
		}
		c.setCached(snap)
		return nil, &InsufficientCreditsError{Credits: resp.Credits}

	case http.StatusBadRequest:
		return nil, ErrInvalidAmount
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrAccountNotFound
	default:
		return nil, fmt.Errorf("client: unexpected status %d", status)
	}
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/credits", bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("client: request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("client: reading response failed: %w", err)
	}
	return res.StatusCode, body, nil
}

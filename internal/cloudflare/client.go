// Package cloudflare is a minimal client for the slice of the Cloudflare v4
// API the monitor needs: tunnel listings, per-tunnel connection listings and
// token verification.
package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	requestTimeout = 15 * time.Second
	verifyTimeout  = 10 * time.Second

	bodyExcerptLimit = 200
)

// Tunnel is one tunnel resource as listed by the API. Only the fields the
// monitor consumes are decoded.
type Tunnel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Connection is one raw session-level record from the per-tunnel connections
// endpoint. The payload shape is not stable across API variants, so it stays
// a loose map and is interpreted downstream through field alias chains.
type Connection map[string]any

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for one account's bearer token. baseURL is the
// API root without a trailing slash, e.g. "https://api.cloudflare.com/client/v4".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// getJSON issues an authenticated GET and decodes the response into out,
// mapping failures onto the client's error taxonomy.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLimit))
		return &RemoteError{
			Status: resp.StatusCode,
			Reason: http.StatusText(resp.StatusCode),
			Body:   string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// FetchTunnels lists the account's non-deleted tunnels.
func (c *Client) FetchTunnels(ctx context.Context, accountID string) ([]Tunnel, error) {
	url := fmt.Sprintf("%s/accounts/%s/cfd_tunnel?is_deleted=false", c.baseURL, accountID)

	var envelope struct {
		Result []Tunnel `json:"result"`
	}
	if err := c.getJSON(ctx, url, &envelope); err != nil {
		return nil, fmt.Errorf("fetch tunnels: %w", err)
	}
	return envelope.Result, nil
}

// FetchConnections lists the raw connection records of one tunnel.
func (c *Client) FetchConnections(ctx context.Context, accountID, tunnelID string) ([]Connection, error) {
	url := fmt.Sprintf("%s/accounts/%s/cfd_tunnel/%s/connections", c.baseURL, accountID, tunnelID)

	var envelope struct {
		Result []Connection `json:"result"`
	}
	if err := c.getJSON(ctx, url, &envelope); err != nil {
		return nil, fmt.Errorf("fetch connections for tunnel %s: %w", tunnelID, err)
	}
	return envelope.Result, nil
}

// VerifyToken checks the bearer token against the token-verification
// endpoint. Returns nil for a valid token, ErrUnauthorized for a rejected
// one, and a RemoteError or UnreachableError for anything else.
func (c *Client) VerifyToken(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	var envelope struct {
		Success bool `json:"success"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/user/tokens/verify", &envelope); err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}

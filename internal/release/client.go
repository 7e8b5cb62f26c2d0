// Package release tracks the newest published cloudflared version so
// connector versions can be compared against it.
package release

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

const fetchTimeout = 15 * time.Second

// Client fetches the latest cloudflared release tag from the GitHub
// release-metadata endpoint. The endpoint is unauthenticated.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: fetchTimeout},
	}
}

// Latest returns the newest release version, or "" when it cannot be
// determined. Best-effort: any failure degrades to "" and is only logged.
func (c *Client) Latest(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		log.Printf("[release] create request: %v", err)
		return ""
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[release] fetch latest version: %v", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[release] latest version request failed: HTTP %d", resp.StatusCode)
		return ""
	}

	var payload struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("[release] decode latest version: %v", err)
		return ""
	}

	version := payload.TagName
	if version == "" {
		version = payload.Name
	}
	return strings.TrimPrefix(version, "v")
}

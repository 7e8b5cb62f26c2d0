// Package monitor contains the refresh engine: it polls the Cloudflare API
// per account, folds raw connection records into logical connectors,
// classifies tunnel health and publishes an immutable snapshot per cycle.
package monitor

import "time"

// Connector aggregates all raw connections that share a client id within one
// tunnel and refresh cycle.
type Connector struct {
	ClientID         string   `json:"client_id"`
	Version          string   `json:"version,omitempty"`
	Sessions         int      `json:"sessions"`
	Edges            []string `json:"edges"`
	OriginIPs        []string `json:"origin_ips"`
	PendingReconnect bool     `json:"pending_reconnect"`
	OpenedAtLatest   string   `json:"opened_at_latest,omitempty"`
	LatestVersion    string   `json:"latest_version,omitempty"`

	// Version comparison results. All three stay null unless both the
	// connector version and the latest release version are known.
	IsLatest        *bool   `json:"is_latest"`
	UpdateAvailable *bool   `json:"update_available"`
	VersionDiff     *string `json:"version_diff"`
}

// Tunnel is one tunnel entry of a published snapshot.
type Tunnel struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Status         string      `json:"status,omitempty"`
	Health         *Health     `json:"health"` // nil when the declared status is unrecognized
	CreatedAt      string      `json:"created_at,omitempty"`
	ConnectorCount int         `json:"connector_count"`
	SessionCount   int         `json:"session_count"`
	Connectors     []Connector `json:"connectors"`
	LatestVersion  string      `json:"latest_cloudflared_version,omitempty"`
}

// Snapshot is the complete result of one successful refresh cycle for one
// account. Snapshots are immutable once published; consumers must not
// mutate them.
type Snapshot struct {
	AccountID   string    `json:"account_id"`
	Tunnels     []Tunnel  `json:"tunnels"`
	RefreshedAt time.Time `json:"refreshed_at"`
	CycleID     string    `json:"cycle_id"`
}

package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/tunnelpulse/tunnelpulse/internal/cloudflare"
)

// The connections payload is not stable across Cloudflare API variants:
// each logical field has shipped under several names. Every field is read
// through its alias chain in priority order; the first present non-empty
// value wins.
var connFieldAliases = map[string][]string{
	"client_id": {"client_id", "clientId"},
	"version":   {"client_version", "clientVersion", "version"},
	"opened_at": {"opened_at", "openedAt", "started_at"},
	"edge":      {"colo_name", "edge", "colo", "origin"},
	"origin_ip": {"client_address", "origin_ip", "ip"},
	"pending":   {"is_pending_reconnect", "pending_reconnect"},
}

func stringField(conn cloudflare.Connection, field string) string {
	for _, key := range connFieldAliases[field] {
		if s, ok := conn[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(conn cloudflare.Connection, field string) bool {
	for _, key := range connFieldAliases[field] {
		if b, ok := conn[key].(bool); ok && b {
			return true
		}
	}
	return false
}

// openedAfter reports whether a is a later open timestamp than b. The API
// emits RFC 3339 timestamps; anything unparsable falls back to string
// comparison so an odd record cannot abort the fold.
func openedAfter(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA == nil && errB == nil {
		return ta.After(tb)
	}
	return a > b
}

type connectorGroup struct {
	connector Connector
	edges     map[string]struct{}
	originIPs map[string]struct{}
}

// BuildConnectors folds one tunnel's raw connection records into connectors
// grouped by client id. Records without a client id land in the "unknown"
// bucket rather than being dropped. Returns the connectors in first-seen
// order, the number of distinct groups and the total session count, which
// always equals len(conns).
func BuildConnectors(conns []cloudflare.Connection, latestVersion string) ([]Connector, int, int) {
	grouped := make(map[string]*connectorGroup)
	var order []string
	totalSessions := 0

	for _, conn := range conns {
		clientID := stringField(conn, "client_id")
		if clientID == "" {
			clientID = "unknown"
		}

		g, ok := grouped[clientID]
		if !ok {
			g = &connectorGroup{
				connector: Connector{
					ClientID:      clientID,
					LatestVersion: latestVersion,
				},
				edges:     make(map[string]struct{}),
				originIPs: make(map[string]struct{}),
			}
			grouped[clientID] = g
			order = append(order, clientID)
		}

		g.connector.Sessions++
		totalSessions++

		// First non-empty version wins; later conflicting values within the
		// same group are not reconciled.
		if g.connector.Version == "" {
			g.connector.Version = stringField(conn, "version")
		}

		if edge := stringField(conn, "edge"); edge != "" {
			g.edges[edge] = struct{}{}
		}
		if ip := stringField(conn, "origin_ip"); ip != "" {
			g.originIPs[ip] = struct{}{}
		}

		if openedAt := stringField(conn, "opened_at"); openedAt != "" {
			if g.connector.OpenedAtLatest == "" || openedAfter(openedAt, g.connector.OpenedAtLatest) {
				g.connector.OpenedAtLatest = openedAt
			}
		}

		// Sticky for the lifetime of the group: one pending session flags
		// the whole connector.
		if boolField(conn, "pending") {
			g.connector.PendingReconnect = true
		}
	}

	connectors := make([]Connector, 0, len(order))
	for _, clientID := range order {
		g := grouped[clientID]
		c := g.connector
		c.Edges = sortedKeys(g.edges)
		c.OriginIPs = sortedKeys(g.originIPs)

		if c.Version != "" && latestVersion != "" {
			isLatest := c.Version == latestVersion
			updateAvailable := !isLatest
			c.IsLatest = &isLatest
			c.UpdateAvailable = &updateAvailable
			if updateAvailable {
				diff := fmt.Sprintf("%s -> %s", c.Version, latestVersion)
				c.VersionDiff = &diff
			}
		}

		connectors = append(connectors, c)
	}

	return connectors, len(connectors), totalSessions
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

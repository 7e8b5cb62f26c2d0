package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tunnelpulse/tunnelpulse/internal/cloudflare"
	"github.com/tunnelpulse/tunnelpulse/internal/release"
)

// DefaultInterval is the pause between the completion of one refresh cycle
// and the start of the next.
const DefaultInterval = time.Minute

// State of a coordinator as it moves through a refresh cycle.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
	StatePublished   State = "published"
	StateFailed      State = "failed"
)

// API is the slice of the Cloudflare client the coordinator needs. The
// concrete *cloudflare.Client satisfies it; tests substitute fakes.
type API interface {
	FetchTunnels(ctx context.Context, accountID string) ([]cloudflare.Tunnel, error)
	FetchConnections(ctx context.Context, accountID, tunnelID string) ([]cloudflare.Connection, error)
}

// CoordinatorConfig configures one account's refresh loop.
type CoordinatorConfig struct {
	AccountID    string
	FriendlyName string
	API          API
	Versions     *release.Cache
	Interval     time.Duration   // default DefaultInterval
	OnPublish    func(*Snapshot) // called after each successful cycle
}

// Coordinator runs the fetch-reconcile-publish loop for one account. The
// last successfully published snapshot is retained across failed cycles as
// the consumers' last-known-good state.
type Coordinator struct {
	cfg CoordinatorConfig

	mu       sync.RWMutex
	state    State
	snapshot *Snapshot
	lastErr  error
}

// NewCoordinator creates a Coordinator with defaults applied.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Coordinator{cfg: cfg, state: StateIdle}
}

// Run refreshes immediately, then on the configured cadence until ctx is
// cancelled. The next cycle is scheduled relative to the completion of the
// previous one, not wall-clock aligned.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		c.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.Interval):
		}
	}
}

// Refresh executes one full cycle. A tunnel-list failure aborts the cycle
// and leaves the previous snapshot standing; per-tunnel connection failures
// only degrade the affected tunnel.
func (c *Coordinator) Refresh(ctx context.Context) {
	cycle := uuid.NewString()[:8]
	c.setState(StateFetching)

	// The tunnel list and the latest release version are independent
	// fetches; run them concurrently. The version lookup degrades to
	// stale-or-empty instead of failing, so only the tunnel list can
	// abort the cycle.
	versionCh := make(chan string, 1)
	go func() {
		versionCh <- c.cfg.Versions.Get(ctx)
	}()

	tunnels, err := c.cfg.API.FetchTunnels(ctx, c.cfg.AccountID)
	latest := <-versionCh
	if err != nil {
		c.fail(cycle, err)
		return
	}

	c.setState(StateReconciling)
	out := make([]Tunnel, 0, len(tunnels))
	for _, t := range tunnels {
		// Entries without an id are not addressable across cycles.
		if t.ID == "" {
			continue
		}

		conns, err := c.cfg.API.FetchConnections(ctx, c.cfg.AccountID, t.ID)
		if err != nil {
			// Tunnels are isolated failure domains: this tunnel degrades
			// to zero connections, its siblings are unaffected.
			log.Printf("[monitor %s] cycle %s: connections for tunnel %s: %v",
				c.cfg.AccountID, cycle, t.ID, err)
			conns = nil
		}

		connectors, connectorCount, sessionCount := BuildConnectors(conns, latest)

		name := t.Name
		if name == "" {
			name = t.ID
		}
		out = append(out, Tunnel{
			ID:             t.ID,
			Name:           name,
			Status:         t.Status,
			Health:         ClassifyHealth(t.Status),
			CreatedAt:      t.CreatedAt,
			ConnectorCount: connectorCount,
			SessionCount:   sessionCount,
			Connectors:     connectors,
			LatestVersion:  latest,
		})
	}

	snap := &Snapshot{
		AccountID:   c.cfg.AccountID,
		Tunnels:     out,
		RefreshedAt: time.Now(),
		CycleID:     cycle,
	}

	c.mu.Lock()
	c.snapshot = snap
	c.lastErr = nil
	c.state = StatePublished
	c.mu.Unlock()

	log.Printf("[monitor %s] cycle %s: published %d tunnels", c.cfg.AccountID, cycle, len(out))

	if c.cfg.OnPublish != nil {
		c.cfg.OnPublish(snap)
	}
}

func (c *Coordinator) fail(cycle string, err error) {
	c.mu.Lock()
	c.lastErr = err
	c.state = StateFailed
	c.mu.Unlock()

	if errors.Is(err, cloudflare.ErrUnauthorized) {
		log.Printf("[monitor %s] cycle %s: API token rejected, account needs to be reconfigured",
			c.cfg.AccountID, cycle)
		return
	}
	log.Printf("[monitor %s] cycle %s: refresh failed: %v", c.cfg.AccountID, cycle, err)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the coordinator's current cycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the last published snapshot (nil if none yet) and the
// error of the most recent cycle (nil after a successful one).
func (c *Coordinator) Snapshot() (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.lastErr
}

// FriendlyName returns the display label the account was registered with.
func (c *Coordinator) FriendlyName() string {
	return c.cfg.FriendlyName
}

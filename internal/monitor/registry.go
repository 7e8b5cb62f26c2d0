package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tunnelpulse/tunnelpulse/internal/release"
)

// RegistryConfig wires the registry's process-wide collaborators.
type RegistryConfig struct {
	// NewAPI builds an API client bound to one account's bearer token.
	NewAPI func(token string) API

	// Versions is shared by every monitor; it is the only cross-account
	// state in the system.
	Versions *release.Cache

	Interval  time.Duration
	OnPublish func(*Snapshot)
}

type monitorEntry struct {
	coord  *Coordinator
	cancel context.CancelFunc
}

// Registry owns one running Coordinator per registered account, keyed by the
// account's database id.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	monitors map[uint]*monitorEntry
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		monitors: make(map[uint]*monitorEntry),
	}
}

// Start launches a refresh loop for the account. Starting an id that is
// already monitored is a no-op.
func (r *Registry) Start(ctx context.Context, id uint, accountID, friendlyName, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.monitors[id]; ok {
		return
	}

	coord := NewCoordinator(CoordinatorConfig{
		AccountID:    accountID,
		FriendlyName: friendlyName,
		API:          r.cfg.NewAPI(token),
		Versions:     r.cfg.Versions,
		Interval:     r.cfg.Interval,
		OnPublish:    r.cfg.OnPublish,
	})

	runCtx, cancel := context.WithCancel(ctx)
	r.monitors[id] = &monitorEntry{coord: coord, cancel: cancel}

	go coord.Run(runCtx)
	log.Printf("[monitor %s] started (%s)", accountID, friendlyName)
}

// Stop cancels the account's refresh loop. In-flight requests are abandoned;
// their timeouts bound any residual work.
func (r *Registry) Stop(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.monitors[id]; ok {
		entry.cancel()
		delete(r.monitors, id)
	}
}

// StopAll cancels every refresh loop. Used during shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.monitors {
		entry.cancel()
		delete(r.monitors, id)
	}
}

// Get returns the coordinator for an account id, or nil if not monitored.
func (r *Registry) Get(id uint) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.monitors[id]; ok {
		return entry.coord
	}
	return nil
}

// Count returns the number of running monitors.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tunnelpulse/tunnelpulse/internal/monitor"
)

// Hub fans published snapshots out to websocket subscribers. Slow
// subscribers drop events rather than backpressuring the monitors.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan *monitor.Snapshot
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan *monitor.Snapshot)}
}

// StreamHub is the process-wide hub; the monitor registry's publish hook
// feeds it.
var StreamHub = NewHub()

// Publish delivers a snapshot to every subscriber without blocking.
func (h *Hub) Publish(snap *monitor.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (h *Hub) subscribe() (string, chan *monitor.Snapshot) {
	id := uuid.NewString()
	ch := make(chan *monitor.Snapshot, 8)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Stream upgrades to a websocket and forwards one JSON event per published
// snapshot until the client goes away.
func Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[stream] failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	id, ch := StreamHub.subscribe()
	defer StreamHub.unsubscribe(id)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-ch:
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

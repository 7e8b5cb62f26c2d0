package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpulse/tunnelpulse/internal/database"
	"github.com/tunnelpulse/tunnelpulse/internal/monitor"
	"gorm.io/gorm"
)

type tunnelsResponse struct {
	AccountID    string           `json:"account_id"`
	FriendlyName string           `json:"friendly_name"`
	State        string           `json:"state"`
	RefreshedAt  *time.Time       `json:"refreshed_at,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
	Tunnels      []monitor.Tunnel `json:"tunnels"`
}

// GetAccountTunnels serves the account's last published snapshot. A failed
// latest cycle does not clear it: consumers keep reading last-known-good
// data alongside the error.
func GetAccountTunnels(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var acc database.Account
	if err := database.DB.First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	coord := Monitors.Get(acc.ID)
	if coord == nil {
		writeError(w, http.StatusServiceUnavailable, "account is not being monitored")
		return
	}

	snap, cycleErr := coord.Snapshot()
	resp := tunnelsResponse{
		AccountID:    acc.AccountID,
		FriendlyName: acc.FriendlyName,
		State:        string(coord.State()),
		Tunnels:      []monitor.Tunnel{},
	}
	if snap != nil {
		resp.Tunnels = snap.Tunnels
		resp.RefreshedAt = &snap.RefreshedAt
	}
	if cycleErr != nil {
		resp.LastError = cycleErr.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

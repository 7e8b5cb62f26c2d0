package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpulse/tunnelpulse/internal/cloudflare"
	"github.com/tunnelpulse/tunnelpulse/internal/config"
	"github.com/tunnelpulse/tunnelpulse/internal/crypto"
	"github.com/tunnelpulse/tunnelpulse/internal/database"
	"github.com/tunnelpulse/tunnelpulse/internal/logutil"
	"github.com/tunnelpulse/tunnelpulse/internal/monitor"
	"gorm.io/gorm"
)

// Monitors is the process-wide monitor registry, set in main before the
// router starts serving.
var Monitors *monitor.Registry

// BaseCtx is the lifetime context new monitors are attached to; cancelled on
// shutdown. Set in main.
var BaseCtx = context.Background()

type registerAccountRequest struct {
	AccountID    string `json:"account_id"`
	APIToken     string `json:"api_token"`
	FriendlyName string `json:"friendly_name"`
}

type accountResponse struct {
	ID           uint      `json:"id"`
	AccountID    string    `json:"account_id"`
	FriendlyName string    `json:"friendly_name"`
	APIToken     string    `json:"api_token"` // masked
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

func accountToResponse(acc database.Account) accountResponse {
	token, err := crypto.Decrypt(acc.APIToken)
	if err != nil {
		token = ""
	}

	state := "stopped"
	if Monitors != nil {
		if coord := Monitors.Get(acc.ID); coord != nil {
			state = string(coord.State())
		}
	}

	return accountResponse{
		ID:           acc.ID,
		AccountID:    acc.AccountID,
		FriendlyName: acc.FriendlyName,
		APIToken:     crypto.Mask(token),
		State:        state,
		CreatedAt:    acc.CreatedAt,
	}
}

// RegisterAccount validates the credential against the Cloudflare
// token-verification endpoint, stores the account and starts its monitor.
func RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	if req.APIToken == "" {
		writeError(w, http.StatusBadRequest, "api_token is required")
		return
	}
	if req.FriendlyName == "" {
		req.FriendlyName = req.AccountID
	}

	cli := cloudflare.NewClient(config.Cfg.CloudflareAPIURL, req.APIToken)
	if err := cli.VerifyToken(r.Context()); err != nil {
		if errors.Is(err, cloudflare.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Cloudflare rejected the API token")
			return
		}
		writeError(w, http.StatusBadGateway, "cannot reach Cloudflare to verify the token")
		return
	}

	encrypted, err := crypto.Encrypt(req.APIToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	acc := database.Account{
		AccountID:    req.AccountID,
		APIToken:     encrypted,
		FriendlyName: req.FriendlyName,
	}
	if err := database.DB.Create(&acc).Error; err != nil {
		writeError(w, http.StatusConflict, "account is already registered")
		return
	}

	log.Printf("Registered account %s (%s)",
		logutil.SanitizeForLog(acc.AccountID), logutil.SanitizeForLog(acc.FriendlyName))

	if Monitors != nil {
		Monitors.Start(BaseCtx, acc.ID, acc.AccountID, acc.FriendlyName, req.APIToken)
	}

	writeJSON(w, http.StatusCreated, accountToResponse(acc))
}

func ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := database.ListAccounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, accountToResponse(acc))
	}
	writeJSON(w, http.StatusOK, out)
}

func DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
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

	if Monitors != nil {
		Monitors.Stop(acc.ID)
	}
	if err := database.DeleteAccount(acc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	log.Printf("Removed account %s", logutil.SanitizeForLog(acc.AccountID))
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tunnelpulse/tunnelpulse/internal/config"
	"github.com/tunnelpulse/tunnelpulse/internal/crypto"
	"github.com/tunnelpulse/tunnelpulse/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates a fresh in-memory SQLite database for each test.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&database.Account{}, &database.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	old := database.DB
	t.Cleanup(func() { database.DB = old })
	database.DB = db
}

// fakeVerifyServer stands in for the Cloudflare token-verification endpoint.
func fakeVerifyServer(t *testing.T, status int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"success": true}`))
		}
	}))
	t.Cleanup(srv.Close)

	old := config.Cfg.CloudflareAPIURL
	t.Cleanup(func() { config.Cfg.CloudflareAPIURL = old })
	config.Cfg.CloudflareAPIURL = srv.URL
}

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postAccount(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	RegisterAccount(rec, req)
	return rec
}

func TestRegisterAccount(t *testing.T) {
	setupTestDB(t)
	fakeVerifyServer(t, http.StatusOK)

	rec := postAccount(t, `{"account_id": "acc-1", "api_token": "cf-token", "friendly_name": "Home"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.AccountID != "acc-1" || resp.FriendlyName != "Home" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.APIToken != "****oken" {
		t.Errorf("expected masked token, got %q", resp.APIToken)
	}

	// Token is stored encrypted, not in the clear.
	acc, err := database.GetAccountByAccountID("acc-1")
	if err != nil {
		t.Fatalf("load stored account: %v", err)
	}
	if acc.APIToken == "cf-token" {
		t.Error("token stored in plaintext")
	}
	plain, err := crypto.Decrypt(acc.APIToken)
	if err != nil || plain != "cf-token" {
		t.Errorf("stored token does not decrypt: %q, %v", plain, err)
	}
}

func TestRegisterAccountFriendlyNameDefault(t *testing.T) {
	setupTestDB(t)
	fakeVerifyServer(t, http.StatusOK)

	rec := postAccount(t, `{"account_id": "acc-2", "api_token": "tok"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp accountResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.FriendlyName != "acc-2" {
		t.Errorf("expected friendly name to default to account id, got %q", resp.FriendlyName)
	}
}

func TestRegisterAccountValidation(t *testing.T) {
	setupTestDB(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing account id", `{"api_token": "tok"}`},
		{"missing token", `{"account_id": "acc-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postAccount(t, tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestRegisterAccountRejectedToken(t *testing.T) {
	setupTestDB(t)
	fakeVerifyServer(t, http.StatusUnauthorized)

	rec := postAccount(t, `{"account_id": "acc-1", "api_token": "bad"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if _, err := database.GetAccountByAccountID("acc-1"); err == nil {
		t.Error("rejected account must not be stored")
	}
}

func TestRegisterAccountUpstreamDown(t *testing.T) {
	setupTestDB(t)
	fakeVerifyServer(t, http.StatusInternalServerError)

	if rec := postAccount(t, `{"account_id": "acc-1", "api_token": "tok"}`); rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestRegisterAccountDuplicate(t *testing.T) {
	setupTestDB(t)
	fakeVerifyServer(t, http.StatusOK)

	if rec := postAccount(t, `{"account_id": "acc-1", "api_token": "tok"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first register: %d", rec.Code)
	}
	if rec := postAccount(t, `{"account_id": "acc-1", "api_token": "tok"}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", rec.Code)
	}
}

func TestListAccounts(t *testing.T) {
	setupTestDB(t)

	encrypted, err := crypto.Encrypt("secret-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := database.DB.Create(&database.Account{
		AccountID: "acc-1", APIToken: encrypted, FriendlyName: "Home",
	}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	rec := httptest.NewRecorder()
	ListAccounts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp []accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 account, got %d", len(resp))
	}
	if resp[0].APIToken != "****oken" {
		t.Errorf("expected masked token, got %q", resp[0].APIToken)
	}
	if resp[0].State != "stopped" {
		t.Errorf("expected state stopped without a registry, got %q", resp[0].State)
	}
}

func TestDeleteAccount(t *testing.T) {
	setupTestDB(t)

	acc := database.Account{AccountID: "acc-1", APIToken: "enc", FriendlyName: "Home"}
	if err := database.DB.Create(&acc).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/accounts/1", nil)
	req = withChiParams(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()
	DeleteAccountHandler(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := database.GetAccountByAccountID("acc-1"); err == nil {
		t.Error("expected account to be deleted")
	}
}

func TestDeleteAccountNotFound(t *testing.T) {
	setupTestDB(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/accounts/99", nil)
	req = withChiParams(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()
	DeleteAccountHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteAccountInvalidID(t *testing.T) {
	setupTestDB(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/accounts/abc", nil)
	req = withChiParams(req, map[string]string{"id": "abc"})
	rec := httptest.NewRecorder()
	DeleteAccountHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

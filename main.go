package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/tunnelpulse/tunnelpulse/internal/cloudflare"
	"github.com/tunnelpulse/tunnelpulse/internal/config"
	"github.com/tunnelpulse/tunnelpulse/internal/crypto"
	"github.com/tunnelpulse/tunnelpulse/internal/database"
	"github.com/tunnelpulse/tunnelpulse/internal/handlers"
	"github.com/tunnelpulse/tunnelpulse/internal/logging"
	"github.com/tunnelpulse/tunnelpulse/internal/logutil"
	"github.com/tunnelpulse/tunnelpulse/internal/monitor"
	"github.com/tunnelpulse/tunnelpulse/internal/release"
)

func main() {
	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	interval, err := time.ParseDuration(config.Cfg.RefreshInterval)
	if err != nil || interval <= 0 {
		interval = monitor.DefaultInterval
	}
	log.Printf("Config: ListenAddr=%s, RefreshInterval=%s", config.Cfg.ListenAddr, interval)

	// Root context for all monitor loops; cancelled on shutdown.
	rootCtx, cancelMonitors := context.WithCancel(context.Background())
	defer cancelMonitors()

	versions := release.NewCache(release.NewClient(config.Cfg.ReleaseURL).Latest, release.DefaultTTL)

	registry := monitor.NewRegistry(monitor.RegistryConfig{
		NewAPI: func(token string) monitor.API {
			return cloudflare.NewClient(config.Cfg.CloudflareAPIURL, token)
		},
		Versions:  versions,
		Interval:  interval,
		OnPublish: handlers.StreamHub.Publish,
	})
	handlers.Monitors = registry
	handlers.BaseCtx = rootCtx

	if config.Cfg.AccountsFile != "" {
		seedAccounts(config.Cfg.AccountsFile)
	}
	startStoredMonitors(rootCtx, registry)

	// Daily forced expiry so a version that went stale behind repeated fetch
	// failures still gets retried on a known schedule.
	cronJobs := cron.New()
	if _, err := cronJobs.AddFunc("@daily", versions.Expire); err != nil {
		log.Printf("WARNING: schedule version expiry: %v", err)
	}
	cronJobs.Start()
	defer cronJobs.Stop()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", handlers.RegisterAccount)
		r.Get("/accounts", handlers.ListAccounts)
		r.Delete("/accounts/{id}", handlers.DeleteAccountHandler)
		r.Get("/accounts/{id}/tunnels", handlers.GetAccountTunnels)

		r.Get("/stream", handlers.Stream)

		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
	})

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	cancelMonitors()
	registry.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// seedAccounts upserts accounts from the optional YAML file into the
// registry database. Tokens are not verified here: the file is operator
// provided and boot must not depend on upstream availability.
func seedAccounts(path string) {
	seeds, err := config.LoadSeedAccounts(path)
	if err != nil {
		log.Fatalf("Load accounts file: %v", err)
	}

	for _, seed := range seeds {
		if _, err := database.GetAccountByAccountID(seed.AccountID); err == nil {
			continue // already registered
		}

		encrypted, err := crypto.Encrypt(seed.APIToken)
		if err != nil {
			log.Printf("WARNING: seed account %s: encrypt token: %v",
				logutil.SanitizeForLog(seed.AccountID), err)
			continue
		}

		acc := database.Account{
			AccountID:    seed.AccountID,
			APIToken:     encrypted,
			FriendlyName: seed.FriendlyName,
		}
		if err := database.DB.Create(&acc).Error; err != nil {
			log.Printf("WARNING: seed account %s: %v", logutil.SanitizeForLog(seed.AccountID), err)
			continue
		}
		log.Printf("Seeded account %s (%s)",
			logutil.SanitizeForLog(acc.AccountID), logutil.SanitizeForLog(acc.FriendlyName))
	}
}

// startStoredMonitors launches a refresh loop for every registered account.
func startStoredMonitors(ctx context.Context, registry *monitor.Registry) {
	accounts, err := database.ListAccounts()
	if err != nil {
		log.Fatalf("List accounts: %v", err)
	}

	for _, acc := range accounts {
		token, err := crypto.Decrypt(acc.APIToken)
		if err != nil {
			log.Printf("WARNING: account %s: decrypt token: %v; not monitoring",
				logutil.SanitizeForLog(acc.AccountID), err)
			continue
		}
		registry.Start(ctx, acc.ID, acc.AccountID, acc.FriendlyName, token)
	}

	log.Printf("Monitoring %d account(s)", registry.Count())
}

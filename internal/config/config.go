package config

import (
	"log"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" default:"./data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`

	// AccountsFile optionally seeds the account registry from a YAML file
	// at startup. Accounts registered via the API are persisted regardless.
	AccountsFile string `envconfig:"ACCOUNTS_FILE" default:""`

	// RefreshInterval is the pause between the end of one refresh cycle and
	// the start of the next, per monitored account.
	RefreshInterval string `envconfig:"REFRESH_INTERVAL" default:"1m"`

	CloudflareAPIURL string `envconfig:"CLOUDFLARE_API_URL" default:"https://api.cloudflare.com/client/v4"`
	ReleaseURL       string `envconfig:"RELEASE_URL" default:"https://api.github.com/repos/cloudflare/cloudflared/releases/latest"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("TUNNELPULSE", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if Cfg.DatabasePath == "" {
		Cfg.DatabasePath = filepath.Join(Cfg.DataPath, "tunnelpulse.db")
	}
	if Cfg.LogPath == "" {
		Cfg.LogPath = filepath.Join(Cfg.DataPath, "tunnelpulse.log")
	}
}

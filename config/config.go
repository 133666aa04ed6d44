// Package config loads the service configuration: a JSON file for the
// structured parts, with environment variable overrides for credentials.
package config

import (
	"encoding/json"
	"os"

	"github.com/gagliardetto/solana-go"
)

var (
	ConfigPath = "./config/"
	ConfigFile = ConfigPath + "config.json"
	LogPath    = "./logs/"
)

type Config struct {
	Listen                 string           `json:"listen"`
	Admin                  solana.PublicKey `json:"admin"`
	SlotDurationMs         uint64           `json:"slot_duration_ms"`
	MinSnapshotWindowSlots uint64           `json:"min_snapshot_window_slots"`
	EnableStore            bool             `json:"enable_store"`
	DBUrl                  string           `json:"db_url"`
	DBScheme               string           `json:"db_scheme"`
	DBUser                 string           `json:"db_user"`
	DBPasswd               string           `json:"db_passwd"`
	DumpLog                bool             `json:"dump_log"`
}

// Load reads the JSON config and applies environment overrides for the
// database credentials so they stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Listen:                 ":8080",
		SlotDurationMs:         400,
		MinSnapshotWindowSlots: 1,
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if v := os.Getenv("AMM_DB_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("AMM_DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("AMM_DB_PASSWD"); v != "" {
		cfg.DBPasswd = v
	}
	return cfg, nil
}

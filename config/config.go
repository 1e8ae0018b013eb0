/*
Package config loads the server configuration.

PURPOSE:
  One Config struct for everything the server wires at startup. Values
  come from defaults, then an optional .env file, then BOLETIN_* environment
  variables. Command-line flags in cmd/server override the result.

KEYS (environment names):
  BOLETIN_PORT                 HTTP port (8080)
  BOLETIN_DB                   SQLite path (boletin.db)
  BOLETIN_LOG_LEVEL            debug | info | warn | error (info)
  BOLETIN_SAVE_DELAY           state write debounce (1s)
  BOLETIN_LAYOUT_SAVE_DELAY    layout write debounce (500ms)
  BOLETIN_HISTORY_LIMIT        undo entries kept (50)
  BOLETIN_ADVANCED_FROM        first grade with the advanced tier (3)
  BOLETIN_STATUS_FROM          first grade with promotion flags (3)
  BOLETIN_LAYOUTS_DIR          factory layout_grade_<g>.json files ("")
  BOLETIN_CORS_ORIGINS         comma separated (*)
  BOLETIN_CLOUD_CREDENTIALS    Firebase service account file ("")
  BOLETIN_CLOUD_OWNER          cloud document owner; empty disables sync
  BOLETIN_SYNC_INTERVAL        periodic sync, 0 disables (10m)
  BOLETIN_AUTOSAVE_DELAY       cloud auto-save debounce (5s)
  BOLETIN_IMPORT_LOCK_WINDOW   legacy import lock duration (5m)
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/report-engine/boletin"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "BOLETIN"

// Config is the server configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel string

	SaveDelay       time.Duration
	LayoutSaveDelay time.Duration
	HistoryLimit    int
	Tiers           boletin.TierPolicy
	LayoutsDir      string
	CORSOrigins     []string

	CloudCredentials string
	CloudOwner       string
	SyncInterval     time.Duration
	AutoSaveDelay    time.Duration
	ImportLockWindow time.Duration
}

// CloudEnabled reports whether a cloud owner is configured.
func (c Config) CloudEnabled() bool {
	return c.CloudOwner != ""
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if c.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history limit %d must be positive", c.HistoryLimit))
	}
	if !c.Tiers.AdvancedFrom.Valid() || !c.Tiers.StatusFrom.Valid() {
		errs = append(errs, fmt.Errorf("tier boundaries %d/%d outside grades", c.Tiers.AdvancedFrom, c.Tiers.StatusFrom))
	}
	if c.SaveDelay < 0 || c.LayoutSaveDelay < 0 || c.AutoSaveDelay < 0 || c.SyncInterval < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db", "boletin.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("save_delay", time.Second)
	v.SetDefault("layout_save_delay", 500*time.Millisecond)
	v.SetDefault("history_limit", 50)
	v.SetDefault("advanced_from", 3)
	v.SetDefault("status_from", 3)
	v.SetDefault("layouts_dir", "")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("cloud_credentials", "")
	v.SetDefault("cloud_owner", "")
	v.SetDefault("sync_interval", 10*time.Minute)
	v.SetDefault("autosave_delay", 5*time.Second)
	v.SetDefault("import_lock_window", 5*time.Minute)
}

// Load reads the configuration. dotEnvPath may be empty or point to a
// missing file; either is ignored.
func Load(dotEnvPath string) (Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return Config{}, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config.os.Stat(%s): %w", dotEnvPath, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := Config{
		Port:     v.GetInt("port"),
		DBPath:   v.GetString("db"),
		LogLevel: v.GetString("log_level"),

		SaveDelay:       v.GetDuration("save_delay"),
		LayoutSaveDelay: v.GetDuration("layout_save_delay"),
		HistoryLimit:    v.GetInt("history_limit"),
		Tiers: boletin.TierPolicy{
			AdvancedFrom: boletin.Grade(v.GetInt("advanced_from")),
			StatusFrom:   boletin.Grade(v.GetInt("status_from")),
		},
		LayoutsDir:  v.GetString("layouts_dir"),
		CORSOrigins: splitList(v.GetString("cors_origins")),

		CloudCredentials: v.GetString("cloud_credentials"),
		CloudOwner:       v.GetString("cloud_owner"),
		SyncInterval:     v.GetDuration("sync_interval"),
		AutoSaveDelay:    v.GetDuration("autosave_delay"),
		ImportLockWindow: v.GetDuration("import_lock_window"),
	}
	return cfg, cfg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

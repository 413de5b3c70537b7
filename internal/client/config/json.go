package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/bankguard/internal/flagx"
	"github.com/dmitrijs2005/bankguard/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration, so "30m" and integer nanoseconds both work. Absent fields
// leave the current value alone.
type JsonConfig struct {
	DatabaseDSN       string         `json:"database_dsn"`
	SessionDBPath     string         `json:"session_db_path"`
	Surface           string         `json:"surface"`
	SiteRoot          string         `json:"site_root"`
	PollInterval      timex.Duration `json:"poll_interval"`
	InactivityTimeout timex.Duration `json:"inactivity_timeout"`
	HiddenGrace       timex.Duration `json:"hidden_grace"`
	MaxPINAttempts    int            `json:"max_pin_attempts"`
	Language          string         `json:"language"`
	LogLevel          string         `json:"log_level"`
}

// parseJson overlays Config with values from the JSON file named by -c or
// -config. Without either flag nothing happens. Read and decode errors
// panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.SessionDBPath, jc.SessionDBPath)
	setString(&cfg.Surface, jc.Surface)
	setString(&cfg.SiteRoot, jc.SiteRoot)
	setString(&cfg.Language, jc.Language)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.InactivityTimeout.Duration > 0 {
		cfg.InactivityTimeout = jc.InactivityTimeout.Duration
	}
	if jc.HiddenGrace.Duration > 0 {
		cfg.HiddenGrace = jc.HiddenGrace.Duration
	}
	if jc.MaxPINAttempts > 0 {
		cfg.MaxPINAttempts = jc.MaxPINAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

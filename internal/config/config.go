package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Property struct {
		ID   int64  `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"property"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Wizard struct {
		TTLMinutes       int `yaml:"ttl_minutes"`
		SweepIntervalMin int `yaml:"sweep_interval_minutes"`
	} `yaml:"wizard"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		ChecklistRange  string `yaml:"checklist_range"`
		BookingsRange   string `yaml:"bookings_range"`
	} `yaml:"sheets"`

	OTA struct {
		ExportPath      string   `yaml:"export_path"`
		Platforms       []string `yaml:"platforms"`
		FeedURLs        []string `yaml:"feed_urls"`
		PollIntervalMin int      `yaml:"poll_interval_minutes"`
	} `yaml:"ota"`

	Managers []int64 `yaml:"managers"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/innkeeper.db"
	}
	if cfg.Property.ID == 0 {
		cfg.Property.ID = 1
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WizardTTL returns the expiry for abandoned wizard flows.
// Zero config means a 48h default; negative disables expiry.
func (c *Config) WizardTTL() time.Duration {
	if c.Wizard.TTLMinutes < 0 {
		return 0
	}
	if c.Wizard.TTLMinutes == 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.Wizard.TTLMinutes) * time.Minute
}

// WizardSweepInterval returns how often stale sqlite wizard rows are swept.
func (c *Config) WizardSweepInterval() time.Duration {
	if c.Wizard.SweepIntervalMin <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Wizard.SweepIntervalMin) * time.Minute
}

// OTAPollInterval returns how often the configured OTA iCal feeds are
// fetched and reconciled.
func (c *Config) OTAPollInterval() time.Duration {
	if c.OTA.PollIntervalMin <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.OTA.PollIntervalMin) * time.Minute
}

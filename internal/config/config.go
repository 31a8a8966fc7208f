package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port                int    `yaml:"port"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
		AdminAPIKey         string `yaml:"admin_api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address             string `yaml:"address"`
		Password            string `yaml:"password"`
		DB                  int    `yaml:"db"`
		SlotCacheTTLSeconds int    `yaml:"slot_cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Venue struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"venue"`

	Booking struct {
		StandardDurationMinutes   int  `yaml:"standard_duration_minutes"`
		DefaultEventCutoffMinutes int  `yaml:"default_event_cutoff_minutes"`
		MinAdvanceHours           int  `yaml:"min_advance_hours"`
		MaxAdvanceDays            int  `yaml:"max_advance_days"`
		RejectPastMidnight        bool `yaml:"reject_past_midnight"`
		RequireOfferedSlot        bool `yaml:"require_offered_slot"`
	} `yaml:"booking"`

	Waitlist struct {
		OfferTTLHours        int `yaml:"offer_ttl_hours"`
		PartySizeSlack       int `yaml:"party_size_slack"`
		SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	} `yaml:"waitlist"`

	Widget struct {
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"widget"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		ManagerChats []int64 `yaml:"manager_chats"`
		DigestHour   *int    `yaml:"digest_hour"`
	} `yaml:"telegram"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${ENV_VAR} placeholders can reference it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
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
		cfg.Database.Path = "data/tischbuch.db"
	}
	if cfg.Venue.Path == "" {
		cfg.Venue.Path = "configs/venue.yaml"
	}
	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort <= 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}

func (c *Config) VenueReloadInterval() time.Duration {
	if c.Venue.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Venue.ReloadSeconds) * time.Second
}

func (c *Config) SlotCacheTTL() time.Duration {
	if c.Redis.SlotCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.SlotCacheTTLSeconds) * time.Second
}

// StandardDuration is the fixed length of non-event reservations.
func (c *Config) StandardDuration() int {
	if c.Booking.StandardDurationMinutes <= 0 {
		return 115
	}
	return c.Booking.StandardDurationMinutes
}

// DefaultEventCutoff is how many minutes before a blocking event ordinary
// slots stop being offered.
func (c *Config) DefaultEventCutoff() int {
	if c.Booking.DefaultEventCutoffMinutes <= 0 {
		return 120
	}
	return c.Booking.DefaultEventCutoffMinutes
}

func (c *Config) MinAdvance() time.Duration {
	if c.Booking.MinAdvanceHours < 0 {
		return 0
	}
	return time.Duration(c.Booking.MinAdvanceHours) * time.Hour
}

func (c *Config) MaxAdvanceDays() int {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 60
	}
	return c.Booking.MaxAdvanceDays
}

func (c *Config) OfferTTL() time.Duration {
	if c.Waitlist.OfferTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Waitlist.OfferTTLHours) * time.Hour
}

func (c *Config) PartySizeSlack() int {
	if c.Waitlist.PartySizeSlack < 0 {
		return 0
	}
	if c.Waitlist.PartySizeSlack == 0 {
		return 2
	}
	return c.Waitlist.PartySizeSlack
}

func (c *Config) SweepInterval() time.Duration {
	if c.Waitlist.SweepIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Waitlist.SweepIntervalMinutes) * time.Minute
}

func (c *Config) WidgetRate() (float64, int) {
	rate, burst := c.Widget.RatePerSecond, c.Widget.Burst
	if rate <= 0 {
		rate = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return rate, burst
}

// DigestHour is the local hour the daily guest digest goes out. A negative
// value disables the digest.
func (c *Config) DigestHour() int {
	if c.Telegram.DigestHour == nil {
		return 9
	}
	return *c.Telegram.DigestHour
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

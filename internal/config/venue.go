package config

import (
	"fmt"
	"os"
	"time"

	"tischbuch/internal/timeofday"

	"gopkg.in/yaml.v3"
)

// OpeningBlockConfig is one contiguous opening period of a day.
type OpeningBlockConfig struct {
	Start      string `yaml:"start"` // "11:30"
	End        string `yaml:"end"`   // "22:00"
	Reservable *bool  `yaml:"reservable,omitempty"`
}

// IsReservable defaults to true when the flag is omitted.
func (b OpeningBlockConfig) IsReservable() bool {
	return b.Reservable == nil || *b.Reservable
}

// WeeklyHoursConfig assigns opening blocks to a set of weekdays.
type WeeklyHoursConfig struct {
	Days   []int                `yaml:"days"` // 0=Mon .. 6=Sun
	Blocks []OpeningBlockConfig `yaml:"blocks"`
}

// HolidayConfig represents a single closed date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-12-25"
	Name string `yaml:"name"` // "1. Weihnachtstag"
}

// ClosureConfig closes the venue for an inclusive date range.
type ClosureConfig struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Reason string `yaml:"reason"`
}

// VenueConfig is the root configuration for venue.yaml.
type VenueConfig struct {
	Name     string              `yaml:"name"`
	Timezone string              `yaml:"timezone"`
	Weekly   []WeeklyHoursConfig `yaml:"weekly"`
	DaysOff  []int               `yaml:"days_off"` // 0=Mon .. 6=Sun
	Holidays []HolidayConfig     `yaml:"holidays"`
	Closures []ClosureConfig     `yaml:"closures"`

	location *time.Location
}

// LoadVenueConfig loads and validates the venue configuration from YAML file.
func LoadVenueConfig(path string) (*VenueConfig, error) {
	if path == "" {
		path = "configs/venue.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue config: %w", err)
	}

	return ParseVenueConfig(data)
}

// ParseVenueConfig parses and validates venue YAML.
func ParseVenueConfig(data []byte) (*VenueConfig, error) {
	var cfg VenueConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse venue config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate venue config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors and resolves the time zone.
func (c *VenueConfig) Validate() error {
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	c.location = loc

	for i, w := range c.Weekly {
		if len(w.Days) == 0 {
			return fmt.Errorf("weekly[%d]: days are required", i)
		}
		for _, d := range w.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekly[%d]: invalid day %d, must be 0-6 (0=Mon, 6=Sun)", i, d)
			}
		}
		for j, b := range w.Blocks {
			if err := validateBlock(b, fmt.Sprintf("weekly[%d].blocks[%d]", i, j)); err != nil {
				return err
			}
		}
	}

	for i, d := range c.DaysOff {
		if d < 0 || d > 6 {
			return fmt.Errorf("days_off[%d]: invalid day %d, must be 0-6 (0=Mon, 6=Sun)", i, d)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(timeofday.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, cl := range c.Closures {
		from, err := time.Parse(timeofday.DateLayout, cl.From)
		if err != nil {
			return fmt.Errorf("closures[%d]: invalid from '%s', expected YYYY-MM-DD", i, cl.From)
		}
		to, err := time.Parse(timeofday.DateLayout, cl.To)
		if err != nil {
			return fmt.Errorf("closures[%d]: invalid to '%s', expected YYYY-MM-DD", i, cl.To)
		}
		if to.Before(from) {
			return fmt.Errorf("closures[%d]: to must not be before from", i)
		}
	}

	return nil
}

func validateBlock(b OpeningBlockConfig, prefix string) error {
	start, err := timeofday.ParseMinutes(b.Start)
	if err != nil {
		return fmt.Errorf("%s.start: %w", prefix, err)
	}
	end, err := timeofday.ParseMinutes(b.End)
	if err != nil {
		return fmt.Errorf("%s.end: %w", prefix, err)
	}
	if end <= start {
		return fmt.Errorf("%s: end must be after start", prefix)
	}
	return nil
}

// Location returns the venue time zone.
func (c *VenueConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsHoliday checks if a date is a holiday.
func (c *VenueConfig) IsHoliday(date string) (bool, string) {
	for _, h := range c.Holidays {
		if h.Date == date {
			return true, h.Name
		}
	}
	return false, ""
}

// ClosureOn returns the reason of a closure range covering date.
func (c *VenueConfig) ClosureOn(date string) (bool, string) {
	for _, cl := range c.Closures {
		if date >= cl.From && date <= cl.To {
			return true, cl.Reason
		}
	}
	return false, ""
}

// IsDayOff checks if a weekday (0=Mon) is a regular day off.
func (c *VenueConfig) IsDayOff(weekday int) bool {
	for _, d := range c.DaysOff {
		if d == weekday {
			return true
		}
	}
	return false
}

// BlocksFor returns the opening blocks configured for a weekday.
func (c *VenueConfig) BlocksFor(weekday int) []OpeningBlockConfig {
	var out []OpeningBlockConfig
	for _, w := range c.Weekly {
		for _, d := range w.Days {
			if d == weekday {
				out = append(out, w.Blocks...)
				break
			}
		}
	}
	return out
}

// String returns a summary of the configuration.
func (c *VenueConfig) String() string {
	return fmt.Sprintf("VenueConfig: %s (%s), %d weekly groups, %d holidays, %d closures",
		c.Name, c.Timezone, len(c.Weekly), len(c.Holidays), len(c.Closures))
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"courtavail/internal/clock"
	"courtavail/internal/fileutil"
	"courtavail/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// SecondaryConfig describes a booking in another room that still blocks the
// court, e.g. a "Pregame Meal" in the large class room.
type SecondaryConfig struct {
	Room    string `yaml:"room" json:"room"`
	Keyword string `yaml:"keyword" json:"keyword"`
}

// ResourceConfig identifies the tracked court in event location text.
type ResourceConfig struct {
	// Label is the canonical court marker, e.g. "Court #3".
	Label string `yaml:"label" json:"label"`
	// Aliases are alternative spellings ("Court 3").
	Aliases   []string          `yaml:"aliases" json:"aliases"`
	Secondary []SecondaryConfig `yaml:"secondary" json:"secondary"`
}

// SourceConfig selects and configures the event feed.
type SourceConfig struct {
	// Kind is one of "page" (headless browser scrape), "ics" or "file".
	Kind string `yaml:"kind" json:"kind"`
	// URL of the calendar page or ICS feed.
	URL string `yaml:"url" json:"url"`
	// Selector is the CSS selector of one event element ("page" only).
	Selector string `yaml:"selector" json:"selector"`
	// TimeoutSeconds bounds one fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// CacheDir holds the ETag/Last-Modified cache ("ics" only).
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Files are glob patterns of checkpoint JSON files ("file" only).
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone of the facility (e.g. "America/New_York").
	// All dates, operating hours and timestamps are interpreted in it.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a standard 5-field cron schedule (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days, starting today, in each report.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// OutputPath is where the report JSON is written after each refresh.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// Workers bounds how many dates are computed concurrently.
	Workers int `yaml:"workers" json:"workers"`

	Resource ResourceConfig `yaml:"resource" json:"resource"`

	// Hours maps lower-case weekday names to open/close times.
	Hours map[string]model.DayHours `yaml:"hours" json:"hours"`

	Source  SourceConfig  `yaml:"source" json:"source"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "America/New_York"
	defaultRefresh    = "*/15 * * * *"
	defaultHorizon    = 7
	defaultOutputPath = "data/availability.json"
	defaultSelector   = "div.vevent"
	defaultTimeout    = 60
	defaultCacheDir   = "./cache/ics-cache"
	defaultMetrics    = "/metrics"
	defaultCalendar   = "https://25livepub.collegenet.com/events-calendar/ga/atlanta/emory-wpec/woodpec/woodruff/25live-woodpec-cal"
)

func defaultHours() map[string]model.DayHours {
	return map[string]model.DayHours{
		"monday":    {Open: "6:30am", Close: "11pm"},
		"tuesday":   {Open: "6:30am", Close: "11pm"},
		"wednesday": {Open: "6:30am", Close: "11pm"},
		"thursday":  {Open: "6:30am", Close: "11pm"},
		"friday":    {Open: "6:30am", Close: "9pm"},
		"saturday":  {Open: "8am", Close: "8pm"},
		"sunday":    {Open: "8am", Close: "9pm"},
	}
}

// DefaultConfig returns an in-memory default configuration for Woodruff PE
// Center Court #3.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		RefreshCron: defaultRefresh,
		HorizonDays: defaultHorizon,
		LogLevel:    "info",
		OutputPath:  defaultOutputPath,
		Workers:     4,
		Resource: ResourceConfig{
			Label:   "Court #3",
			Aliases: []string{"Court 3"},
			Secondary: []SecondaryConfig{
				{Room: "Woodruff PE Center Large class room", Keyword: "Pregame Meal"},
			},
		},
		Hours: defaultHours(),
		Source: SourceConfig{
			Kind:           "page",
			URL:            defaultCalendar,
			Selector:       defaultSelector,
			TimeoutSeconds: defaultTimeout,
			CacheDir:       defaultCacheDir,
		},
		Metrics: MetricsConfig{Enabled: true, Path: defaultMetrics},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OutputPath == "" {
		c.OutputPath = defaultOutputPath
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Hours == nil {
		c.Hours = defaultHours()
	} else {
		// Accept "Monday" as well as "monday".
		lowered := make(map[string]model.DayHours, len(c.Hours))
		for k, v := range c.Hours {
			lowered[strings.ToLower(strings.TrimSpace(k))] = v
		}
		c.Hours = lowered
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = "page"
	}
	if c.Source.Selector == "" {
		c.Source.Selector = defaultSelector
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultTimeout
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = defaultCacheDir
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetrics
	}
}

// Validate checks the settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if strings.TrimSpace(c.Resource.Label) == "" {
		errs = append(errs, errors.New("resource.label is empty"))
	}
	if _, err := c.WeeklyHours(); err != nil {
		errs = append(errs, err)
	}

	switch c.Source.Kind {
	case "page", "ics":
		if c.Source.URL == "" {
			errs = append(errs, fmt.Errorf("source.url is required for kind %q", c.Source.Kind))
		}
	case "file":
		if len(c.Source.Files) == 0 {
			errs = append(errs, errors.New("source.files is required for kind \"file\""))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not one of page, ics, file", c.Source.Kind))
	}

	return errors.Join(errs...)
}

// Location returns the facility time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WeeklyHours converts the textual table into model.WeeklyHours, checking
// that every weekday is present and opens before it closes.
func (c *Config) WeeklyHours() (model.WeeklyHours, error) {
	out := make(model.WeeklyHours, 7)
	var errs []error

	for d := time.Sunday; d <= time.Saturday; d++ {
		key := strings.ToLower(d.String())
		dh, ok := c.Hours[key]
		if !ok {
			errs = append(errs, fmt.Errorf("hours.%s is missing", key))
			continue
		}
		open, err := clock.Parse(dh.Open, "")
		if err != nil {
			errs = append(errs, fmt.Errorf("hours.%s.open: %w", key, err))
			continue
		}
		closing, err := clock.Parse(dh.Close, "")
		if err != nil {
			errs = append(errs, fmt.Errorf("hours.%s.close: %w", key, err))
			continue
		}
		if open.Clock.Hour*60+open.Clock.Minute >= closing.Clock.Hour*60+closing.Clock.Minute {
			errs = append(errs, fmt.Errorf("hours.%s: open %s is not before close %s", key, open.Clock, closing.Clock))
			continue
		}
		out[d] = dh
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o700, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

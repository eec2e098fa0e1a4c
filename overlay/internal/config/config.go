// Package config loads the overlay configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the top-level overlay configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Pages   []PageConfig  `yaml:"pages"`
	Scan    ScanConfig    `yaml:"scan"`
	Battle  BattleConfig  `yaml:"battle"`
	Relay   RelayConfig   `yaml:"relay"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote          string        `yaml:"remote" env:"ADRPG_BROWSER_REMOTE"` // empty launches a local Chrome
	Headful         bool          `yaml:"headful" env:"ADRPG_BROWSER_HEADFUL"`
	Stealth         bool          `yaml:"stealth" env:"ADRPG_BROWSER_STEALTH"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" env:"ADRPG_BROWSER_NAVIGATE_TIMEOUT"`
}

// PageConfig is a page to overlay.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// ScanConfig tunes detection.
type ScanConfig struct {
	Interval       time.Duration `yaml:"interval" env:"ADRPG_SCAN_INTERVAL"`
	MinSize        int           `yaml:"min_size" env:"ADRPG_SCAN_MIN_SIZE"`
	Tolerance      int           `yaml:"tolerance"`
	ExtraSelectors []string      `yaml:"extra_selectors" env:"ADRPG_SCAN_EXTRA_SELECTORS" envSeparator:";"`
}

// BattleConfig tunes damage rolls and feedback.
type BattleConfig struct {
	BaseDamage     int           `yaml:"base_damage"`
	CritChance     *float64      `yaml:"crit_chance"` // 0 disables crits
	CritMultiplier int           `yaml:"crit_multiplier"`
	StrikeRevert   time.Duration `yaml:"strike_revert"`
}

// RelayConfig selects how the overlay reaches the game service. With URL
// empty the relay runs in-process against BackendURL.
type RelayConfig struct {
	URL            string        `yaml:"url" env:"ADRPG_RELAY_URL"`
	BackendURL     string        `yaml:"backend_url" env:"ADRPG_BACKEND_URL"`
	BackendTimeout time.Duration `yaml:"backend_timeout" env:"ADRPG_BACKEND_TIMEOUT"`
}

// SinkConfig is an event output.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | journal
	URL  string `yaml:"url"`  // webhook
	Path string `yaml:"path"` // journal
}

// DefaultBackendURL is where the reference game server listens.
const DefaultBackendURL = "http://localhost:5000"

// LoadFile reads a YAML file, then applies environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return finish(&cfg)
}

// Load is LoadFile for a non-empty path; otherwise it starts from an empty
// configuration.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Scan.Interval <= 0 {
		c.Scan.Interval = 2 * time.Second
	}
	if c.Scan.MinSize <= 0 {
		c.Scan.MinSize = 40
	}
	if c.Scan.Tolerance <= 0 {
		c.Scan.Tolerance = 20
	}
	if c.Battle.BaseDamage <= 0 {
		c.Battle.BaseDamage = 10
	}
	if c.Battle.CritChance == nil {
		crit := 0.15
		c.Battle.CritChance = &crit
	}
	if c.Battle.CritMultiplier <= 0 {
		c.Battle.CritMultiplier = 2
	}
	if c.Battle.StrikeRevert <= 0 {
		c.Battle.StrikeRevert = 150 * time.Millisecond
	}
	if c.Relay.URL == "" && c.Relay.BackendURL == "" {
		c.Relay.BackendURL = DefaultBackendURL
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = "page-" + strconv.Itoa(i+1)
		}
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if p := c.Battle.CritChance; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("battle.crit_chance %v outside [0, 1]", *p))
	}
	for i, p := range c.Pages {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("pages[%d]: url is required", i))
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: webhook needs url", i))
			}
		case "journal":
			if s.Path == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: journal needs path", i))
			}
		default:
			errs = append(errs, fmt.Errorf("sinks[%d]: unknown type %q", i, s.Type))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

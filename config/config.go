package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSections is the fixed, ordered set of listing sections.
var DefaultSections = []string{"popular", "trending", "recommended"}

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	Sections         []string
	Schedule         string
	RunOnStart       bool
	DetailWorkers    int
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	DataDir          string
	DatabaseURL      string
	DedupeSize       int
	ListenAddr       string
	Verbose          bool
}

// DefaultConfig returns conservative defaults for the recipe site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.food.com/recipe/all",
		Sections:         append([]string(nil), DefaultSections...),
		Schedule:         "0 * * * *",
		RunOnStart:       true,
		DetailWorkers:    4,
		Parallelism:      4,
		Delay:            0,
		RandomDelay:      0,
		Timeout:          20 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,
		DataDir:          "data",
		DatabaseURL:      "",
		DedupeSize:       100000,
		ListenAddr:       ":3000",
		Verbose:          false,
	}
}

// SectionURL returns the listing page URL for a section.
func (c *Config) SectionURL(section string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + url.PathEscape(section)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.Sections) == 0 {
		return fmt.Errorf("at least one section is required")
	}
	seen := make(map[string]struct{}, len(c.Sections))
	for _, section := range c.Sections {
		if strings.TrimSpace(section) == "" {
			return fmt.Errorf("section names cannot be empty")
		}
		if _, ok := seen[section]; ok {
			return fmt.Errorf("duplicate section %q", section)
		}
		seen[section] = struct{}{}
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if c.DetailWorkers <= 0 {
		return fmt.Errorf("detail workers must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("dedupe size must be positive")
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given .env files without overriding
// values already present in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a Go duration string.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvList splits key on commas, dropping empty entries.
func EnvList(key string) ([]string, bool) {
	value, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}

// ApplyEnv overrides cfg with any RECIPES_* variables that are set.
// DATABASE_URL is honoured when RECIPES_DATABASE_URL is absent.
func ApplyEnv(cfg *Config) error {
	if value, ok := EnvString("RECIPES_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := EnvList("RECIPES_SECTIONS"); ok {
		cfg.Sections = value
	}
	if value, ok := EnvString("RECIPES_SCHEDULE"); ok {
		cfg.Schedule = value
	}
	if value, ok := EnvString("RECIPES_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok := EnvString("RECIPES_DATA_DIR"); ok {
		cfg.DataDir = value
	}
	if value, ok := EnvString("RECIPES_LISTEN_ADDR"); ok {
		cfg.ListenAddr = value
	}
	if value, ok := EnvString("RECIPES_DATABASE_URL"); ok {
		cfg.DatabaseURL = value
	} else if value, ok := EnvString("DATABASE_URL"); ok {
		cfg.DatabaseURL = value
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"RECIPES_DETAIL_WORKERS", &cfg.DetailWorkers},
		{"RECIPES_PARALLEL", &cfg.Parallelism},
		{"RECIPES_DEDUPE_SIZE", &cfg.DedupeSize},
	}
	for _, entry := range ints {
		value, ok, err := EnvInt(entry.key)
		if err != nil {
			return err
		}
		if ok {
			*entry.target = value
		}
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"RECIPES_DELAY", &cfg.Delay},
		{"RECIPES_RANDOM_DELAY", &cfg.RandomDelay},
		{"RECIPES_TIMEOUT", &cfg.Timeout},
	}
	for _, entry := range durations {
		value, ok, err := EnvDuration(entry.key)
		if err != nil {
			return err
		}
		if ok {
			*entry.target = value
		}
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{"RECIPES_RUN_ON_START", &cfg.RunOnStart},
		{"RECIPES_RESPECT_ROBOTS", &cfg.RespectRobotsTxt},
		{"RECIPES_VERBOSE", &cfg.Verbose},
	}
	for _, entry := range bools {
		value, ok, err := EnvBool(entry.key)
		if err != nil {
			return err
		}
		if ok {
			*entry.target = value
		}
	}

	return nil
}

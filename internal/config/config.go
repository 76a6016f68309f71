// Package config loads the runtime configuration: built-in defaults,
// overlaid by an optional YAML file, overlaid by KIOKU_* environment
// variables. A .env file in the working directory is folded into the
// environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "6m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Game tunes the update loop.
type Game struct {
	PollInterval     Duration `yaml:"poll_interval"`
	EnergyCheckEvery Duration `yaml:"energy_check_every"`
	RegenPeriod      Duration `yaml:"regen_period"`
}

// Reminder tunes the due-cards reminder.
type Reminder struct {
	Enabled    bool     `yaml:"enabled"`
	Every      Duration `yaml:"every"`
	QuietFrom  int      `yaml:"quiet_from"`
	QuietUntil int      `yaml:"quiet_until"`
}

// Config is the full runtime configuration.
type Config struct {
	DBPath     string   `yaml:"db_path"`
	CorpusPath string   `yaml:"corpus_path"`
	Lang       string   `yaml:"lang"`
	Verbose    bool     `yaml:"verbose"`
	Game       Game     `yaml:"game"`
	Reminder   Reminder `yaml:"reminder"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: "kioku.db",
		Reminder: Reminder{
			Enabled:    true,
			Every:      Duration(time.Hour),
			QuietFrom:  22,
			QuietUntil: 8,
		},
	}
}

// Load builds the effective configuration. An empty path skips the file
// layer; a named file that does not exist is an error.
func Load(path string) (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KIOKU_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KIOKU_CORPUS_PATH"); v != "" {
		cfg.CorpusPath = v
	}
	if v := os.Getenv("KIOKU_LANG"); v != "" {
		cfg.Lang = v
	}
	if v := os.Getenv("KIOKU_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
	if v := os.Getenv("KIOKU_REMINDER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Reminder.Enabled = b
		}
	}
}

// Package config holds the runtime configuration of a tracking run.
// Values are taken from a yaml config file or environment variables or
// both. A .env file next to the binary is loaded first if present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Debug is set by the cli and controls the log level as well as the
// persistence of debugging data such as page snapshots.
var Debug bool

type contextKey string

// LoggerCtxKey is the context key under which a request-scoped logger
// is stored, see the log package.
const LoggerCtxKey contextKey = "logger"

func GetLogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// ErrConfiguration marks fatal configuration problems. A run must not
// process any city when the configuration is invalid.
var ErrConfiguration = errors.New("configuration error")

// WriterConfig defines the necessary parameters to make a new writer
// which is responsible for persisting the finished run report.
type WriterConfig struct {
	Type   string `yaml:"type" env:"WRITER_TYPE" env-default:"file"`
	OutDir string `yaml:"out_dir" env:"WRITER_OUT_DIR" env-default:"output"`
	URI    string `yaml:"uri" env:"WRITER_URI"`
	DryRun bool   `yaml:"dryrun" env:"WRITER_DRYRUN"`
}

// RunConfig defines the timing and browser parameters of a run. It is
// loaded once and shared read-only by the extractor and the tracker.
type RunConfig struct {
	Headless          bool   `yaml:"headless" env:"HEADLESS" env-default:"true"`
	UserAgent         string `yaml:"user_agent" env:"USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	MinDelaySec       int    `yaml:"min_delay" env:"MIN_DELAY" env-default:"3"`
	MaxDelaySec       int    `yaml:"max_delay" env:"MAX_DELAY" env-default:"12"`
	LongPauseEvery    int    `yaml:"long_pause_every" env:"LONG_PAUSE_EVERY" env-default:"25"`
	LongPauseMinSec   int    `yaml:"long_pause_min" env:"LONG_PAUSE_MIN" env-default:"15"`
	LongPauseMaxSec   int    `yaml:"long_pause_max" env:"LONG_PAUSE_MAX" env-default:"30"`
	PageTimeoutMS     int    `yaml:"page_timeout" env:"PAGE_TIMEOUT" env-default:"30000"`
	SelectorTimeoutMS int    `yaml:"selector_timeout" env:"SELECTOR_TIMEOUT" env-default:"10000"`
	MaxRetries        int    `yaml:"max_retries" env:"MAX_RETRIES" env-default:"3"`
	MaxPages          int    `yaml:"max_pages" env:"MAX_PAGES" env-default:"5"`
	MaxConsecFailures int    `yaml:"max_consecutive_failures" env:"MAX_CONSECUTIVE_FAILURES" env-default:"5"`
	DebugDir          string `yaml:"debug_dir" env:"DEBUG_DIR" env-default:"logs"`
}

// Config is the overall structure of the tracker configuration.
type Config struct {
	Run    RunConfig    `yaml:"run"`
	Writer WriterConfig `yaml:"writer"`
}

// NewConfig reads the configuration from the given file, falling back
// to env vars and defaults for anything the file does not set. A
// missing file is not an error, env vars and defaults then apply.
func NewConfig(configPath string) (*Config, error) {
	// ignore a missing .env, it is purely optional
	_ = godotenv.Load()

	var config Config
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	if err := config.Run.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (rc *RunConfig) validate() error {
	if rc.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be at least 1", ErrConfiguration)
	}
	if rc.MinDelaySec > rc.MaxDelaySec {
		return fmt.Errorf("%w: min_delay must not exceed max_delay", ErrConfiguration)
	}
	if rc.LongPauseMinSec > rc.LongPauseMaxSec {
		return fmt.Errorf("%w: long_pause_min must not exceed long_pause_max", ErrConfiguration)
	}
	if rc.LongPauseEvery < 1 {
		return fmt.Errorf("%w: long_pause_every must be at least 1", ErrConfiguration)
	}
	if rc.PageTimeoutMS <= 0 || rc.SelectorTimeoutMS <= 0 {
		return fmt.Errorf("%w: page_timeout and selector_timeout must be positive", ErrConfiguration)
	}
	return nil
}

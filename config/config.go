// Package config loads the organizer settings from defaults, command line
// flags, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	defaultAudioDir    = "./audio"
	defaultExtension   = ".mp3"
	defaultLogLevel    = "WARNING"
	defaultEnvironment = "development"
)

// Config is the application configuration.
type Config struct {
	AudioDir    string
	Extension   string
	LogLevel    string
	SentryDSN   string
	Environment string
	Watch       bool
	Mute        bool
	Seed        uint64
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		AudioDir:    defaultAudioDir,
		Extension:   defaultExtension,
		LogLevel:    defaultLogLevel,
		Environment: defaultEnvironment,
	}
}

// BindFlags registers the configuration flags on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.AudioDir, "audio-dir", "d", c.AudioDir, "Directory with audio files")
	fs.StringVarP(&c.Extension, "ext", "e", c.Extension, "File extension of tracks to load")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: DEBUG, INFO, WARNING, ERROR")
	fs.StringVar(&c.SentryDSN, "sentry-dsn", c.SentryDSN, "Sentry DSN, empty disables error reporting")
	fs.StringVar(&c.Environment, "env", c.Environment, "Environment name reported to Sentry")
	fs.BoolVarP(&c.Watch, "watch", "w", c.Watch, "Watch the audio directory for added and removed files")
	fs.BoolVar(&c.Mute, "mute", c.Mute, "Do not open the audio device")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Seed for the shuffle engine, 0 picks a random seed")
}

// LoadDotEnv loads variables from path into the process environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
// Priority: environment variables > command line flags > defaults.
func (c *Config) ApplyEnv() error {
	var errs []error

	if v := os.Getenv("AUDIO_DIR"); v != "" {
		c.AudioDir = v
	}
	if v := os.Getenv("TRACK_EXTENSION"); v != "" {
		c.Extension = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.SentryDSN = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing WATCH: %w", err))
		} else {
			c.Watch = watch
		}
	}
	if v := os.Getenv("MUTE"); v != "" {
		mute, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing MUTE: %w", err))
		} else {
			c.Mute = mute
		}
	}
	if v := os.Getenv("SHUFFLE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing SHUFFLE_SEED: %w", err))
		} else {
			c.Seed = seed
		}
	}

	return errors.Join(errs...)
}

// Validate normalizes the extension and resolves the audio directory to an
// absolute path.
func (c *Config) Validate() error {
	if c.AudioDir == "" {
		return errors.New("audio directory must not be empty")
	}

	ext := strings.ToLower(strings.TrimSpace(c.Extension))
	if ext == "" || ext == "." {
		return errors.New("track extension must not be empty")
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Extension = ext

	absDir, err := filepath.Abs(c.AudioDir)
	if err != nil {
		return fmt.Errorf("resolving audio directory %s: %w", c.AudioDir, err)
	}
	c.AudioDir = absDir

	return nil
}

// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/promptqa/copilot/internal/domain"
)

// viper appends another underscore when joining with key names, yielding
// COPILOT__ prefixed environment variables.
const envPrefix = "COPILOT_"

type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string
}

// New loads configuration from the given directory (or direct .toml path).
// An empty configDir falls back to the OS-specific default location. A
// default config file is written on first run.
func New(configDir string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
	}

	c.defaults()

	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	c.viper.AutomaticEnv()

	if err := c.load(configDir); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	c.watch()

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "localhost")
	c.viper.SetDefault("port", 8787)
	c.viper.SetDefault("baseUrl", "")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("databasePath", "")
	c.viper.SetDefault("adminToken", "")
	c.viper.SetDefault("requirePro", false)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("lemonSqueezy.webhookSecret", "")
	c.viper.SetDefault("lemonSqueezy.proVariantIds", "")
	c.viper.SetDefault("lemonSqueezy.checkoutUrl", "")
	c.viper.SetDefault("openai.apiKey", "")
	c.viper.SetDefault("openai.model", "gpt-4.1-mini")
	c.viper.SetDefault("openai.timeoutSeconds", 30)
	c.viper.SetDefault("openai.mock", false)
	c.viper.SetDefault("httpTimeouts.readTimeout", 60)
	c.viper.SetDefault("httpTimeouts.writeTimeout", 120)
	c.viper.SetDefault("httpTimeouts.idleTimeout", 180)
}

func (c *AppConfig) load(configDir string) error {
	configPath, err := resolveConfigPath(configDir)
	if err != nil {
		return err
	}
	c.configPath = configPath

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return err
		}
		log.Info().Str("path", configPath).Msg("Created default configuration file")
	}

	c.viper.SetConfigFile(configPath)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// watch reloads the log level when the config file changes on disk, so an
// operator can turn up logging on a live deployment.
func (c *AppConfig) watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}
		setLogLevel(c.Config.LogLevel)
		log.Debug().Str("event", e.Name).Msg("Config file reloaded")
	})
	c.viper.WatchConfig()
}

func resolveConfigPath(configDir string) (string, error) {
	if configDir != "" {
		if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
			return configDir, nil
		}
		if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
			return configDir, nil
		}
		return filepath.Join(configDir, "config.toml"), nil
	}

	return filepath.Join(GetDefaultConfigDir(), "config.toml"), nil
}

// GetDefaultConfigDir returns the OS-specific default config directory.
func GetDefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "copilot")
}

// GetDatabasePath returns the configured database path, defaulting to a
// copilot.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	return filepath.Join(filepath.Dir(c.configPath), "copilot.db")
}

// ApplyLogConfig configures the global zerolog logger from the loaded
// configuration. Output goes to stderr, or to the configured log file.
func (c *AppConfig) ApplyLogConfig() {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if c.Config.LogPath != "" {
		f, err := os.OpenFile(c.Config.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Error().Err(err).Str("path", c.Config.LogPath).Msg("Failed to open log file, falling back to stderr")
		} else {
			out = f
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	setLogLevel(c.Config.LogLevel)
}

func setLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "TRACE":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

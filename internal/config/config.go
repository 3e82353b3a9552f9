// Package config provides configuration management for the BMO face
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Reversion policies for timed emotions
const (
	PolicySuperseded = "superseded"
	PolicyLastFired  = "last_fired"
)

// Config holds all application configuration
type Config struct {
	Brain       BrainConfig       `mapstructure:"brain"`
	Avatar      AvatarConfig      `mapstructure:"avatar"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Sim         SimConfig         `mapstructure:"sim"`
}

// BrainConfig configures the link to the brain
type BrainConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ContractFile     string        `mapstructure:"contract_file"` // empty uses the built-in contract
}

// AvatarConfig configures the face state machine
type AvatarConfig struct {
	ReversionPolicy string `mapstructure:"reversion_policy"` // superseded or last_fired
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Dir        string `mapstructure:"dir"`
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	MaxHistory int    `mapstructure:"max_history"`
}

// MetricsConfig configures the Prometheus listener
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // empty disables it
}

// CalibrationConfig configures the background color preference
type CalibrationConfig struct {
	File string `mapstructure:"file"`
}

// SimConfig configures the demo brain
type SimConfig struct {
	Listen          string        `mapstructure:"listen"`
	EmotionDuration time.Duration `mapstructure:"emotion_duration"`
	ChunkDelay      time.Duration `mapstructure:"chunk_delay"`
	Model           string        `mapstructure:"model"` // Gemini model, used when GEMINI_API_KEY is set
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	dir, _ := GetConfigDir()
	return &Config{
		Brain: BrainConfig{
			URL:              "ws://localhost:8765",
			HandshakeTimeout: 10 * time.Second,
		},
		Avatar: AvatarConfig{
			ReversionPolicy: PolicySuperseded,
		},
		Logging: LoggingConfig{
			Dir:        filepath.Join(dir, "logs"),
			Level:      "debug",
			Console:    true,
			MaxHistory: 1000,
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
		Calibration: CalibrationConfig{
			File: filepath.Join(dir, "preferences.yaml"),
		},
		Sim: SimConfig{
			Listen:          "0.0.0.0:8765",
			EmotionDuration: 2 * time.Second,
			ChunkDelay:      150 * time.Millisecond,
			Model:           "gemini-2.0-flash",
		},
	}
}

// Validate rejects settings the face cannot run with
func (c *Config) Validate() error {
	if c.Brain.URL == "" {
		return errors.New("brain.url is empty")
	}
	if !strings.HasPrefix(c.Brain.URL, "ws://") && !strings.HasPrefix(c.Brain.URL, "wss://") {
		return fmt.Errorf("brain.url %q must use ws:// or wss://", c.Brain.URL)
	}
	switch c.Avatar.ReversionPolicy {
	case PolicySuperseded, PolicyLastFired:
	default:
		return fmt.Errorf("avatar.reversion_policy %q must be %s or %s",
			c.Avatar.ReversionPolicy, PolicySuperseded, PolicyLastFired)
	}
	return nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	// Environment variable overrides: BMOFACE_BRAIN_URL, BMOFACE_LOGGING_LEVEL, ...
	v.SetEnvPrefix("BMOFACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The web face read its endpoint from this variable; keep honoring it.
	_ = v.BindEnv("brain.url", "BMOFACE_BRAIN_URL", "REACT_APP_BRAIN_WS_URL")

	setDefaults(v, DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("brain.url", cfg.Brain.URL)
	v.SetDefault("brain.handshake_timeout", cfg.Brain.HandshakeTimeout)
	v.SetDefault("brain.contract_file", cfg.Brain.ContractFile)
	v.SetDefault("avatar.reversion_policy", cfg.Avatar.ReversionPolicy)
	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.max_history", cfg.Logging.MaxHistory)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("calibration.file", cfg.Calibration.File)
	v.SetDefault("sim.listen", cfg.Sim.Listen)
	v.SetDefault("sim.emotion_duration", cfg.Sim.EmotionDuration)
	v.SetDefault("sim.chunk_delay", cfg.Sim.ChunkDelay)
	v.SetDefault("sim.model", cfg.Sim.Model)
}

// Load reads configuration from ~/.bmoface/config.yaml and the environment
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFrom(dir)
}

// LoadFrom reads configuration from dir, writing a default file there when
// none exists yet.
func LoadFrom(dir string) (*Config, error) {
	return load(dir, true)
}

// Read is Load without the first-run write: a missing file leaves the
// defaults and the environment in effect and creates nothing.
func Read() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return DefaultConfig(), err
	}
	return ReadFrom(dir)
}

// ReadFrom is LoadFrom without the first-run write
func ReadFrom(dir string) (*Config, error) {
	return load(dir, false)
}

func load(dir string, create bool) (*Config, error) {
	cfg := DefaultConfig()

	if create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cfg, err
		}
	}

	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
		if create {
			if err := SaveTo(dir, cfg); err != nil {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveTo writes cfg as dir/config.yaml
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("brain.url", cfg.Brain.URL)
	v.Set("brain.handshake_timeout", cfg.Brain.HandshakeTimeout.String())
	v.Set("brain.contract_file", cfg.Brain.ContractFile)
	v.Set("avatar.reversion_policy", cfg.Avatar.ReversionPolicy)
	v.Set("logging.dir", cfg.Logging.Dir)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.console", cfg.Logging.Console)
	v.Set("logging.max_history", cfg.Logging.MaxHistory)
	v.Set("metrics.listen", cfg.Metrics.Listen)
	v.Set("calibration.file", cfg.Calibration.File)
	v.Set("sim.listen", cfg.Sim.Listen)
	v.Set("sim.emotion_duration", cfg.Sim.EmotionDuration.String())
	v.Set("sim.chunk_delay", cfg.Sim.ChunkDelay.String())
	v.Set("sim.model", cfg.Sim.Model)

	return v.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".bmoface"), nil
}

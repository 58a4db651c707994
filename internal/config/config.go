package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	MaxRows     int    `mapstructure:"max_rows" yaml:"max_rows"`

	// Chart defaults
	ChartWidth  int    `mapstructure:"chart_width" yaml:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height" yaml:"chart_height"`
	ChartFormat string `mapstructure:"chart_format" yaml:"chart_format"`
	// Palette maps a condition to a hex colour. Keys are matched
	// case-insensitively since viper lowercases them.
	Palette      map[string]string `mapstructure:"palette" yaml:"palette,omitempty"`
	TrialPalette map[string]string `mapstructure:"trial_palette" yaml:"trial_palette,omitempty"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Dir returns ~/.recoveryplot.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".recoveryplot"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.recoveryplot/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("RECOVERYPLOT")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8501")
	v.SetDefault("max_upload_mb", 20)
	v.SetDefault("max_rows", 100000)
	v.SetDefault("chart_width", 900)
	v.SetDefault("chart_height", 500)
	v.SetDefault("chart_format", "png")
	v.SetDefault("palette", map[string]string{})
	v.SetDefault("trial_palette", map[string]string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set assigns a single key as accepted by `config set`. Palette entries use
// dotted keys such as "palette.VNS".
func (c *Global) Set(key, val string) error {
	switch {
	case strings.HasPrefix(key, "palette."):
		c.Palette = setColour(c.Palette, strings.TrimPrefix(key, "palette."), val)
		return nil
	case strings.HasPrefix(key, "trial_palette."):
		c.TrialPalette = setColour(c.TrialPalette, strings.TrimPrefix(key, "trial_palette."), val)
		return nil
	}
	switch key {
	case "listen_addr":
		c.ListenAddr = val
	case "max_upload_mb", "max_rows", "chart_width", "chart_height":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "max_upload_mb":
			c.MaxUploadMB = i
		case "max_rows":
			c.MaxRows = i
		case "chart_width":
			c.ChartWidth = i
		case "chart_height":
			c.ChartHeight = i
		}
	case "chart_format":
		switch strings.ToLower(val) {
		case "png", "svg":
			c.ChartFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid chart_format: %s (use png or svg)", val)
		}
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setColour(m map[string]string, cond, val string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	cond = strings.ToLower(strings.TrimSpace(cond))
	if val == "" {
		delete(m, cond)
		return m
	}
	m[cond] = val
	return m
}

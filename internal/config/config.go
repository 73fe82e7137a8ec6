package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" json:"format"`
	Verbose bool   `mapstructure:"verbose" json:"verbose"`

	// Session settings
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout"`
	SocketTemplate string        `mapstructure:"socket_template" json:"socket_template"`
	MetricsAddr    string        `mapstructure:"metrics_addr" json:"metrics_addr"`

	// Rendering settings
	Prefix       int  `mapstructure:"prefix" json:"prefix"`
	ShowTime     bool `mapstructure:"show_time" json:"show_time"`
	ShowDuration bool `mapstructure:"show_duration" json:"show_duration"`

	// Default values for commands
	Defaults DefaultsConfig `mapstructure:"defaults" json:"defaults"`
}

// DefaultsConfig holds default values for the trace command
type DefaultsConfig struct {
	Slow    int      `mapstructure:"slow" json:"slow"`
	Output  string   `mapstructure:"output" json:"output"`
	Append  bool     `mapstructure:"append" json:"append"`
	Tracers []string `mapstructure:"tracers" json:"tracers"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:         "text",
		Verbose:        false,
		Timeout:        5 * time.Second,
		SocketTemplate: "/tmp/calltap-%d.sock",
		Prefix:         2,
		ShowTime:       false,
		ShowDuration:   true,
		Defaults: DefaultsConfig{
			Slow: 250,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("timeout", cfg.Timeout.String())
	v.SetDefault("socket_template", cfg.SocketTemplate)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("show_time", cfg.ShowTime)
	v.SetDefault("show_duration", cfg.ShowDuration)
	v.SetDefault("defaults.slow", cfg.Defaults.Slow)
	v.SetDefault("defaults.output", cfg.Defaults.Output)
	v.SetDefault("defaults.append", cfg.Defaults.Append)
	v.SetDefault("defaults.tracers", cfg.Defaults.Tracers)
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	} else {
		// Add config paths (in order of precedence, lowest first)
		v.SetConfigName("calltap")
		v.AddConfigPath("/etc/calltap/")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "calltap"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	// Environment variables
	v.SetEnvPrefix("CALLTAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("defaults.slow", "CALLTAP_SLOW")
	v.BindEnv("defaults.output", "CALLTAP_OUTPUT")

	cfg := Default()
	setDefaults(v, cfg)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigType("yaml")
	return v.SafeWriteConfigAs(path)
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	if path := findConfigFile(); path != "" {
		return path
	}

	v := viper.New()
	v.SetConfigName("calltap")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/calltap/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "calltap"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}
	return ""
}

// findConfigFile looks for a project config in the current directory, then
// a dot file in the home directory.
func findConfigFile() string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	for _, dir := range dirs {
		for _, name := range []string{".calltap.yaml", ".calltap.yml", "calltap.yaml"} {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

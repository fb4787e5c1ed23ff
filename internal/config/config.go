// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and writes Wireline's configuration. Precedence is
// flags > environment (WIRELINE_*) > config file > defaults. Secrets are
// never part of the configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the application configuration tree as it appears in
// wireline.yaml.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Language string         `mapstructure:"language" yaml:"language"`
	Serial   SerialDefaults `mapstructure:"serial" yaml:"serial"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	Trust    TrustConfig    `mapstructure:"trust" yaml:"trust"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig selects the trust-store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// SerialDefaults are the line parameters used when a target doesn't specify
// its own.
type SerialDefaults struct {
	Baud        int    `mapstructure:"baud" yaml:"baud"`
	DataBits    int    `mapstructure:"data_bits" yaml:"data_bits"`
	Parity      string `mapstructure:"parity" yaml:"parity"`
	StopBits    int    `mapstructure:"stop_bits" yaml:"stop_bits"`
	FlowControl string `mapstructure:"flow_control" yaml:"flow_control"`
}

// SSHConfig holds transport-level knobs. Timeouts are in seconds.
type SSHConfig struct {
	ConnectTimeout int `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// TrustConfig holds the host-key prompt deadline in seconds.
type TrustConfig struct {
	PromptTimeout int `mapstructure:"prompt_timeout" yaml:"prompt_timeout"`
}

// LogConfig selects log level and optional log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Defaults returns the default configuration values keyed by viper path.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":       "sqlite",
		"database.dsn":        "./wireline.db",
		"language":            "en",
		"serial.baud":         115200,
		"serial.data_bits":    8,
		"serial.parity":       "none",
		"serial.stop_bits":    1,
		"serial.flow_control": "none",
		"ssh.connect_timeout": 10,
		"trust.prompt_timeout": 300,
		"log.level":           "info",
		"log.file":            "",
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Wireline")
		default: // Linux, macOS, etc.
			configDir = "/etc/wireline"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "wireline")
	}

	return filepath.Join(configDir, "wireline.yaml"), nil
}

// UserConfigPath exposes the user config file location for first-run
// creation and for telling the user where their settings live.
func UserConfigPath() (string, error) { return getConfigPath(false) }

// LoadConfig builds a config of type T from defaults, config files, the
// environment and the command's flags, in ascending precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("wireline")
	v.SetConfigType("yaml")

	// An explicit --config path wins over the search locations.
	if explicitFile != nil && *explicitFile != "" {
		v.SetConfigFile(*explicitFile)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if explicitFile == nil || *explicitFile == "" {
				return c, err
			}
			// An explicitly named file must exist.
			return c, fmt.Errorf("could not read config file %s: %w", *explicitFile, err)
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("wireline")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// WriteConfigFile persists c to the user (or system) config location with
// restrictive permissions.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/partition"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PREINSTALL"

// Config holds all configuration for the preinstall service
type Config struct {
	DBPath          string                 `mapstructure:"db_path"`
	Port            string                 `mapstructure:"port"`
	LogLevel        string                 `mapstructure:"log_level"`
	Overhead        float64                `mapstructure:"overhead"`
	SecondInterface bool                   `mapstructure:"second_interface"`
	IPValidation    bool                   `mapstructure:"ip_validation"`
	Locations       []domain.Location      `mapstructure:"locations"`
	Volumes         []partition.VolumeSpec `mapstructure:"volumes"`
}

// DefaultLocations are the sites offered when none are configured.
func DefaultLocations() []domain.Location {
	return []domain.Location{
		{Name: "dc1", Domain: "dc1.example.com", Description: "Primary datacenter"},
		{Name: "dc2", Domain: "dc2.example.com", Description: "Secondary datacenter"},
		{Name: "lab", Domain: "lab.example.com", Description: "Lab"},
	}
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DBPath:          "~/preinstall/data/preinstall.db",
		Port:            "8080",
		LogLevel:        "info",
		Overhead:        partition.DefaultOverhead,
		SecondInterface: true,
		IPValidation:    true,
		Locations:       DefaultLocations(),
		Volumes:         partition.DefaultVolumes(),
	}
}

// Load layers an optional config file and PREINSTALL_* environment
// variables over the defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("db_path", c.DBPath)
	v.SetDefault("port", c.Port)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("overhead", c.Overhead)
	v.SetDefault("second_interface", c.SecondInterface)
	v.SetDefault("ip_validation", c.IPValidation)
	v.SetDefault("locations", c.Locations)
	v.SetDefault("volumes", c.Volumes)
}

// Validate checks the settings that cannot be caught by decoding.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if _, err := c.Planner(); err != nil {
		errs = append(errs, err)
	}
	for i, loc := range c.Locations {
		if loc.Name == "" {
			errs = append(errs, fmt.Errorf("location %d has no name", i))
		}
	}
	return errors.Join(errs...)
}

// Planner builds the partition planner described by the configuration.
func (c *Config) Planner() (*partition.Planner, error) {
	return partition.NewPlanner(
		partition.WithOverhead(c.Overhead),
		partition.WithDefaults(c.Volumes),
	)
}

// DatabasePath returns DBPath with a leading ~ expanded.
func (c *Config) DatabasePath() string {
	return c.expandPath(c.DBPath)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}

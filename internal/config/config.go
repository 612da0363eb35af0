// Package config holds the engine configuration for netmapper. The CLI layer
// populates it from flags and a YAML file; the scan engine only consumes it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netmapper/internal/errors"
	"github.com/anstrom/netmapper/internal/logging"
)

// Mode selects the scan depth.
type Mode string

const (
	// ModeDiscovery is the fast, shallow mode for enumeration and
	// rogue-device detection.
	ModeDiscovery Mode = "discovery"
	// ModeLocal is the slow, deep mode for comprehensive fingerprinting.
	ModeLocal Mode = "local"
)

// Config represents the complete engine configuration.
type Config struct {
	Scan    ScanConfig     `yaml:"scan" json:"scan"`
	Vendor  VendorConfig   `yaml:"vendor" json:"vendor"`
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScanConfig holds scanning-related settings.
type ScanConfig struct {
	// Scan mode: discovery or local
	Mode Mode `yaml:"mode" json:"mode" validate:"oneof=discovery local"`

	// Enable detailed scanning (local mode)
	Detailed bool `yaml:"detailed" json:"detailed"`

	// Session-wide deadline for the whole scan
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Per-host probing budget
	HostTimeout time.Duration `yaml:"host_timeout" json:"host_timeout" validate:"gt=0"`

	// Concurrency ceiling for in-flight host probes
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans" validate:"gt=0"`

	// Ceiling on the number of addresses a target spec may expand to
	MaxTargets int `yaml:"max_targets" json:"max_targets" validate:"gt=0"`

	// Exclude network and broadcast addresses when expanding CIDR blocks
	HostsOnly bool `yaml:"hosts_only" json:"hosts_only"`

	// Retry configuration for unresponsive hosts
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Well-known ports probed in discovery mode
	QuickScanPorts []int `yaml:"quick_scan_ports" json:"quick_scan_ports" validate:"min=1,dive,gt=0,lte=65535"`

	// Ports probed by default in local mode
	DefaultPorts []int `yaml:"default_ports" json:"default_ports" validate:"min=1,dive,gt=0,lte=65535"`

	// Port range specification for detailed local scans (nmap syntax)
	DetailedPortRange string `yaml:"detailed_port_range" json:"detailed_port_range"`

	// Feature toggles
	ServiceDetection bool `yaml:"service_detection" json:"service_detection"`
	OSDetection      bool `yaml:"os_detection" json:"os_detection"`
	ProtocolAnalysis bool `yaml:"protocol_analysis" json:"protocol_analysis"`
}

// RetryConfig holds retry settings for unresponsive hosts. Each attempt
// consumes its own slice of the host's timeout budget.
type RetryConfig struct {
	// Maximum number of probe attempts per host
	Attempts int `yaml:"attempts" json:"attempts" validate:"gte=1"`

	// Delay before the first retry
	Delay time.Duration `yaml:"delay" json:"delay" validate:"gte=0"`

	// Exponential backoff multiplier applied per retry
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" validate:"gte=1"`
}

// VendorConfig holds MAC vendor lookup settings.
type VendorConfig struct {
	// Enable vendor resolution
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Remote lookup endpoint, queried on local-table misses
	RemoteURL string `yaml:"remote_url" json:"remote_url"`

	// Timeout for a single remote lookup
	RemoteTimeout time.Duration `yaml:"remote_timeout" json:"remote_timeout" validate:"gt=0"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Mode:               ModeDiscovery,
			Detailed:           false,
			Timeout:            30 * time.Second,
			HostTimeout:        5 * time.Second,
			MaxConcurrentScans: 10,
			MaxTargets:         65536,
			Retry: RetryConfig{
				Attempts:          3,
				Delay:             200 * time.Millisecond,
				BackoffMultiplier: 2.0,
			},
			QuickScanPorts: []int{
				21, 22, 23, 25, 53, 80, 110, 143, 443, 993, 995,
				3306, 3389, 5432, 8080, 8443,
			},
			DefaultPorts: []int{
				21, 22, 23, 25, 53, 80, 110, 143, 443, 631, 993, 995,
				1883, 3306, 3389, 5432, 8080, 8443, 9100,
			},
			DetailedPortRange: "1-1024",
			ServiceDetection:  true,
			OSDetection:       true,
			ProtocolAnalysis:  true,
		},
		Vendor: VendorConfig{
			Enabled:       true,
			RemoteURL:     "https://api.maclookup.app/v2/macs",
			RemoteTimeout: 3 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file, starting from defaults.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse YAML config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to write config file", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("invalid configuration value (%s constraint)", fe.Tag()),
				fe.Namespace(), fe.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "configuration validation failed", err)
	}

	// Cross-field checks the struct tags cannot express.
	if c.Scan.HostTimeout > c.Scan.Timeout {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"host timeout cannot exceed the session timeout",
			"scan.host_timeout", c.Scan.HostTimeout)
	}
	if c.Scan.Detailed && c.Scan.Mode != ModeLocal {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"detailed scanning requires local mode",
			"scan.detailed", c.Scan.Detailed)
	}
	if c.Vendor.Enabled && c.Vendor.RemoteURL == "" {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"vendor remote URL is required when vendor lookup is enabled",
			"vendor.remote_url", c.Vendor.RemoteURL)
	}

	return nil
}

// ActivePorts returns the port list for the configured mode. Detailed local
// scans use DetailedPortRange instead, which the probe layer hands to nmap.
func (c *Config) ActivePorts() []int {
	if c.Scan.Mode == ModeLocal {
		return c.Scan.DefaultPorts
	}
	return c.Scan.QuickScanPorts
}

// IsLocalMode returns true when the deep scanning path is selected.
func (c *Config) IsLocalMode() bool {
	return c.Scan.Mode == ModeLocal
}

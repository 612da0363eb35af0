package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netmapper/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeDiscovery, cfg.Scan.Mode)
	assert.Equal(t, 30*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Scan.HostTimeout)
	assert.Equal(t, 10, cfg.Scan.MaxConcurrentScans)
	assert.Equal(t, 3, cfg.Scan.Retry.Attempts)
	assert.False(t, cfg.Scan.HostsOnly)
	assert.True(t, cfg.Vendor.Enabled)
	assert.NotEmpty(t, cfg.Vendor.RemoteURL)
	assert.NotEmpty(t, cfg.Scan.QuickScanPorts)
	assert.Contains(t, cfg.Scan.DefaultPorts, 9100)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"local mode passes", func(c *Config) { c.Scan.Mode = ModeLocal }, false},
		{"bad mode", func(c *Config) { c.Scan.Mode = "aggressive" }, true},
		{"zero timeout", func(c *Config) { c.Scan.Timeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Scan.MaxConcurrentScans = 0 }, true},
		{"negative concurrency", func(c *Config) { c.Scan.MaxConcurrentScans = -5 }, true},
		{"zero max targets", func(c *Config) { c.Scan.MaxTargets = 0 }, true},
		{"empty quick ports", func(c *Config) { c.Scan.QuickScanPorts = nil }, true},
		{"port out of range", func(c *Config) { c.Scan.QuickScanPorts = []int{80, 70000} }, true},
		{"zero retry attempts", func(c *Config) { c.Scan.Retry.Attempts = 0 }, true},
		{"backoff below one", func(c *Config) { c.Scan.Retry.BackoffMultiplier = 0.5 }, true},
		{"host timeout above session timeout", func(c *Config) { c.Scan.HostTimeout = time.Minute }, true},
		{"detailed without local mode", func(c *Config) { c.Scan.Detailed = true }, true},
		{"detailed with local mode", func(c *Config) {
			c.Scan.Mode = ModeLocal
			c.Scan.Detailed = true
		}, false},
		{"vendor enabled without url", func(c *Config) { c.Vendor.RemoteURL = "" }, true},
		{"vendor disabled without url", func(c *Config) {
			c.Vendor.Enabled = false
			c.Vendor.RemoteURL = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netmapper.yaml")
	data := `
scan:
  mode: local
  timeout: 2m
  host_timeout: 10s
  hosts_only: true
vendor:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, cfg.Scan.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Scan.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Scan.HostTimeout)
	assert.True(t, cfg.Scan.HostsOnly)
	assert.False(t, cfg.Vendor.Enabled)

	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Scan.MaxConcurrentScans)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not: a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
}

func TestLoadInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  max_concurrent_scans: -1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "netmapper.yaml")

	original := Default()
	original.Scan.Mode = ModeLocal
	original.Scan.HostsOnly = true
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestActivePorts(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Scan.QuickScanPorts, cfg.ActivePorts())

	cfg.Scan.Mode = ModeLocal
	assert.Equal(t, cfg.Scan.DefaultPorts, cfg.ActivePorts())
	assert.True(t, cfg.IsLocalMode())
}

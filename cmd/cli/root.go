// Package cli provides the command-line interface for the netmapper network
// discovery tool. It implements the Cobra-based command structure for running
// scans and managing configuration.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/netmapper/internal/config"
	"github.com/anstrom/netmapper/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netmapper",
	Short: "Network host discovery and characterization",
	Long: `Netmapper discovers and characterizes hosts on a network: it expands
target specifications, probes hosts concurrently, fingerprints services and
operating systems, classifies device types, and resolves hardware vendors
from MAC addresses.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Accept underscores in flag names so they match config keys.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netmapper.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netmapper")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NETMAPPER")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	defaults := config.Default()

	viper.SetDefault("scan.mode", string(defaults.Scan.Mode))
	viper.SetDefault("scan.timeout", defaults.Scan.Timeout)
	viper.SetDefault("scan.host_timeout", defaults.Scan.HostTimeout)
	viper.SetDefault("scan.max_concurrent_scans", defaults.Scan.MaxConcurrentScans)
	viper.SetDefault("scan.max_targets", defaults.Scan.MaxTargets)
	viper.SetDefault("scan.retry.attempts", defaults.Scan.Retry.Attempts)

	viper.SetDefault("vendor.enabled", defaults.Vendor.Enabled)
	viper.SetDefault("vendor.remote_url", defaults.Vendor.RemoteURL)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/netmapper/internal/classify"
	"github.com/anstrom/netmapper/internal/config"
	"github.com/anstrom/netmapper/internal/logging"
	"github.com/anstrom/netmapper/internal/scan"
)

var (
	scanMode        string
	scanDetailed    bool
	scanTimeout     time.Duration
	scanHostTimeout time.Duration
	scanConcurrency int
	scanHostsOnly   bool
	scanAllHosts    bool
	scanNoVendor    bool
	scanRulesFile   string
	scanOutput      string
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan <targets>",
	Short: "Discover and characterize hosts",
	Long: `Scan expands the target specification into a set of addresses, probes
every host concurrently, and reports one record per target with reachability,
open ports, device type, operating system, and hardware vendor.

Discovery mode is fast and shallow. Local mode adds banner grabbing, SNMP,
protocol analysis, and OS fingerprinting, and is meant for networks you
administer.`,
	Example: `  netmapper scan 192.168.1.0/24
  netmapper scan "192.168.1.1,192.168.1.10-20" --mode local
  netmapper scan 10.0.0.0/24 --hosts-only --all
  netmapper scan 192.168.1.0/24 --output json > hosts.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanMode, "mode", "", "scan mode: discovery or local")
	scanCmd.Flags().BoolVar(&scanDetailed, "detailed", false, "detailed port range scan (local mode only)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "session deadline (e.g. 60s, 5m)")
	scanCmd.Flags().DurationVar(&scanHostTimeout, "host-timeout", 0, "per-host probing budget")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "maximum hosts probed in parallel")
	scanCmd.Flags().BoolVar(&scanHostsOnly, "hosts-only", false, "skip network and broadcast addresses in CIDR targets")
	scanCmd.Flags().BoolVar(&scanAllHosts, "all", false, "report unreachable hosts too")
	scanCmd.Flags().BoolVar(&scanNoVendor, "no-vendor", false, "disable MAC vendor resolution")
	scanCmd.Flags().StringVar(&scanRulesFile, "rules", "", "classification rules file (YAML)")
	scanCmd.Flags().StringVar(&scanOutput, "output", "table", "output format: table or json")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := buildScanConfig()
	if err != nil {
		return err
	}

	var opts []scan.Option
	if scanRulesFile != "" {
		rules, loadErr := classify.LoadRules(scanRulesFile)
		if loadErr != nil {
			return loadErr
		}
		opts = append(opts, scan.WithRules(rules))
	}

	session, err := scan.NewSession(cfg, logging.Default(), opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := session.Run(ctx, args[0])
	if err != nil {
		return err
	}

	if warning := session.Warning(); warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	if scanOutput == "json" {
		return renderJSON(records, session)
	}
	renderTable(records, session)
	return nil
}

// buildScanConfig loads the configuration file and applies flag overrides.
func buildScanConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	if scanMode != "" {
		cfg.Scan.Mode = config.Mode(scanMode)
	}
	if scanDetailed {
		cfg.Scan.Detailed = true
	}
	if scanTimeout > 0 {
		cfg.Scan.Timeout = scanTimeout
	}
	if scanHostTimeout > 0 {
		cfg.Scan.HostTimeout = scanHostTimeout
	}
	if scanConcurrency > 0 {
		cfg.Scan.MaxConcurrentScans = scanConcurrency
	}
	if scanHostsOnly {
		cfg.Scan.HostsOnly = true
	}
	if scanNoVendor {
		cfg.Vendor.Enabled = false
	}

	return cfg, cfg.Validate()
}

func renderJSON(records []scan.HostRecord, session *scan.Session) error {
	out := struct {
		SessionID string            `json:"session_id"`
		Warning   string            `json:"warning,omitempty"`
		Summary   scan.Summary      `json:"summary"`
		Hosts     []scan.HostRecord `json:"hosts"`
	}{
		SessionID: session.ID.String(),
		Warning:   session.Warning(),
		Summary:   scan.Summarize(records, session.Duration()),
		Hosts:     records,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderTable(records []scan.HostRecord, session *scan.Session) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("IP", "Hostname", "MAC", "Vendor", "Device", "OS", "Open Ports", "RTT")

	shown := 0
	for i := range records {
		record := &records[i]
		if !record.Reachable && !scanAllHosts {
			continue
		}
		shown++

		rtt := ""
		if record.ResponseTime > 0 {
			rtt = record.ResponseTime.Round(time.Millisecond).String()
		}
		device := record.DeviceType
		if record.DeviceConfidence != "" && record.DeviceType != classify.Unknown {
			device = fmt.Sprintf("%s (%s)", record.DeviceType, record.DeviceConfidence)
		}

		_ = table.Append([]string{
			record.IP.String(),
			record.Hostname,
			record.MAC,
			record.Vendor,
			device,
			record.OS,
			formatPorts(record),
			rtt,
		})
	}
	_ = table.Render()

	summary := scan.Summarize(records, session.Duration())
	fmt.Printf("\n%d of %d hosts reachable (%d shown) in %s\n",
		summary.Reachable, summary.Targets, shown,
		summary.Duration.Round(time.Millisecond))
}

// formatPorts renders the open port list as "22/ssh, 80/http", truncated to
// keep rows readable.
func formatPorts(record *scan.HostRecord) string {
	const maxShown = 6
	parts := make([]string, 0, len(record.OpenPorts))
	for i, pr := range record.OpenPorts {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(record.OpenPorts)-maxShown))
			break
		}
		if pr.Service != "" {
			parts = append(parts, fmt.Sprintf("%d/%s", pr.Port, pr.Service))
		} else {
			parts = append(parts, fmt.Sprintf("%d", pr.Port))
		}
	}
	return strings.Join(parts, ", ")
}

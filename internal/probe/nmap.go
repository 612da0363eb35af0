package probe

import (
	"context"
	"net/netip"
	"os/exec"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netmapper/internal/errors"
	"github.com/anstrom/netmapper/internal/logging"
)

// fingerprint carries what the external scanning tool learned about a host.
type fingerprint struct {
	osName string
	ports  []PortResult
}

// checkScanTool verifies the external scanning tool is installed. Called once
// at session setup when OS detection is enabled; a missing tool is a setup
// error, not a per-host failure.
func checkScanTool() error {
	if _, err := exec.LookPath("nmap"); err != nil {
		return errors.ErrToolMissing("nmap", err)
	}
	return nil
}

// runFingerprint performs an OS and service detection scan of one host using
// the external tool. Ports reported by the tool supersede the raw connect
// results because they carry product and version information.
func (p *Prober) runFingerprint(ctx context.Context, addr netip.Addr) (fingerprint, error) {
	options := []nmap.Option{
		nmap.WithTargets(addr.String()),
		nmap.WithPorts(p.fingerprintPorts),
		nmap.WithSkipHostDiscovery(),
	}
	if p.serviceDetection {
		options = append(options, nmap.WithServiceInfo())
	}
	if p.osDetection {
		options = append(options, nmap.WithOSDetection(), nmap.WithOSScanGuess())
	}

	// Match the tool's timing to the remaining host budget.
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 10*time.Second {
		options = append(options, nmap.WithTimingTemplate(nmap.TimingAggressive))
	} else {
		options = append(options, nmap.WithTimingTemplate(nmap.TimingNormal))
	}

	scanner, err := nmap.NewScanner(ctx, options...)
	if err != nil {
		return fingerprint{}, errors.WrapProbeError(errors.CodeProbeFailed,
			"failed to create scanner", addr.String(), err)
	}

	run, warnings, err := scanner.Run()
	if err != nil {
		return fingerprint{}, errors.WrapProbeError(errors.CodeProbeFailed,
			"fingerprint scan failed", addr.String(), err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Debug("Fingerprint scan completed with warnings",
			"target", addr.String(), "warnings", *warnings)
	}

	return convertRun(run), nil
}

// convertRun extracts the OS match and port table from a tool run.
func convertRun(run *nmap.Run) fingerprint {
	var fp fingerprint
	if run == nil || len(run.Hosts) == 0 {
		return fp
	}

	host := &run.Hosts[0]
	if len(host.OS.Matches) > 0 {
		fp.osName = host.OS.Matches[0].Name
	}

	fp.ports = make([]PortResult, 0, len(host.Ports))
	for i := range host.Ports {
		port := &host.Ports[i]
		service := port.Service.Name
		if service == "" {
			service = ServiceForPort(int(port.ID))
		}
		banner := port.Service.Product
		if port.Service.Version != "" {
			banner += " " + port.Service.Version
		}
		fp.ports = append(fp.ports, PortResult{
			Port:     int(port.ID),
			Protocol: port.Protocol,
			State:    PortState(port.State.State),
			Service:  service,
			Banner:   banner,
		})
	}
	return fp
}

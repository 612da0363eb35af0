// Package probe performs the per-host work of a scan: reachability checks,
// ARP resolution, port scanning, banner grabbing, and the deeper local-mode
// steps of SNMP, protocol analysis, and OS fingerprinting. Every probe yields
// a Result; ordinary network failures are result state, not errors.
package probe

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/netmapper/internal/config"
	"github.com/anstrom/netmapper/internal/logging"
	"github.com/anstrom/netmapper/internal/metrics"
)

const (
	defaultDialTimeout   = 500 * time.Millisecond
	defaultBannerTimeout = 2 * time.Second

	// Ceiling on simultaneous port connections to one host. High enough
	// to fit the default port list inside the host budget, low enough not
	// to trip connection-rate limits on small devices.
	portScanParallelism = 8
)

// httpProbePorts are the ports that get an HTTP request when the initial
// banner read comes back empty. HTTP servers say nothing until spoken to.
var httpProbePorts = map[int]bool{80: true, 8000: true, 8080: true, 8443: true, 443: true}

// Prober executes probes against individual hosts. It is safe for concurrent
// use; the scan session shares one Prober across all host goroutines.
type Prober struct {
	cfg      *config.Config
	platform Platform
	logger   *logging.Logger

	dialTimeout       time.Duration
	bannerReadTimeout time.Duration
	fingerprintPorts  string
	serviceDetection  bool
	osDetection       bool
}

// New creates a Prober for the given configuration. When OS detection is
// enabled in local mode the external scanning tool must be installed; its
// absence is a setup error that aborts the session before any probing.
func New(cfg *config.Config, logger *logging.Logger) (*Prober, error) {
	if logger == nil {
		logger = logging.Default()
	}

	osDetection := cfg.IsLocalMode() && cfg.Scan.OSDetection
	if osDetection {
		if err := checkScanTool(); err != nil {
			return nil, err
		}
	}

	// The fingerprint scan sweeps the detailed range only when detailed
	// scanning is requested; otherwise it revisits the default ports.
	portSpec := joinPorts(cfg.Scan.DefaultPorts)
	if cfg.Scan.Detailed {
		portSpec = cfg.Scan.DetailedPortRange
	}

	return &Prober{
		cfg:               cfg,
		platform:          NewPlatform(),
		logger:            logger.WithComponent("probe"),
		dialTimeout:       defaultDialTimeout,
		bannerReadTimeout: defaultBannerTimeout,
		fingerprintPorts:  portSpec,
		serviceDetection:  cfg.IsLocalMode() && cfg.Scan.ServiceDetection,
		osDetection:       osDetection,
	}, nil
}

// Probe runs the full probing sequence for one host within the per-host
// timeout budget. It always returns a Result; when the context is cancelled
// mid-probe the result carries whatever was learned so far, marked Partial.
func (p *Prober) Probe(ctx context.Context, addr netip.Addr) *Result {
	start := time.Now()
	m := metrics.GetGlobalMetrics()
	m.ProbeStarted()
	defer m.ProbeFinished()
	defer func() {
		m.RecordProbeDuration(string(p.cfg.Scan.Mode), time.Since(start))
	}()

	hostCtx, cancel := context.WithTimeout(ctx, p.cfg.Scan.HostTimeout)
	defer cancel()

	result := &Result{Addr: addr}

	ping := p.checkReachability(hostCtx, addr, result)
	if ping.Reachable {
		result.Reachable = true
		result.ResponseTime = ping.RTT
		result.TTL = ping.TTL
	}

	result.MAC = p.platform.ARP.Lookup(hostCtx, addr)

	open := p.scanPorts(hostCtx, addr, result)

	// An open port or an ARP entry proves presence even when echo
	// requests are filtered.
	if len(open) > 0 || result.MAC != "" {
		result.Reachable = true
	}

	if result.Reachable && hostCtx.Err() == nil {
		result.Hostname = reverseLookup(hostCtx, addr)
	}

	if p.cfg.IsLocalMode() && result.Reachable {
		p.probeDeep(hostCtx, addr, result, open)
	}

	if ctx.Err() != nil || hostCtx.Err() != nil {
		result.Partial = true
	}

	p.logger.InfoProbe("Probe completed", addr.String(),
		"reachable", result.Reachable,
		"open_ports", len(result.OpenPorts()),
		"attempts", result.Attempts,
		"partial", result.Partial,
		"duration", time.Since(start))
	return result
}

// checkReachability runs the echo check with bounded retries and exponential
// backoff. Each attempt consumes part of the host budget; the loop stops on
// the first reply, on attempt exhaustion, or on context cancellation.
func (p *Prober) checkReachability(ctx context.Context, addr netip.Addr, result *Result) PingOutcome {
	retry := p.cfg.Scan.Retry
	delay := retry.Delay

	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		result.Attempts = attempt

		outcome := p.platform.Pinger.Check(ctx, addr)
		if outcome.Reachable {
			return outcome
		}
		if attempt == retry.Attempts || ctx.Err() != nil {
			break
		}

		metrics.GetGlobalMetrics().IncrementProbeRetries()
		select {
		case <-ctx.Done():
			return PingOutcome{}
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * retry.BackoffMultiplier)
	}
	return PingOutcome{}
}

// scanPorts connects to the mode's port list in parallel and records the
// outcome of every port that answered. Filtered ports (no response either
// way) are omitted from the result. Returns the open subset.
func (p *Prober) scanPorts(ctx context.Context, addr netip.Addr, result *Result) []PortResult {
	ports := p.cfg.ActivePorts()
	grabBanners := p.cfg.IsLocalMode()

	sem := semaphore.NewWeighted(portScanParallelism)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, port := range ports {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer sem.Release(1)

			pr, ok := p.scanPort(ctx, addr, port, grabBanners)
			if !ok {
				return
			}
			mu.Lock()
			result.Ports = append(result.Ports, pr)
			if result.ResponseTime == 0 && pr.State == PortOpen {
				// Fall back to TCP connect time when the host
				// never answered an echo request.
				result.ResponseTime = pr.connectTime
			}
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	sortPorts(result.Ports)
	return result.OpenPorts()
}

// scanPort attempts one TCP connection. A refused connection reports the port
// closed; a timeout reports nothing, since a filtered port is
// indistinguishable from a dead host.
func (p *Prober) scanPort(ctx context.Context, addr netip.Addr, port int, grabBanner bool) (PortResult, bool) {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	connStart := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		if opErr, ok := err.(*net.OpError); ok && !opErr.Timeout() && ctx.Err() == nil {
			return PortResult{Port: port, Protocol: "tcp", State: PortClosed}, true
		}
		return PortResult{}, false
	}
	connectTime := time.Since(connStart)
	defer func() { _ = conn.Close() }()

	pr := PortResult{
		Port:        port,
		Protocol:    "tcp",
		State:       PortOpen,
		Service:     ServiceForPort(port),
		connectTime: connectTime,
	}
	if grabBanner {
		pr.Banner = p.readBanner(ctx, conn, port)
	}
	return pr, true
}

// readBanner reads the server greeting from an open connection. Ports that
// stay silent but speak HTTP get a request to provoke a response.
func (p *Prober) readBanner(ctx context.Context, conn net.Conn, port int) string {
	deadline := time.Now().Add(p.bannerReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	buf := make([]byte, 1024)
	n, _ := conn.Read(buf)
	if n <= 0 && httpProbePorts[port] {
		if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")); err == nil {
			n, _ = conn.Read(buf)
		}
	}
	if n <= 0 {
		return ""
	}
	return sanitizeBanner(buf[:n])
}

// probeDeep runs the local-mode steps: SNMP, protocol analysis, and the
// external fingerprint scan. Each step checks the remaining budget first so a
// timed-out host still keeps its shallow results.
func (p *Prober) probeDeep(ctx context.Context, addr netip.Addr, result *Result, open []PortResult) {
	if ctx.Err() == nil {
		result.SNMPDescription = querySNMP(ctx, addr)
	}

	if p.cfg.Scan.ProtocolAnalysis && ctx.Err() == nil && len(open) > 0 {
		result.Protocols = p.analyzeProtocols(ctx, addr, open)
	}

	if (p.osDetection || p.serviceDetection) && ctx.Err() == nil {
		fp, err := p.runFingerprint(ctx, addr)
		if err != nil {
			p.logger.WarnProbe("Fingerprint scan failed", addr.String(), err)
			return
		}
		result.OSFingerprint = fp.osName
		if len(fp.ports) > 0 {
			result.Ports = mergePorts(result.Ports, fp.ports)
		}
	}
}

// mergePorts overlays fingerprint port results on the connect-scan results.
// The fingerprint data wins on conflicts because it carries service names and
// product banners; connect-scan entries for ports the tool did not cover are
// kept.
func mergePorts(scanned, detected []PortResult) []PortResult {
	byPort := make(map[int]PortResult, len(scanned)+len(detected))
	for _, pr := range scanned {
		byPort[pr.Port] = pr
	}
	for _, pr := range detected {
		if prev, ok := byPort[pr.Port]; ok {
			if pr.Banner == "" {
				pr.Banner = prev.Banner
			}
			pr.connectTime = prev.connectTime
		}
		byPort[pr.Port] = pr
	}

	merged := make([]PortResult, 0, len(byPort))
	for _, pr := range byPort {
		merged = append(merged, pr)
	}
	sortPorts(merged)
	return merged
}

// joinPorts renders a port list as the comma-separated spec the external
// tool expects.
func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, port := range ports {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, ",")
}

func sortPorts(ports []PortResult) {
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
}

// sanitizeBanner strips non-printable bytes and trims a banner to a bounded,
// loggable string.
func sanitizeBanner(raw []byte) string {
	const maxBanner = 256
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b == '\r' || b == '\n' || b == '\t' {
			out = append(out, ' ')
			continue
		}
		if b >= 0x20 && b < 0x7f {
			out = append(out, b)
		}
	}
	s := string(out)
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	if len(s) > maxBanner {
		s = s[:maxBanner]
	}
	return s
}

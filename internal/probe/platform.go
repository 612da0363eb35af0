package probe

import (
	"context"
	"net/netip"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PingOutcome is the parsed result of one reachability check. An unreachable
// host is an ordinary outcome, not an error.
type PingOutcome struct {
	Reachable bool
	RTT       time.Duration
	TTL       int
}

// ReachabilityChecker issues a single echo-style reachability check.
type ReachabilityChecker interface {
	Check(ctx context.Context, addr netip.Addr) PingOutcome
}

// ARPResolver maps on-link IP addresses to MAC addresses.
type ARPResolver interface {
	// Lookup returns the MAC for an address, or "" when the host has no
	// ARP entry. Implementations may consult a cached table.
	Lookup(ctx context.Context, addr netip.Addr) string

	// Refresh re-reads the underlying ARP table.
	Refresh(ctx context.Context)
}

// Platform bundles the per-OS capability implementations, selected once at
// session start rather than re-dispatched per call.
type Platform struct {
	Pinger ReachabilityChecker
	ARP    ARPResolver
}

// NewPlatform selects implementations for the current operating system.
func NewPlatform() Platform {
	windows := runtime.GOOS == "windows"
	return Platform{
		Pinger: &execPinger{windows: windows},
		ARP:    &execARPResolver{windows: windows},
	}
}

var (
	rttPattern = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)
	ttlPattern = regexp.MustCompile(`(?i)ttl=(\d+)`)
	macPattern = regexp.MustCompile(`([0-9A-Fa-f]{1,2}[:-]){5}[0-9A-Fa-f]{1,2}`)
	ipPattern  = regexp.MustCompile(`\((\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\)`)
)

// execPinger shells out to the system ping utility and parses RTT and TTL
// from its output.
type execPinger struct {
	windows bool
}

// Check runs one ping. The command's own timeout is kept short; the caller's
// context bounds the overall attempt.
func (p *execPinger) Check(ctx context.Context, addr netip.Addr) PingOutcome {
	var cmd *exec.Cmd
	if p.windows {
		cmd = exec.CommandContext(ctx, "ping", "-n", "1", "-w", "1000", addr.String())
	} else {
		cmd = exec.CommandContext(ctx, "ping", "-c", "1", "-W", "1", addr.String())
	}

	out, err := cmd.Output()
	if err != nil {
		// Non-zero exit means no reply. Keep any TTL that made it
		// into the output anyway.
		return PingOutcome{}
	}

	outcome := PingOutcome{Reachable: true}
	if m := ttlPattern.FindSubmatch(out); m != nil {
		if ttl, convErr := strconv.Atoi(string(m[1])); convErr == nil {
			outcome.TTL = ttl
		}
	}
	if m := rttPattern.FindSubmatch(out); m != nil {
		if ms, convErr := strconv.ParseFloat(string(m[1]), 64); convErr == nil {
			outcome.RTT = time.Duration(ms * float64(time.Millisecond))
		}
	}
	return outcome
}

// execARPResolver reads the system ARP table with `arp -a` and serves per-IP
// lookups from one parsed snapshot, refreshed on demand.
type execARPResolver struct {
	windows bool

	mu     sync.Mutex
	loaded bool
	table  map[netip.Addr]string
}

// Lookup returns the MAC for an address. The table is read lazily on first
// use; a miss triggers one refresh in case the kernel learned the entry
// after the snapshot.
func (r *execARPResolver) Lookup(ctx context.Context, addr netip.Addr) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		r.refreshLocked(ctx)
	}
	if mac, ok := r.table[addr]; ok {
		return mac
	}

	r.refreshLocked(ctx)
	return r.table[addr]
}

// Refresh re-reads the ARP table.
func (r *execARPResolver) Refresh(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)
}

func (r *execARPResolver) refreshLocked(ctx context.Context) {
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		if r.table == nil {
			r.table = make(map[netip.Addr]string)
		}
		r.loaded = true
		return
	}
	r.table = parseARPTable(string(out), r.windows)
	r.loaded = true
}

// parseARPTable extracts IP-to-MAC pairs from `arp -a` output. The Unix
// format wraps the IP in parentheses; Windows lists bare dotted quads with
// dash-separated MACs.
func parseARPTable(out string, windows bool) map[netip.Addr]string {
	table := make(map[netip.Addr]string)
	for _, line := range strings.Split(out, "\n") {
		mac := macPattern.FindString(line)
		if mac == "" {
			continue
		}

		var ipStr string
		if windows {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			ipStr = fields[0]
		} else {
			m := ipPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			ipStr = m[1]
		}

		addr, err := netip.ParseAddr(ipStr)
		if err != nil || !addr.Is4() {
			continue
		}
		table[addr] = normalizeMAC(mac)
	}
	return table
}

// normalizeMAC canonicalizes a MAC string to colon-separated upper-case
// octets, zero-padding the single-digit groups BSD arp emits.
func normalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	for i, part := range parts {
		if len(part) == 1 {
			parts[i] = "0" + part
		}
	}
	return strings.ToUpper(strings.Join(parts, ":"))
}

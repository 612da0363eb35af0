package probe

import (
	"net/netip"
	"time"
)

// PortState describes the observed state of a single TCP port.
type PortState string

const (
	PortOpen     PortState = "open"
	PortClosed   PortState = "closed"
	PortFiltered PortState = "filtered"
)

// PortResult is the per-port outcome of a probe.
type PortResult struct {
	Port     int       `json:"port" yaml:"port"`
	Protocol string    `json:"protocol" yaml:"protocol"`
	State    PortState `json:"state" yaml:"state"`
	// Service is the inferred service name: from a banner, from nmap in
	// local mode, or from the well-known port table.
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	// Banner holds the greeting read from the port, if any.
	Banner string `json:"banner,omitempty" yaml:"banner,omitempty"`

	// connectTime is the TCP handshake duration, used as a response time
	// fallback for hosts that filter echo requests.
	connectTime time.Duration
}

// Result is the immutable per-host outcome of one probing task. Ordinary
// network failures are encoded here as state, never as errors.
type Result struct {
	Addr         netip.Addr
	Reachable    bool
	ResponseTime time.Duration

	// TTL observed on the echo reply; 0 when unknown.
	TTL int

	// MAC is the hardware address from ARP resolution, empty off-link.
	MAC string

	// Hostname from reverse DNS, empty when unresolvable.
	Hostname string

	Ports []PortResult

	// OSFingerprint is the OS name reported by the external scanning
	// tool in local mode, empty otherwise.
	OSFingerprint string

	// SNMPDescription is the device's sysDescr string when it answers
	// SNMP, empty otherwise.
	SNMPDescription string

	// Protocols lists application protocols confirmed by protocol
	// analysis in local mode.
	Protocols []string

	// Attempts is the number of reachability attempts consumed.
	Attempts int

	// Partial marks a result salvaged from a cancelled or timed-out
	// probe: whatever was learned before cancellation is kept.
	Partial bool
}

// OpenPorts returns the subset of port results in the open state.
func (r *Result) OpenPorts() []PortResult {
	var open []PortResult
	for _, p := range r.Ports {
		if p.State == PortOpen {
			open = append(open, p)
		}
	}
	return open
}

// HasSignal reports whether any probe produced a positive signal for the
// host: an echo reply, an ARP entry, or at least one open port.
func (r *Result) HasSignal() bool {
	return r.Reachable || r.MAC != "" || len(r.OpenPorts()) > 0
}

package scan

import (
	"net/netip"
	"time"

	"github.com/anstrom/netmapper/internal/classify"
	"github.com/anstrom/netmapper/internal/macvendor"
	"github.com/anstrom/netmapper/internal/probe"
)

// State is the session lifecycle phase.
type State string

const (
	StateInitialized State = "initialized"
	StateExpanding   State = "expanding"
	StateProbing     State = "probing"
	StateAggregating State = "aggregating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// HostRecord is the characterization of one expanded target. Every target in
// the set yields exactly one record, reachable or not.
type HostRecord struct {
	IP           netip.Addr          `json:"ip" yaml:"ip"`
	Reachable    bool                `json:"reachable" yaml:"reachable"`
	ResponseTime time.Duration       `json:"response_time,omitempty" yaml:"response_time,omitempty"`
	Hostname     string              `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	MAC          string              `json:"mac,omitempty" yaml:"mac,omitempty"`
	Vendor       string              `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	VendorSource macvendor.Source    `json:"vendor_source,omitempty" yaml:"vendor_source,omitempty"`
	OpenPorts    []probe.PortResult  `json:"open_ports,omitempty" yaml:"open_ports,omitempty"`
	Protocols    []string            `json:"protocols,omitempty" yaml:"protocols,omitempty"`
	OS           string              `json:"os" yaml:"os"`
	OSConfidence classify.Confidence `json:"os_confidence" yaml:"os_confidence"`

	DeviceType       string              `json:"device_type" yaml:"device_type"`
	DeviceConfidence classify.Confidence `json:"device_confidence" yaml:"device_confidence"`

	// Upstream and Downstream are reserved for topology inference.
	// TODO: populate from traceroute next-hop data.
	Upstream   string   `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Downstream []string `json:"downstream,omitempty" yaml:"downstream,omitempty"`

	// Partial marks a record assembled from an interrupted probe.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	ProbedAt time.Time `json:"probed_at" yaml:"probed_at"`
}

// Summary aggregates a completed session for reporting.
type Summary struct {
	Targets   int            `json:"targets"`
	Reachable int            `json:"reachable"`
	Partial   int            `json:"partial"`
	Duration  time.Duration  `json:"duration"`
	ByDevice  map[string]int `json:"by_device,omitempty"`
	ByOS      map[string]int `json:"by_os,omitempty"`
}

// Summarize computes aggregate counts over a record set.
func Summarize(records []HostRecord, duration time.Duration) Summary {
	s := Summary{
		Targets:  len(records),
		Duration: duration,
		ByDevice: make(map[string]int),
		ByOS:     make(map[string]int),
	}
	for i := range records {
		r := &records[i]
		if r.Reachable {
			s.Reachable++
			s.ByDevice[r.DeviceType]++
			s.ByOS[r.OS]++
		}
		if r.Partial {
			s.Partial++
		}
	}
	return s
}

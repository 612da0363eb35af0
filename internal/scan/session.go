// Package scan orchestrates discovery sessions: target expansion, bounded
// concurrent probing, per-host classification and vendor resolution, and
// aggregation into an ordered record set.
package scan

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/anstrom/netmapper/internal/classify"
	"github.com/anstrom/netmapper/internal/config"
	"github.com/anstrom/netmapper/internal/logging"
	"github.com/anstrom/netmapper/internal/macvendor"
	"github.com/anstrom/netmapper/internal/metrics"
	"github.com/anstrom/netmapper/internal/probe"
	"github.com/anstrom/netmapper/internal/target"
)

// Session runs one scan of one target specification. Sessions are single-use:
// create, Run, read the records.
type Session struct {
	ID uuid.UUID

	cfg        *config.Config
	logger     *logging.Logger
	prober     *probe.Prober
	resolver   *macvendor.Resolver
	classifier *classify.Classifier

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	completedAt time.Time
	records     []HostRecord
	warning     string
}

// Option customizes a session.
type Option func(*Session)

// WithRules overrides the built-in classification rule table.
func WithRules(rules *classify.RuleTable) Option {
	return func(s *Session) {
		s.classifier = classify.New(rules)
	}
}

// NewSession validates the configuration and prepares all per-session
// components. Setup failures (bad config, missing external tool) surface
// here, before any probing.
func NewSession(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	id := uuid.New()
	logger = logger.WithComponent("scan").WithSessionID(id.String())

	prober, err := probe.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:     id,
		cfg:    cfg,
		logger: logger,
		prober: prober,
		resolver: macvendor.NewResolver(macvendor.Options{
			Enabled:       cfg.Vendor.Enabled,
			RemoteURL:     cfg.Vendor.RemoteURL,
			RemoteTimeout: cfg.Vendor.RemoteTimeout,
		}),
		classifier: classify.New(nil),
		state:      StateInitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns a copy of the aggregated record set, ordered like the
// expanded target set. Empty until the session completes. Records are
// immutable once emitted; callers get their own slice to mutate.
func (s *Session) Records() []HostRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return nil
	}
	out := make([]HostRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Warning returns the session warning, if any. Set when the session deadline
// expired before a single host probe completed.
func (s *Session) Warning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warning
}

// Duration returns the wall time the session ran.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completedAt.IsZero() {
		return 0
	}
	return s.completedAt.Sub(s.startedAt)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes the full session against a target specification and returns
// the ordered records. Every expanded target yields exactly one record even
// when the session deadline cuts probing short; in that case the untouched
// targets are recorded unreachable and partial.
func (s *Session) Run(ctx context.Context, spec string) ([]HostRecord, error) {
	m := metrics.GetGlobalMetrics()
	mode := string(s.cfg.Scan.Mode)

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.setState(StateExpanding)
	targets, err := target.Expand(spec, target.Options{
		HostsOnly:  s.cfg.Scan.HostsOnly,
		MaxTargets: s.cfg.Scan.MaxTargets,
	})
	if err != nil {
		s.fail(m, mode, err)
		return nil, err
	}

	s.logger.InfoSession("Session starting", s.ID.String(),
		"spec", spec, "targets", len(targets), "mode", mode)

	s.setState(StateProbing)
	results, probed := s.probeAll(ctx, targets)

	s.setState(StateAggregating)
	records := make([]HostRecord, 0, len(targets))
	for _, addr := range targets {
		records = append(records, results[addr])
	}

	s.mu.Lock()
	s.records = records
	if probed == 0 && len(targets) > 0 {
		s.warning = "session deadline reached before any host probe completed"
	}
	s.completedAt = time.Now()
	warning := s.warning
	duration := s.completedAt.Sub(s.startedAt)
	s.mu.Unlock()

	s.setState(StateCompleted)
	m.IncrementSessionsTotal(mode, "completed")
	m.RecordSessionDuration(mode, duration)

	s.logger.InfoSession("Session completed", s.ID.String(),
		"targets", len(targets), "probed", probed,
		"duration", duration, "warning", warning)
	return records, nil
}

func (s *Session) fail(m *metrics.PrometheusMetrics, mode string, err error) {
	s.setState(StateFailed)
	m.IncrementSessionsTotal(mode, "failed")
	s.logger.ErrorSession("Session setup failed", s.ID.String(), err)
}

// probeAll dispatches one goroutine per target under the concurrency
// semaphore and collects results until every target has reported. Targets
// whose semaphore slot never opens before the deadline report a placeholder
// record instead of being dropped. Returns the per-address records and the
// count of probes that actually ran.
func (s *Session) probeAll(ctx context.Context, targets target.Set) (map[netip.Addr]HostRecord, int) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.Scan.Timeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(s.cfg.Scan.MaxConcurrentScans))
	type outcome struct {
		record HostRecord
		probed bool
	}
	resultCh := make(chan outcome, len(targets))

	for _, addr := range targets {
		go func(addr netip.Addr) {
			if err := sem.Acquire(probeCtx, 1); err != nil {
				resultCh <- outcome{record: s.skippedRecord(addr)}
				return
			}
			defer sem.Release(1)

			res := s.prober.Probe(probeCtx, addr)
			resultCh <- outcome{record: s.buildRecord(probeCtx, res), probed: true}
		}(addr)
	}

	m := metrics.GetGlobalMetrics()
	mode := string(s.cfg.Scan.Mode)
	results := make(map[netip.Addr]HostRecord, len(targets))
	probed := 0
	for range targets {
		out := <-resultCh
		results[out.record.IP] = out.record
		if out.probed {
			probed++
			status := "down"
			if out.record.Reachable {
				status = "up"
			}
			m.IncrementHostsScanned(mode, status)
		}
	}
	return results, probed
}

// buildRecord resolves the vendor and classifies one probe result. Vendor
// resolution runs first because the vendor name is a classification input.
func (s *Session) buildRecord(ctx context.Context, res *probe.Result) HostRecord {
	record := HostRecord{
		IP:           res.Addr,
		Reachable:    res.Reachable,
		ResponseTime: res.ResponseTime,
		Hostname:     res.Hostname,
		MAC:          res.MAC,
		OpenPorts:    res.OpenPorts(),
		Protocols:    res.Protocols,
		Partial:      res.Partial,
		ProbedAt:     time.Now(),
	}

	if res.MAC != "" {
		entry := s.resolver.Resolve(ctx, res.MAC)
		record.Vendor = entry.Vendor
		record.VendorSource = entry.Source
	}

	device := s.classifier.ClassifyDevice(res, record.Vendor)
	record.DeviceType = device.Value
	record.DeviceConfidence = device.Confidence

	osVerdict := s.classifier.ClassifyOS(res)
	record.OS = osVerdict.Value
	record.OSConfidence = osVerdict.Confidence

	return record
}

// skippedRecord stands in for a target the deadline prevented from being
// probed at all.
func (s *Session) skippedRecord(addr netip.Addr) HostRecord {
	return HostRecord{
		IP:               addr,
		Reachable:        false,
		DeviceType:       classify.Unknown,
		DeviceConfidence: classify.ConfidenceLow,
		OS:               classify.Unknown,
		OSConfidence:     classify.ConfidenceLow,
		Partial:          true,
		ProbedAt:         time.Now(),
	}
}

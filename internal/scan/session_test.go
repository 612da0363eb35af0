package scan

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netmapper/internal/classify"
	"github.com/anstrom/netmapper/internal/config"
	"github.com/anstrom/netmapper/internal/errors"
)

// testConfig returns a discovery configuration tuned for fast loopback tests:
// one attempt, one quick port, no vendor lookups.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scan.Mode = config.ModeDiscovery
	cfg.Scan.Timeout = 20 * time.Second
	cfg.Scan.HostTimeout = 2 * time.Second
	cfg.Scan.Retry.Attempts = 1
	cfg.Scan.QuickScanPorts = []int{1}
	cfg.Vendor.Enabled = false
	return cfg
}

func TestNewSessionValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Scan.MaxConcurrentScans = 0

	_, err := NewSession(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestSessionLifecycle(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, session.State())
	assert.Empty(t, session.Records())

	records, err := session.Run(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, session.State())
	require.Len(t, records, 1)
	assert.Equal(t, records, session.Records())
	assert.Greater(t, session.Duration(), time.Duration(0))
}

func TestSessionOneRecordPerTarget(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	require.NoError(t, err)

	records, err := session.Run(context.Background(), "127.0.0.0/30")
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Records come back in target-set order regardless of probe
	// completion order.
	want := []string{"127.0.0.0", "127.0.0.1", "127.0.0.2", "127.0.0.3"}
	for i, record := range records {
		assert.Equal(t, want[i], record.IP.String())
		assert.NotZero(t, record.ProbedAt)
		assert.NotEmpty(t, record.DeviceType)
		assert.NotEmpty(t, record.OS)
	}
}

func TestSessionInvalidSpecFails(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	require.NoError(t, err)

	_, err = session.Run(context.Background(), "not-a-target")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	assert.Equal(t, StateFailed, session.State())
	assert.Empty(t, session.Records())
}

func TestSessionTargetCeilingFails(t *testing.T) {
	cfg := testConfig()
	cfg.Scan.MaxTargets = 2

	session, err := NewSession(cfg, nil)
	require.NoError(t, err)

	_, err = session.Run(context.Background(), "10.0.0.0/24")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetSetTooLarge))
	assert.Equal(t, StateFailed, session.State())
}

func TestSessionCanceledBeforeProbing(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := session.Run(ctx, "127.0.0.0/30")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, session.State())

	// Every target still yields a record, all placeholders.
	require.Len(t, records, 4)
	for _, record := range records {
		assert.False(t, record.Reachable)
		assert.True(t, record.Partial)
		assert.Equal(t, classify.Unknown, record.DeviceType)
		assert.Equal(t, classify.ConfidenceLow, record.DeviceConfidence)
	}

	assert.NotEmpty(t, session.Warning())
}

func TestSessionReachableLoopbackHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := testConfig()
	cfg.Scan.QuickScanPorts = []int{port}

	session, err := NewSession(cfg, nil)
	require.NoError(t, err)

	records, err := session.Run(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.True(t, record.Reachable)
	require.Len(t, record.OpenPorts, 1)
	assert.Equal(t, port, record.OpenPorts[0].Port)
	assert.False(t, record.Partial)
	assert.Empty(t, session.Warning())
}

func TestSessionHostsOnlyPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Scan.HostsOnly = true

	session, err := NewSession(cfg, nil)
	require.NoError(t, err)

	records, err := session.Run(context.Background(), "127.0.0.0/30")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "127.0.0.1", records[0].IP.String())
	assert.Equal(t, "127.0.0.2", records[1].IP.String())
}

func TestSessionCustomRules(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := testConfig()
	cfg.Scan.QuickScanPorts = []int{port}

	rules := &classify.RuleTable{
		Weights: classify.Weights{Port: 2, Service: 3, Pattern: 5, Vendor: 4},
		Devices: []classify.DeviceRule{
			{Type: "testbox", Ports: []int{port}},
		},
	}

	session, err := NewSession(cfg, nil, WithRules(rules))
	require.NoError(t, err)

	records, err := session.Run(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "testbox", records[0].DeviceType)
}

func TestSessionRecordsCallerCannotMutate(t *testing.T) {
	session, err := NewSession(testConfig(), nil)
	require.NoError(t, err)

	_, err = session.Run(context.Background(), "127.0.0.1")
	require.NoError(t, err)

	first := session.Records()
	require.Len(t, first, 1)
	first[0].DeviceType = "mangled"
	first[0].IP = netip.MustParseAddr("203.0.113.9")

	second := session.Records()
	require.Len(t, second, 1)
	assert.NotEqual(t, "mangled", second[0].DeviceType)
	assert.Equal(t, "127.0.0.1", second[0].IP.String())
}

func TestSummarize(t *testing.T) {
	records := []HostRecord{
		{IP: netip.MustParseAddr("10.0.0.1"), Reachable: true, DeviceType: "router", OS: "Linux/Unix"},
		{IP: netip.MustParseAddr("10.0.0.2"), Reachable: true, DeviceType: "server", OS: "Linux/Unix"},
		{IP: netip.MustParseAddr("10.0.0.3"), Reachable: false, Partial: true},
	}

	summary := Summarize(records, 3*time.Second)
	assert.Equal(t, 3, summary.Targets)
	assert.Equal(t, 2, summary.Reachable)
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 2, summary.ByOS["Linux/Unix"])
	assert.Equal(t, 1, summary.ByDevice["router"])
	assert.Equal(t, 3*time.Second, summary.Duration)
}

package probe

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"time"
)

// protocolPattern describes how to confirm one application protocol: which
// ports it usually lives on, an optional probe to elicit a response, and the
// byte patterns that identify it.
type protocolPattern struct {
	name     string
	ports    []int
	probe    []byte
	patterns [][]byte
}

// protocolPatterns is evaluated in order during protocol analysis. Binary
// prefixes mirror each protocol's wire greeting or handshake.
var protocolPatterns = []protocolPattern{
	{
		name:     "HTTP",
		ports:    []int{80, 8000, 8080, 8888},
		probe:    []byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"),
		patterns: [][]byte{[]byte("HTTP/")},
	},
	{
		name:     "HTTPS",
		ports:    []int{443, 8443},
		probe:    []byte{0x16, 0x03, 0x01, 0x00, 0x01, 0x01}, // TLS ClientHello fragment
		patterns: [][]byte{{0x16, 0x03}, {0x15, 0x03}},
	},
	{
		name:     "SSH",
		ports:    []int{22},
		patterns: [][]byte{[]byte("SSH-")},
	},
	{
		name:     "FTP",
		ports:    []int{21},
		patterns: [][]byte{[]byte("220 "), []byte("FTP")},
	},
	{
		name:     "SMTP",
		ports:    []int{25, 587},
		probe:    []byte("EHLO localhost\r\n"),
		patterns: [][]byte{[]byte("220 "), []byte("SMTP")},
	},
	{
		name:     "POP3",
		ports:    []int{110, 995},
		patterns: [][]byte{[]byte("+OK")},
	},
	{
		name:     "IMAP",
		ports:    []int{143, 993},
		patterns: [][]byte{[]byte("* OK"), []byte("IMAP")},
	},
	{
		name:     "MySQL",
		ports:    []int{3306},
		patterns: [][]byte{{0x0a}},
	},
	{
		name:     "RDP",
		ports:    []int{3389},
		probe: []byte{
			0x03, 0x00, 0x00, 0x13, 0x0e, 0xe0, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x01, 0x00, 0x08, 0x00, 0x03, 0x00, 0x00, 0x00,
		},
		patterns: [][]byte{{0x03, 0x00}},
	},
	{
		name:     "MQTT",
		ports:    []int{1883, 8883},
		patterns: [][]byte{{0x20}},
	},
}

// IdentifyProtocol matches response bytes from a port against the protocol
// table. An empty string means no pattern matched.
func IdentifyProtocol(port int, response []byte) string {
	if len(response) == 0 {
		return ""
	}
	for _, pp := range protocolPatterns {
		if !containsPort(pp.ports, port) {
			continue
		}
		for _, pat := range pp.patterns {
			if bytes.Contains(response, pat) {
				return pp.name
			}
		}
	}
	return ""
}

// analyzeProtocols confirms application protocols on the host's open ports by
// sending per-protocol probes and matching the responses. Only ports already
// observed open are contacted again.
func (p *Prober) analyzeProtocols(ctx context.Context, addr netip.Addr, open []PortResult) []string {
	found := make(map[string]struct{})

	for _, pr := range open {
		// A greeting captured during banner grabbing may already
		// identify the protocol without another connection.
		if name := IdentifyProtocol(pr.Port, []byte(pr.Banner)); name != "" {
			found[name] = struct{}{}
			continue
		}

		pp, ok := patternForPort(pr.Port)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if resp := p.exchange(ctx, addr, pr.Port, pp.probe); len(resp) > 0 {
			if name := IdentifyProtocol(pr.Port, resp); name != "" {
				found[name] = struct{}{}
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exchange connects to a port, optionally writes a probe, and reads whatever
// the peer sends back within a short window.
func (p *Prober) exchange(ctx context.Context, addr netip.Addr, port int, payload []byte) []byte {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		return nil
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(p.bannerReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return nil
		}
	}

	buf := make([]byte, 1024)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return nil
	}
	return buf[:n]
}

func patternForPort(port int) (protocolPattern, bool) {
	for _, pp := range protocolPatterns {
		if containsPort(pp.ports, port) {
			return pp, true
		}
	}
	return protocolPattern{}, false
}

func containsPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

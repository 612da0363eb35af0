// Package target expands a target specification string into the concrete,
// ordered set of addresses a scan session will probe. Supported grammars:
// single IP, CIDR block, comma-separated list, and dashed range.
package target

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/anstrom/netmapper/internal/errors"
)

const (
	// Masks more specific than this never carry distinct
	// network/broadcast addresses (RFC 3021).
	hostOnlyCutoffBits = 31

	defaultMaxTargets = 65536
)

// Set is an ordered, deduplicated sequence of addresses. Order is stable for
// a given specification so scan logs are reproducible.
type Set []netip.Addr

// Strings returns the set as dotted-quad strings, in set order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.String()
	}
	return out
}

// Options control expansion behavior.
type Options struct {
	// HostsOnly excludes the network and broadcast addresses when
	// expanding CIDR blocks with masks more specific than /31.
	HostsOnly bool

	// MaxTargets caps the expanded set size. Zero selects the default.
	MaxTargets int
}

// Expand parses a target specification and produces the Target Set.
// Specifications that match none of the supported grammars fail with
// CodeTargetInvalid; specifications expanding past the ceiling fail with
// CodeTargetSetTooLarge rather than silently truncating.
func Expand(spec string, opts Options) (Set, error) {
	limit := opts.MaxTargets
	if limit <= 0 {
		limit = defaultMaxTargets
	}

	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, errors.ErrInvalidTargetSpec(spec)
	}

	var set Set
	seen := make(map[netip.Addr]struct{})
	add := func(a netip.Addr) error {
		if _, dup := seen[a]; dup {
			return nil
		}
		if len(set) >= limit {
			// Size is reported as "more than limit"; counting the
			// full expansion could itself be pathological.
			return errors.ErrTargetSetTooLarge(spec, limit+1, limit)
		}
		seen[a] = struct{}{}
		set = append(set, a)
		return nil
	}

	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.ErrInvalidTargetSpec(spec)
		}
		if err := expandPart(spec, part, opts, add); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// expandPart expands one comma-separated element of the specification.
func expandPart(spec, part string, opts Options, add func(netip.Addr) error) error {
	switch {
	case strings.Contains(part, "/"):
		return expandCIDR(spec, part, opts.HostsOnly, add)
	case strings.Contains(part, "-"):
		return expandRange(spec, part, add)
	default:
		addr, err := parseIPv4(part)
		if err != nil {
			return errors.ErrInvalidTargetSpec(spec)
		}
		return add(addr)
	}
}

// expandCIDR expands a CIDR block in ascending address order.
func expandCIDR(spec, part string, hostsOnly bool, add func(netip.Addr) error) error {
	prefix, err := netip.ParsePrefix(part)
	if err != nil || !prefix.Addr().Is4() {
		return errors.ErrInvalidTargetSpec(spec)
	}
	prefix = prefix.Masked()

	first := prefix.Addr()
	excludeEdges := hostsOnly && prefix.Bits() < hostOnlyCutoffBits

	cur := first
	if excludeEdges {
		cur = cur.Next()
	}
	for prefix.Contains(cur) {
		next := cur.Next()
		if excludeEdges && !prefix.Contains(next) {
			break // broadcast address
		}
		if err := add(cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// expandRange expands a dashed range. Both full-address ranges
// ("10.0.0.5-10.0.0.9") and last-octet shorthand ("10.0.0.5-9") are accepted.
func expandRange(spec, part string, add func(netip.Addr) error) error {
	bounds := strings.SplitN(part, "-", 2)
	if len(bounds) != 2 {
		return errors.ErrInvalidTargetSpec(spec)
	}

	start, err := parseIPv4(strings.TrimSpace(bounds[0]))
	if err != nil {
		return errors.ErrInvalidTargetSpec(spec)
	}

	endStr := strings.TrimSpace(bounds[1])
	var end netip.Addr
	if strings.Contains(endStr, ".") {
		end, err = parseIPv4(endStr)
		if err != nil {
			return errors.ErrInvalidTargetSpec(spec)
		}
	} else {
		lastOctet, convErr := strconv.Atoi(endStr)
		if convErr != nil || lastOctet < 0 || lastOctet > 255 {
			return errors.ErrInvalidTargetSpec(spec)
		}
		b := start.As4()
		b[3] = byte(lastOctet)
		end = netip.AddrFrom4(b)
	}

	if end.Less(start) {
		return errors.ErrInvalidTargetSpec(spec)
	}

	for cur := start; cur.IsValid() && !end.Less(cur); cur = cur.Next() {
		if err := add(cur); err != nil {
			return err
		}
	}
	return nil
}

// parseIPv4 parses a bare IPv4 address, rejecting IPv6 and zone syntax.
func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, errors.NewTargetError(errors.CodeTargetInvalid, "not an IPv4 address", s)
	}
	return addr, nil
}

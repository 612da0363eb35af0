// Package macvendor resolves MAC addresses to hardware manufacturers. It
// checks a per-session cache first, then the built-in OUI table, and finally
// a remote lookup service; failures degrade to an "Unknown" entry that is
// cached so a prefix is never retried within the same scan.
package macvendor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anstrom/netmapper/internal/errors"
	"github.com/anstrom/netmapper/internal/logging"
	"github.com/anstrom/netmapper/internal/metrics"
)

const (
	// UnknownVendor is the vendor name reported when no source resolves
	// a prefix.
	UnknownVendor = "Unknown"

	maxRemoteBodyBytes = 64 * 1024
)

// Source identifies where a vendor name was resolved from.
type Source string

const (
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
	SourceUnknown Source = "unknown"
)

// Entry is a resolved vendor cache entry for one MAC prefix. Entries are
// immutable once published and live for the duration of the session.
type Entry struct {
	Prefix string
	Vendor string
	Source Source
}

// remoteResponse is the JSON shape returned by the maclookup.app API.
type remoteResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Company string `json:"company"`
	Error   string `json:"error,omitempty"`
}

// cacheSlot holds the eventual Entry for a prefix. The first requester for a
// prefix owns the resolution; later concurrent requesters wait on ready
// instead of issuing duplicate remote calls.
type cacheSlot struct {
	ready chan struct{}
	entry Entry
}

// Resolver maps MAC addresses to vendor names. It is owned by a single scan
// session and safe for use from concurrent probing tasks. The cache is never
// evicted during a session; it is bounded by the number of distinct prefixes
// observed.
type Resolver struct {
	enabled   bool
	remoteURL string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*cacheSlot
}

// Options configure a Resolver.
type Options struct {
	// Enabled toggles remote lookups; the local table is always consulted.
	Enabled bool

	// RemoteURL is the lookup endpoint; the normalized prefix is appended
	// as a path element.
	RemoteURL string

	// RemoteTimeout bounds a single remote lookup.
	RemoteTimeout time.Duration
}

// NewResolver creates a vendor resolver for one scan session.
func NewResolver(opts Options) *Resolver {
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		enabled:   opts.Enabled,
		remoteURL: strings.TrimRight(opts.RemoteURL, "/"),
		client:    &http.Client{Timeout: timeout},
		cache:     make(map[string]*cacheSlot),
	}
}

// Resolve returns the vendor entry for a MAC address. It never returns an
// error: unresolvable addresses yield an Unknown entry. Remote lookups are
// deduplicated per prefix; concurrent callers for an unresolved prefix block
// until the single in-flight lookup completes or their context is canceled.
func (r *Resolver) Resolve(ctx context.Context, mac string) Entry {
	prefix := NormalizePrefix(mac)
	if prefix == "" {
		return Entry{Vendor: UnknownVendor, Source: SourceUnknown}
	}

	r.mu.Lock()
	if slot, ok := r.cache[prefix]; ok {
		r.mu.Unlock()
		select {
		case <-slot.ready:
			return slot.entry
		case <-ctx.Done():
			// Canceled while another task resolves the prefix. Do
			// not cache: the in-flight owner will publish.
			return Entry{Prefix: prefix, Vendor: UnknownVendor, Source: SourceUnknown}
		}
	}
	slot := &cacheSlot{ready: make(chan struct{})}
	r.cache[prefix] = slot
	r.mu.Unlock()

	slot.entry = r.resolvePrefix(ctx, prefix)
	close(slot.ready)

	metrics.GetGlobalMetrics().IncrementVendorLookups(string(slot.entry.Source))
	return slot.entry
}

// CacheSize returns the number of distinct prefixes seen this session.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// resolvePrefix runs the local-then-remote resolution chain for one prefix.
func (r *Resolver) resolvePrefix(ctx context.Context, prefix string) Entry {
	if vendor, ok := lookupLocal(prefix); ok {
		return Entry{Prefix: prefix, Vendor: vendor, Source: SourceLocal}
	}

	if !r.enabled {
		return Entry{Prefix: prefix, Vendor: UnknownVendor, Source: SourceUnknown}
	}

	vendor, err := r.lookupRemote(ctx, prefix)
	if err != nil {
		// Cache the miss as unknown so the prefix is not retried
		// within this session.
		logging.WarnVendor("Remote vendor lookup failed", prefix, err)
		return Entry{Prefix: prefix, Vendor: UnknownVendor, Source: SourceUnknown}
	}

	return Entry{Prefix: prefix, Vendor: vendor, Source: SourceRemote}
}

// lookupRemote queries the remote lookup service for one prefix.
func (r *Resolver) lookupRemote(ctx context.Context, prefix string) (string, error) {
	url := fmt.Sprintf("%s/%s", r.remoteURL, strings.ReplaceAll(prefix, ":", ""))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", errors.WrapVendorError(errors.CodeVendorLookup, "failed to build lookup request", prefix, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		code := errors.CodeVendorLookup
		if ctx.Err() != nil {
			code = errors.CodeVendorTimeout
		}
		return "", errors.WrapVendorError(code, "remote lookup request failed", prefix, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.WrapVendorError(errors.CodeVendorLookup,
			fmt.Sprintf("remote lookup returned status %d", resp.StatusCode), prefix, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBodyBytes))
	if err != nil {
		return "", errors.WrapVendorError(errors.CodeVendorLookup, "failed to read lookup response", prefix, err)
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.WrapVendorError(errors.CodeVendorLookup, "failed to parse lookup response", prefix, err)
	}

	if !parsed.Success || !parsed.Found || parsed.Company == "" {
		return "", errors.WrapVendorError(errors.CodeVendorLookup, "prefix not found upstream", prefix, nil)
	}

	return parsed.Company, nil
}

// NormalizePrefix reduces a MAC address to its normalized OUI form
// ("AA:BB:CC"). Separators ':', '-', and '.' are accepted. An empty string is
// returned for anything that does not carry six leading hex digits.
func NormalizePrefix(mac string) string {
	cleaned := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(mac))
	cleaned = strings.ToUpper(cleaned)
	if len(cleaned) < 6 {
		return ""
	}
	cleaned = cleaned[:6]
	for _, c := range cleaned {
		isHex := (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
		if !isHex {
			return ""
		}
	}
	return cleaned[0:2] + ":" + cleaned[2:4] + ":" + cleaned[4:6]
}

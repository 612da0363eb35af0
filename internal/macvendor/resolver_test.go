package macvendor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name string
		mac  string
		want string
	}{
		{"colon separated", "00:0c:29:aa:bb:cc", "00:0C:29"},
		{"dash separated", "00-0C-29-AA-BB-CC", "00:0C:29"},
		{"dot separated", "000c.29aa.bbcc", "00:0C:29"},
		{"bare prefix", "b827eb", "B8:27:EB"},
		{"surrounding whitespace", "  00:0c:29:aa:bb:cc ", "00:0C:29"},
		{"too short", "00:0c", ""},
		{"non hex", "zz:0c:29:aa:bb:cc", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrefix(tt.mac))
		})
	}
}

func TestResolveLocalTable(t *testing.T) {
	// Remote deliberately disabled: known prefixes must resolve offline.
	r := NewResolver(Options{Enabled: false})

	entry := r.Resolve(context.Background(), "B8:27:EB:11:22:33")
	require.Equal(t, SourceLocal, entry.Source)
	assert.Contains(t, entry.Vendor, "Raspberry Pi")
	assert.Equal(t, "B8:27:EB", entry.Prefix)
}

func TestResolveUnknownWithoutRemote(t *testing.T) {
	r := NewResolver(Options{Enabled: false})

	entry := r.Resolve(context.Background(), "FE:ED:FA:CE:00:01")
	assert.Equal(t, UnknownVendor, entry.Vendor)
	assert.Equal(t, SourceUnknown, entry.Source)
	assert.Equal(t, 1, r.CacheSize())
}

func TestResolveInvalidMAC(t *testing.T) {
	r := NewResolver(Options{Enabled: true, RemoteURL: "http://127.0.0.1:1"})

	entry := r.Resolve(context.Background(), "not a mac")
	assert.Equal(t, UnknownVendor, entry.Vendor)
	assert.Equal(t, SourceUnknown, entry.Source)
	// Garbage never occupies a cache slot.
	assert.Equal(t, 0, r.CacheSize())
}

func TestResolveRemote(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/FEEDFA", req.URL.Path)
		_ = json.NewEncoder(w).Encode(remoteResponse{
			Success: true,
			Found:   true,
			Company: "Acme Devices Inc",
		})
	}))
	defer server.Close()

	r := NewResolver(Options{Enabled: true, RemoteURL: server.URL, RemoteTimeout: time.Second})

	entry := r.Resolve(context.Background(), "FE:ED:FA:00:11:22")
	require.Equal(t, SourceRemote, entry.Source)
	assert.Equal(t, "Acme Devices Inc", entry.Vendor)

	// Same prefix, different NIC suffix: served from cache.
	again := r.Resolve(context.Background(), "FE:ED:FA:99:88:77")
	assert.Equal(t, entry, again)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, r.CacheSize())
}

func TestResolveRemoteDeduplicatesConcurrent(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(remoteResponse{Success: true, Found: true, Company: "Acme"})
	}))
	defer server.Close()

	r := NewResolver(Options{Enabled: true, RemoteURL: server.URL, RemoteTimeout: 5 * time.Second})

	const workers = 8
	var wg sync.WaitGroup
	entries := make([]Entry, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = r.Resolve(context.Background(), "FE:ED:FA:00:00:01")
		}(i)
	}

	// Let the goroutines pile up on the slot before the lookup returns.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "expected a single remote lookup per prefix")
	for _, entry := range entries {
		assert.Equal(t, "Acme", entry.Vendor)
		assert.Equal(t, SourceRemote, entry.Source)
	}
}

func TestResolveRemoteFailureCachedAsUnknown(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	r := NewResolver(Options{Enabled: true, RemoteURL: server.URL, RemoteTimeout: time.Second})

	first := r.Resolve(context.Background(), "FE:ED:FA:00:00:02")
	assert.Equal(t, UnknownVendor, first.Vendor)
	assert.Equal(t, SourceUnknown, first.Source)

	// The failure is cached; the prefix is not retried this session.
	second := r.Resolve(context.Background(), "FE:ED:FA:00:00:02")
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
}

func TestResolveRemoteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteResponse{Success: true, Found: false})
	}))
	defer server.Close()

	r := NewResolver(Options{Enabled: true, RemoteURL: server.URL, RemoteTimeout: time.Second})

	entry := r.Resolve(context.Background(), "FE:ED:FA:00:00:03")
	assert.Equal(t, UnknownVendor, entry.Vendor)
	assert.Equal(t, SourceUnknown, entry.Source)
}

func TestResolveLocalHitSkipsRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Error("remote endpoint must not be contacted for a local table hit")
	}))
	defer server.Close()

	r := NewResolver(Options{Enabled: true, RemoteURL: server.URL, RemoteTimeout: time.Second})

	entry := r.Resolve(context.Background(), "00:0C:29:12:34:56")
	require.Equal(t, SourceLocal, entry.Source)
	assert.Contains(t, entry.Vendor, "VMware")
}

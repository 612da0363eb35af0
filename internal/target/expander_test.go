package target

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netmapper/internal/errors"
)

func TestExpandSingleIP(t *testing.T) {
	set, err := Expand("192.168.1.10", Options{})
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "192.168.1.10", set[0].String())
}

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		hostsOnly bool
		want      int
		first     string
		last      string
	}{
		{
			name:  "slash 24 includes network and broadcast",
			spec:  "192.168.1.0/24",
			want:  256,
			first: "192.168.1.0",
			last:  "192.168.1.255",
		},
		{
			name:      "slash 24 hosts only",
			spec:      "192.168.1.0/24",
			hostsOnly: true,
			want:      254,
			first:     "192.168.1.1",
			last:      "192.168.1.254",
		},
		{
			name:  "slash 30 full",
			spec:  "10.0.0.0/30",
			want:  4,
			first: "10.0.0.0",
			last:  "10.0.0.3",
		},
		{
			name:      "slash 30 hosts only",
			spec:      "10.0.0.0/30",
			hostsOnly: true,
			want:      2,
			first:     "10.0.0.1",
			last:      "10.0.0.2",
		},
		{
			name:      "slash 31 keeps both addresses",
			spec:      "10.0.0.0/31",
			hostsOnly: true,
			want:      2,
			first:     "10.0.0.0",
			last:      "10.0.0.1",
		},
		{
			name:      "slash 32 keeps the single address",
			spec:      "10.0.0.7/32",
			hostsOnly: true,
			want:      1,
			first:     "10.0.0.7",
			last:      "10.0.0.7",
		},
		{
			name:  "unmasked base address is masked first",
			spec:  "192.168.1.77/24",
			want:  256,
			first: "192.168.1.0",
			last:  "192.168.1.255",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Expand(tt.spec, Options{HostsOnly: tt.hostsOnly})
			require.NoError(t, err)
			require.Len(t, set, tt.want)
			assert.Equal(t, tt.first, set[0].String())
			assert.Equal(t, tt.last, set[len(set)-1].String())
		})
	}
}

func TestExpandRange(t *testing.T) {
	t.Run("full address range", func(t *testing.T) {
		set, err := Expand("10.0.0.5-10.0.0.9", Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.5", "10.0.0.6", "10.0.0.7", "10.0.0.8", "10.0.0.9"}, set.Strings())
	})

	t.Run("last octet shorthand", func(t *testing.T) {
		set, err := Expand("192.168.1.10-12", Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.10", "192.168.1.11", "192.168.1.12"}, set.Strings())
	})

	t.Run("single element range", func(t *testing.T) {
		set, err := Expand("10.0.0.5-5", Options{})
		require.NoError(t, err)
		require.Len(t, set, 1)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := Expand("10.0.0.9-10.0.0.5", Options{})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	})
}

func TestExpandList(t *testing.T) {
	set, err := Expand("192.168.1.1, 10.0.0.0/30 ,172.16.0.5-7", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"192.168.1.1",
		"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3",
		"172.16.0.5", "172.16.0.6", "172.16.0.7",
	}, set.Strings())
}

func TestExpandDeduplicates(t *testing.T) {
	set, err := Expand("10.0.0.1,10.0.0.0/30,10.0.0.1", Options{})
	require.NoError(t, err)

	seen := make(map[netip.Addr]int)
	for _, a := range set {
		seen[a]++
	}
	for a, n := range seen {
		assert.Equal(t, 1, n, "address %s appears more than once", a)
	}
	// First occurrence wins the position.
	assert.Equal(t, "10.0.0.1", set[0].String())
	require.Len(t, set, 4)
}

func TestExpandDeterministic(t *testing.T) {
	first, err := Expand("192.168.0.0/28,10.1.2.3", Options{})
	require.NoError(t, err)
	second, err := Expand("192.168.0.0/28,10.1.2.3", Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
		code errors.ErrorCode
	}{
		{"empty spec", "", errors.CodeTargetInvalid},
		{"whitespace spec", "   ", errors.CodeTargetInvalid},
		{"garbage", "not-an-ip", errors.CodeTargetInvalid},
		{"trailing comma", "10.0.0.1,", errors.CodeTargetInvalid},
		{"ipv6 rejected", "2001:db8::1", errors.CodeTargetInvalid},
		{"ipv6 cidr rejected", "2001:db8::/64", errors.CodeTargetInvalid},
		{"bad octet", "10.0.0.300", errors.CodeTargetInvalid},
		{"bad range bound", "10.0.0.5-abc", errors.CodeTargetInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.spec, Options{})
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestExpandCeiling(t *testing.T) {
	_, err := Expand("10.0.0.0/24", Options{MaxTargets: 100})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetSetTooLarge))
	assert.True(t, errors.IsSetup(err))

	// A set exactly at the ceiling passes.
	set, err := Expand("10.0.0.0/24", Options{MaxTargets: 256})
	require.NoError(t, err)
	assert.Len(t, set, 256)
}

package probe

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const reverseLookupTimeout = 2 * time.Second

// reverseLookup resolves the PTR record for an address using the system's
// configured resolver. An empty string is returned when the host has no
// reverse entry or the resolver is unavailable; hostname resolution is a
// best-effort classification signal, never a probe failure.
func reverseLookup(ctx context.Context, addr netip.Addr) string {
	name, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return ""
	}

	resolvConf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(resolvConf.Servers) == 0 {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)

	client := &dns.Client{Timeout: reverseLookupTimeout}
	server := resolvConf.Servers[0] + ":" + resolvConf.Port

	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil || in == nil {
		return ""
	}

	for _, answer := range in.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}

package probe

import (
	"context"
	"net/netip"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"
	oidSysName  = "1.3.6.1.2.1.1.5.0"

	snmpTimeout = 2 * time.Second
)

// querySNMP asks the host for its sysDescr and sysName over SNMP v2c with
// the public community. Most managed network gear answers this, which makes
// it a strong router/switch/printer signal in local mode. Failure returns an
// empty string.
func querySNMP(ctx context.Context, addr netip.Addr) string {
	client := &gosnmp.GoSNMP{
		Target:    addr.String(),
		Port:      161,
		Community: "public",
		Version:   gosnmp.Version2c,
		Timeout:   snmpTimeout,
		Retries:   0,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return ""
	}
	defer func() { _ = client.Conn.Close() }()

	pkt, err := client.Get([]string{oidSysDescr, oidSysName})
	if err != nil || pkt == nil {
		return ""
	}

	var descr, name string
	for _, v := range pkt.Variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		bytes, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		switch v.Name {
		case "." + oidSysDescr:
			descr = string(bytes)
		case "." + oidSysName:
			name = string(bytes)
		}
	}

	if descr == "" {
		return name
	}
	if name != "" && name != descr {
		return descr + " (" + name + ")"
	}
	return descr
}

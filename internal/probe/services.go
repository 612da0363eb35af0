package probe

// wellKnownServices maps common TCP ports to service names, used when no
// banner or tool-reported name is available.
var wellKnownServices = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	443:   "https",
	445:   "microsoft-ds",
	548:   "afp",
	554:   "rtsp",
	587:   "submission",
	631:   "ipp",
	993:   "imaps",
	995:   "pop3s",
	1883:  "mqtt",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5672:  "amqp",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-proxy",
	8443:  "https-alt",
	8883:  "secure-mqtt",
	9100:  "jetdirect",
	11211: "memcached",
	27017: "mongodb",
}

// ServiceForPort returns the well-known service name for a TCP port, or
// "unknown" when the port has no conventional assignment.
func ServiceForPort(port int) string {
	if name, ok := wellKnownServices[port]; ok {
		return name
	}
	return "unknown"
}

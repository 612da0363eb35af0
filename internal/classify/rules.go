package classify

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/netmapper/internal/errors"
)

// Weights control how much each signal kind contributes to a rule's score.
// Text patterns outweigh services, which outweigh bare port numbers, because
// a banner or hostname match is far less ambiguous than an open port.
type Weights struct {
	Port    int `yaml:"port"`
	Service int `yaml:"service"`
	Pattern int `yaml:"pattern"`
	Vendor  int `yaml:"vendor"`
}

// DeviceRule describes one device type: the ports, service names, text
// patterns, and vendor substrings that vote for it. Rules earlier in the
// table win score ties.
type DeviceRule struct {
	Type     string   `yaml:"type"`
	Ports    []int    `yaml:"ports,omitempty"`
	Services []string `yaml:"services,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
	Vendors  []string `yaml:"vendors,omitempty"`
}

// OSRule describes one operating system family by text patterns and the
// ports characteristic of it.
type OSRule struct {
	Name     string   `yaml:"name"`
	Ports    []int    `yaml:"ports,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// RuleTable is the complete classification rule set. It is YAML-serializable
// so deployments can override the built-in rules with a rules file.
type RuleTable struct {
	Weights Weights      `yaml:"weights"`
	Devices []DeviceRule `yaml:"devices"`
	OS      []OSRule     `yaml:"os"`
}

// LoadRules reads a rule table from a YAML file.
func LoadRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read rules file", err)
	}
	table := &RuleTable{}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse rules file", err)
	}
	if table.Weights == (Weights{}) {
		table.Weights = DefaultRules().Weights
	}
	return table, nil
}

// DefaultRules returns the built-in rule table.
//
// Note the router rule deliberately carries no plain web ports: almost every
// device class ships an HTTP admin page, so 80/443 alone must never vote for
// network gear. Routers are recognized by telnet, management banners, and
// vendor identity instead.
func DefaultRules() *RuleTable {
	return &RuleTable{
		Weights: Weights{Port: 2, Service: 3, Pattern: 5, Vendor: 4},
		Devices: []DeviceRule{
			{
				Type:     "router",
				Ports:    []int{23},
				Services: []string{"telnet"},
				Patterns: []string{"router", "gateway", "routeros", "openwrt", "dd-wrt", "ios software", "junos"},
				Vendors:  []string{"cisco", "mikrotik", "ubiquiti", "tp-link", "netgear", "d-link", "juniper", "fortinet"},
			},
			{
				Type:     "switch",
				Patterns: []string{"switch", "catalyst", "procurve", "managed switch"},
				Vendors:  []string{"hewlett packard", "aruba", "extreme networks"},
			},
			{
				Type:     "server",
				Ports:    []int{22, 25, 80, 443, 3306, 5432, 8080},
				Services: []string{"ssh", "smtp", "http", "https", "mysql", "postgresql"},
				Patterns: []string{"server", "apache", "nginx", "iis", "postfix"},
			},
			{
				Type:     "printer",
				Ports:    []int{515, 631, 9100},
				Services: []string{"printer", "ipp", "jetdirect"},
				Patterns: []string{"printer", "laserjet", "jetdirect", "imageclass"},
				Vendors:  []string{"hp inc", "canon", "epson", "brother", "lexmark", "xerox"},
			},
			{
				Type:     "camera",
				Ports:    []int{554},
				Services: []string{"rtsp"},
				Patterns: []string{"camera", "ipcam", "nvr", "dvr"},
				Vendors:  []string{"hikvision", "dahua", "axis communications", "reolink"},
			},
			{
				Type:     "iot",
				Ports:    []int{1883, 8883},
				Services: []string{"mqtt"},
				Patterns: []string{"esp32", "esp8266", "tasmota", "smart"},
				Vendors:  []string{"espressif", "raspberry pi", "tuya", "sonoff", "shelly"},
			},
			{
				Type:     "mobile",
				Patterns: []string{"iphone", "ipad", "android"},
				Vendors:  []string{"apple", "samsung", "xiaomi", "huawei", "oneplus"},
			},
			{
				Type:     "workstation",
				Ports:    []int{135, 139, 445, 3389},
				Services: []string{"msrpc", "netbios-ssn", "microsoft-ds", "rdp", "ms-wbt-server"},
				Patterns: []string{"desktop", "workstation", "laptop"},
				Vendors:  []string{"dell", "lenovo", "asus", "acer"},
			},
		},
		OS: []OSRule{
			{
				Name:     "Windows",
				Ports:    []int{135, 139, 445, 3389},
				Patterns: []string{"windows", "microsoft", "win32", "win64"},
			},
			{
				Name:     "Linux/Unix",
				Ports:    []int{22},
				Patterns: []string{"linux", "ubuntu", "debian", "centos", "fedora", "unix", "freebsd", "openssh"},
			},
			{
				Name:     "macOS",
				Patterns: []string{"darwin", "macos", "mac os x", "apple"},
			},
			{
				Name:     "Network Device",
				Patterns: []string{"routeros", "ios software", "junos", "fortios", "edgeos"},
			},
		},
	}
}

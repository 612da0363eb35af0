package macvendor

// localOUI is the built-in manufacturer table, keyed by normalized MAC prefix.
// It covers the vendors most often seen on office and home networks so the
// common case never needs a remote lookup.
var localOUI = map[string]string{
	// Virtualization
	"00:0C:29": "VMware, Inc.",
	"00:50:56": "VMware, Inc.",
	"00:1C:42": "Parallels, Inc.",
	"08:00:27": "Oracle VirtualBox",
	"52:54:00": "QEMU/KVM",

	// Apple
	"00:1B:63": "Apple, Inc.",
	"00:1C:58": "Apple, Inc.",
	"00:23:DF": "Apple, Inc.",
	"28:CF:E9": "Apple, Inc.",
	"3C:22:FB": "Apple, Inc.",
	"F0:18:98": "Apple, Inc.",

	// Cisco
	"00:0C:41": "Cisco Systems, Inc.",
	"00:0D:0B": "Cisco Systems, Inc.",
	"00:1A:A1": "Cisco Systems, Inc.",
	"58:97:1E": "Cisco Systems, Inc.",

	// Network equipment
	"24:A4:3C": "Ubiquiti Networks Inc.",
	"78:8A:20": "Ubiquiti Networks Inc.",
	"4C:5E:0C": "Routerboard/MikroTik",
	"D4:CA:6D": "Routerboard/MikroTik",
	"A0:40:A0": "NETGEAR",
	"50:C7:BF": "TP-Link Technologies Co., Ltd.",
	"F4:F2:6D": "TP-Link Technologies Co., Ltd.",
	"00:05:85": "Juniper Networks",
	"00:09:0F": "Fortinet, Inc.",

	// Computers
	"00:14:22": "Dell Inc.",
	"18:66:DA": "Dell Inc.",
	"3C:52:82": "Hewlett Packard",
	"94:57:A5": "Hewlett Packard",
	"00:1B:21": "Intel Corporate",
	"A0:36:9F": "Intel Corporate",
	"54:EE:75": "Lenovo",
	"00:1E:68": "ASUSTek Computer Inc.",

	// Printers
	"00:17:C8": "Brother Industries, Ltd.",
	"00:26:AB": "Seiko Epson Corporation",
	"00:1E:8F": "Canon Inc.",
	"9C:93:4E": "Xerox Corporation",

	// Cameras and IoT
	"44:19:B6": "Hangzhou Hikvision Digital Technology",
	"00:40:8C": "Axis Communications AB",
	"B8:27:EB": "Raspberry Pi Foundation",
	"DC:A6:32": "Raspberry Pi Trading Ltd",
	"EC:FA:BC": "Espressif Inc.",
	"24:0A:C4": "Espressif Inc.",
	"18:B4:30": "Nest Labs Inc.",

	// Mobile
	"8C:F5:A3": "Samsung Electronics Co., Ltd",
	"64:B4:73": "Xiaomi Communications Co Ltd",
	"AC:37:43": "HTC Corporation",
	"F8:A9:D0": "LG Electronics",
}

// lookupLocal checks the built-in manufacturer table for a normalized prefix.
func lookupLocal(prefix string) (string, bool) {
	vendor, ok := localOUI[prefix]
	return vendor, ok
}

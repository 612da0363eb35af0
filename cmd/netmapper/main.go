// Command netmapper is the network host discovery and characterization tool.
package main

import (
	"github.com/anstrom/netmapper/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}

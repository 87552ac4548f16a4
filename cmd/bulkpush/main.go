// bulkpush - multi-credential bulk uploader for content repositories.
package main

import (
	"os"

	"github.com/fieldline/bulkpush/internal/cli"
	"github.com/fieldline/bulkpush/internal/version"
)

// Version information, injected via LDFLAGS by the Makefile.
var (
	Version   = "v1.3.0"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		// Cobra already printed the error through RunE handling.
		os.Exit(1)
	}
}

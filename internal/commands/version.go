package commands

import (
	"fmt"
	"runtime"

	"crewmon/internal/output"
	"crewmon/internal/ui"
)

// Version information, set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func RunVersion() {
	output.Print(map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
		"go":      runtime.Version(),
	}, func() {
		fmt.Fprintf(ui.Out, "crewmon version %s (commit %s, built %s, %s)\n", Version, Commit, Date, runtime.Version())
	})
}

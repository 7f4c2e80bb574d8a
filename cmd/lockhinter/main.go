package main

import (
	"os"
	"runtime"

	"github.com/bnema/lockhinter/internal/build"
	"github.com/bnema/lockhinter/internal/cli/cmd"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetBuildInfo(build.Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	})

	os.Exit(cmd.Execute())
}

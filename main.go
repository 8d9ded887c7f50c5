package main

import (
	"runtime"

	"smoothfade/cmd"
	applog "smoothfade/internal/log"
	"smoothfade/pkg/build"
)

// main is the entry point for the fader.
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//
// 2. Command Phase:
//   - Parse command line arguments and run the chosen subcommand
//   - Each subcommand releases whatever it opened before returning
func main() {
	// Initialize build information including version, commit hash, and build time.
	// Development builds run without ldflags.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v, reporting %s", err, build.GetBuildInfo())
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the output callback (time-critical)
	// - One thread for UI, monitoring and I/O
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(); err != nil {
		applog.Fatalf("%v", err)
	}
}

// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the smoothfade binary at
// link time. The values are set with -ldflags, for example:
//
//	go build -ldflags "-X smoothfade/pkg/build.buildVersion=0.2.0 \
//	    -X smoothfade/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X smoothfade/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run without them and report "dev".
package build

import "fmt"

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for the --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "smoothfade",
		Description: "Click-free linear and exponential gain fades",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build info. It returns an
// error naming the first missing value; the defaults stay in place for the
// values that were not provided, so callers may treat the error as a warning.
func Initialize() error {
	if buildName != "" {
		buildInfo.Name = buildName
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	buildInfo.Time = buildTime
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	buildInfo.Commit = buildCommit
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}
	buildInfo.Version = buildVersion

	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}

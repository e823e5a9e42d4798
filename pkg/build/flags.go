// SPDX-License-Identifier: MIT
//
// Package build holds the version metadata injected with linker flags:
//
//	go build -ldflags "-X tuner/pkg/build.buildName=tuner \
//	  -X tuner/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X tuner/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X tuner/pkg/build.buildVersion=0.1.0"
//
// A plain `go build` sets none of them and yields a development build.
package build

import "fmt"

const (
	DefaultName        = "tuner"
	DefaultDescription = "Guitar tuner showing a live octave-folded pitch histogram"
	devValue           = "dev"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Dev         bool
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = devFlags()
)

func devFlags() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
		Dev:         true,
	}
}

// Initialize copies the linker-provided values into the build information.
// With no flags set it keeps the development defaults. A partial set is an
// error since it means the release build script is broken.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		*buildFlags = *devFlags()
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	buildFlags.Dev = false

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the version line shown by --version.
func (f *ldFlags) String() string {
	if f.Dev {
		return fmt.Sprintf("%s (development build)", f.Version)
	}
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}

// Package buildinfo exposes version metadata stamped at link time, e.g.
//
//	go build -ldflags "-X roadwiki/app/internal/buildinfo.Version=2.1.0"
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	// Version is the product version reported by the API and the CLI.
	Version = "dev"
	// FileVersion is the build number of the binary.
	FileVersion = "0"
	// Commit is the source revision the binary was built from.
	Commit = ""
)

// Info describes the running binary.
type Info struct {
	Version     string `json:"version" doc:"Product version"`
	FileVersion string `json:"fileVersion" doc:"Build number"`
	Commit      string `json:"commit,omitempty" doc:"Source revision"`
	GoVersion   string `json:"goVersion" doc:"Go runtime version"`
}

// Current returns the build metadata of this binary.
func Current() Info {
	return Info{
		Version:     Version,
		FileVersion: FileVersion,
		Commit:      Commit,
		GoVersion:   runtime.Version(),
	}
}

// Release formats the release identifier reported to Sentry.
func Release() string {
	if Commit == "" {
		return fmt.Sprintf("roadwiki@%s+%s", Version, FileVersion)
	}
	return fmt.Sprintf("roadwiki@%s+%s.%s", Version, FileVersion, Commit)
}

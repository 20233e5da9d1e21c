// Package version exposes build information set via ldflags.
package version

import "runtime"

var (
	// Version is the semantic version, set at build time.
	Version = "dev"
	// Commit is the git commit hash, set at build time.
	Commit = "unknown"
	// Date is the build date, set at build time.
	Date = "unknown"
)

// Info holds resolved build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

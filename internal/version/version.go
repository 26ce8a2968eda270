// Package version exposes ctx's build identity: the semantic version,
// git commit, and build timestamp baked in via linker flags, plus the
// toolchain that produced the binary. cmd/ctx's --version flag reads
// from here.
package version

import (
	"fmt"
	"runtime"
)

// Set via:
// go build -ldflags "-X github.com/wenkaifan0720/ctx/internal/version.Version=1.0.0 -X github.com/wenkaifan0720/ctx/internal/version.Commit=abc123"
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const shortCommitLen = 7

// Info is a one-line "version (commit)" summary, dropping the commit
// suffix entirely unless it's a real hash longer than the short form.
func Info() string {
	if Commit == "unknown" || len(Commit) <= shortCommitLen {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit[:shortCommitLen])
}

// Full renders every build field on its own line, including the Go
// toolchain and target platform the binary was compiled for.
func Full() string {
	return fmt.Sprintf(
		"ctx version %s\nCommit: %s\nBuilt: %s\nGo: %s\nPlatform: %s/%s",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH,
	)
}

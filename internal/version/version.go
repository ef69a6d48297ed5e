// Package version exposes build information stamped in via ldflags:
//
//	go build -ldflags "\
//	  -X github.com/jmylchreest/audiarr/internal/version.Version=1.2.3 \
//	  -X github.com/jmylchreest/audiarr/internal/version.Commit=$(git rev-parse HEAD) \
//	  -X github.com/jmylchreest/audiarr/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

const appName = "audiarr"

// Stamped at build time. Untouched builds report "dev".
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	Branch    = "unknown"
	TreeState = "unknown"
)

// Info is the JSON shape of `audiarr version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	TreeState string `json:"tree_state"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo collects the stamped values plus runtime details.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Branch:    Branch,
		TreeState: TreeState,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the long form used by `audiarr version`.
func String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s (", appName, Version)
	if stamped() {
		fmt.Fprintf(&b, "commit: %s%s, ", shortCommit(), dirtyMarker())
		if Branch != "" && Branch != "unknown" {
			fmt.Fprintf(&b, "branch: %s, ", Branch)
		}
		fmt.Fprintf(&b, "built: %s, ", Date)
	}
	fmt.Fprintf(&b, "%s, %s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return b.String()
}

// Short is the form Cobra shows for --version; Cobra prepends the app name.
func Short() string {
	if stamped() {
		return fmt.Sprintf("%s (%s%s)", Version, shortCommit(), dirtyMarker())
	}
	return Version
}

// JSON renders GetInfo as indented JSON.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// UserAgent identifies audiarr on outbound HTTP requests.
func UserAgent() string {
	return appName + "/" + Version
}

func stamped() bool {
	return Commit != "unknown" && len(Commit) >= 8
}

func shortCommit() string {
	if len(Commit) >= 8 {
		return Commit[:8]
	}
	return Commit
}

func dirtyMarker() string {
	if TreeState == "dirty" {
		return "*"
	}
	return ""
}

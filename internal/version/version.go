// Package version holds build metadata injected with -ldflags -X.
package version

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/bissquit/subledger/internal/version.Version=1.2.0"
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata served on /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: GitCommit, BuildDate: BuildDate}
}

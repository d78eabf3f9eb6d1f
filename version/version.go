package version //nolint:revive // package name intentionally matches build-info convention

import "fmt"

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository = "github.com/pitabwire/bucketbackend"
	Version    = "dev"
	Commit     string
	Date       string
)

// String describes the build for --version output.
func String() string {
	out := Version
	if Commit != "" {
		out = fmt.Sprintf("%s (%s)", out, Commit)
	}
	if Date != "" {
		out = fmt.Sprintf("%s built %s", out, Date)
	}
	return out
}

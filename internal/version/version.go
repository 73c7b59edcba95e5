// Package version carries build metadata stamped in via -ldflags.
package version

var (
	Version = "dev"
	Commit  = "unknown"
)

func Info() string {
	return Version + " (" + Commit + ")"
}

package cli

import "fmt"

// Build metadata, overridden at release time via -ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// formatVersion renders the string shown by --version.
func formatVersion() string {
	v := version
	if v == "" {
		v = "dev"
	}
	c := commit
	if c == "" {
		c = "unknown"
	}
	d := date
	if d == "" {
		d = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

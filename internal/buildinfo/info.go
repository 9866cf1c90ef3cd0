// Package buildinfo carries the version metadata shown by --version.
package buildinfo

// Stamped through -ldflags at release time. The defaults identify a plain
// source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Package version holds the build version, set via ldflags at release time.
package version

// Version is the application version. Overridden at build time with
// -ldflags "-X github.com/sydlexius/songcanon/internal/version.Version=...".
var Version = "dev"

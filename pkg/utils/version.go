// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Build metadata, set with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString is the multi-line build description printed by grove version.
func VersionString() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s\n", Version, Sha, Buildtime)
}

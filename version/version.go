// Package version provides the application version in semantic version form.
package version

import (
	"fmt"
	"strings"
)

// semanticAlphabet defines the characters allowed in the pre-release portion
// of the version per the semantic versioning spec.
const semanticAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

// These constants define the application version and follow the semantic
// versioning 2.0.0 spec (http://semver.org/).
const (
	Major uint32 = 0
	Minor uint32 = 1
	Patch uint32 = 0

	// PreRelease is appended to the version string if it is not empty.  It
	// must only contain characters from semanticAlphabet per the semantic
	// versioning spec.
	PreRelease = "beta"
)

// String returns the application version as a properly formed string per the
// semantic versioning 2.0.0 spec (http://semver.org/).
func String() string {
	// Start with the major, minor, and patch versions.
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)

	// Append pre-release version if there is one.  The hyphen called for
	// by the semantic versioning spec is automatically appended and should
	// not be contained in the pre-release string.
	if PreRelease != "" {
		version = fmt.Sprintf("%s-%s", version,
			normalizeVerString(PreRelease))
	}

	return version
}

// normalizeVerString returns the passed string stripped of all characters
// which are not valid according to the semantic versioning guidelines.
func normalizeVerString(str string) string {
	var result strings.Builder
	for _, r := range str {
		if strings.ContainsRune(semanticAlphabet, r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

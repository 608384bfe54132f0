package api

import (
	"github.com/Masterminds/semver/v3"
)

// ServerVersion is the keygate server release.
const ServerVersion = "0.1.0"

// ApiVersion is the version of the HTTP API.
const ApiVersion = "v1"

// versionConstraint accepts servers with the same major and minor version.
var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("~" + ServerVersion)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether a server reporting version can be used
// by this client. Invalid version strings are incompatible.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return versionConstraint.Check(v)
}

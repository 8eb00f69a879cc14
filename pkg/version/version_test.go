package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given the package default or an ldflags value
	if Version == "dev" {
		return
	}

	// Then it is semver
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_NamesBinaryAndBuild(t *testing.T) {
	// When formatting the build
	str := String()

	// Then it carries the binary name, version and toolchain
	assert.Contains(t, str, "lexindex "+Version)
	assert.Contains(t, str, "commit: "+Commit)
	assert.Contains(t, str, runtime.Version())
}

func TestGetInfo_MarshalsJSON(t *testing.T) {
	// When encoding the build info
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	// Then the field names are stable
	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, Version, m["version"])
	assert.Equal(t, runtime.GOOS, m["os"])
	assert.Equal(t, runtime.GOARCH, m["arch"])
	assert.Contains(t, m, "go_version")
}

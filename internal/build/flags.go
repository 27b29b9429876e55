// SPDX-License-Identifier: MIT
//
// Package build exposes metadata injected at link time, for example:
//
//	go build -ldflags "-X studio/internal/build.buildName=studio \
//	  -X studio/internal/build.buildVersion=0.3.0 \
//	  -X studio/internal/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ) \
//	  -X studio/internal/build.buildCommit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Uuid        string
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation. Development builds fall back to defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUuid    string
	buildFlags   = &ldFlags{
		Name:        "studio",
		Description: "Layered canvas compositing recorder",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
		Uuid:        "unknown",
	}
)

// Initialize copies build information from the ldflags variables into the
// buildFlags struct. Unset values keep their development defaults; a build
// time that is set but not RFC3339 is rejected. A build without an injected
// uuid gets a random one so log lines from one process can be correlated.
func Initialize() error {
	if buildTime != "" {
		if _, err := time.Parse(time.RFC3339, buildTime); err != nil {
			return fmt.Errorf("BuildTime must be RFC3339: %w", err)
		}
		buildFlags.Time = buildTime
	}
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
	if buildUuid != "" {
		buildFlags.Uuid = buildUuid
	} else {
		buildFlags.Uuid = uuid.NewString()
	}

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

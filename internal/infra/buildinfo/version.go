// Package buildinfo reports the confmesh build version.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/confmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When the module is consumed as a dependency and no ldflags are set,
// Get falls back to the module version recorded by the Go toolchain.
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

// ModulePath is the import path of this module.
const ModulePath = "github.com/yndnr/confmesh-go"

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if info.Version == "dev" {
		if v, ok := moduleVersion(); ok {
			info.Version = v
		}
	}
	return info
}

// moduleVersion finds this module in the binary's dependency list.
func moduleVersion() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	if bi.Main.Path == ModulePath && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version, true
	}
	for _, dep := range bi.Deps {
		if dep.Path == ModulePath {
			return dep.Version, true
		}
	}
	return "", false
}

// String returns a formatted version string.
func String() string {
	info := Get()
	return info.Version + " (" + info.Commit + ") built at " + info.BuildTime
}

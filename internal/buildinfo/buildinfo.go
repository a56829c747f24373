package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X crewroute/internal/buildinfo.Version=..." at release.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    commit(),
		"builtAt":   BuiltAt,
		"goVersion": goVersion(),
	}
}

// String is the one-line form printed by --version.
func String() string {
	c := commit()
	if len(c) > 12 {
		c = c[:12]
	}
	if c == "" {
		return fmt.Sprintf("%s (%s)", Version, goVersion())
	}
	return fmt.Sprintf("%s %s (%s)", Version, c, goVersion())
}

// commit falls back to the VCS stamp the go tool embeds.
func commit() string {
	if Commit != "" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

func goVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		return bi.GoVersion
	}
	return "unknown"
}

package main

import (
	"runtime/debug"
	"time"
)

// Overridden with -ldflags "-X main.commit=... -X main.buildDate=...".
var (
	commit    = "dev"
	buildDate = ""
)

func init() {
	commit, buildDate = resolveVersion(commit, buildDate)
}

// resolveVersion fills what ldflags left unset from the VCS stamp the go
// tool embeds.
func resolveVersion(c, date string) (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return c, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if c == "dev" && s.Value != "" {
				c = s.Value
				if len(c) > 7 {
					c = c[:7]
				}
			}
		case "vcs.time":
			if date == "" && s.Value != "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					date = t.UTC().Format("2006-01-02")
				}
			}
		}
	}
	return c, date
}

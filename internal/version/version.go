// Package version describes the nextrelease binary itself. Build values are injected
// with -ldflags "-X nextrelease/internal/version.Version=... -X ...GitCommit=... -X ...BuildDate=...".
package version

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"nextrelease/internal/bump"
)

// Build values set at link time. Unknown means the binary was built without them.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const unknown = "unknown"

// buildDateLayouts are tried in order when parsing BuildDate.
var buildDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Info is the parsed build information of the running binary.
type Info struct {
	Version   *semver.Version
	Commit    string    // empty when unknown
	Built     time.Time // zero when unknown or unparseable
	GoVersion string
	Platform  string
}

// Current parses the build values. The version follows the same rules as release
// tags, so a leading "v" is accepted.
func Current() (Info, error) {
	sv, err := bump.ParseVersion(Version)
	if err != nil {
		return Info{}, fmt.Errorf("invalid build version: %w", err)
	}

	info := Info{
		Version:   sv,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if GitCommit != unknown {
		info.Commit = strings.TrimSpace(GitCommit)
	}
	if t, ok := parseBuildDate(BuildDate); ok {
		info.Built = t
	}
	return info, nil
}

func parseBuildDate(s string) (time.Time, bool) {
	for _, layout := range buildDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Development reports whether the binary lacks commit or build date information.
func (i Info) Development() bool {
	return i.Commit == "" || i.Built.IsZero()
}

// Prerelease returns the prerelease part of the version, e.g. "rc.1".
func (i Info) Prerelease() string {
	return i.Version.Prerelease()
}

// ShortCommit returns the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}

// Short renders the one-line form, e.g. "nextrelease v1.2.0 (commit 4f2a9c1, built 2025-06-01)".
func (i Info) Short() string {
	var extra []string
	if c := i.ShortCommit(); c != "" {
		extra = append(extra, "commit "+c)
	}
	if !i.Built.IsZero() {
		extra = append(extra, "built "+i.Built.Format("2006-01-02"))
	}
	if i.Development() {
		extra = append(extra, "development build")
	}

	line := "nextrelease v" + i.Version.String()
	if len(extra) > 0 {
		line += " (" + strings.Join(extra, ", ") + ")"
	}
	return line
}

// Detailed renders one field per line.
func (i Info) Detailed() string {
	commit, built := unknown, unknown
	if i.Commit != "" {
		commit = i.Commit
	}
	if !i.Built.IsZero() {
		built = i.Built.Format(time.RFC3339)
	}

	lines := []string{
		"nextrelease v" + i.Version.String(),
		"Git Commit: " + commit,
		"Build Time: " + built,
	}
	if p := i.Prerelease(); p != "" {
		lines = append(lines, "Prerelease: "+p)
	}
	if i.Development() {
		lines = append(lines, "Development build: yes")
	}
	lines = append(lines,
		"Go Version: "+i.GoVersion,
		"Platform: "+i.Platform,
	)
	return strings.Join(lines, "\n")
}

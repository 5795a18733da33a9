// Package bump computes the next semantic version from a base version and a set of
// classified commits.
package bump

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"nextrelease/internal/conventional"
)

// BootstrapVersion is returned when there is no base version to bump from.
const BootstrapVersion = "0.0.1"

// Level is the magnitude of a version increment. Higher levels take precedence.
type Level int

const (
	LevelNone Level = iota
	LevelPatch
	LevelMinor
	LevelMajor
)

// String returns the level name as used in config and output.
func (l Level) String() string {
	switch l {
	case LevelPatch:
		return "patch"
	case LevelMinor:
		return "minor"
	case LevelMajor:
		return "major"
	default:
		return "none"
	}
}

// VersionParseError reports a version string that is not valid semver.
type VersionParseError struct {
	Input string
	Err   error
}

// Error implements the error interface
func (e *VersionParseError) Error() string {
	return fmt.Sprintf("invalid semantic version '%s': %v", e.Input, e.Err)
}

// Unwrap returns the underlying parser error
func (e *VersionParseError) Unwrap() error {
	return e.Err
}

// ParseVersion strips exactly one leading "v" and parses the rest as a strict semver string.
func ParseVersion(s string) (*semver.Version, error) {
	sv, err := semver.StrictNewVersion(strings.TrimPrefix(s, "v"))
	if err != nil {
		return nil, &VersionParseError{Input: s, Err: err}
	}
	return sv, nil
}

// Policy controls how classifications map to bump levels.
type Policy struct {
	// BreakingAlwaysBumpMajor keeps breaking changes on 0.x versions bumping major.
	// When false they bump minor while the major version is 0.
	BreakingAlwaysBumpMajor bool
	// FeaturesAlwaysBumpMinor keeps features on 0.x versions bumping minor.
	// When false they bump patch while the major version is 0.
	FeaturesAlwaysBumpMinor bool
	// MinorTypes are commit types that trigger a minor bump.
	MinorTypes []string
	// PatchTypes are commit types that trigger a patch bump.
	PatchTypes []string
}

// DefaultPolicy applies plain major > minor > patch precedence with feat and fix.
func DefaultPolicy() Policy {
	return Policy{
		BreakingAlwaysBumpMajor: true,
		FeaturesAlwaysBumpMinor: true,
		MinorTypes:              []string{conventional.TypeFeat},
		PatchTypes:              []string{conventional.TypeFix},
	}
}

// Engine applies a Policy. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates an engine for the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy {
	return e.policy
}

// LevelOf returns the bump level a single classification asks for.
func (e *Engine) LevelOf(c conventional.Classification) Level {
	if !c.IsConventional() {
		return LevelNone
	}
	switch {
	case c.Breaking:
		return LevelMajor
	case containsFold(e.policy.MinorTypes, c.Type):
		return LevelMinor
	case containsFold(e.policy.PatchTypes, c.Type):
		return LevelPatch
	default:
		return LevelNone
	}
}

// Level returns the highest level requested by any classification.
func (e *Engine) Level(cs []conventional.Classification) Level {
	level := LevelNone
	for _, c := range cs {
		if l := e.LevelOf(c); l > level {
			level = l
			if level == LevelMajor {
				break
			}
		}
	}
	return level
}

// Next computes the version that follows base. A nil base yields BootstrapVersion.
// The result never carries a "v" prefix.
func (e *Engine) Next(base *string, cs []conventional.Classification) (string, error) {
	if base == nil {
		return BootstrapVersion, nil
	}

	sv, err := ParseVersion(*base)
	if err != nil {
		return "", err
	}

	return e.Apply(sv, e.Level(cs)).String(), nil
}

// Apply increments sv by level, honoring the pre-1.0 settings of the policy.
func (e *Engine) Apply(sv *semver.Version, level Level) *semver.Version {
	if sv.Major() == 0 {
		if level == LevelMajor && !e.policy.BreakingAlwaysBumpMajor {
			level = LevelMinor
		} else if level == LevelMinor && !e.policy.FeaturesAlwaysBumpMinor {
			level = LevelPatch
		}
	}

	var next semver.Version
	switch level {
	case LevelMajor:
		next = sv.IncMajor()
	case LevelMinor:
		next = sv.IncMinor()
	case LevelPatch:
		next = sv.IncPatch()
	default:
		return sv
	}
	return &next
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// Package render turns release data into human readable output: markdown
// explanations of a version decision and diffs of release documents.
package render

import (
	"fmt"
	"strings"

	"nextrelease/internal/bump"
	"nextrelease/pkg/release"
)

// Row describes how a single commit was classified.
type Row struct {
	Commit   string
	Summary  string
	Type     string
	Scope    string
	Breaking bool
	Level    bump.Level
}

// Explanation describes how the next version of a release was derived.
type Explanation struct {
	Base  string // previous version, empty when there is none
	Rows  []Row
	Level bump.Level
	Next  string
}

// Explain classifies the commits of a release and computes its next version.
func Explain(chain *release.Chain, id release.ID) (*Explanation, error) {
	r, ok := chain.Get(id)
	if !ok {
		return nil, fmt.Errorf("release %d: %w", id, release.ErrUnknownRelease)
	}

	engine := chain.Engine()
	exp := &Explanation{}
	if _, prev, ok := chain.Previous(id); ok && prev.Version != nil {
		exp.Base = *prev.Version
	}

	cs := r.Classifications()
	for i, c := range cs {
		row := Row{
			Summary:  summary(r.Commits[i].Message),
			Type:     c.Type,
			Scope:    c.Scope,
			Breaking: c.Breaking,
			Level:    engine.LevelOf(c),
		}
		if sha := r.Commits[i].ID; sha != nil {
			row.Commit = short(*sha)
		}
		exp.Rows = append(exp.Rows, row)
	}
	exp.Level = engine.Level(cs)

	next, err := chain.CalculateNextVersion(id)
	if err != nil {
		return nil, err
	}
	exp.Next = next
	return exp, nil
}

// Markdown renders the explanation as a markdown document with a table of commits.
func (e *Explanation) Markdown() string {
	var b strings.Builder

	b.WriteString("# Next version\n\n")
	if e.Base == "" {
		fmt.Fprintf(&b, "No previous release, starting at **%s**.\n\n", e.Next)
	} else {
		fmt.Fprintf(&b, "**%s** → **%s** (%s bump)\n\n", e.Base, e.Next, e.Level)
	}

	if len(e.Rows) == 0 {
		b.WriteString("No commits.\n")
		return b.String()
	}

	b.WriteString("| Commit | Type | Scope | Breaking | Bump | Summary |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, row := range e.Rows {
		typ := row.Type
		if typ == "" {
			typ = "-"
		}
		breaking := ""
		if row.Breaking {
			breaking = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(row.Commit), cell(typ), cell(row.Scope), breaking, row.Level, cell(row.Summary))
	}
	return b.String()
}

func summary(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(line)
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

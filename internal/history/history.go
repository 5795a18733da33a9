// Package history loads a release chain from a YAML or JSON history document.
// Releases are listed oldest first; each entry's predecessor is the entry before it.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nextrelease/internal/bump"
	"nextrelease/pkg/release"
)

// LoadError reports a history document that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to load history %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to load history: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Document is the on-disk shape of a history file.
type Document struct {
	Releases []Entry `yaml:"releases"`
}

// Entry describes one release.
type Entry struct {
	Version   string        `yaml:"version"`
	CommitID  string        `yaml:"commit_id"`
	Timestamp int64         `yaml:"timestamp"`
	Commits   []EntryCommit `yaml:"commits"`
}

// EntryCommit is a commit of an entry. It may be written as a plain message string
// or as a mapping with id and message.
type EntryCommit struct {
	ID      string `yaml:"id"`
	Message string `yaml:"message"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (c *EntryCommit) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Message = node.Value
		return nil
	}
	type plain EntryCommit
	return node.Decode((*plain)(c))
}

// LoadFile reads the history document at path.
func LoadFile(path string, policy bump.Policy) (*release.Chain, []release.ID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	chain, ids, err := Load(f, policy)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, nil, err
	}
	return chain, ids, nil
}

// Load decodes a history document from r into a new chain.
func Load(r io.Reader, policy bump.Policy) (*release.Chain, []release.ID, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, &LoadError{Err: err}
	}
	return Build(doc, policy)
}

// Build turns a decoded document into a chain.
func Build(doc Document, policy bump.Policy) (*release.Chain, []release.ID, error) {
	chain := release.NewChain(policy)
	ids := make([]release.ID, 0, len(doc.Releases))

	var prev *release.ID
	for i, entry := range doc.Releases {
		rel := release.Release{
			Version:   optional(entry.Version),
			CommitID:  optional(entry.CommitID),
			Timestamp: entry.Timestamp,
			Previous:  prev,
		}
		for _, c := range entry.Commits {
			rel.Commits = append(rel.Commits, release.Commit{ID: optional(c.ID), Message: c.Message})
		}

		id, err := chain.Add(rel)
		if err != nil {
			return nil, nil, &LoadError{Err: fmt.Errorf("release #%d: %w", i+1, err)}
		}
		ids = append(ids, id)
		prev = &id
	}

	return chain, ids, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

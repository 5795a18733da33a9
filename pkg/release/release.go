// Package release defines the release entity, the release chain, and the
// next-version calculation for a release lacking an explicit tag.
//
// A Chain is an arena: releases live in a slice and each one refers to its
// predecessor by ID. Walking the chain never recurses.
package release

import (
	"errors"
	"fmt"
	"iter"

	"nextrelease/internal/bump"
	"nextrelease/internal/conventional"
	"nextrelease/internal/logger"
)

// ErrUnknownRelease is returned when an ID does not refer to a release of the chain.
var ErrUnknownRelease = errors.New("unknown release")

// ID is the position of a release inside its Chain.
type ID int

// Commit is one entry of a release's history.
type Commit struct {
	ID      *string // commit hash, nil when unknown
	Message string
}

// NewCommit creates a commit without an id from a raw message.
func NewCommit(message string) Commit {
	return Commit{Message: message}
}

// Classify parses the commit message. The result is recomputed on every call.
func (c Commit) Classify() conventional.Classification {
	return conventional.Classify(c.Message)
}

// Release is one version's worth of history.
type Release struct {
	Version   *string  // tag, nil when not yet computed
	Commits   []Commit // chronological order
	CommitID  *string  // tagged commit
	Timestamp int64    // seconds since epoch
	Previous  *ID      // predecessor in the same chain
}

// Classifications classifies every commit of the release in order.
func (r Release) Classifications() []conventional.Classification {
	cs := make([]conventional.Classification, 0, len(r.Commits))
	for _, c := range r.Commits {
		cs = append(cs, c.Classify())
	}
	return cs
}

func (r Release) clone() Release {
	out := Release{
		Version:   clonePtr(r.Version),
		CommitID:  clonePtr(r.CommitID),
		Timestamp: r.Timestamp,
		Previous:  clonePtr(r.Previous),
	}
	if r.Commits != nil {
		out.Commits = make([]Commit, len(r.Commits))
		for i, cm := range r.Commits {
			out.Commits[i] = Commit{ID: clonePtr(cm.ID), Message: cm.Message}
		}
	}
	return out
}

// Chain owns a set of releases linked backwards toward the project's origin.
type Chain struct {
	releases []Release
	engine   *bump.Engine
}

// NewChain creates an empty chain whose version calculations follow policy.
func NewChain(policy bump.Policy) *Chain {
	return &Chain{engine: bump.NewEngine(policy)}
}

// Engine returns the bump engine used by the chain.
func (c *Chain) Engine() *bump.Engine {
	return c.engine
}

// Len returns the number of releases in the chain.
func (c *Chain) Len() int {
	return len(c.releases)
}

// Add appends a release and returns its ID. Previous must name a release that is
// already part of the chain, so links always point backwards and never form a cycle.
func (c *Chain) Add(r Release) (ID, error) {
	if r.Previous != nil && !c.has(*r.Previous) {
		return 0, fmt.Errorf("previous release %d: %w", *r.Previous, ErrUnknownRelease)
	}
	c.releases = append(c.releases, r.clone())
	return ID(len(c.releases) - 1), nil
}

// Get returns a deep copy of the release with the given ID.
func (c *Chain) Get(id ID) (Release, bool) {
	if !c.has(id) {
		return Release{}, false
	}
	return c.releases[id].clone(), true
}

// Previous returns the predecessor of the release with the given ID.
func (c *Chain) Previous(id ID) (ID, Release, bool) {
	r, ok := c.Get(id)
	if !ok || r.Previous == nil {
		return 0, Release{}, false
	}
	return *r.Previous, c.releases[*r.Previous].clone(), true
}

// Head returns the most recently added release.
func (c *Chain) Head() (ID, bool) {
	if len(c.releases) == 0 {
		return 0, false
	}
	return ID(len(c.releases) - 1), true
}

// SetVersion fills in the version of a release once it has been computed.
func (c *Chain) SetVersion(id ID, version string) error {
	if !c.has(id) {
		return fmt.Errorf("release %d: %w", id, ErrUnknownRelease)
	}
	c.releases[id].Version = &version
	return nil
}

// Ancestors yields the release with the given ID followed by each predecessor,
// most recent first.
func (c *Chain) Ancestors(id ID) iter.Seq2[ID, Release] {
	return func(yield func(ID, Release) bool) {
		if !c.has(id) {
			return
		}
		for cur := &id; cur != nil; {
			r := c.releases[*cur]
			if !yield(*cur, r.clone()) {
				return
			}
			cur = r.Previous
		}
	}
}

// CalculateNextVersion computes the version the release should get, based on the
// version of its predecessor and its own commits. The release itself is not modified.
func (c *Chain) CalculateNextVersion(id ID) (string, error) {
	r, ok := c.Get(id)
	if !ok {
		return "", fmt.Errorf("release %d: %w", id, ErrUnknownRelease)
	}

	_, prev, ok := c.Previous(id)
	if !ok || prev.Version == nil {
		logger.Warn("No releases found, using " + bump.BootstrapVersion + " as the next version")
		return bump.BootstrapVersion, nil
	}

	cs := r.Classifications()
	next, err := c.engine.Next(prev.Version, cs)
	if err != nil {
		return "", err
	}

	logger.VersionDecision(*prev.Version, c.engine.Level(cs).String(), next)
	return next, nil
}

// BumpHead calculates the next version of the head release and assigns it when the
// head has no version yet. It returns the head's version after the call.
func (c *Chain) BumpHead() (string, error) {
	head, ok := c.Head()
	if !ok {
		return "", fmt.Errorf("empty chain: %w", ErrUnknownRelease)
	}
	if v := c.releases[head].Version; v != nil {
		return *v, nil
	}

	next, err := c.CalculateNextVersion(head)
	if err != nil {
		return "", err
	}
	if err := c.SetVersion(head, next); err != nil {
		return "", err
	}
	return next, nil
}

func (c *Chain) has(id ID) bool {
	return id >= 0 && int(id) < len(c.releases)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

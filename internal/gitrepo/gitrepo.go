// Package gitrepo reads a release chain from a git repository.
// Tags matching a pattern mark release boundaries; commits after the last tag form an
// unreleased head release.
package gitrepo

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"nextrelease/internal/bump"
	"nextrelease/internal/logger"
	"nextrelease/pkg/release"
)

// Reader walks the history of one repository.
type Reader struct {
	repo       *git.Repository
	tagPattern *regexp.Regexp
	log        *log.Logger
}

// Open opens the repository containing path, searching parent directories for .git.
func Open(path string, tagPattern *regexp.Regexp) (*Reader, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", path, err)
	}
	return NewReader(repo, tagPattern), nil
}

// NewReader wraps an already opened repository.
func NewReader(repo *git.Repository, tagPattern *regexp.Regexp) *Reader {
	return &Reader{
		repo:       repo,
		tagPattern: tagPattern,
		log:        logger.NewStyledLogger("gitrepo"),
	}
}

// Tags returns the release tags keyed by the hash of the commit they point to.
// Annotated tags are peeled. When a commit carries several tags the highest
// version wins.
func (r *Reader) Tags() (map[plumbing.Hash]string, error) {
	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	tags := make(map[plumbing.Hash]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if r.tagPattern != nil && !r.tagPattern.MatchString(name) {
			r.log.Debug("Skipping tag", "tag", name)
			return nil
		}

		hash, err := r.peel(ref.Hash())
		if err != nil {
			return fmt.Errorf("failed to resolve tag %s: %w", name, err)
		}

		if existing, ok := tags[hash]; !ok || higher(name, existing) {
			tags[hash] = name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// peel resolves an annotated tag object to its commit. Lightweight tags already
// point at a commit.
func (r *Reader) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	tag, err := r.repo.TagObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return hash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

// Releases builds the release chain reachable from HEAD, oldest release first.
func (r *Reader) Releases(policy bump.Policy) (*release.Chain, []release.ID, error) {
	chain := release.NewChain(policy)

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		r.log.Debug("Repository has no commits")
		return chain, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	tags, err := r.Tags()
	if err != nil {
		return nil, nil, err
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read log: %w", err)
	}
	var newestFirst []*object.Commit
	if err := iter.ForEach(func(c *object.Commit) error {
		newestFirst = append(newestFirst, c)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to walk log: %w", err)
	}

	var (
		ids     []release.ID
		prev    *release.ID
		pending []release.Commit
	)
	add := func(rel release.Release) error {
		rel.Previous = prev
		rel.Commits = pending
		id, err := chain.Add(rel)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		prev = &id
		pending = nil
		return nil
	}

	for i := len(newestFirst) - 1; i >= 0; i-- {
		c := newestFirst[i]
		hash := c.Hash.String()
		pending = append(pending, release.Commit{ID: &hash, Message: c.Message})

		tag, ok := tags[c.Hash]
		if !ok {
			continue
		}
		r.log.Debug("Release boundary", "version", tag, "commit", c.Hash.String()[:7], "commits", len(pending))
		if err := add(release.Release{Version: &tag, CommitID: &hash, Timestamp: c.Committer.When.Unix()}); err != nil {
			return nil, nil, err
		}
	}

	if len(pending) > 0 {
		r.log.Debug("Unreleased commits", "commits", len(pending))
		if err := add(release.Release{}); err != nil {
			return nil, nil, err
		}
	}

	return chain, ids, nil
}

// higher reports whether tag a names a higher version than tag b. Tags that do not
// parse as versions are compared as strings.
func higher(a, b string) bool {
	va, errA := bump.ParseVersion(a)
	vb, errB := bump.ParseVersion(b)
	if errA != nil || errB != nil {
		return a > b
	}
	return va.GreaterThan(vb)
}

package release

import (
	"encoding/json"
	"fmt"
)

// SerializationError reports a release collection that could not be encoded or decoded.
type SerializationError struct {
	Op  string // "encode" or "decode"
	Err error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to %s releases: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Releases is an ordered, non-owning view over releases of a chain.
type Releases struct {
	chain *Chain
	ids   []ID
}

// View returns a view over the given releases, in the given order.
func (c *Chain) View(ids ...ID) Releases {
	return Releases{chain: c, ids: append([]ID(nil), ids...)}
}

// All returns a view over every release of the chain, oldest first.
func (c *Chain) All() Releases {
	ids := make([]ID, len(c.releases))
	for i := range ids {
		ids[i] = ID(i)
	}
	return Releases{chain: c, ids: ids}
}

// IDs returns the IDs covered by the view.
func (r Releases) IDs() []ID {
	return append([]ID(nil), r.ids...)
}

type document struct {
	Releases []releaseJSON `json:"releases"`
}

type releaseJSON struct {
	Version   *string      `json:"version"`
	Commits   []commitJSON `json:"commits"`
	CommitID  *string      `json:"commit_id"`
	Timestamp int64        `json:"timestamp"`
	Previous  *releaseJSON `json:"previous"`
}

type commitJSON struct {
	ID      *string `json:"id"`
	Message string  `json:"message"`
}

// AsJSON renders the view as {"releases": [...]}. Absent optional values are written
// as null. The previous release is embedded one level deep, with its own previous
// set to null; the flat list is the complete view of the chain.
func (r Releases) AsJSON() ([]byte, error) {
	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &SerializationError{Op: "encode", Err: err}
	}
	return data, nil
}

// AsIndentedJSON is AsJSON with two-space indentation.
func (r Releases) AsIndentedJSON() ([]byte, error) {
	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, &SerializationError{Op: "encode", Err: err}
	}
	return data, nil
}

func (r Releases) document() (document, error) {
	doc := document{Releases: make([]releaseJSON, 0, len(r.ids))}
	for _, id := range r.ids {
		rel, ok := r.chain.Get(id)
		if !ok {
			return document{}, &SerializationError{Op: "encode", Err: fmt.Errorf("release %d: %w", id, ErrUnknownRelease)}
		}

		out := toJSON(rel)
		if _, prev, ok := r.chain.Previous(id); ok {
			p := toJSON(prev)
			out.Previous = &p
		}
		doc.Releases = append(doc.Releases, out)
	}
	return doc, nil
}

// ParseReleases decodes a document produced by AsJSON into chain and returns the IDs
// of the listed releases, in listed order. The document may list releases oldest or
// newest first. A previous object is linked to the listed release with the same
// version, commit id and timestamp; when none matches it is added as a detached release.
// Listed releases are added to the chain after the release they link to.
func ParseReleases(data []byte, chain *Chain) ([]ID, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &SerializationError{Op: "decode", Err: err}
	}

	listed := doc.Releases
	links := linkListed(listed)

	const (
		pending = iota
		walking
		added
	)
	state := make([]int, len(listed))
	ids := make([]ID, len(listed))

	for i := range listed {
		var path []int
		for cur := i; state[cur] == pending; {
			state[cur] = walking
			path = append(path, cur)
			next := links[cur]
			if next < 0 || state[next] == added {
				break
			}
			if state[next] == walking {
				links[cur] = -1
				break
			}
			cur = next
		}

		for k := len(path) - 1; k >= 0; k-- {
			n := path[k]
			rel := fromJSON(listed[n])
			switch {
			case links[n] >= 0:
				rel.Previous = &ids[links[n]]
			case listed[n].Previous != nil:
				prevID, err := chain.Add(fromJSON(*listed[n].Previous))
				if err != nil {
					return nil, &SerializationError{Op: "decode", Err: err}
				}
				rel.Previous = &prevID
			}

			id, err := chain.Add(rel)
			if err != nil {
				return nil, &SerializationError{Op: "decode", Err: err}
			}
			ids[n] = id
			state[n] = added
		}
	}
	return ids, nil
}

// linkListed returns, for each listed release, the index of the listed release its
// previous object refers to, or -1. Earlier entries are searched first, nearest first.
func linkListed(listed []releaseJSON) []int {
	links := make([]int, len(listed))
	for i, in := range listed {
		links[i] = -1
		if in.Previous == nil {
			continue
		}
		for j := i - 1; j >= 0 && links[i] < 0; j-- {
			if sameRelease(listed[j], *in.Previous) {
				links[i] = j
			}
		}
		for j := i + 1; j < len(listed) && links[i] < 0; j++ {
			if sameRelease(listed[j], *in.Previous) {
				links[i] = j
			}
		}
	}
	return links
}

func sameRelease(a, b releaseJSON) bool {
	return equalPtr(a.Version, b.Version) && equalPtr(a.CommitID, b.CommitID) && a.Timestamp == b.Timestamp
}

func toJSON(r Release) releaseJSON {
	commits := make([]commitJSON, 0, len(r.Commits))
	for _, c := range r.Commits {
		commits = append(commits, commitJSON{ID: c.ID, Message: c.Message})
	}
	return releaseJSON{
		Version:   r.Version,
		Commits:   commits,
		CommitID:  r.CommitID,
		Timestamp: r.Timestamp,
	}
}

func fromJSON(in releaseJSON) Release {
	commits := make([]Commit, 0, len(in.Commits))
	for _, c := range in.Commits {
		commits = append(commits, Commit{ID: c.ID, Message: c.Message})
	}
	return Release{
		Version:   in.Version,
		Commits:   commits,
		CommitID:  in.CommitID,
		Timestamp: in.Timestamp,
	}
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

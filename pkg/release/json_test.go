package release

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextrelease/internal/bump"
)

func sampleChain(t *testing.T) (*Chain, []ID) {
	t.Helper()
	chain := NewChain(bump.DefaultPolicy())

	first, err := chain.Add(Release{
		Version:   strPtr("v1.0.0"),
		Commits:   []Commit{{ID: strPtr("a1"), Message: "feat: initial"}},
		CommitID:  strPtr("a1"),
		Timestamp: 1700000000,
	})
	require.NoError(t, err)

	second, err := chain.Add(Release{
		Version:   strPtr("v1.1.0"),
		Commits:   []Commit{{ID: strPtr("b1"), Message: "feat: more"}, {ID: strPtr("b2"), Message: "fix: typo\n"}},
		CommitID:  strPtr("b2"),
		Timestamp: 1700100000,
		Previous:  idPtr(first),
	})
	require.NoError(t, err)

	head, err := chain.Add(Release{
		Commits:  []Commit{NewCommit("fix: unreleased")},
		Previous: idPtr(second),
	})
	require.NoError(t, err)

	return chain, []ID{first, second, head}
}

func TestReleasesAsJSON_Shape(t *testing.T) {
	chain, _ := sampleChain(t)

	data, err := chain.All().AsJSON()
	require.NoError(t, err)

	var doc map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	releases := doc["releases"]
	require.Len(t, releases, 3)

	first := releases[0]
	assert.Equal(t, "v1.0.0", first["version"])
	assert.Equal(t, "a1", first["commit_id"])
	assert.Equal(t, float64(1700000000), first["timestamp"])
	assert.Contains(t, first, "previous")
	assert.Nil(t, first["previous"])

	head := releases[2]
	assert.Contains(t, head, "version")
	assert.Nil(t, head["version"])
	assert.Contains(t, head, "commit_id")
	assert.Nil(t, head["commit_id"])
	assert.Equal(t, float64(0), head["timestamp"])

	prev, ok := head["previous"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "v1.1.0", prev["version"])
	assert.Nil(t, prev["previous"], "previous is embedded one level deep")

	headCommits, ok := head["commits"].([]interface{})
	require.True(t, ok)
	require.Len(t, headCommits, 1)
	commit := headCommits[0].(map[string]interface{})
	assert.Equal(t, "fix: unreleased", commit["message"])
	assert.Contains(t, commit, "id")
	assert.Nil(t, commit["id"])
}

func TestReleasesAsJSON_EmptyValues(t *testing.T) {
	chain := NewChain(bump.DefaultPolicy())
	_, err := chain.Add(Release{})
	require.NoError(t, err)

	data, err := chain.All().AsJSON()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"releases":[{"version":null,"commits":[],"commit_id":null,"timestamp":0,"previous":null}]}`,
		string(data))

	data, err = NewChain(bump.DefaultPolicy()).All().AsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"releases":[]}`, string(data))
}

func TestReleasesAsJSON_ViewOrder(t *testing.T) {
	chain, ids := sampleChain(t)

	data, err := chain.View(ids[2], ids[0]).AsJSON()
	require.NoError(t, err)

	var doc struct {
		Releases []struct {
			Version *string `json:"version"`
		} `json:"releases"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Releases, 2)
	assert.Nil(t, doc.Releases[0].Version)
	assert.Equal(t, "v1.0.0", *doc.Releases[1].Version)
}

func TestReleasesAsJSON_UnknownID(t *testing.T) {
	chain, _ := sampleChain(t)

	data, err := chain.View(ID(0), ID(12)).AsJSON()
	assert.Nil(t, data)

	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, "encode", serErr.Op)
	assert.True(t, errors.Is(err, ErrUnknownRelease))
}

func TestParseReleases_RoundTrip(t *testing.T) {
	chain, ids := sampleChain(t)
	data, err := chain.All().AsJSON()
	require.NoError(t, err)

	decoded := NewChain(bump.DefaultPolicy())
	decodedIDs, err := ParseReleases(data, decoded)
	require.NoError(t, err)
	require.Equal(t, ids, decodedIDs)
	assert.Equal(t, chain.Len(), decoded.Len())

	for _, id := range ids {
		want, _ := chain.Get(id)
		got, _ := decoded.Get(id)
		assert.Equal(t, want, got)
	}

	again, err := decoded.All().AsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestParseReleases_DetachedPrevious(t *testing.T) {
	chain, ids := sampleChain(t)
	data, err := chain.View(ids[2]).AsJSON()
	require.NoError(t, err)

	decoded := NewChain(bump.DefaultPolicy())
	decodedIDs, err := ParseReleases(data, decoded)
	require.NoError(t, err)
	require.Len(t, decodedIDs, 1)
	assert.Equal(t, 2, decoded.Len())

	_, prev, ok := decoded.Previous(decodedIDs[0])
	require.True(t, ok)
	assert.Equal(t, "v1.1.0", *prev.Version)
	assert.Nil(t, prev.Previous)

	next, err := decoded.CalculateNextVersion(decodedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", next)
}

func TestParseReleases_NewestFirst(t *testing.T) {
	chain, ids := sampleChain(t)
	data, err := chain.View(ids[2], ids[1], ids[0]).AsJSON()
	require.NoError(t, err)

	decoded := NewChain(bump.DefaultPolicy())
	decodedIDs, err := ParseReleases(data, decoded)
	require.NoError(t, err)
	require.Len(t, decodedIDs, 3)
	assert.Equal(t, 3, decoded.Len())

	head, first := decodedIDs[0], decodedIDs[2]
	var versions []string
	var walked []ID
	for id, r := range decoded.Ancestors(head) {
		walked = append(walked, id)
		if r.Version != nil {
			versions = append(versions, *r.Version)
		}
	}
	assert.Equal(t, decodedIDs, walked)
	assert.Equal(t, []string{"v1.1.0", "v1.0.0"}, versions)

	oldest, ok := decoded.Get(first)
	require.True(t, ok)
	assert.Nil(t, oldest.Previous)

	next, err := decoded.CalculateNextVersion(head)
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", next)

	again, err := decoded.View(decodedIDs...).AsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestParseReleases_CyclicPrevious(t *testing.T) {
	doc := `{"releases": [
		{"version": "1.0.0", "commits": [], "commit_id": null, "timestamp": 1,
		 "previous": {"version": "2.0.0", "commits": [], "commit_id": null, "timestamp": 2, "previous": null}},
		{"version": "2.0.0", "commits": [], "commit_id": null, "timestamp": 2,
		 "previous": {"version": "1.0.0", "commits": [], "commit_id": null, "timestamp": 1, "previous": null}}
	]}`

	decoded := NewChain(bump.DefaultPolicy())
	ids, err := ParseReleases([]byte(doc), decoded)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	steps := 0
	for range decoded.Ancestors(ids[0]) {
		steps++
		require.Less(t, steps, 10)
	}
	for range decoded.Ancestors(ids[1]) {
		steps++
		require.Less(t, steps, 20)
	}
}

func TestParseReleases_Invalid(t *testing.T) {
	_, err := ParseReleases([]byte(`{"releases": [`), NewChain(bump.DefaultPolicy()))

	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, "decode", serErr.Op)
}

func TestReleasesAsIndentedJSON(t *testing.T) {
	chain, _ := sampleChain(t)

	compact, err := chain.All().AsJSON()
	require.NoError(t, err)
	indented, err := chain.All().AsIndentedJSON()
	require.NoError(t, err)

	assert.Contains(t, string(indented), "\n  \"releases\": [")
	assert.JSONEq(t, string(compact), string(indented))
}

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextrelease/internal/version"
)

const historyYAML = `
releases:
  - version: v1.4.2
    commit_id: 1111111111111111111111111111111111111111
    timestamp: 1700000000
    commits:
      - id: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
        message: "feat: first"
  - commits:
      - id: bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb
        message: "fix: crash on empty input"
      - id: cccccccccccccccccccccccccccccccccccccccc
        message: "feat(api): paginate results"
`

func writeHistory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := NewApp().CreateRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append(args, "--log-file", filepath.Join(t.TempDir(), "nextrelease.log")))
	err := cmd.Execute()
	return out.String(), err
}

func TestBumpCommand(t *testing.T) {
	tests := []struct {
		name     string
		history  string
		expected string
	}{
		{
			name:     "minor bump",
			history:  historyYAML,
			expected: "1.5.0\n",
		},
		{
			name:     "tagged head is printed without prefix",
			history:  "releases:\n  - version: v2.0.0\n    commits: [\"feat: x\"]\n",
			expected: "2.0.0\n",
		},
		{
			name:     "no previous release",
			history:  "releases:\n  - commits: [\"feat!: x\"]\n",
			expected: "0.0.1\n",
		},
		{
			name:     "empty history",
			history:  "",
			expected: "0.0.1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, nil, "bump", "--input", writeHistory(t, tt.history))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestBumpCommand_Stdin(t *testing.T) {
	out, err := run(t, strings.NewReader(historyYAML), "bump", "--input", "-")
	require.NoError(t, err)
	assert.Equal(t, "1.5.0\n", out)
}

func TestBumpCommand_InvalidVersion(t *testing.T) {
	history := "releases:\n  - version: not-a-version\n  - commits: [\"fix: x\"]\n"
	_, err := run(t, nil, "bump", "--input", writeHistory(t, history))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-version")
}

func TestBumpCommand_TaggedHeadNotSemver(t *testing.T) {
	history := "releases:\n  - version: release-7\n    commits: [\"fix: x\"]\n"
	_, err := run(t, nil, "bump", "--input", writeHistory(t, history))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release-7")
}

func TestBumpCommand_MissingInput(t *testing.T) {
	_, err := run(t, nil, "bump", "--input", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestContextCommand(t *testing.T) {
	path := writeHistory(t, historyYAML)

	out, err := run(t, nil, "context", "--input", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"releases": [`)
	assert.Contains(t, out, `"version": "v1.4.2"`)
	assert.Contains(t, out, `"message": "fix: crash on empty input"`)
	assert.NotContains(t, out, `"version": "1.5.0"`)

	out, err = run(t, nil, "context", "--bump", "--input", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "1.5.0"`)
}

func TestContextCommand_Verify(t *testing.T) {
	path := writeHistory(t, historyYAML)

	expected, err := run(t, nil, "context", "--bump", "--input", path)
	require.NoError(t, err)

	golden := filepath.Join(t.TempDir(), "context.json")
	require.NoError(t, os.WriteFile(golden, []byte(expected), 0o644))

	out, err := run(t, nil, "context", "--bump", "--input", path, "--verify", golden)
	require.NoError(t, err)
	assert.Empty(t, out)

	stale := strings.Replace(expected, `"version": "1.5.0"`, `"version": "1.4.3"`, 1)
	require.NoError(t, os.WriteFile(golden, []byte(stale), 0o644))

	out, err = run(t, nil, "context", "--bump", "--input", path, "--verify", golden)
	require.Error(t, err)
	var exitErr *exitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Regexp(t, `(?m)^- +"version": "1\.4\.3",$`, out)
	assert.Regexp(t, `(?m)^\+ +"version": "1\.5\.0",$`, out)
}

func TestExplainCommand(t *testing.T) {
	out, err := run(t, nil, "explain", "--test-mode", "--input", writeHistory(t, historyYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "1.5.0")
	assert.Contains(t, out, "minor")

	_, err = run(t, nil, "explain", "--test-mode", "--input", writeHistory(t, ""))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	originalVersion, originalCommit, originalDate := version.Version, version.GitCommit, version.BuildDate
	t.Cleanup(func() {
		version.Version, version.GitCommit, version.BuildDate = originalVersion, originalCommit, originalDate
	})

	version.Version, version.GitCommit, version.BuildDate = "1.4.0", "4f2a9c1e0d", "2025-06-01"
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "nextrelease v1.4.0 (commit 4f2a9c1, built 2025-06-01)\n", out)

	version.GitCommit, version.BuildDate = "unknown", "unknown"
	out, err = run(t, nil, "version", "--detailed")
	require.NoError(t, err)
	assert.Contains(t, out, "nextrelease v1.4.0\n")
	assert.Contains(t, out, "Development build: yes")

	version.Version = "not-a-version"
	_, err = run(t, nil, "version")
	assert.Error(t, err)
}

func TestBumpCommand_GitRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	when := time.Unix(1700000000, 0)
	commit := func(name, message string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(message), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		when = when.Add(time.Minute)
		sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: when}
		_, err = wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
	}

	commit("a.txt", "feat: initial")
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v0.3.0", head.Hash(), nil)
	require.NoError(t, err)

	commit("b.txt", "fix: handle nil")
	commit("c.txt", "refactor!: rename config keys")

	out, err := run(t, nil, "bump", "--repo", dir)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0\n", out)

	empty := t.TempDir()
	_, err = git.PlainInit(empty, false)
	require.NoError(t, err)
	out, err = run(t, nil, "bump", "--repo", empty)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1\n", out)
}

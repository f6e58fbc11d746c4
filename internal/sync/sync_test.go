package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "-Users-foo-my-project", EncodePath("/Users/foo/my-project"))
	assert.Equal(t, "-a-b-c", EncodePath("/a/b/c"))
}

func TestResolveClaudeDirOverride(t *testing.T) {
	assert.Equal(t, "/custom/dir", ResolveClaudeDir("/custom/dir"))
}

func TestResolveClaudeDirEnv(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", "/env/dir")
	assert.Equal(t, "/env/dir", ResolveClaudeDir(""))
}

func TestDiscoverSessions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc-123.jsonl"), []byte(`{"type":"user"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "def-456.jsonl"), []byte(`{"type":"user"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "some-dir"), 0755))

	sessions, err := DiscoverSessions(dir)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "abc-123", sessions[0].SessionID)
	assert.Equal(t, "def-456", sessions[1].SessionID)
}

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func TestExtractSessionTextUserAndAssistant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	writeLines(t, path,
		`{"type":"user","message":{"role":"user","content":"How does authentication work in this codebase? I need to understand the middleware chain."}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"The authentication middleware uses JWT tokens stored in HTTP-only cookies."}]}}`,
		`{"type":"file-history-snapshot","snapshot":{}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Read","input":{}}]}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"let me think..."}]}}`,
	)

	text, err := ExtractSessionText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "authentication")
	assert.Contains(t, text, "JWT tokens")
	assert.NotContains(t, text, "file-history-snapshot")
	assert.NotContains(t, text, "tool_use")
	assert.NotContains(t, text, "let me think")
}

func TestExtractSessionTextFiltersShortMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	writeLines(t, path,
		`{"type":"user","message":{"role":"user","content":"yes"}}`,
		`{"type":"user","message":{"role":"user","content":"This is a substantive question about the architecture of the system."}}`,
	)

	text, err := ExtractSessionText(path)
	require.NoError(t, err)
	assert.NotContains(t, text, "yes")
	assert.Contains(t, text, "substantive question")
}

func TestExtractSessionTextFiltersSystemPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	writeLines(t, path,
		`{"type":"user","message":{"role":"user","content":"# Orchestrator\n\nYou are supervising a worker agent..."}}`,
		`{"type":"user","message":{"role":"user","content":"What does the authentication middleware do in this project?"}}`,
	)

	text, err := ExtractSessionText(path)
	require.NoError(t, err)
	assert.NotContains(t, text, "Orchestrator")
	assert.Contains(t, text, "authentication middleware")
}

func TestExtractSessionTextEmptySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	writeLines(t, path,
		`{"type":"file-history-snapshot","snapshot":{}}`,
		`{"type":"file-history-snapshot","snapshot":{}}`,
	)

	text, err := ExtractSessionText(path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestUserContentArrayFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	writeLines(t, path,
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"How does the query engine work in this codebase?"}]}}`,
	)

	text, err := ExtractSessionText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "query engine")
}

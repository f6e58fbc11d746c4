package rpcserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attention-matters/am/internal/store"
)

// makeServer builds a Server over a fresh in-memory brain store, mirroring
// the original implementation's make_server() test helper.
func makeServer(t *testing.T) *Server {
	t.Helper()
	brain, err := store.OpenBrainStoreInMemory()
	require.NoError(t, err)
	srv, err := New(brain)
	require.NoError(t, err)
	return srv
}

// textFromResponse extracts the single text content block's raw text,
// mirroring the original implementation's text_from_result() helper.
func textFromResponse(t *testing.T, resp Response) string {
	t.Helper()
	require.Empty(t, resp.Error)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "text", resp.Content[0].Type)
	return resp.Content[0].Text
}

// parseResponse decodes a response's text content block as JSON, mirroring
// the original implementation's parse_result() helper.
func parseResponse(t *testing.T, resp Response) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(textFromResponse(t, resp)), &v))
	return v
}

func TestDispatchRejectsToolCallBeforeInitialize(t *testing.T) {
	srv := makeServer(t)
	_, err := srv.dispatch(Request{Tool: "am_stats"})
	assert.ErrorContains(t, err, "before initialize")
}

func TestInitializeHandshake(t *testing.T) {
	srv := makeServer(t)

	result, err := srv.dispatch(Request{Tool: "initialize"})
	require.NoError(t, err)
	resp, err := textResponse(result)
	require.NoError(t, err)
	parsed := parseResponse(t, resp)
	assert.Equal(t, serverName, parsed["name"])
	assert.NotEmpty(t, parsed["instructions"])

	_, err = srv.dispatch(Request{Tool: "initialized"})
	require.NoError(t, err)

	// Now a tool call is allowed.
	_, err = srv.dispatch(Request{Tool: "am_stats"})
	assert.NoError(t, err)
}

func TestInitializedBeforeInitializeRejected(t *testing.T) {
	srv := makeServer(t)
	_, err := srv.dispatch(Request{Tool: "initialized"})
	assert.ErrorContains(t, err, "before initialize")
}

func initialized(t *testing.T, srv *Server) {
	t.Helper()
	_, err := srv.dispatch(Request{Tool: "initialize"})
	require.NoError(t, err)
	_, err = srv.dispatch(Request{Tool: "initialized"})
	require.NoError(t, err)
}

func TestAmIngestAndQueryContentBlock(t *testing.T) {
	srv := makeServer(t)
	initialized(t, srv)

	ingestArgs, err := json.Marshal(map[string]any{"text": "the quick brown fox jumps"})
	require.NoError(t, err)
	result, err := srv.dispatch(Request{Tool: "am_ingest", Args: ingestArgs})
	require.NoError(t, err)
	resp, err := textResponse(result)
	require.NoError(t, err)
	parsed := parseResponse(t, resp)
	assert.EqualValues(t, 1, parsed["neighborhoods"])

	queryArgs, err := json.Marshal(map[string]any{"text": "quick fox"})
	require.NoError(t, err)
	result, err = srv.dispatch(Request{Tool: "am_query", Args: queryArgs})
	require.NoError(t, err)
	resp, err = textResponse(result)
	require.NoError(t, err)

	text := textFromResponse(t, resp)
	// Must be pretty-printed: multi-line with indentation, not a single
	// compact line.
	assert.Contains(t, text, "\n")
	assert.Contains(t, text, "  ")

	parsed = parseResponse(t, resp)
	assert.Contains(t, parsed, "context")
	assert.Contains(t, parsed, "metrics")
	assert.Contains(t, parsed, "stats")
}

func TestUnknownToolError(t *testing.T) {
	srv := makeServer(t)
	initialized(t, srv)

	_, err := srv.dispatch(Request{Tool: "not_a_real_tool"})
	assert.ErrorContains(t, err, "unknown tool")
}

func TestServeHandshakeThenStatsOverStdio(t *testing.T) {
	srv := makeServer(t)

	var in bytes.Buffer
	for _, line := range []string{
		`{"tool":"initialize"}`,
		`{"tool":"initialized"}`,
		`{"tool":"am_stats"}`,
	} {
		in.WriteString(line)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	err := srv.Serve(context.Background(), &in, &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var responses []Response
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 3)
	for _, resp := range responses {
		assert.Empty(t, resp.Error)
		require.Len(t, resp.Content, 1)
	}

	stats := parseResponse(t, responses[2])
	assert.Contains(t, stats, "n")
	assert.Contains(t, stats, "episodes")
}

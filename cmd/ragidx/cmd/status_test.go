package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
}

func TestStatusCmd_ReportsChunkCount(t *testing.T) {
	// Given: an indexed test project as the current directory
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	mustIndex(t, testDir)
	chdir(t, testDir)

	// When: running status
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status"})

	err := cmd.Execute()

	// Then: it should report storage and chunk info
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Chunks:")
}

func TestStatusCmd_JSONOutput(t *testing.T) {
	// Given: an indexed test project as the current directory
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	mustIndex(t, testDir)
	chdir(t, testDir)

	// When: running status --json
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status", "--json"})

	err := cmd.Execute()
	require.NoError(t, err)

	// Then: output should be valid JSON with a chunk_count field
	var status map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &status))
	assert.Contains(t, status, "chunk_count")
}

func TestStatusCmd_QueriesFlag_EmptyBeforeAnySearch(t *testing.T) {
	// Given: an indexed test project that has never been searched
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	chdir(t, testDir)
	mustIndex(t, testDir)

	// When: running status --queries
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status", "--queries"})

	err := cmd.Execute()

	// Then: it reports no telemetry yet, rather than erroring
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No query telemetry")
}

func TestStatusCmd_QueriesFlag_ReportsRecordedSearch(t *testing.T) {
	// Given: an indexed test project that has been searched once. Every
	// command below must resolve the same project root, so the chdir
	// happens before indexing, not just before the status call.
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	chdir(t, testDir)
	mustIndex(t, testDir)

	searchCmd := NewRootCmd()
	searchBuf := new(bytes.Buffer)
	searchCmd.SetOut(searchBuf)
	searchCmd.SetErr(searchBuf)
	searchCmd.SetArgs([]string{"search", "hello", "--format", "json"})
	require.NoError(t, searchCmd.Execute())

	// When: running status --queries --json
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"status", "--queries", "--json"})

	err := cmd.Execute()
	require.NoError(t, err)

	// Then: the search is reflected in persisted query-type counts
	var report map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	typeCounts, ok := report["query_type_counts"].(map[string]any)
	require.True(t, ok)

	var total float64
	for _, n := range typeCounts {
		total += n.(float64)
	}
	assert.Equal(t, float64(1), total)
}

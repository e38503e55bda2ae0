package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragidx/ragidx/internal/preflight"
)

func TestDoctorCmd_PassesAndRecordsMarker(t *testing.T) {
	// Given: a test project configured with the static embedder, so no
	// live Ollama daemon is needed
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	chdir(t, testDir)

	// When: running doctor
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"doctor"})

	err := cmd.Execute()

	// Then: it should pass and leave a marker file behind
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "passed")
	assert.False(t, preflight.NeedsCheck(filepath.Join(testDir, dataDirName)))
}

func TestDoctorCmd_SkipsRecheckWithoutForce(t *testing.T) {
	// Given: a project that already passed doctor once
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	chdir(t, testDir)
	require.NoError(t, preflight.MarkPassed(filepath.Join(testDir, dataDirName)))

	// When: running doctor again without --force
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"doctor"})

	err := cmd.Execute()

	// Then: it should short-circuit instead of re-running checks
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "already passed")
}

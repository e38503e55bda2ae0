package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCmd_RefusesWithoutYes(t *testing.T) {
	// Given: an indexed test project
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	mustIndex(t, testDir)
	chdir(t, testDir)

	// When: running clean without --yes
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"clean"})

	err := cmd.Execute()

	// Then: it should refuse
	assert.Error(t, err)
}

func TestCleanCmd_EmptiesIndexWithYes(t *testing.T) {
	// Given: an indexed test project
	testDir := t.TempDir()
	writeTestProject(t, testDir)
	mustIndex(t, testDir)
	chdir(t, testDir)

	// When: running clean --yes
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"clean", "--yes"})

	err := cmd.Execute()

	// Then: it should succeed
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cleared")
}

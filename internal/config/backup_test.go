package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempUserConfigDir(t *testing.T) (configDir, configPath string) {
	t.Helper()
	tmpDir := t.TempDir()

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Cleanup(func() { os.Setenv("XDG_CONFIG_HOME", origXDG) })

	configDir = filepath.Join(tmpDir, "ragidx")
	configPath = filepath.Join(configDir, "config.yaml")
	return configDir, configPath
}

func TestBackupUserConfig_NoConfig(t *testing.T) {
	withTempUserConfigDir(t)

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackupUserConfig_CopiesContent(t *testing.T) {
	configDir, configPath := withTempUserConfigDir(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	content := "version: 1\nembeddings:\n  provider: ollama\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)
	assert.True(t, filepath.IsAbs(backupPath))

	got, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBackupUserConfig_PrunesBeyondMax(t *testing.T) {
	configDir, configPath := withTempUserConfigDir(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n"), 0644))

	for i := 0; i < MaxUserConfigBackups+2; i++ {
		_, err := BackupUserConfig()
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), MaxUserConfigBackups)
}

func TestListUserConfigBackups_SortedNewestFirst(t *testing.T) {
	configDir, _ := withTempUserConfigDir(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	for _, ts := range []string{"20260101-100000", "20260101-110000", "20260101-120000"} {
		name := filepath.Join(configDir, "config.yaml.bak."+ts)
		require.NoError(t, os.WriteFile(name, []byte("version: 1\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	require.Len(t, backups, 3)

	for i := 1; i < len(backups); i++ {
		infoPrev, err := os.Stat(backups[i-1])
		require.NoError(t, err)
		infoNext, err := os.Stat(backups[i])
		require.NoError(t, err)
		assert.False(t, infoPrev.ModTime().Before(infoNext.ModTime()))
	}
}

func TestRestoreUserConfig_RejectsInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	withTempUserConfigDir(t)

	badBackup := filepath.Join(tmpDir, "not-a-config.bak")
	require.NoError(t, os.WriteFile(badBackup, []byte("{[not valid yaml"), 0644))

	err := RestoreUserConfig(badBackup)
	assert.Error(t, err)
}

func TestRestoreUserConfig_WritesContentAndBacksUpExisting(t *testing.T) {
	configDir, configPath := withTempUserConfigDir(t)
	require.NoError(t, os.MkdirAll(configDir, 0755))

	oldContent := "version: 1\nembeddings:\n  provider: static\n"
	require.NoError(t, os.WriteFile(configPath, []byte(oldContent), 0644))

	tmpDir := t.TempDir()
	newBackup := filepath.Join(tmpDir, "restore-source.yaml")
	newContent := "version: 1\nembeddings:\n  provider: ollama\n  model: nomic-embed-text\n"
	require.NoError(t, os.WriteFile(newBackup, []byte(newContent), 0644))

	require.NoError(t, RestoreUserConfig(newBackup))

	got, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, newContent, string(got))

	// The pre-restore content should have been preserved as a backup.
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	require.NotEmpty(t, backups)
	preserved, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, oldContent, string(preserved))
}

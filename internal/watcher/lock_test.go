package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_TryLock_SecondCallerRefused(t *testing.T) {
	// Given: a directory and a first lock holder
	dir := t.TempDir()
	first := NewFileLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.Unlock() }()

	// When: a second lock on the same directory tries to acquire it
	second := NewFileLock(dir)
	acquired, err = second.TryLock()

	// Then: it should be refused, not blocked or errored
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestFileLock_UnlockThenRelock(t *testing.T) {
	// Given: a lock that has been acquired and released
	dir := t.TempDir()
	l := NewFileLock(dir)
	acquired, err := l.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, l.Unlock())

	// When: a new lock attempts to acquire the same path
	other := NewFileLock(dir)
	acquired, err = other.TryLock()

	// Then: it should succeed since the first lock was released
	require.NoError(t, err)
	assert.True(t, acquired)
	_ = other.Unlock()
}

func TestFileLock_UnlockWithoutLock_NoError(t *testing.T) {
	// Given: a lock that was never acquired
	l := NewFileLock(t.TempDir())

	// When/Then: unlocking it is a no-op
	assert.NoError(t, l.Unlock())
}

package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "decision.lock")
	l, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(b)))
	assert.Equal(t, lockPath, l.Path())
}

func TestAcquirePIDLockHeld(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "decision.lock")
	first, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Release() })

	// flock locks belong to the open file description, so a second open in
	// the same process still conflicts.
	_, err = AcquirePIDLock(lockPath)
	require.ErrorIs(t, err, ErrHeld)
	assert.Contains(t, err.Error(), "pid "+strconv.Itoa(os.Getpid()))
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "decision.lock")
	first, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestAcquirePIDLockEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := AcquirePIDLock("")
	require.Error(t, err)
}

func TestPathFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("/var/lib/decision", "decision.lock"), PathFor("/var/lib/decision/tasks.db"))
}

package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerwatch.pid")
	f := pid.New(path)

	require.NoError(t, f.Acquire())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	// Re-acquiring from the same process is allowed.
	require.NoError(t, f.Acquire())

	require.NoError(t, f.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.Release())
}

func TestAcquireLiveOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerwatch.pid")
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := pid.New(path).Acquire()
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestAcquireStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "powerwatch.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o600))

	f := pid.New(path)
	require.NoError(t, f.Acquire())
	assert.Equal(t, path, f.Path())
}

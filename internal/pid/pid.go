package pid

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"codeberg.org/mutker/powerwatch/internal/logger"
)

// File guards against two daemons running with the same PID file.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Acquire writes the current process ID. It fails with ErrAlreadyRunning
// when the file names another live process; stale or unreadable files are
// replaced.
func (f *File) Acquire() error {
	errFactory := errors.New()
	pid := os.Getpid()

	if other, ok := f.read(); ok && other != pid && alive(other) {
		return errFactory.WithData(errors.ErrAlreadyRunning, other)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Release removes the PID file if present.
func (f *File) Release() error {
	errFactory := errors.New()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func (f *File) read() (int, bool) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		logger.Debug().Str("path", f.path).Msg("Ignoring malformed PID file")
		return 0, false
	}

	return pid, true
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

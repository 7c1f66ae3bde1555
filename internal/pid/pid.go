package pid

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

const pidFilePerm = 0o644

// Write writes the current process ID to path, refusing when the PID
// recorded there still belongs to a live process.
func Write(path string) error {
	errFactory := errors.New()
	pid := os.Getpid()

	if _, err := os.Stat(path); err == nil {
		// PID file exists, check if the process is running
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrPIDFileFailed, err)
		}

		if running, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && running != pid {
			process, err := os.FindProcess(running)
			if err == nil && process.Signal(syscall.Signal(0)) == nil {
				return errFactory.WithData(errors.ErrAlreadyRunning, running)
			}
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), pidFilePerm); err != nil {
		return errFactory.Wrap(errors.ErrPIDFileFailed, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove(path string) error {
	errFactory := errors.New()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrPIDFileFailed, err)
	}

	return nil
}

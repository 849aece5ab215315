package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process with the same executable name exists.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ensureSingleInstance fails when another process runs the same executable.
// Two devices on one link would interleave replies.
func ensureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return findOtherInstance(filepath.Base(executable), os.Getpid())
}

func findOtherInstance(processName string, thisProcessID int) error {
	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if !strings.EqualFold(process.Executable(), processName) {
			continue
		}

		return fmt.Errorf("%s (pid %d): %w", processName, process.Pid(), ErrAlreadyRunning)
	}

	return nil
}

// Package procgroup runs subprocesses in their own process group so that a
// cancelled build also takes down everything the build spawned (make -j jobs,
// compiler drivers, configure helpers).
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

// ErrNotStarted is returned by [Kill] for a command that has no process.
var ErrNotStarted = errors.New("process not started")

// DefaultWaitDelay bounds how long Wait blocks for I/O after the group is killed.
const DefaultWaitDelay = 5 * time.Second

// Bind configures cmd to start in a new process group and installs a Cancel
// hook that kills the whole group when the command's context is done.
// Must be called before cmd.Start.
func Bind(cmd *exec.Cmd) {
	set(cmd)
	cmd.Cancel = func() error {
		return Kill(cmd)
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
}

// Kill terminates the process group led by cmd's process.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return ErrNotStarted
	}
	return killGroup(cmd.Process.Pid, cmd)
}

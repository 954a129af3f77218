//go:build !unix

package procgroup

import "os/exec"

func set(_ *exec.Cmd) {}

func killGroup(_ int, cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

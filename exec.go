package ffsys

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
	"github.com/leodido/ffsys/internal/procgroup"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Tee, when set, also receives the combined output as it is produced.
	Tee io.Writer
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output is what a finished subprocess produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes subprocesses. Implementations block until the command
// exits or ctx is done.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands on the host.
//
// Each command is started in its own process group, and cancelling the
// context kills the whole group so that children spawned by make -j die too.
type ExecRunner struct {
	Logger *zerolog.Logger
}

// Run implements [Runner]. A non-zero exit returns an *[ExitError].
func (r ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	logger := loggerFor(ctx, r.Logger)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	procgroup.Bind(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Tee != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Tee)
		cmd.Stderr = io.MultiWriter(&stderr, c.Tee)
	}

	logger.Debug().
		Str(ffslog.FieldCmd, c.String()).
		Str(ffslog.FieldDir, c.Dir).
		Msg("running")

	start := time.Now()
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	logger.Debug().
		Str(ffslog.FieldCmd, c.Name).
		Int("exit_code", out.ExitCode).
		Dur("elapsed", time.Since(start)).
		Msg("finished")

	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{
			Cmd:      c.String(),
			ExitCode: out.ExitCode,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
		}
	}
	return out, err
}

// loggerFor returns l when set, otherwise the logger carried by ctx.
func loggerFor(ctx context.Context, l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	return ffslog.FromContext(ctx)
}

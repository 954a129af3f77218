package ffsys

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// Driver runs the upstream configure, build and install steps in a source
// tree. Every step blocks until its subprocess exits.
type Driver struct {
	Runner Runner
	// Target selects the shell wrapping for configure.
	Target Target
	// Make overrides the make binary.
	Make string
	// Output, when set, receives the subprocess output as it is produced.
	Output io.Writer
	Logger *zerolog.Logger
}

// Configure runs ./configure with args in dir.
// A non-zero exit yields a *[StageError] carrying both captured streams.
func (d Driver) Configure(ctx context.Context, dir string, args []string) error {
	cmd := Command{Name: "./configure", Args: args, Dir: dir, Tee: d.Output}
	if d.Target.IsWindows() {
		// configure is a shell script; native Windows cannot exec it directly.
		cmd = Command{Name: "sh", Args: []string{"-c", "./configure " + strings.Join(args, " ")}, Dir: dir, Tee: d.Output}
	}

	d.log(ctx, StageConfigure, dir).Strs("args", args).Msg("configuring")
	out, err := d.runner().Run(ctx, cmd)
	if err == nil {
		return nil
	}
	se := stageError(StageConfigure, cmd.String(), err)
	var ee *ExitError
	if errors.As(err, &ee) {
		se.Output = joinStreams(out.Stdout, out.Stderr)
	}
	return se
}

// Build runs make with the given parallelism in dir.
func (d Driver) Build(ctx context.Context, dir string, jobs int) error {
	if jobs < 1 {
		jobs = HostParallelism()
	}
	cmd := Command{Name: d.make(), Args: []string{"-j", strconv.Itoa(jobs)}, Dir: dir, Tee: d.Output}

	d.log(ctx, StageBuild, dir).Int("jobs", jobs).Msg("building")
	if _, err := d.runner().Run(ctx, cmd); err != nil {
		return stageError(StageBuild, cmd.String(), err)
	}
	return nil
}

// Install runs make install in dir.
func (d Driver) Install(ctx context.Context, dir string) error {
	cmd := Command{Name: d.make(), Args: []string{"install"}, Dir: dir, Tee: d.Output}

	d.log(ctx, StageInstall, dir).Msg("installing")
	if _, err := d.runner().Run(ctx, cmd); err != nil {
		return stageError(StageInstall, cmd.String(), err)
	}
	return nil
}

// Run performs configure, build and install in order, stopping at the first
// failure. Nothing is rolled back.
func (d Driver) Run(ctx context.Context, dir string, args []string, jobs int) error {
	if err := d.Configure(ctx, dir, args); err != nil {
		return err
	}
	if err := d.Build(ctx, dir, jobs); err != nil {
		return err
	}
	return d.Install(ctx, dir)
}

func (d Driver) runner() Runner {
	if d.Runner == nil {
		return ExecRunner{Logger: d.Logger}
	}
	return d.Runner
}

func (d Driver) make() string {
	if d.Make != "" {
		return d.Make
	}
	return "make"
}

func (d Driver) log(ctx context.Context, stage Stage, dir string) *zerolog.Event {
	return loggerFor(ctx, d.Logger).Info().
		Str(ffslog.FieldStage, string(stage)).
		Str(ffslog.FieldDir, dir)
}

// Installed reports whether dist already holds an installed build.
func Installed(dist string) bool {
	_, err := os.Stat(filepath.Join(dist, "lib", "libavutil.a"))
	return err == nil
}

func joinStreams(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}

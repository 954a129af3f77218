package ffsys

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per orchestration stage. A *[StageError] matches the
// sentinel of its stage with errors.Is.
var (
	ErrFetch        = errors.New("fetch failed")
	ErrConfigure    = errors.New("configure failed")
	ErrBuild        = errors.New("build failed")
	ErrInstall      = errors.New("install failed")
	ErrProbeCompile = errors.New("probe compile failed")
	ErrProbeParse   = errors.New("probe output parse failed")
	ErrRecordParse  = errors.New("link record unreadable")
	ErrLocate       = errors.New("prebuilt FFmpeg not found")
	ErrBindings     = errors.New("binding generation failed")
)

// Stage names one step of the orchestration.
type Stage string

const (
	StageFetch        Stage = "fetch"
	StageConfigure    Stage = "configure"
	StageBuild        Stage = "build"
	StageInstall      Stage = "install"
	StageProbeCompile Stage = "probe-compile"
	StageProbeParse   Stage = "probe-parse"
	StageRecordParse  Stage = "record-parse"
	StageLocate       Stage = "locate"
	StageBindings     Stage = "bindings"
)

var stageSentinels = map[Stage]error{
	StageFetch:        ErrFetch,
	StageConfigure:    ErrConfigure,
	StageBuild:        ErrBuild,
	StageInstall:      ErrInstall,
	StageProbeCompile: ErrProbeCompile,
	StageProbeParse:   ErrProbeParse,
	StageRecordParse:  ErrRecordParse,
	StageLocate:       ErrLocate,
	StageBindings:     ErrBindings,
}

// StageError reports a fatal failure of one orchestration stage.
// Every StageError aborts the whole run; there is no retry.
type StageError struct {
	Stage Stage
	// Cmd is the command line that failed, if the stage ran a subprocess.
	Cmd string
	// Output is the most specific diagnostic text captured (stderr, then stdout).
	Output string
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	if e.Cmd != "" {
		fmt.Fprintf(&b, " (%s)", e.Cmd)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		b.WriteString(": failed")
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the stage sentinel so callers can write errors.Is(err, ErrBuild).
func (e *StageError) Is(target error) bool {
	return stageSentinels[e.Stage] == target
}

// Reason returns a one-line operator-facing explanation.
func (e *StageError) Reason() string {
	switch e.Stage {
	case StageFetch:
		return "could not obtain FFmpeg sources; check network access and the requested release"
	case StageConfigure:
		return "upstream configure rejected the switches; see its output for the missing dependency"
	case StageBuild:
		return "upstream build failed; delete the output directory to retry from scratch"
	case StageInstall:
		return "upstream install failed; delete the output directory to retry from scratch"
	case StageProbeCompile:
		return "probe program did not compile; headers are missing or incompatible with the probe catalog"
	case StageProbeParse:
		return "probe output is missing an expected tag; the probe catalog and program are out of sync"
	case StageRecordParse:
		return "cannot read ffbuild/config.mak; the upstream configure step did not complete"
	case StageLocate:
		return "no usable prebuilt FFmpeg; check FFMPEG_DIR or the pkg-config search path"
	case StageBindings:
		return "could not generate the cgo binding file from the installed headers"
	default:
		return "failed"
	}
}

// ExitError is returned by a [Runner] when a subprocess exits non-zero.
type ExitError struct {
	Cmd      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Cmd, e.ExitCode)
}

// Diagnostic returns the most specific captured text: stderr if non-empty,
// otherwise stdout.
func (e *ExitError) Diagnostic() string {
	if strings.TrimSpace(e.Stderr) != "" {
		return e.Stderr
	}
	return e.Stdout
}

// stageError wraps err into a *StageError for stage, lifting the captured
// subprocess output when err is an *ExitError.
func stageError(stage Stage, cmd string, err error) *StageError {
	se := &StageError{Stage: stage, Cmd: cmd, Err: err}
	var ee *ExitError
	if errors.As(err, &ee) {
		se.Output = ee.Diagnostic()
		if se.Cmd == "" {
			se.Cmd = ee.Cmd
		}
	}
	return se
}

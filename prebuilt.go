package ffsys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// Installation is an FFmpeg install the bindings can be generated against.
type Installation struct {
	// IncludeDirs are handed to both the probe and the binding emitter.
	IncludeDirs []string
	Link        LinkPlan
}

// FromDist describes the install produced by a source build in dist.
func FromDist(dist string, target Target, fs FeatureSet, extra []LinkDirective) Installation {
	return Installation{
		IncludeDirs: []string{filepath.Join(dist, "include")},
		Link:        PlanLink(filepath.Join(dist, "lib"), target, fs, extra),
	}
}

// FromPrebuiltDir describes an existing install rooted at dir, as pointed to
// by FFMPEG_DIR.
func FromPrebuiltDir(dir string, target Target, fs FeatureSet) (Installation, error) {
	include := filepath.Join(dir, "include")
	if info, err := os.Stat(include); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", include)
		}
		return Installation{}, &StageError{Stage: StageLocate, Cmd: dir, Err: err}
	}
	return Installation{
		IncludeDirs: []string{include},
		Link:        PlanLink(filepath.Join(dir, "lib"), target, fs, nil),
	}, nil
}

// PkgConfig locates a system FFmpeg through pkg-config.
type PkgConfig struct {
	Runner Runner
	// Binary overrides the pkg-config executable.
	Binary string
	Logger *zerolog.Logger
}

// Locate queries libavutil, the enabled component packages and libavcodec,
// and merges their include directories, search directories and libraries.
// With the static feature, private dependencies are included.
func (p PkgConfig) Locate(ctx context.Context, target Target, fs FeatureSet) (Installation, error) {
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{Logger: p.Logger}
	}
	bin := p.Binary
	if bin == "" {
		bin = "pkg-config"
	}
	logger := loggerFor(ctx, p.Logger)

	packages := []string{"libavutil"}
	for _, lib := range Libraries() {
		if lib.Feature == "" || lib.Name == "avcodec" || lib.Name == "postproc" {
			continue
		}
		if fs.Enabled(lib.Feature) {
			packages = append(packages, lib.PkgConfig)
		}
	}
	packages = append(packages, "libavcodec")

	var inst Installation
	for _, pkg := range packages {
		args := []string{"--cflags", "--libs"}
		if fs.Enabled(FeatureStatic) {
			args = append([]string{"--static"}, args...)
		}
		args = append(args, pkg)

		cmd := Command{Name: bin, Args: args}
		out, err := runner.Run(ctx, cmd)
		if err != nil {
			return Installation{}, stageError(StageLocate, cmd.String(), err)
		}
		logger.Debug().Str(ffslog.FieldCmd, cmd.String()).Str("flags", strings.TrimSpace(out.Stdout)).Msg("pkg-config")

		includes, search, libs := splitPkgConfig(out.Stdout)
		for _, d := range includes {
			if !slices.Contains(inst.IncludeDirs, d) {
				inst.IncludeDirs = append(inst.IncludeDirs, d)
			}
		}
		for _, d := range search {
			if !slices.Contains(inst.Link.SearchDirs, d) {
				inst.Link.SearchDirs = append(inst.Link.SearchDirs, d)
			}
		}
		inst.Link.add(libs...)
	}
	inst.Link.add(PlatformLinks(target, fs)...)
	return inst, nil
}

// splitPkgConfig classifies pkg-config output into include directories,
// library search directories and libraries. Other flags are dropped.
func splitPkgConfig(out string) (includes, search []string, libs []LinkDirective) {
	fields := strings.Fields(out)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case strings.HasPrefix(f, "-I") && len(f) > 2:
			includes = append(includes, f[2:])
		case strings.HasPrefix(f, "-L") && len(f) > 2:
			search = append(search, f[2:])
		case strings.HasPrefix(f, "-l") && len(f) > 2:
			libs = append(libs, LinkDirective{Name: f[2:], Kind: Unconditional})
		case f == "-framework" && i+1 < len(fields):
			i++
			libs = append(libs, LinkDirective{Name: fields[i], Kind: Unconditional, Mode: LinkFramework})
		}
	}
	return includes, search, libs
}

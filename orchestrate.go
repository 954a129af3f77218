package ffsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// DefaultVersion is the FFmpeg release built when none is requested.
const DefaultVersion = "4.4"

// Output file names written into [Options.OutDir].
const (
	DirectivesFile = "ffsys.directives"
	TagsFile       = "ffsys.tags"
	EnvFile        = "ffsys.env"
	ReportFile     = "ffsys.json"
)

// SourceMode selects where the FFmpeg installation comes from.
type SourceMode int

const (
	// SourceAuto builds when the build feature is enabled, otherwise uses
	// FFmpegDir when set, otherwise pkg-config.
	SourceAuto SourceMode = iota
	SourceBuild
	SourcePrebuilt
	SourcePkgConfig
)

// SourceModeIDs maps each mode to its accepted names.
var SourceModeIDs = map[SourceMode][]string{
	SourceAuto:      {"auto"},
	SourceBuild:     {"build"},
	SourcePrebuilt:  {"prebuilt", "ffmpeg-dir"},
	SourcePkgConfig: {"pkg-config", "pkgconfig"},
}

func (m SourceMode) String() string {
	if ids, ok := SourceModeIDs[m]; ok {
		return ids[0]
	}
	return fmt.Sprintf("SourceMode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m SourceMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseSourceMode accepts any name listed in [SourceModeIDs], case-insensitively.
func ParseSourceMode(s string) (SourceMode, error) {
	return parseMode(s, SourceModeIDs)
}

// FetchMode selects how sources are obtained in build mode.
type FetchMode int

const (
	FetchGit FetchMode = iota
	FetchTarball
)

// FetchModeIDs maps each fetch mode to its accepted names.
var FetchModeIDs = map[FetchMode][]string{
	FetchGit:     {"git"},
	FetchTarball: {"tarball", "tar"},
}

func (m FetchMode) String() string {
	if ids, ok := FetchModeIDs[m]; ok {
		return ids[0]
	}
	return fmt.Sprintf("FetchMode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m FetchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseFetchMode accepts any name listed in [FetchModeIDs], case-insensitively.
func ParseFetchMode(s string) (FetchMode, error) {
	return parseMode(s, FetchModeIDs)
}

func parseMode[M comparable](s string, ids map[M][]string) (M, error) {
	s = strings.TrimSpace(s)
	for m, names := range ids {
		for _, n := range names {
			if strings.EqualFold(n, s) {
				return m, nil
			}
		}
	}
	var zero M
	return zero, fmt.Errorf("unknown mode %q", s)
}

// Options drives one orchestration run.
type Options struct {
	Features FeatureSet
	// Version is the FFmpeg release (X.Y); default [DefaultVersion].
	Version string
	// OutDir holds the source tree, the install, the probe and all outputs.
	OutDir string
	Source SourceMode
	// FFmpegDir is the prebuilt install root for [SourcePrebuilt].
	FFmpegDir string
	Fetch     FetchMode
	// Fetcher overrides the fetcher chosen by Fetch.
	Fetcher Fetcher
	// Target defaults to the host.
	Target Target
	Host   Target
	Debug  bool
	// Jobs is the make parallelism; below 1 means the host core count.
	Jobs int
	// Force rebuilds even when an install already exists.
	Force bool
	// BinDir receives the enabled programs; default OutDir/bin.
	BinDir string
	// BindingsDir receives the cgo binding file; default OutDir/ffmpeg.
	BindingsDir string
	// Package is the package clause of the binding file.
	Package  string
	Compiler string
	Runner   Runner
	// Flags, Probes and VersionChecks replace the default catalogs when non-nil.
	Flags         []FeatureFlag
	Probes        []ProbeSpec
	VersionChecks []VersionCheckSpec
	// Scanner reads the headers for the binding file; default [CScanner].
	Scanner HeaderScanner
	// Output receives the configure and make output as it is produced.
	Output io.Writer
	Logger *zerolog.Logger
}

// Validate rejects options no run could succeed with.
func (o Options) Validate() error {
	var errs []error
	if o.Version != "" && !ValidVersion(o.Version) {
		errs = append(errs, fmt.Errorf("version %q is not MAJOR.MINOR", o.Version))
	}
	if o.OutDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if _, ok := SourceModeIDs[o.Source]; !ok {
		errs = append(errs, fmt.Errorf("unknown source mode %d", o.Source))
	}
	if _, ok := FetchModeIDs[o.Fetch]; !ok {
		errs = append(errs, fmt.Errorf("unknown fetch mode %d", o.Fetch))
	}
	if o.Source == SourcePrebuilt && o.FFmpegDir == "" {
		errs = append(errs, errors.New("prebuilt source requires an FFmpeg directory"))
	}
	if o.Flags != nil {
		if err := ValidateFlags(o.Flags); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveSource turns [SourceAuto] into a concrete mode.
func (o Options) ResolveSource() SourceMode {
	if o.Source != SourceAuto {
		return o.Source
	}
	switch {
	case o.Features.Enabled(FeatureBuild):
		return SourceBuild
	case o.FFmpegDir != "":
		return SourcePrebuilt
	default:
		return SourcePkgConfig
	}
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Host == "" {
		o.Host = HostTarget()
	}
	if o.Target == "" {
		o.Target = o.Host
	}
	if o.BinDir == "" {
		o.BinDir = filepath.Join(o.OutDir, "bin")
	}
	if o.BindingsDir == "" {
		o.BindingsDir = filepath.Join(o.OutDir, "ffmpeg")
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{Logger: o.Logger}
	}
	if o.Fetcher == nil {
		switch o.Fetch {
		case FetchTarball:
			o.Fetcher = TarballFetcher{Logger: o.Logger}
		default:
			o.Fetcher = GitFetcher{Progress: o.Output, Logger: o.Logger}
		}
	}
	return o
}

// SourceDir is where build mode keeps the upstream source tree.
func (o Options) SourceDir() string {
	version := o.Version
	if version == "" {
		version = DefaultVersion
	}
	return filepath.Join(o.OutDir, "ffmpeg-"+version)
}

// DistDir is the install prefix used by build mode.
func (o Options) DistDir() string {
	return filepath.Join(o.OutDir, "dist")
}

// Report is the outcome of a successful run.
type Report struct {
	Version  string     `json:"version"`
	Source   SourceMode `json:"source"`
	Target   Target     `json:"target"`
	Features []string   `json:"features"`
	// Built reports whether this run fetched and built FFmpeg.
	Built       bool          `json:"built"`
	IncludeDirs []string      `json:"include_dirs"`
	Link        LinkPlan      `json:"link"`
	Probe       *ProbeResult  `json:"probe"`
	Facts       []Fact        `json:"facts"`
	Programs    []string      `json:"programs,omitempty"`
	Bindings    *BindingStats `json:"bindings,omitempty"`
	// Outputs lists the files written into the output directory.
	Outputs []string `json:"outputs"`
}

// Run performs one orchestration: it obtains an FFmpeg installation, probes
// its headers, emits the bindings and writes the directive outputs.
// Stages run strictly in sequence and the first failure aborts the run.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	fs := opts.Features
	logger := loggerFor(ctx, opts.Logger)
	ctx = logger.WithContext(ctx)

	report := &Report{
		Version:  opts.Version,
		Source:   opts.ResolveSource(),
		Target:   opts.Target,
		Features: fs.Names(),
	}
	logger.Info().
		Str("source", report.Source.String()).
		Str("target", string(opts.Target)).
		Str("version", opts.Version).
		Strs("features", report.Features).
		Msg("starting")

	var inst Installation
	switch report.Source {
	case SourceBuild:
		built, programs, i, err := buildFromSource(ctx, opts)
		if err != nil {
			return nil, err
		}
		report.Built, report.Programs, inst = built, programs, i
	case SourcePrebuilt:
		i, err := FromPrebuiltDir(opts.FFmpegDir, opts.Target, fs)
		if err != nil {
			return nil, err
		}
		inst = i
	case SourcePkgConfig:
		i, err := PkgConfig{Runner: opts.Runner, Logger: opts.Logger}.Locate(ctx, opts.Target, fs)
		if err != nil {
			return nil, err
		}
		inst = i
	}
	report.IncludeDirs = inst.IncludeDirs
	report.Link = inst.Link

	probeOpts := []ProbeOption{
		WithRunner(opts.Runner),
		WithCompiler(opts.Compiler),
		WithWorkDir(filepath.Join(opts.OutDir, "probe")),
		WithProbeLogger(opts.Logger),
	}
	if opts.Probes != nil {
		probeOpts = append(probeOpts, WithProbes(opts.Probes...))
	}
	if opts.VersionChecks != nil {
		probeOpts = append(probeOpts, WithVersionChecks(opts.VersionChecks...))
	}
	probe, err := ProbeWith(ctx, inst.IncludeDirs, fs, probeOpts...)
	if err != nil {
		return nil, err
	}
	report.Probe = probe

	stats, err := EmitBindings(ctx, BindingOptions{
		Package:     opts.Package,
		OutDir:      opts.BindingsDir,
		Headers:     HeaderSet(inst.IncludeDirs, fs),
		IncludeDirs: inst.IncludeDirs,
		LDFlags:     inst.Link.LDFlags(),
		Scanner:     opts.Scanner,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	report.Bindings = stats

	report.Facts = append(probe.Facts(), inst.Link.Facts()...)
	if err := writeOutputs(ctx, opts.OutDir, report, inst); err != nil {
		return nil, err
	}

	logger.Info().
		Int("facts", len(report.Facts)).
		Str(ffslog.FieldPath, opts.OutDir).
		Msg("done")
	return report, nil
}

// buildFromSource fetches, configures, builds and installs FFmpeg unless an
// install already exists, then resolves its extra libraries and copies the
// enabled programs.
func buildFromSource(ctx context.Context, opts Options) (bool, []string, Installation, error) {
	fs := opts.Features
	src, dist := opts.SourceDir(), opts.DistDir()
	logger := loggerFor(ctx, opts.Logger)

	built := false
	if opts.Force || !Installed(dist) {
		if err := opts.Fetcher.Fetch(ctx, opts.Version, src); err != nil {
			return false, nil, Installation{}, err
		}
		args := ConfigureArgs(ConfigureOptions{
			Target: opts.Target,
			Host:   opts.Host,
			Prefix: dist,
			Debug:  opts.Debug,
			Flags:  opts.Flags,
		}, fs)
		driver := Driver{Runner: opts.Runner, Target: opts.Target, Output: opts.Output, Logger: opts.Logger}
		if err := driver.Run(ctx, src, args, opts.Jobs); err != nil {
			return false, nil, Installation{}, err
		}
		built = true
	} else {
		logger.Info().Str(ffslog.FieldDir, dist).Msg("install present, skipping build")
	}

	extra, err := ReadExtraLibs(ctx, src, opts.Target, fs)
	if err != nil {
		return built, nil, Installation{}, err
	}
	programs, err := InstallPrograms(ctx, dist, opts.BinDir, opts.Target, fs)
	if err != nil {
		return built, nil, Installation{}, err
	}
	return built, programs, FromDist(dist, opts.Target, fs, extra), nil
}

func writeOutputs(ctx context.Context, outDir string, report *Report, inst Installation) error {
	env := CgoEnv{LDFlags: inst.Link.LDFlags()}
	for _, dir := range inst.IncludeDirs {
		env.CFlags = append(env.CFlags, "-I"+dir)
	}

	paths := map[string]string{}
	for _, name := range []string{DirectivesFile, TagsFile, EnvFile, ReportFile} {
		paths[name] = filepath.Join(outDir, name)
		report.Outputs = append(report.Outputs, paths[name])
	}

	steps := []func() error{
		func() error { return WriteDirectivesFile(ctx, paths[DirectivesFile], report.Facts) },
		func() error { return WriteTagsFile(ctx, paths[TagsFile], report.Facts) },
		func() error { return WriteEnvFile(ctx, paths[EnvFile], env) },
		func() error { return WriteJSONFile(ctx, paths[ReportFile], report) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("writing outputs: %w", err)
		}
	}
	return nil
}

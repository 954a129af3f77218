package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leodido/ffsys"
	"github.com/leodido/ffsys/internal/config"
	ffslog "github.com/leodido/ffsys/internal/log"
)

// BuildOptions defines flags for the build subcommand. Flags that are set
// override the config file and the environment.
type BuildOptions struct {
	Config      string           `flag:"config" flagshort:"c" flagdescr:"YAML config file (default $HOME/.config/ffsys/config.yaml)"`
	Features    featureList      `flag:"features" flagshort:"f" flagdescr:"Features to enable, comma-separated" flagcustom:"true"`
	Release     string           `flag:"release" flagshort:"r" flagdescr:"FFmpeg release to build (MAJOR.MINOR)"`
	OutDir      string           `flag:"out-dir" flagshort:"o" flagdescr:"Directory for sources, install and outputs"`
	Source      ffsys.SourceMode `flag:"source" flagdescr:"Where FFmpeg comes from: auto, build, prebuilt, pkg-config" flagcustom:"true"`
	FFmpegDir   string           `flag:"ffmpeg-dir" flagdescr:"Prebuilt FFmpeg install root"`
	Fetch       ffsys.FetchMode  `flag:"fetch" flagdescr:"How sources are fetched: git, tarball" flagcustom:"true"`
	Target      string           `flag:"target" flagdescr:"Target triple (default: host)"`
	Debug       bool             `flag:"debug" flagdescr:"Build FFmpeg with debug symbols"`
	Jobs        int              `flag:"jobs" flagdescr:"make parallelism (default: logical cores)"`
	Force       bool             `flag:"force" flagdescr:"Rebuild even if an install exists"`
	BinDir      string           `flag:"bin-dir" flagdescr:"Where enabled programs are copied"`
	BindingsDir string           `flag:"bindings-dir" flagdescr:"Where the cgo binding file is written"`
	Package     string           `flag:"package" flagdescr:"Package name of the binding file"`
	CC          string           `flag:"cc" flagdescr:"C compiler for the probe"`
	Verbose     bool             `flag:"verbose" flagshort:"v" flagdescr:"Stream configure and make output to stderr"`
	Directives  bool             `flag:"directives" flagdescr:"Print the directive stream instead of the summary"`
	JSON        bool             `flag:"json" flagshort:"j" flagdescr:"Output the report in JSON format"`
}

func (o *BuildOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *BuildOptions) DefineFeatures(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *BuildOptions) DecodeFeatures(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func (o *BuildOptions) CompleteFeatures(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFeatures(toComplete)
}

func (o *BuildOptions) DefineSource(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	return sourceModeFlag(fieldValue.Addr().Interface().(*ffsys.SourceMode)), descr
}

func (o *BuildOptions) DecodeSource(input any) (any, error) {
	if s, ok := input.(string); ok {
		return ffsys.ParseSourceMode(s)
	}
	return input, nil
}

func (o *BuildOptions) DefineFetch(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	return fetchModeFlag(fieldValue.Addr().Interface().(*ffsys.FetchMode)), descr
}

func (o *BuildOptions) DecodeFetch(input any) (any, error) {
	if s, ok := input.(string); ok {
		return ffsys.ParseFetchMode(s)
	}
	return input, nil
}

// resolve layers the changed flags over the config file and environment.
func (o *BuildOptions) resolve(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Environ())

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("features", func() { cfg.Features = o.Features })
	set("release", func() { cfg.Version = o.Release })
	set("out-dir", func() { cfg.OutDir = o.OutDir })
	set("source", func() { cfg.Source = o.Source.String() })
	set("ffmpeg-dir", func() { cfg.FFmpegDir = o.FFmpegDir })
	set("fetch", func() { cfg.Fetch = o.Fetch.String() })
	set("target", func() { cfg.Target = o.Target })
	set("debug", func() { cfg.Debug = o.Debug })
	set("jobs", func() { cfg.Jobs = o.Jobs })
	set("force", func() { cfg.Force = o.Force })
	set("bin-dir", func() { cfg.BinDir = o.BinDir })
	set("bindings-dir", func() { cfg.BindingsDir = o.BindingsDir })
	set("package", func() { cfg.Package = o.Package })
	set("cc", func() { cfg.Compiler = o.CC })
	return cfg, cfg.Validate()
}

func buildCmd() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Obtain FFmpeg, probe it and write the bindings and directives",
		Long: fmt.Sprintf(`Obtain an FFmpeg installation (source build, prebuilt directory or
pkg-config), probe its headers, generate the cgo binding file and write
%s, %s, %s and %s into the output directory.

Settings come from the config file, then FFSYS_* environment variables
(FFSYS_FEATURE_<NAME>=1 enables a feature), then flags.

%s`, ffsys.DirectivesFile, ffsys.TagsFile, ffsys.EnvFile, ffsys.ReportFile, featuresHelp()),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.resolve(c.Flags())
			if err != nil {
				return err
			}
			ffslog.Configure(ffslog.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			logger := ffslog.WithComponent("cli")
			ctx := logger.WithContext(c.Context())

			runOpts, err := cfg.Options()
			if err != nil {
				return err
			}
			if opts.Verbose {
				runOpts.Output = os.Stderr
			}

			report, err := ffsys.Run(ctx, runOpts)
			if err != nil {
				if opts.JSON {
					_ = printJSON(failureJSON(err))
				}
				return err
			}

			switch {
			case opts.JSON:
				return printJSON(report)
			case opts.Directives:
				return ffsys.WriteDirectives(os.Stdout, report.Facts)
			default:
				fmt.Print(report)
				return nil
			}
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	Include  pathList    `flag:"include" flagshort:"I" flagdescr:"Include directories holding the FFmpeg headers" flagrequired:"true" flagcustom:"true"`
	Features featureList `flag:"features" flagshort:"f" flagdescr:"Features gating the probes, comma-separated" flagcustom:"true"`
	CC       string      `flag:"cc" flagdescr:"C compiler (default: $CC, then cc, gcc or clang)"`
	WorkDir  string      `flag:"work-dir" flagdescr:"Keep the probe source and binary in this directory"`
	JSON     bool        `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ProbeOptions) DefineInclude(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*pathList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *ProbeOptions) DecodeInclude(input any) (any, error) {
	if _, ok := input.(string); !ok {
		return input, nil
	}
	return pathList(decodeList(input)), nil
}

func (o *ProbeOptions) DefineFeatures(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *ProbeOptions) DecodeFeatures(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func probeCmd() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe installed FFmpeg headers for API availability",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			fs := ffsys.NewFeatureSet(opts.Features...)
			result, err := ffsys.ProbeWith(c.Context(), opts.Include, fs,
				ffsys.WithCompiler(opts.CC),
				ffsys.WithWorkDir(opts.WorkDir),
			)
			if err != nil {
				if opts.JSON {
					_ = printJSON(failureJSON(err))
				}
				return err
			}

			if opts.JSON {
				return printJSON(map[string]any{
					"ok":     true,
					"result": result,
					"facts":  result.Facts(),
				})
			}
			return ffsys.WriteDirectives(os.Stdout, result.Facts())
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// SwitchesOptions defines flags for the switches subcommand.
type SwitchesOptions struct {
	Features featureList `flag:"features" flagshort:"f" flagdescr:"Features to enable, comma-separated" flagcustom:"true"`
	Prefix   string      `flag:"prefix" flagdescr:"Install prefix"`
	Target   string      `flag:"target" flagdescr:"Target triple (default: host)"`
	Debug    bool        `flag:"debug" flagdescr:"Debug build"`
}

func (o *SwitchesOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *SwitchesOptions) DefineFeatures(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *SwitchesOptions) DecodeFeatures(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func switchesCmd() *cobra.Command {
	opts := &SwitchesOptions{}

	cmd := &cobra.Command{
		Use:   "switches",
		Short: "Print the configure arguments for a feature selection",
		Long:  "Print the configure arguments for a feature selection, one per line.\n\n" + featuresHelp(),
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			host := ffsys.HostTarget()
			target := ffsys.Target(opts.Target)
			if target == "" {
				target = host
			}
			for _, a := range ffsys.ConfigureArgs(ffsys.ConfigureOptions{
				Target: target,
				Host:   host,
				Prefix: opts.Prefix,
				Debug:  opts.Debug,
			}, ffsys.NewFeatureSet(opts.Features...)) {
				fmt.Println(a)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// LibsOptions defines flags for the libs subcommand.
type LibsOptions struct {
	Src      string      `flag:"src" flagdescr:"Configured FFmpeg source tree" flagrequired:"true"`
	Features featureList `flag:"features" flagshort:"f" flagdescr:"Enabled features, comma-separated" flagcustom:"true"`
	Target   string      `flag:"target" flagdescr:"Target triple (default: host)"`
	JSON     bool        `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *LibsOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *LibsOptions) DefineFeatures(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *LibsOptions) DecodeFeatures(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func libsCmd() *cobra.Command {
	opts := &LibsOptions{}

	cmd := &cobra.Command{
		Use:   "libs",
		Short: "Resolve the extra link libraries of a configured source tree",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			target := ffsys.Target(opts.Target)
			if target == "" {
				target = ffsys.HostTarget()
			}
			libs, err := ffsys.ReadExtraLibs(c.Context(), opts.Src, target, ffsys.NewFeatureSet(opts.Features...))
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(libs)
			}
			return ffsys.WriteDirectives(os.Stdout, ffsys.LinkFacts(nil, libs))
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// BindingsOptions defines flags for the bindings subcommand.
type BindingsOptions struct {
	Include  pathList    `flag:"include" flagshort:"I" flagdescr:"Include directories holding the FFmpeg headers" flagrequired:"true" flagcustom:"true"`
	Features featureList `flag:"features" flagshort:"f" flagdescr:"Features selecting the bound libraries, comma-separated" flagcustom:"true"`
	Out      string      `flag:"out" flagshort:"o" flagdescr:"Output directory" flagrequired:"true"`
	Package  string      `flag:"package" flagdescr:"Package name of the generated file"`
	LibDir   string      `flag:"lib-dir" flagdescr:"Library search directory for the cgo LDFLAGS"`
	Target   string      `flag:"target" flagdescr:"Target triple (default: host)"`
}

func (o *BindingsOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *BindingsOptions) DefineInclude(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*pathList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *BindingsOptions) DecodeInclude(input any) (any, error) {
	if _, ok := input.(string); !ok {
		return input, nil
	}
	return pathList(decodeList(input)), nil
}

func (o *BindingsOptions) DefineFeatures(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *BindingsOptions) DecodeFeatures(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func bindingsCmd() *cobra.Command {
	opts := &BindingsOptions{}

	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Generate the cgo binding file from installed headers",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			target := ffsys.Target(opts.Target)
			if target == "" {
				target = ffsys.HostTarget()
			}
			fs := ffsys.NewFeatureSet(opts.Features...)
			link := ffsys.PlanLink(opts.LibDir, target, fs, nil)

			stats, err := ffsys.EmitBindings(c.Context(), ffsys.BindingOptions{
				Package:     opts.Package,
				OutDir:      opts.Out,
				Headers:     ffsys.HeaderSet(opts.Include, fs),
				IncludeDirs: opts.Include,
				LDFlags:     link.LDFlags(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d headers, %d enums, %d constants\n",
				filepath.Base(stats.Path), stats.Headers, stats.Enums, stats.Constants)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

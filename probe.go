package ffsys

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// probeConfig holds the configuration for a probe operation.
type probeConfig struct {
	runner        Runner
	compiler      string
	workDir       string
	probes        []ProbeSpec
	versionChecks []VersionCheckSpec
	logger        *zerolog.Logger
}

// ProbeOption configures a header probe.
type ProbeOption func(*probeConfig)

// WithRunner sets the subprocess runner used to compile and execute the
// probe program.
func WithRunner(r Runner) ProbeOption {
	return func(c *probeConfig) {
		c.runner = r
	}
}

// WithCompiler sets the C compiler command line, e.g. "gcc" or "ccache cc".
// When unset, $CC is used, then the first of cc, gcc and clang on PATH.
func WithCompiler(cc string) ProbeOption {
	return func(c *probeConfig) {
		c.compiler = cc
	}
}

// WithWorkDir sets where the probe source and executable are written.
func WithWorkDir(dir string) ProbeOption {
	return func(c *probeConfig) {
		c.workDir = dir
	}
}

// WithProbes replaces the default macro probe catalog.
func WithProbes(probes ...ProbeSpec) ProbeOption {
	return func(c *probeConfig) {
		c.probes = append([]ProbeSpec{}, probes...)
	}
}

// WithVersionChecks replaces the default version-threshold catalog.
func WithVersionChecks(checks ...VersionCheckSpec) ProbeOption {
	return func(c *probeConfig) {
		c.versionChecks = append([]VersionCheckSpec{}, checks...)
	}
}

// WithProbeLogger sets the logger; the context logger is used otherwise.
func WithProbeLogger(l *zerolog.Logger) ProbeOption {
	return func(c *probeConfig) {
		c.logger = l
	}
}

// ProbePlan is a synthesized probe program and the tags it prints.
type ProbePlan struct {
	// Source is the C program text.
	Source string
	// Symbols are the macro probes that survived guard filtering, in order.
	Symbols []ProbeSpec
	// Versions are the version-threshold catalog entries.
	Versions []VersionCheckSpec
}

// Keys returns every output tag the program prints, without brackets,
// in print order.
func (p ProbePlan) Keys() []string {
	keys := make([]string, 0, len(p.Symbols))
	for _, s := range p.Symbols {
		keys = append(keys, s.Symbol)
	}
	for _, v := range p.Versions {
		for major := v.MajorBegin; major < v.MajorEnd; major++ {
			for minor := v.MinorBegin; minor < v.MinorEnd; minor++ {
				keys = append(keys, v.Key(major, minor))
			}
		}
	}
	return keys
}

// Synthesize builds the probe program for the given catalogs.
//
// A macro probe is included only when its guard is empty or enabled in fs,
// and a version check only when its library is part of the build; the
// check then includes lib<library>/version.h itself. Each header is included
// once, in first-use order, and all includes come before the guard blocks.
// Every undefined symbol is defined to 0 with a companion S_is_defined macro
// so the program compiles against any release.
func Synthesize(probes []ProbeSpec, versions []VersionCheckSpec, fs FeatureSet) ProbePlan {
	var plan ProbePlan

	var includes, guards, body strings.Builder
	seen := make(map[string]bool)

	includes.WriteString("#include <stdio.h>\n")
	for _, p := range probes {
		if p.Guard != "" && !fs.Enabled(p.Guard) {
			continue
		}
		plan.Symbols = append(plan.Symbols, p)

		if !seen[p.Header] {
			seen[p.Header] = true
			fmt.Fprintf(&includes, "#include <%s>\n", p.Header)
		}
		fmt.Fprintf(&guards, "\n#ifndef %[1]s\n#define %[1]s 0\n#define %[1]s_is_defined 0\n#else\n#define %[1]s_is_defined 1\n#endif\n", p.Symbol)
		fmt.Fprintf(&body, "    printf(\"[%[1]s]%%d%%d\\n\", !!(%[1]s), %[1]s_is_defined);\n", p.Symbol)
	}

	for _, v := range versions {
		if !libraryEnabled(v.Library, fs) {
			continue
		}
		plan.Versions = append(plan.Versions, v)
		if h := "lib" + v.Library + "/version.h"; !seen[h] {
			seen[h] = true
			fmt.Fprintf(&includes, "#include <%s>\n", h)
		}

		lib := "LIB" + strings.ToUpper(v.Library)
		for major := v.MajorBegin; major < v.MajorEnd; major++ {
			for minor := v.MinorBegin; minor < v.MinorEnd; minor++ {
				fmt.Fprintf(&body,
					"    printf(\"[%s]%%d\\n\", %s_VERSION_MAJOR > %d || (%s_VERSION_MAJOR == %d && %s_VERSION_MINOR > %d));\n",
					v.Key(major, minor), lib, major, lib, major, lib, minor)
			}
		}
	}

	var src strings.Builder
	src.WriteString(includes.String())
	src.WriteString(guards.String())
	src.WriteString("\nint main(void)\n{\n")
	src.WriteString(body.String())
	src.WriteString("    return 0;\n}\n")
	plan.Source = src.String()
	return plan
}

// libraryEnabled reports whether a component library is part of the build.
// avutil always is, and so is any library the catalog does not know.
func libraryEnabled(name string, fs FeatureSet) bool {
	for _, lib := range Libraries() {
		if lib.Name == name {
			return lib.Feature == "" || fs.Enabled(lib.Feature)
		}
	}
	return true
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateProbes checks that the catalogs can be synthesized into a program
// whose output is unambiguous: symbols are C identifiers, headers are set,
// version ranges are well formed, and no two entries print the same tag or
// yield the same fact. Tags are compared case-insensitively since facts are
// lower-cased.
func ValidateProbes(probes []ProbeSpec, versions []VersionCheckSpec) error {
	owners := make(map[string]string)
	claim := func(tag, owner string) error {
		key := strings.ToLower(tag)
		if prev, dup := owners[key]; dup {
			return fmt.Errorf("%s: tag %s collides with %s", owner, tag, prev)
		}
		owners[key] = owner
		return nil
	}

	for i, p := range probes {
		if p.Header == "" {
			return fmt.Errorf("probe %d (%s): empty header", i, p.Symbol)
		}
		if !identRE.MatchString(p.Symbol) {
			return fmt.Errorf("probe %d: invalid symbol %q", i, p.Symbol)
		}
		owner := fmt.Sprintf("probe %d (%s)", i, p.Symbol)
		if err := claim(p.Symbol, owner); err != nil {
			return err
		}
		if err := claim(p.Symbol+"_is_defined", owner); err != nil {
			return err
		}
	}
	for i, v := range versions {
		if !identRE.MatchString(v.Library) {
			return fmt.Errorf("version check %d: invalid library %q", i, v.Library)
		}
		if v.MajorBegin > v.MajorEnd || v.MinorBegin > v.MinorEnd {
			return fmt.Errorf("version check %d (%s): inverted range", i, v.Library)
		}
		owner := fmt.Sprintf("version check %d (%s)", i, v.Library)
		for major := v.MajorBegin; major < v.MajorEnd; major++ {
			for minor := v.MinorBegin; minor < v.MinorEnd; minor++ {
				if err := claim(v.Key(major, minor), owner); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Parse decodes probe program output against plan.
//
// Each expected tag must appear at the start of a line. The character right
// after a symbol tag is its value and the next one its defined flag; a
// version tag carries a single character. '1' decodes as true and anything
// else, including nothing, as false. A missing tag is an error.
func Parse(output string, plan ProbePlan) (*ProbeResult, error) {
	lines := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.IndexByte(line, ']')
		if end < 0 {
			continue
		}
		tag := line[1:end]
		if _, dup := lines[tag]; !dup {
			lines[tag] = line[end+1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &StageError{Stage: StageProbeParse, Err: err}
	}

	result := newProbeResult()
	for _, s := range plan.Symbols {
		digits, ok := lines[s.Symbol]
		if !ok {
			return nil, &StageError{Stage: StageProbeParse, Err: fmt.Errorf("tag [%s] not found in probe output", s.Symbol)}
		}
		result.setSymbol(s.Symbol, Availability{
			Value:   digitAt(digits, 0),
			Defined: digitAt(digits, 1),
		})
	}
	for _, v := range plan.Versions {
		for major := v.MajorBegin; major < v.MajorEnd; major++ {
			for minor := v.MinorBegin; minor < v.MinorEnd; minor++ {
				key := v.Key(major, minor)
				digits, ok := lines[key]
				if !ok {
					return nil, &StageError{Stage: StageProbeParse, Err: fmt.Errorf("tag [%s] not found in probe output", key)}
				}
				result.setVersion(key, digitAt(digits, 0))
			}
		}
	}
	return result, nil
}

func digitAt(s string, i int) bool {
	return len(s) > i && s[i] == '1'
}

// Facts returns the build facts implied by the result, in probe order.
//
// A true symbol value yields the cfg tag and metadata entry for the
// lower-cased symbol; a true defined flag yields the same for
// symbol_is_defined. A true version check yields its cfg tag only.
func (r *ProbeResult) Facts() []Fact {
	if r == nil {
		return nil
	}
	var facts []Fact
	for _, name := range r.symbolOrder {
		a := r.Symbols[name]
		key := strings.ToLower(name)
		if a.Value {
			facts = append(facts, Fact{Kind: FactCfg, Key: key}, Fact{Kind: FactMeta, Key: key, Value: "true"})
		}
		if a.Defined {
			facts = append(facts, Fact{Kind: FactCfg, Key: key + "_is_defined"}, Fact{Kind: FactMeta, Key: key + "_is_defined", Value: "true"})
		}
	}
	for _, key := range r.versionOrder {
		if r.Versions[key] {
			facts = append(facts, Fact{Kind: FactCfg, Key: key})
		}
	}
	return facts
}

// ProbeWith writes, compiles and runs the probe program against the headers
// in includeDirs and returns what it learned. Nothing is cached; every call
// probes the headers again.
func ProbeWith(ctx context.Context, includeDirs []string, fs FeatureSet, opts ...ProbeOption) (*ProbeResult, error) {
	cfg := &probeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.probes == nil {
		cfg.probes = DefaultProbes()
	}
	if cfg.versionChecks == nil {
		cfg.versionChecks = DefaultVersionChecks()
	}
	if cfg.runner == nil {
		cfg.runner = ExecRunner{Logger: cfg.logger}
	}
	logger := loggerFor(ctx, cfg.logger)

	if err := ValidateProbes(cfg.probes, cfg.versionChecks); err != nil {
		return nil, &StageError{Stage: StageProbeCompile, Err: err}
	}

	workDir := cfg.workDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "ffsys-probe-*")
		if err != nil {
			return nil, &StageError{Stage: StageProbeCompile, Err: err}
		}
		defer os.RemoveAll(dir)
		workDir = dir
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, &StageError{Stage: StageProbeCompile, Err: err}
	}

	plan := Synthesize(cfg.probes, cfg.versionChecks, fs)
	srcPath := filepath.Join(workDir, "check.c")
	if err := renameio.WriteFile(srcPath, []byte(plan.Source), 0o644); err != nil {
		return nil, &StageError{Stage: StageProbeCompile, Err: fmt.Errorf("writing probe source: %w", err)}
	}

	cc, err := resolveCompiler(cfg.compiler)
	if err != nil {
		return nil, &StageError{Stage: StageProbeCompile, Err: err}
	}
	exe := filepath.Join(workDir, "check"+hostExeSuffix())

	args := append([]string(nil), cc[1:]...)
	for _, dir := range includeDirs {
		args = append(args, "-I", dir)
	}
	args = append(args, "-o", exe, "check.c")
	compile := Command{Name: cc[0], Args: args, Dir: workDir}

	logger.Info().
		Str(ffslog.FieldStage, string(StageProbeCompile)).
		Str(ffslog.FieldPath, srcPath).
		Int("symbols", len(plan.Symbols)).
		Msg("compiling probe")
	if _, err := cfg.runner.Run(ctx, compile); err != nil {
		return nil, stageError(StageProbeCompile, compile.String(), err)
	}

	out, err := cfg.runner.Run(ctx, Command{Name: exe, Dir: workDir})
	if err != nil {
		return nil, stageError(StageProbeParse, exe, err)
	}

	result, err := Parse(out.Stdout, plan)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str(ffslog.FieldStage, string(StageProbeParse)).
		Int("facts", len(result.Facts())).
		Msg("probe parsed")
	return result, nil
}

var errNoCompiler = errors.New("no C compiler found (set CC or install cc, gcc or clang)")

// resolveCompiler splits the compiler command line, falling back to $CC and
// then to the first well-known compiler on PATH.
func resolveCompiler(cc string) ([]string, error) {
	if fields := strings.Fields(cc); len(fields) > 0 {
		return fields, nil
	}
	if fields := strings.Fields(os.Getenv("CC")); len(fields) > 0 {
		return fields, nil
	}
	for _, name := range []string{"cc", "gcc", "clang"} {
		if path, err := exec.LookPath(name); err == nil {
			return []string{path}, nil
		}
	}
	return nil, errNoCompiler
}

func hostExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

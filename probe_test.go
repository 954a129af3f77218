package ffsys

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSynthesize(t *testing.T) {
	probes := []ProbeSpec{
		{Header: "libavutil/avutil.h", Symbol: "FF_API_A"},
		{Header: "libavutil/avutil.h", Symbol: "FF_API_B"},
		{Header: "libavcodec/avcodec.h", Guard: "avcodec", Symbol: "FF_API_C"},
		{Header: "libavformat/avformat.h", Guard: "avformat", Symbol: "FF_API_D"},
	}

	plan := Synthesize(probes, nil, NewFeatureSet("avcodec"))

	t.Run("guard filtering", func(t *testing.T) {
		want := []string{"FF_API_A", "FF_API_B", "FF_API_C"}
		if diff := cmp.Diff(want, plan.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		if strings.Contains(plan.Source, "FF_API_D") || strings.Contains(plan.Source, "avformat.h") {
			t.Error("disabled guard leaked into the program")
		}
	})

	t.Run("headers included once before guard blocks", func(t *testing.T) {
		if n := strings.Count(plan.Source, "#include <libavutil/avutil.h>"); n != 1 {
			t.Errorf("avutil.h included %d times, want 1", n)
		}
		lastInclude := strings.LastIndex(plan.Source, "#include")
		firstGuard := strings.Index(plan.Source, "#ifndef")
		if lastInclude > firstGuard {
			t.Error("an #include follows a guard block")
		}
	})

	t.Run("guard block and print line", func(t *testing.T) {
		block := "#ifndef FF_API_C\n#define FF_API_C 0\n#define FF_API_C_is_defined 0\n#else\n#define FF_API_C_is_defined 1\n#endif\n"
		if !strings.Contains(plan.Source, block) {
			t.Errorf("guard block missing from:\n%s", plan.Source)
		}
		line := `printf("[FF_API_C]%d%d\n", !!(FF_API_C), FF_API_C_is_defined);`
		if !strings.Contains(plan.Source, line) {
			t.Errorf("print line %s missing", line)
		}
	})
}

func TestSynthesize_VersionLines(t *testing.T) {
	plan := Synthesize(nil, DefaultVersionChecks(), NewFeatureSet("avcodec"))

	if got := len(plan.Keys()); got != 4*80 {
		t.Errorf("len(Keys()) = %d, want 320", got)
	}
	want := `printf("[avcodec_version_greater_than_58_3]%d\n", LIBAVCODEC_VERSION_MAJOR > 58 || (LIBAVCODEC_VERSION_MAJOR == 58 && LIBAVCODEC_VERSION_MINOR > 3));`
	if !strings.Contains(plan.Source, want) {
		t.Errorf("missing version line %s", want)
	}
	if strings.Contains(plan.Source, "greater_than_60_") || strings.Contains(plan.Source, "_56_80]") {
		t.Error("version range is not half-open")
	}
	if n := strings.Count(plan.Source, "#include <libavcodec/version.h>"); n != 1 {
		t.Errorf("libavcodec/version.h included %d times, want 1", n)
	}
}

func TestSynthesize_VersionChecksFollowLibraries(t *testing.T) {
	probes := []ProbeSpec{{Header: "libavutil/avutil.h", Symbol: "FF_API_PIX_FMT"}}
	checks := []VersionCheckSpec{
		{Library: "avcodec", MajorBegin: 58, MajorEnd: 59, MinorBegin: 0, MinorEnd: 2},
		{Library: "avutil", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 1},
	}

	t.Run("disabled library is not checked", func(t *testing.T) {
		plan := Synthesize(probes, checks, NewFeatureSet("swscale"))
		want := []string{"FF_API_PIX_FMT", "avutil_version_greater_than_56_0"}
		if diff := cmp.Diff(want, plan.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		if strings.Contains(plan.Source, "LIBAVCODEC") || strings.Contains(plan.Source, "libavcodec/") {
			t.Errorf("avcodec leaked into the program:\n%s", plan.Source)
		}
		if !strings.Contains(plan.Source, "#include <libavutil/version.h>") {
			t.Error("avutil version header not included")
		}
	})

	t.Run("enabled library includes its version header", func(t *testing.T) {
		plan := Synthesize(probes, checks, NewFeatureSet("avcodec"))
		if len(plan.Versions) != 2 {
			t.Fatalf("Versions = %+v, want both checks", plan.Versions)
		}
		include := strings.Index(plan.Source, "#include <libavcodec/version.h>")
		if include < 0 || include > strings.Index(plan.Source, "#ifndef") {
			t.Errorf("libavcodec/version.h missing or after the guard blocks:\n%s", plan.Source)
		}
	})

	t.Run("probe header doubles as version header", func(t *testing.T) {
		plan := Synthesize([]ProbeSpec{{Header: "libavutil/version.h", Symbol: "FF_API_X"}}, checks[1:], NewFeatureSet())
		if n := strings.Count(plan.Source, "#include <libavutil/version.h>"); n != 1 {
			t.Errorf("libavutil/version.h included %d times, want 1", n)
		}
	})
}

// simulate renders what the compiled program would print for the given
// macro values and installed version.
func simulate(plan ProbePlan, macros map[string]int, major, minor int) string {
	var b strings.Builder
	for _, s := range plan.Symbols {
		v, defined := macros[s.Symbol]
		value := 0
		if v != 0 {
			value = 1
		}
		isDefined := 0
		if defined {
			isDefined = 1
		}
		fmt.Fprintf(&b, "[%s]%d%d\n", s.Symbol, value, isDefined)
	}
	for _, vc := range plan.Versions {
		for ma := vc.MajorBegin; ma < vc.MajorEnd; ma++ {
			for mi := vc.MinorBegin; mi < vc.MinorEnd; mi++ {
				gt := 0
				if major > ma || (major == ma && minor > mi) {
					gt = 1
				}
				fmt.Fprintf(&b, "[%s]%d\n", vc.Key(ma, mi), gt)
			}
		}
	}
	return b.String()
}

func TestParse_RoundTrip(t *testing.T) {
	probes := []ProbeSpec{
		{Header: "a.h", Symbol: "X"},
		{Header: "a.h", Symbol: "Y"},
	}
	plan := Synthesize(probes, nil, NewFeatureSet())

	got, err := Parse(simulate(plan, map[string]int{"X": 1}, 0, 0), plan)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := map[string]Availability{
		"X": {Value: true, Defined: true},
		"Y": {Value: false, Defined: false},
	}
	if diff := cmp.Diff(want, got.Symbols); diff != "" {
		t.Errorf("Symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RoundTripCatalog(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fs := NewFeatureSet(FeatureNames()...)
	plan := Synthesize(DefaultProbes(), DefaultVersionChecks(), fs)

	for i := 0; i < 20; i++ {
		macros := make(map[string]int)
		want := make(map[string]Availability)
		for _, s := range plan.Symbols {
			switch rng.Intn(3) {
			case 0:
				want[s.Symbol] = Availability{}
			case 1:
				macros[s.Symbol] = 0
				want[s.Symbol] = Availability{Defined: true}
			case 2:
				macros[s.Symbol] = 1 + rng.Intn(5)
				want[s.Symbol] = Availability{Value: true, Defined: true}
			}
		}
		got, err := Parse(simulate(plan, macros, 58, 3), plan)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if diff := cmp.Diff(want, got.Symbols); diff != "" {
			t.Fatalf("iteration %d: Symbols mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestParse_VersionMonotonicity(t *testing.T) {
	plan := Synthesize(nil, DefaultVersionChecks(), NewFeatureSet("avcodec"))
	got, err := Parse(simulate(plan, nil, 58, 3), plan)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for major := 56; major < 60; major++ {
		for minor := 0; minor < 80; minor++ {
			want := major < 58 || (major == 58 && minor < 3)
			v, ok := got.VersionGreaterThan("avcodec", major, minor)
			if !ok {
				t.Fatalf("(%d, %d) not probed", major, minor)
			}
			if v != want {
				t.Errorf("VersionGreaterThan(%d, %d) = %v, want %v", major, minor, v, want)
			}
		}
	}
}

func TestParse_Errors(t *testing.T) {
	plan := Synthesize([]ProbeSpec{{Header: "a.h", Symbol: "FOO"}}, []VersionCheckSpec{
		{Library: "avcodec", MajorBegin: 58, MajorEnd: 59, MinorBegin: 0, MinorEnd: 1},
	}, NewFeatureSet("avcodec"))

	tests := []struct {
		name   string
		output string
	}{
		{"empty output", ""},
		{"symbol missing", "[avcodec_version_greater_than_58_0]1\n"},
		{"version missing", "[FOO]11\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.output, plan)
			if !errors.Is(err, ErrProbeParse) {
				t.Errorf("Parse() error = %v, want ErrProbeParse", err)
			}
		})
	}
}

func TestParse_Tolerance(t *testing.T) {
	plan := Synthesize([]ProbeSpec{{Header: "a.h", Symbol: "FOO"}, {Header: "a.h", Symbol: "BAR"}}, nil, NewFeatureSet())

	out := "noise before\n  [FOO]1x\n[BAR]\n[FOO]00\n"
	got, err := Parse(out, plan)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if a, _ := got.Symbol("FOO"); a != (Availability{Value: true}) {
		t.Errorf("FOO = %+v, want first occurrence with non-'1' decoded as false", a)
	}
	if a, _ := got.Symbol("BAR"); a != (Availability{}) {
		t.Errorf("BAR = %+v, want absent digits decoded as false", a)
	}
}

func TestProbeResult_Facts(t *testing.T) {
	plan := Synthesize([]ProbeSpec{{Header: "a.h", Symbol: "FOO"}}, nil, NewFeatureSet())

	t.Run("undefined symbol yields no facts", func(t *testing.T) {
		r, err := Parse("[FOO]00\n", plan)
		if err != nil {
			t.Fatal(err)
		}
		if facts := r.Facts(); len(facts) != 0 {
			t.Errorf("Facts() = %v, want none", facts)
		}
	})

	t.Run("true and defined symbol yields two tags", func(t *testing.T) {
		r, err := Parse("[FOO]11\n", plan)
		if err != nil {
			t.Fatal(err)
		}
		want := []Fact{
			{Kind: FactCfg, Key: "foo"},
			{Kind: FactMeta, Key: "foo", Value: "true"},
			{Kind: FactCfg, Key: "foo_is_defined"},
			{Kind: FactMeta, Key: "foo_is_defined", Value: "true"},
		}
		if diff := cmp.Diff(want, r.Facts()); diff != "" {
			t.Errorf("Facts() mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"foo", "foo_is_defined"}, BuildTags(r.Facts())); diff != "" {
			t.Errorf("BuildTags() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("version facts are tags only", func(t *testing.T) {
		vplan := Synthesize(nil, []VersionCheckSpec{{Library: "avcodec", MajorBegin: 58, MajorEnd: 59, MinorBegin: 2, MinorEnd: 4}}, NewFeatureSet("avcodec"))
		r, err := Parse(simulate(vplan, nil, 58, 3), vplan)
		if err != nil {
			t.Fatal(err)
		}
		want := []Fact{{Kind: FactCfg, Key: "avcodec_version_greater_than_58_2"}}
		if diff := cmp.Diff(want, r.Facts()); diff != "" {
			t.Errorf("Facts() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestValidateProbes(t *testing.T) {
	tests := []struct {
		name     string
		probes   []ProbeSpec
		versions []VersionCheckSpec
		wantErr  bool
	}{
		{"default catalog", DefaultProbes(), DefaultVersionChecks(), false},
		{"duplicate symbol", []ProbeSpec{{Header: "a.h", Symbol: "X"}, {Header: "b.h", Symbol: "X"}}, nil, true},
		{"symbols differing in case", []ProbeSpec{{Header: "a.h", Symbol: "X"}, {Header: "a.h", Symbol: "x"}}, nil, true},
		{"symbol shadows a defined flag", []ProbeSpec{{Header: "a.h", Symbol: "X"}, {Header: "a.h", Symbol: "X_is_defined"}}, nil, true},
		{"duplicate version check", nil, []VersionCheckSpec{
			{Library: "avcodec", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 1},
			{Library: "avcodec", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 1},
		}, true},
		{"overlapping version ranges", nil, []VersionCheckSpec{
			{Library: "avcodec", MajorBegin: 56, MajorEnd: 58, MinorBegin: 0, MinorEnd: 10},
			{Library: "avcodec", MajorBegin: 57, MajorEnd: 59, MinorBegin: 5, MinorEnd: 6},
		}, true},
		{"disjoint version ranges", nil, []VersionCheckSpec{
			{Library: "avcodec", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 10},
			{Library: "avcodec", MajorBegin: 57, MajorEnd: 58, MinorBegin: 0, MinorEnd: 10},
			{Library: "avformat", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 10},
		}, false},
		{"symbol named like a version tag", []ProbeSpec{{Header: "a.h", Symbol: "avcodec_version_greater_than_56_0"}}, []VersionCheckSpec{
			{Library: "avcodec", MajorBegin: 56, MajorEnd: 57, MinorBegin: 0, MinorEnd: 1},
		}, true},
		{"empty header", []ProbeSpec{{Symbol: "X"}}, nil, true},
		{"invalid symbol", []ProbeSpec{{Header: "a.h", Symbol: "X Y"}}, nil, true},
		{"invalid library", nil, []VersionCheckSpec{{Library: "av-codec"}}, true},
		{"inverted range", nil, []VersionCheckSpec{{Library: "avcodec", MajorBegin: 60, MajorEnd: 56}}, true},
		{"empty range", nil, []VersionCheckSpec{{Library: "avcodec", MajorBegin: 58, MajorEnd: 58}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProbes(tt.probes, tt.versions)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProbes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProbeWith_FakeRunner(t *testing.T) {
	work := t.TempDir()
	r := &fakeRunner{results: map[string]fakeResult{
		filepath.Join(work, "check"+hostExeSuffix()): {out: Output{Stdout: "[FOO]11\n[BAR]00\n"}},
	}}

	got, err := ProbeWith(context.Background(), []string{"/dist/include", "/extra"}, NewFeatureSet(),
		WithRunner(r),
		WithCompiler("ccache cc"),
		WithWorkDir(work),
		WithProbes(ProbeSpec{Header: "a.h", Symbol: "FOO"}, ProbeSpec{Header: "a.h", Symbol: "BAR"}),
		WithVersionChecks(),
	)
	if err != nil {
		t.Fatalf("ProbeWith() error = %v", err)
	}
	if a, _ := got.Symbol("FOO"); a != (Availability{Value: true, Defined: true}) {
		t.Errorf("FOO = %+v", a)
	}

	compile := r.calls[0]
	wantArgs := []string{"cc", "-I", "/dist/include", "-I", "/extra", "-o", filepath.Join(work, "check"+hostExeSuffix()), "check.c"}
	if compile.Name != "ccache" {
		t.Errorf("compiler = %q, want ccache", compile.Name)
	}
	if diff := cmp.Diff(wantArgs, compile.Args); diff != "" {
		t.Errorf("compile args mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(work, "check.c")); err != nil {
		t.Errorf("probe source not written: %v", err)
	}
}

func TestProbeWith_CompileFailure(t *testing.T) {
	r := &fakeRunner{results: map[string]fakeResult{
		"cc": {err: &ExitError{Cmd: "cc", ExitCode: 1, Stderr: "fatal error: a.h: No such file or directory"}},
	}}
	_, err := ProbeWith(context.Background(), nil, NewFeatureSet(),
		WithRunner(r), WithCompiler("cc"), WithWorkDir(t.TempDir()),
		WithProbes(ProbeSpec{Header: "a.h", Symbol: "FOO"}), WithVersionChecks())
	if !errors.Is(err, ErrProbeCompile) {
		t.Fatalf("ProbeWith() error = %v, want ErrProbeCompile", err)
	}
	var se *StageError
	if errors.As(err, &se) && !strings.Contains(se.Output, "No such file") {
		t.Errorf("Output = %q, want compiler diagnostic", se.Output)
	}
	if len(r.calls) != 1 {
		t.Errorf("ran %d commands after a compile failure, want 1", len(r.calls))
	}
}

func lookupCC(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"cc", "gcc", "clang"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no C compiler on PATH")
	return ""
}

func TestProbeWith_RealCompiler(t *testing.T) {
	cc := lookupCC(t)

	tests := []struct {
		name     string
		header   string
		wantTags []string
	}{
		{
			name:     "undefined symbol",
			header:   "#define LIBAVCODEC_VERSION_MAJOR 58\n#define LIBAVCODEC_VERSION_MINOR 3\n",
			wantTags: nil,
		},
		{
			name:     "symbol defined as 5",
			header:   "#define FOO 5\n#define LIBAVCODEC_VERSION_MAJOR 58\n#define LIBAVCODEC_VERSION_MINOR 3\n",
			wantTags: []string{"foo", "foo_is_defined"},
		},
		{
			name:     "symbol defined as 0",
			header:   "#define FOO 0\n#define LIBAVCODEC_VERSION_MAJOR 58\n#define LIBAVCODEC_VERSION_MINOR 3\n",
			wantTags: []string{"foo_is_defined"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			include := t.TempDir()
			if err := os.WriteFile(filepath.Join(include, "a.h"), []byte(tt.header), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := ProbeWith(context.Background(), []string{include}, NewFeatureSet(),
				WithCompiler(cc),
				WithWorkDir(t.TempDir()),
				WithProbes(ProbeSpec{Header: "a.h", Symbol: "FOO"}),
				WithVersionChecks(),
			)
			if err != nil {
				t.Fatalf("ProbeWith() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantTags, BuildTags(got.Facts())); diff != "" {
				t.Errorf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("version monotonicity", func(t *testing.T) {
		include := t.TempDir()
		header := "#define LIBAVCODEC_VERSION_MAJOR 58\n#define LIBAVCODEC_VERSION_MINOR 3\n"
		if err := os.MkdirAll(filepath.Join(include, "libavcodec"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(include, "libavcodec", "version.h"), []byte(header), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(include, "v.h"), []byte("/* no version macros */\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := ProbeWith(context.Background(), []string{include}, NewFeatureSet("avcodec"),
			WithCompiler(cc),
			WithWorkDir(t.TempDir()),
			WithProbes(ProbeSpec{Header: "v.h", Symbol: "UNUSED_MARKER"}),
		)
		if err != nil {
			t.Fatalf("ProbeWith() error = %v", err)
		}
		for major := 56; major < 60; major++ {
			for minor := 0; minor < 80; minor++ {
				want := major < 58 || (major == 58 && minor < 3)
				if v, _ := got.VersionGreaterThan("avcodec", major, minor); v != want {
					t.Errorf("VersionGreaterThan(%d, %d) = %v, want %v", major, minor, v, want)
				}
			}
		}
	})

	t.Run("version checks skip disabled libraries", func(t *testing.T) {
		include := t.TempDir()
		if err := os.MkdirAll(filepath.Join(include, "libavutil"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(include, "libavutil", "avutil.h"), []byte("#define FF_API_PIX_FMT 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := ProbeWith(context.Background(), []string{include}, NewFeatureSet("swscale"),
			WithCompiler(cc),
			WithWorkDir(t.TempDir()),
			WithProbes(ProbeSpec{Header: "libavutil/avutil.h", Symbol: "FF_API_PIX_FMT"}),
		)
		if err != nil {
			t.Fatalf("ProbeWith() error = %v", err)
		}
		if a, _ := got.Symbol("FF_API_PIX_FMT"); !a.Value {
			t.Errorf("FF_API_PIX_FMT = %+v, want set", a)
		}
		if _, ok := got.VersionGreaterThan("avcodec", 58, 0); ok {
			t.Error("avcodec version checked without avcodec")
		}
	})

	t.Run("missing header fails compile", func(t *testing.T) {
		_, err := ProbeWith(context.Background(), []string{t.TempDir()}, NewFeatureSet(),
			WithCompiler(cc),
			WithWorkDir(t.TempDir()),
			WithProbes(ProbeSpec{Header: "does/not/exist.h", Symbol: "FOO"}),
			WithVersionChecks(),
		)
		if !errors.Is(err, ErrProbeCompile) {
			t.Errorf("ProbeWith() error = %v, want ErrProbeCompile", err)
		}
	})
}

package ffsys

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFact_StringAndParse(t *testing.T) {
	tests := []struct {
		fact Fact
		line string
	}{
		{Fact{Kind: FactCfg, Key: "ff_api_old"}, "cfg:ff_api_old"},
		{Fact{Kind: FactMeta, Key: "ff_api_old", Value: "true"}, "meta:ff_api_old=true"},
		{Fact{Kind: FactLinkLib, Key: "avcodec", Value: "static"}, "link-lib:static=avcodec"},
		{Fact{Kind: FactLinkLib, Key: "m"}, "link-lib:m"},
		{Fact{Kind: FactLinkSearch, Key: "/out/dist/lib", Value: "native"}, "link-search:native=/out/dist/lib"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := tt.fact.String(); got != tt.line {
				t.Errorf("String() = %q, want %q", got, tt.line)
			}
			got, err := ParseFact(tt.line)
			if err != nil {
				t.Fatalf("ParseFact() error = %v", err)
			}
			if diff := cmp.Diff(tt.fact, got); diff != "" {
				t.Errorf("ParseFact() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFact_Malformed(t *testing.T) {
	for _, line := range []string{"", "cfg", "cfg:", "meta:novalue", "meta:=x", "rustc-cfg:x"} {
		if _, err := ParseFact(line); err == nil {
			t.Errorf("ParseFact(%q) succeeded", line)
		}
	}
}

func TestBuildTags(t *testing.T) {
	facts := []Fact{
		{Kind: FactCfg, Key: "a"},
		{Kind: FactMeta, Key: "a", Value: "true"},
		{Kind: FactCfg, Key: "b"},
		{Kind: FactCfg, Key: "a"},
		{Kind: FactLinkLib, Key: "m"},
	}
	if diff := cmp.Diff([]string{"a", "b"}, BuildTags(facts)); diff != "" {
		t.Errorf("BuildTags() mismatch (-want +got):\n%s", diff)
	}
}

func TestLinkFacts(t *testing.T) {
	got := LinkFacts([]string{"/lib"}, []LinkDirective{{Name: "avutil", Mode: LinkDylib}, {Name: "z"}})
	want := []Fact{
		{Kind: FactLinkSearch, Key: "/lib", Value: "native"},
		{Kind: FactLinkLib, Key: "avutil", Value: "dylib"},
		{Kind: FactLinkLib, Key: "z"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LinkFacts() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDirectives(t *testing.T) {
	var buf bytes.Buffer
	facts := []Fact{{Kind: FactCfg, Key: "x"}, {Kind: FactLinkLib, Key: "m"}}
	if err := WriteDirectives(&buf, facts); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "cfg:x\nlink-lib:m\n" {
		t.Errorf("WriteDirectives() = %q", got)
	}
}

func TestOutputFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	facts := []Fact{{Kind: FactCfg, Key: "x"}, {Kind: FactCfg, Key: "y"}, {Kind: FactMeta, Key: "x", Value: "true"}}

	tags := filepath.Join(dir, TagsFile)
	if err := WriteTagsFile(ctx, tags, facts); err != nil {
		t.Fatal(err)
	}
	assertFile(t, tags, "x,y\n")

	env := filepath.Join(dir, EnvFile)
	if err := WriteEnvFile(ctx, env, CgoEnv{CFlags: []string{"-I/opt/ff mpeg/include"}, LDFlags: []string{"-L/lib", "-lavutil"}}); err != nil {
		t.Fatal(err)
	}
	assertFile(t, env, "CGO_CFLAGS='-I/opt/ff mpeg/include'\nCGO_LDFLAGS='-L/lib -lavutil'\n")

	directives := filepath.Join(dir, DirectivesFile)
	if err := os.WriteFile(directives, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDirectivesFile(ctx, directives, facts[:1]); err != nil {
		t.Fatal(err)
	}
	assertFile(t, directives, "cfg:x\n")

	report := filepath.Join(dir, ReportFile)
	if err := WriteJSONFile(ctx, report, map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil || got["n"] != 1 {
		t.Errorf("report = %s, %v", data, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("left %d entries behind, want 4", len(entries))
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("shellQuote() = %s", got)
	}
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("%s = %q, want %q", filepath.Base(path), data, want)
	}
}

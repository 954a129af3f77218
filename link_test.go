package ffsys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComponentLinks(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		want     []string
		mode     string
	}{
		{"avutil only", nil, []string{"avutil"}, LinkDylib},
		{"static codec and format", []string{"static", "avformat", "avcodec"}, []string{"avutil", "avcodec", "avformat"}, LinkStatic},
		{"postproc", []string{"postproc", "swscale"}, []string{"avutil", "swscale", "postproc"}, LinkDylib},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			libs := ComponentLinks(NewFeatureSet(tt.features...))
			if diff := cmp.Diff(tt.want, names(libs)); diff != "" {
				t.Errorf("ComponentLinks() mismatch (-want +got):\n%s", diff)
			}
			for _, l := range libs {
				if l.Mode != tt.mode {
					t.Errorf("%s mode = %q, want %q", l.Name, l.Mode, tt.mode)
				}
			}
		})
	}
}

func TestPlatformLinks(t *testing.T) {
	t.Run("zlib on linux", func(t *testing.T) {
		got := PlatformLinks("x86_64-unknown-linux-gnu", NewFeatureSet("build_zlib"))
		if diff := cmp.Diff([]string{"z"}, names(got)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("zlib elsewhere", func(t *testing.T) {
		if got := PlatformLinks("aarch64-apple-darwin", NewFeatureSet("build_zlib")); len(got) != 0 {
			t.Errorf("PlatformLinks() = %v, want none", got)
		}
	})
	t.Run("frameworks for static darwin", func(t *testing.T) {
		got := PlatformLinks("aarch64-apple-darwin", NewFeatureSet("static"))
		if len(got) != len(darwinFrameworks) {
			t.Fatalf("got %d frameworks, want %d", len(got), len(darwinFrameworks))
		}
		if got[0].LDFlag() != "-framework AppKit" {
			t.Errorf("LDFlag() = %q", got[0].LDFlag())
		}
	})
	t.Run("no frameworks for dynamic darwin", func(t *testing.T) {
		if got := PlatformLinks("aarch64-apple-darwin", NewFeatureSet()); len(got) != 0 {
			t.Errorf("PlatformLinks() = %v, want none", got)
		}
	})
}

func TestPlanLink(t *testing.T) {
	extra := []LinkDirective{
		{Name: "m", Kind: Unconditional},
		{Name: "z", Kind: FeatureGated, Feature: "avformat"},
		{Name: "x264", Kind: FeatureGated, Feature: "avcodec"},
	}
	plan := PlanLink("/dist/lib", "x86_64-unknown-linux-gnu", NewFeatureSet("static", "build_zlib", "avcodec", "avformat"), extra)

	if diff := cmp.Diff([]string{"avutil", "avcodec", "avformat", "z", "m", "x264"}, names(plan.Libraries)); diff != "" {
		t.Errorf("Libraries mismatch (-want +got):\n%s", diff)
	}

	wantFacts := []string{
		"link-search:native=/dist/lib",
		"link-lib:static=avutil",
		"link-lib:static=avcodec",
		"link-lib:static=avformat",
		"link-lib:z",
		"link-lib:m",
		"link-lib:x264",
	}
	var gotFacts []string
	for _, f := range plan.Facts() {
		gotFacts = append(gotFacts, f.String())
	}
	if diff := cmp.Diff(wantFacts, gotFacts); diff != "" {
		t.Errorf("Facts mismatch (-want +got):\n%s", diff)
	}

	wantFlags := []string{"-L/dist/lib", "-lavformat", "-lavcodec", "-lavutil", "-lz", "-lm", "-lx264"}
	if diff := cmp.Diff(wantFlags, plan.LDFlags()); diff != "" {
		t.Errorf("LDFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanLink_NoSearchDir(t *testing.T) {
	plan := PlanLink("", "x86_64-unknown-linux-gnu", NewFeatureSet(), nil)
	if len(plan.SearchDirs) != 0 {
		t.Errorf("SearchDirs = %v, want none", plan.SearchDirs)
	}
	if diff := cmp.Diff([]string{"-lavutil"}, plan.LDFlags()); diff != "" {
		t.Errorf("LDFlags mismatch (-want +got):\n%s", diff)
	}
}

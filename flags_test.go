package ffsys

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSwitches_ToggleEmitsExactlyOne(t *testing.T) {
	flags := []FeatureFlag{
		{Feature: "avcodec", Category: Toggle, Switch: "avcodec"},
		{Feature: "swscale", Category: Toggle, Switch: "swscale"},
	}

	tests := []struct {
		name string
		fs   FeatureSet
		want []string
	}{
		{"none selected", NewFeatureSet(), []string{"--disable-avcodec", "--disable-swscale"}},
		{"one selected", NewFeatureSet("avcodec"), []string{"--enable-avcodec", "--disable-swscale"}},
		{"all selected", NewFeatureSet("avcodec", "SWSCALE"), []string{"--enable-avcodec", "--enable-swscale"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Switches(flags, tt.fs)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Switches() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSwitches_EnableOnly(t *testing.T) {
	flags := []FeatureFlag{
		{Feature: "build_lib_x264", Category: EnableOnly, Switch: "libx264"},
	}

	if got := Switches(flags, NewFeatureSet()); len(got) != 0 {
		t.Errorf("Switches() = %v, want nothing when not selected", got)
	}
	got := Switches(flags, NewFeatureSet("build-lib-x264"))
	if diff := cmp.Diff([]string{"--enable-libx264"}, got); diff != "" {
		t.Errorf("Switches() mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitches_DefaultCatalogProperties(t *testing.T) {
	flags := DefaultFlags()
	selections := []FeatureSet{
		NewFeatureSet(),
		NewFeatureSet("avcodec", "avformat", "build_lib_x264", "build_license_gpl"),
		NewFeatureSet(FeatureNames()...),
	}

	for _, fs := range selections {
		got := Switches(flags, fs)
		for _, f := range flags {
			enable := slices.Contains(got, "--enable-"+f.Switch)
			disable := slices.Contains(got, "--disable-"+f.Switch)
			switch f.Category {
			case Toggle:
				if enable == disable {
					t.Errorf("[%s] toggle %s: enable=%v disable=%v, want exactly one", fs, f.Switch, enable, disable)
				}
				if enable != fs.Enabled(f.Feature) {
					t.Errorf("[%s] toggle %s: enable=%v, want %v", fs, f.Switch, enable, fs.Enabled(f.Feature))
				}
			case EnableOnly:
				if disable {
					t.Errorf("[%s] enable-only %s emitted a disable switch", fs, f.Switch)
				}
				if enable != fs.Enabled(f.Feature) {
					t.Errorf("[%s] enable-only %s: enable=%v, want %v", fs, f.Switch, enable, fs.Enabled(f.Feature))
				}
			}
		}
	}
}

func TestValidateFlags(t *testing.T) {
	if err := ValidateFlags(DefaultFlags()); err != nil {
		t.Fatalf("ValidateFlags(DefaultFlags()) error = %v", err)
	}

	t.Run("duplicate feature", func(t *testing.T) {
		err := ValidateFlags([]FeatureFlag{
			{Feature: "a", Switch: "x"},
			{Feature: "A", Switch: "y"},
		})
		if err == nil || !strings.Contains(err.Error(), `duplicate feature "A"`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("duplicate switch", func(t *testing.T) {
		err := ValidateFlags([]FeatureFlag{
			{Feature: "a", Switch: "x"},
			{Feature: "b", Switch: "x"},
		})
		if err == nil || !strings.Contains(err.Error(), `duplicate switch "x"`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty switch", func(t *testing.T) {
		if err := ValidateFlags([]FeatureFlag{{Feature: "a"}}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFeatureNames_ContainsCatalogs(t *testing.T) {
	names := FeatureNames()
	for _, want := range []string{"build", "static", "avcodec", "build_lib_x264", "build_pic"} {
		if !slices.Contains(names, want) {
			t.Errorf("FeatureNames() missing %q", want)
		}
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Errorf("FeatureNames() duplicate %q", n)
		}
		seen[n] = true
	}
}

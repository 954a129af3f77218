package ffsys

import "fmt"

// Switches maps the flag catalog onto configure switches, in catalog order.
//
// A [Toggle] flag always yields exactly one switch: --enable-X when its
// feature is enabled, --disable-X otherwise. An [EnableOnly] flag yields
// --enable-X when enabled and nothing otherwise.
func Switches(flags []FeatureFlag, fs FeatureSet) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		enabled := fs.Enabled(f.Feature)
		switch f.Category {
		case Toggle:
			if enabled {
				out = append(out, "--enable-"+f.Switch)
			} else {
				out = append(out, "--disable-"+f.Switch)
			}
		case EnableOnly:
			if enabled {
				out = append(out, "--enable-"+f.Switch)
			}
		}
	}
	return out
}

// ValidateFlags rejects catalogs where a feature or switch appears twice.
func ValidateFlags(flags []FeatureFlag) error {
	seenFeatures := make(map[string]struct{}, len(flags))
	seenSwitches := make(map[string]struct{}, len(flags))
	for i, f := range flags {
		if f.Feature == "" || f.Switch == "" {
			return fmt.Errorf("flag %d: empty feature or switch", i)
		}
		key := NormalizeFeature(f.Feature)
		if _, ok := seenFeatures[key]; ok {
			return fmt.Errorf("flag %d: duplicate feature %q", i, f.Feature)
		}
		seenFeatures[key] = struct{}{}
		if _, ok := seenSwitches[f.Switch]; ok {
			return fmt.Errorf("flag %d: duplicate switch %q", i, f.Switch)
		}
		seenSwitches[f.Switch] = struct{}{}
	}
	return nil
}

// FeatureNames returns every feature name the flag catalog and the library
// catalog know about, plus the orchestration features, in catalog order.
func FeatureNames() []string {
	seen := map[string]struct{}{}
	var names []string
	add := func(n string) {
		if _, ok := seen[n]; ok || n == "" {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, n := range orchestrationFeatures {
		add(n)
	}
	for _, f := range DefaultFlags() {
		add(f.Feature)
	}
	for _, l := range Libraries() {
		add(l.Feature)
	}
	return names
}

// orchestrationFeatures steer the orchestrator itself rather than configure.
var orchestrationFeatures = []string{
	FeatureBuild,
	FeatureStatic,
	FeatureBuildZlib,
}

// Orchestration feature names.
const (
	// FeatureBuild builds FFmpeg from source instead of using a prebuilt copy.
	FeatureBuild = "build"
	// FeatureStatic links the FFmpeg libraries statically.
	FeatureStatic = "static"
	// FeatureBuildZlib links zlib on Linux targets.
	FeatureBuildZlib = "build_zlib"
)

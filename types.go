package ffsys

import (
	"fmt"
	"slices"
	"strings"
)

// FeatureSet is the immutable set of enabled feature names.
//
// Names are normalized: lower-cased, with '-' mapped to '_', so that
// "BUILD_LIB_X264", "build-lib-x264" and "build_lib_x264" are the same feature.
type FeatureSet struct {
	enabled map[string]struct{}
}

// NewFeatureSet creates a FeatureSet from the given names.
// Empty names are ignored.
func NewFeatureSet(names ...string) FeatureSet {
	fs := FeatureSet{enabled: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if key := NormalizeFeature(n); key != "" {
			fs.enabled[key] = struct{}{}
		}
	}
	return fs
}

// NormalizeFeature returns the canonical form of a feature name.
func NormalizeFeature(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, "-", "_")
}

// Enabled reports whether the named feature is selected.
func (fs FeatureSet) Enabled(name string) bool {
	if fs.enabled == nil {
		return false
	}
	_, ok := fs.enabled[NormalizeFeature(name)]
	return ok
}

// With returns a new FeatureSet that also contains names.
func (fs FeatureSet) With(names ...string) FeatureSet {
	return NewFeatureSet(append(fs.Names(), names...)...)
}

// Names returns the enabled features in sorted order.
func (fs FeatureSet) Names() []string {
	names := make([]string, 0, len(fs.enabled))
	for n := range fs.enabled {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of enabled features.
func (fs FeatureSet) Len() int {
	return len(fs.enabled)
}

func (fs FeatureSet) String() string {
	return strings.Join(fs.Names(), ",")
}

// FlagCategory controls how a [FeatureFlag] maps to configure switches.
type FlagCategory int

const (
	// Toggle flags always emit exactly one of --enable-X or --disable-X.
	Toggle FlagCategory = iota
	// EnableOnly flags emit --enable-X when selected and nothing otherwise.
	EnableOnly
)

func (c FlagCategory) String() string {
	switch c {
	case Toggle:
		return "toggle"
	case EnableOnly:
		return "enable-only"
	default:
		return fmt.Sprintf("FlagCategory(%d)", c)
	}
}

// FeatureFlag binds a feature name to an upstream configure switch.
type FeatureFlag struct {
	// Feature is the feature name looked up in the [FeatureSet].
	Feature  string
	Category FlagCategory
	// Switch is the configure switch stem, e.g. "libx264" for --enable-libx264.
	Switch string
}

// ProbeSpec describes one preprocessor symbol to discover in the installed headers.
type ProbeSpec struct {
	Header string
	// Guard is the feature that must be enabled for the probe to run.
	// Empty means unconditional.
	Guard  string
	Symbol string
}

// VersionCheckSpec expands into one "installed version is newer than
// MAJOR.MINOR" fact per (major, minor) pair in the half-open ranges.
type VersionCheckSpec struct {
	// Library is the component tag, e.g. "avcodec"; the probe reads
	// LIB<LIBRARY>_VERSION_MAJOR and LIB<LIBRARY>_VERSION_MINOR.
	Library    string
	MajorBegin int
	MajorEnd   int
	MinorBegin int
	MinorEnd   int
}

// Key returns the output tag for the (major, minor) pair, without brackets.
func (v VersionCheckSpec) Key(major, minor int) string {
	return fmt.Sprintf("%s_version_greater_than_%d_%d", v.Library, major, minor)
}

// Availability is what the probe learned about one symbol.
type Availability struct {
	// Value is the symbol's truth value (0/undefined is false).
	Value bool `json:"value"`
	// Defined reports whether the header defines the symbol at all.
	Defined bool `json:"defined"`
}

// ProbeResult maps each probed symbol and version-check key to its facts.
type ProbeResult struct {
	Symbols  map[string]Availability `json:"symbols"`
	Versions map[string]bool         `json:"versions"`

	// order preserves the emission order of symbols and versions.
	symbolOrder  []string
	versionOrder []string
}

func newProbeResult() *ProbeResult {
	return &ProbeResult{
		Symbols:  make(map[string]Availability),
		Versions: make(map[string]bool),
	}
}

func (r *ProbeResult) setSymbol(name string, a Availability) {
	if _, ok := r.Symbols[name]; !ok {
		r.symbolOrder = append(r.symbolOrder, name)
	}
	r.Symbols[name] = a
}

func (r *ProbeResult) setVersion(key string, v bool) {
	if _, ok := r.Versions[key]; !ok {
		r.versionOrder = append(r.versionOrder, key)
	}
	r.Versions[key] = v
}

// Symbol returns the availability of name and whether it was probed.
func (r *ProbeResult) Symbol(name string) (Availability, bool) {
	if r == nil {
		return Availability{}, false
	}
	a, ok := r.Symbols[name]
	return a, ok
}

// VersionGreaterThan reports whether the library is newer than major.minor.
// The second value is false if that pair was not part of the probe.
func (r *ProbeResult) VersionGreaterThan(library string, major, minor int) (bool, bool) {
	if r == nil {
		return false, false
	}
	v, ok := r.Versions[VersionCheckSpec{Library: library}.Key(major, minor)]
	return v, ok
}

// LinkKind distinguishes how a library reaches the link directive set.
type LinkKind int

const (
	// Unconditional directives are always emitted.
	Unconditional LinkKind = iota
	// FeatureGated directives are emitted only when their feature is enabled.
	FeatureGated
)

func (k LinkKind) String() string {
	switch k {
	case Unconditional:
		return "unconditional"
	case FeatureGated:
		return "feature-gated"
	default:
		return fmt.Sprintf("LinkKind(%d)", k)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k LinkKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LinkDirective instructs the final linker to include a library.
type LinkDirective struct {
	Name string   `json:"name"`
	Kind LinkKind `json:"kind"`
	// Feature is the owning feature for FeatureGated directives.
	Feature string `json:"feature,omitempty"`
	// Mode is "static", "dylib", "framework" or empty for the linker default.
	Mode string `json:"mode,omitempty"`
}

// LDFlag renders the directive as a linker flag.
func (d LinkDirective) LDFlag() string {
	if d.Mode == "framework" {
		return "-framework " + d.Name
	}
	return "-l" + d.Name
}

func (d LinkDirective) String() string {
	if d.Mode == "" {
		return d.Name
	}
	return d.Mode + "=" + d.Name
}

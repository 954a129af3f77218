package ffsys

import (
	"slices"
	"strings"
)

// Link modes.
const (
	LinkStatic    = "static"
	LinkDylib     = "dylib"
	LinkFramework = "framework"
)

// darwinFrameworks are required by a static build on macOS.
var darwinFrameworks = []string{
	"AppKit",
	"AudioToolbox",
	"AVFoundation",
	"CoreFoundation",
	"CoreGraphics",
	"CoreMedia",
	"CoreServices",
	"CoreVideo",
	"Foundation",
	"OpenCL",
	"OpenGL",
	"QTKit",
	"QuartzCore",
	"Security",
	"VideoDecodeAcceleration",
	"VideoToolbox",
}

// staticLinkOrder lists the component libraries dependents first, as a
// single-pass static linker needs them.
var staticLinkOrder = []string{
	"avdevice", "avfilter", "avformat", "avcodec", "postproc",
	"swresample", "swscale", "avresample", "avutil",
}

// LinkPlan is the full set of instructions for the final link.
type LinkPlan struct {
	SearchDirs []string        `json:"search_dirs"`
	Libraries  []LinkDirective `json:"libraries"`
}

// ComponentLinks returns one directive per enabled component library,
// avutil always first. The mode is static when the static feature is
// enabled and dylib otherwise.
func ComponentLinks(fs FeatureSet) []LinkDirective {
	mode := LinkDylib
	if fs.Enabled(FeatureStatic) {
		mode = LinkStatic
	}
	var libs []LinkDirective
	for _, lib := range Libraries() {
		if lib.Feature == "" {
			libs = append(libs, LinkDirective{Name: lib.Name, Kind: Unconditional, Mode: mode})
			continue
		}
		if fs.Enabled(lib.Feature) {
			libs = append(libs, LinkDirective{Name: lib.Name, Kind: FeatureGated, Feature: lib.Feature, Mode: mode})
		}
	}
	return libs
}

// PlatformLinks returns the system libraries the target needs on top of the
// FFmpeg ones: zlib on Linux when it is built in, and the media frameworks
// for a static macOS build.
func PlatformLinks(target Target, fs FeatureSet) []LinkDirective {
	var libs []LinkDirective
	if fs.Enabled(FeatureBuildZlib) && target.IsLinux() {
		libs = append(libs, LinkDirective{Name: "z", Kind: FeatureGated, Feature: FeatureBuildZlib})
	}
	if fs.Enabled(FeatureStatic) && target.IsDarwin() {
		for _, f := range darwinFrameworks {
			libs = append(libs, LinkDirective{Name: f, Kind: FeatureGated, Feature: FeatureStatic, Mode: LinkFramework})
		}
	}
	return libs
}

// PlanLink assembles the plan for libraries installed under libDir:
// component libraries, platform libraries, then the extra libraries from the
// build record. A name is linked once; the first directive wins.
func PlanLink(libDir string, target Target, fs FeatureSet, extra []LinkDirective) LinkPlan {
	var plan LinkPlan
	if libDir != "" {
		plan.SearchDirs = []string{libDir}
	}
	plan.add(ComponentLinks(fs)...)
	plan.add(PlatformLinks(target, fs)...)
	plan.add(extra...)
	return plan
}

func (p *LinkPlan) add(libs ...LinkDirective) {
	for _, l := range libs {
		if slices.ContainsFunc(p.Libraries, func(have LinkDirective) bool { return have.Name == l.Name }) {
			continue
		}
		p.Libraries = append(p.Libraries, l)
	}
}

// Facts renders the plan as directive stream facts.
func (p LinkPlan) Facts() []Fact {
	return LinkFacts(p.SearchDirs, p.Libraries)
}

// LDFlags renders the plan as linker flags for cgo. Component libraries are
// emitted in static dependency order ahead of everything else.
func (p LinkPlan) LDFlags() []string {
	var flags []string
	for _, d := range p.SearchDirs {
		flags = append(flags, "-L"+d)
	}

	var components, rest []LinkDirective
	for _, l := range p.Libraries {
		if slices.Contains(staticLinkOrder, l.Name) && l.Mode != LinkFramework {
			components = append(components, l)
		} else {
			rest = append(rest, l)
		}
	}
	slices.SortStableFunc(components, func(a, b LinkDirective) int {
		return slices.Index(staticLinkOrder, a.Name) - slices.Index(staticLinkOrder, b.Name)
	})
	for _, l := range append(components, rest...) {
		flags = append(flags, strings.Fields(l.LDFlag())...)
	}
	return flags
}

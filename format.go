package ffsys

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of the run.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "FFmpeg: %s (%s", r.Version, r.Source)
	if r.Built {
		b.WriteString(", built")
	}
	fmt.Fprintf(&b, ")\nTarget: %s\n", r.Target)
	if len(r.Features) > 0 {
		fmt.Fprintf(&b, "Features: %s\n", strings.Join(r.Features, ", "))
	}
	b.WriteString("\n")

	b.WriteString("Install:\n")
	writeList(&b, "  include", r.IncludeDirs)
	writeList(&b, "  search", r.Link.SearchDirs)
	libs := make([]string, 0, len(r.Link.Libraries))
	for _, l := range r.Link.Libraries {
		libs = append(libs, l.String())
	}
	writeList(&b, "  libraries", libs)
	writeList(&b, "  programs", r.Programs)
	b.WriteString("\n")

	if r.Probe != nil {
		b.WriteString("API availability:\n")
		for _, name := range r.Probe.symbolOrder {
			writeAvailability(&b, "  "+name, r.Probe.Symbols[name])
		}
		newer := 0
		for _, key := range r.Probe.versionOrder {
			if r.Probe.Versions[key] {
				newer++
			}
		}
		fmt.Fprintf(&b, "  version thresholds passed: %d/%d\n", newer, len(r.Probe.versionOrder))
		b.WriteString("\n")
	}

	if r.Bindings != nil {
		b.WriteString("Bindings:\n")
		fmt.Fprintf(&b, "  %s: %d headers, %d enums, %d enumerators, %d constants\n",
			r.Bindings.Path, r.Bindings.Headers, r.Bindings.Enums, r.Bindings.Enumerators, r.Bindings.Constants)
	}

	return b.String()
}

func writeAvailability(b *strings.Builder, name string, a Availability) {
	status := "no"
	if a.Value {
		status = "yes"
	}
	if !a.Defined {
		fmt.Fprintf(b, "%s: %s (not defined)\n", name, status)
	} else {
		fmt.Fprintf(b, "%s: %s\n", name, status)
	}
}

func writeList(b *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: (none)\n", name)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, strings.Join(items, " "))
}

package ffsys

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Header is one public header bound by the generated layer.
type Header struct {
	// Name is the include name, e.g. "libavutil/avutil.h".
	Name string
	// Path is where the header was found.
	Path    string
	Library string
}

// HeaderSet returns the headers to bind: avutil's always, every other
// library's only when its feature is enabled. Libraries are visited in name
// order. Each header resolves to the first include directory containing it,
// or to /usr/include when none does.
func HeaderSet(includeDirs []string, fs FeatureSet) []Header {
	libs := Libraries()
	slices.SortFunc(libs, func(a, b Library) int { return strings.Compare(a.Name, b.Name) })

	var headers []Header
	for _, lib := range libs {
		if lib.Feature != "" && !fs.Enabled(lib.Feature) {
			continue
		}
		for _, name := range lib.Headers {
			headers = append(headers, Header{
				Name:    name,
				Path:    resolveHeader(includeDirs, name),
				Library: lib.Name,
			})
		}
	}
	return headers
}

func resolveHeader(includeDirs []string, name string) string {
	for _, dir := range includeDirs {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "/usr/include/" + name
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/leodido/ffsys"
)

// featureID indexes ffsys.FeatureNames so feature names can go through
// enumflag's case-insensitive matching.
type featureID int

var featureIdentifierMap = func() map[featureID][]string {
	names := ffsys.FeatureNames()
	ids := make(map[featureID][]string, len(names))
	for i, n := range names {
		ids[featureID(i)] = []string{n}
		if dashed := strings.ReplaceAll(n, "_", "-"); dashed != n {
			ids[featureID(i)] = append(ids[featureID(i)], dashed)
		}
	}
	return ids
}()

// featureList is a repeatable, comma-separated feature selection.
type featureList []string

func (l *featureList) String() string {
	return strings.Join(*l, ",")
}

func (l *featureList) Set(input string) error {
	features, err := parseFeatureList(input)
	if err != nil {
		return err
	}
	*l = append(*l, features...)
	return nil
}

func (l *featureList) Type() string {
	return "features"
}

func parseFeatureList(input string) (featureList, error) {
	if strings.TrimSpace(input) == "" {
		return featureList{}, nil
	}

	parts := strings.Split(input, ",")
	features := make(featureList, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		var id featureID
		enumValue := enumflag.New(&id, "feature", featureIdentifierMap, enumflag.EnumCaseInsensitive)
		if err := enumValue.Set(name); err != nil {
			return nil, fmt.Errorf("unknown feature: %q (available: %s)", name, availableFeatures())
		}
		features = append(features, featureIdentifierMap[id][0])
	}
	return features, nil
}

// completeFeatures suggests feature names for the last element of a
// comma-separated list, skipping the ones already chosen.
func completeFeatures(toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	current := toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix, current = toComplete[:i+1], toComplete[i+1:]
	}
	chosen := map[string]bool{}
	for _, c := range strings.Split(prefix, ",") {
		chosen[ffsys.NormalizeFeature(c)] = true
	}

	var out []string
	for _, n := range ffsys.FeatureNames() {
		if chosen[n] || !strings.HasPrefix(n, ffsys.NormalizeFeature(current)) {
			continue
		}
		out = append(out, prefix+n)
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// pathList is a repeatable directory flag.
type pathList []string

func (l *pathList) String() string {
	return strings.Join(*l, ",")
}

func (l *pathList) Set(input string) error {
	for _, p := range strings.Split(input, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*l = append(*l, p)
		}
	}
	return nil
}

func (l *pathList) Type() string {
	return "dirs"
}

func decodeList(input any) []string {
	switch v := input.(type) {
	case string:
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func sourceModeFlag(p *ffsys.SourceMode) *enumflag.EnumFlagValue[ffsys.SourceMode] {
	return enumflag.New(p, "source", ffsys.SourceModeIDs, enumflag.EnumCaseInsensitive)
}

func fetchModeFlag(p *ffsys.FetchMode) *enumflag.EnumFlagValue[ffsys.FetchMode] {
	return enumflag.New(p, "fetch", ffsys.FetchModeIDs, enumflag.EnumCaseInsensitive)
}

func availableFeatures() string {
	return strings.Join(ffsys.FeatureNames(), ", ")
}

func featuresHelp() string {
	return "Available features:\n" + formatWrappedList(ffsys.FeatureNames(), "  ", 80)
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}

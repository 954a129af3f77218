package ffsys

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// ConfigMakPath is the upstream build record, relative to the source tree.
const ConfigMakPath = "ffbuild/config.mak"

// ReadExtraLibs opens the build record under srcDir and resolves the extra
// link libraries it lists. See [ParseExtraLibs].
func ReadExtraLibs(ctx context.Context, srcDir string, target Target, fs FeatureSet) ([]LinkDirective, error) {
	path := filepath.Join(srcDir, ConfigMakPath)
	f, err := os.Open(path)
	if err != nil {
		return nil, &StageError{Stage: StageRecordParse, Cmd: path, Err: err}
	}
	defer f.Close()

	logger := ffslog.FromContext(ctx).With().Str(ffslog.FieldPath, path).Logger()
	return ParseExtraLibs(f, target, fs, &logger)
}

// ParseExtraLibs resolves the extra link libraries from a build record.
//
// Only lines whose key starts with EXTRALIBS are considered. The text after
// the key's last '-' names the owning library: the bare EXTRALIBS key and
// avutil are unconditional, any other owner is used only when the feature of
// the same name is enabled. Library tokens are NAME.lib on Windows targets
// and -lNAME elsewhere. The result has one directive per distinct name, in
// first-seen order.
//
// Malformed lines are skipped and logged at debug level; only a read failure
// is an error.
func ParseExtraLibs(r io.Reader, target Target, fs FeatureSet, logger *zerolog.Logger) ([]LinkDirective, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var libs []LinkDirective
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if !strings.HasPrefix(line, "EXTRALIBS") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			logger.Debug().Int("line", lineNo).Str("text", line).Msg("skipping record line without '='")
			continue
		}
		key = strings.TrimSpace(key)
		owner := key[strings.LastIndexByte(key, '-')+1:]

		kind := Unconditional
		feature := ""
		if owner != "EXTRALIBS" && owner != "avutil" {
			feature = NormalizeFeature(owner)
			if feature == "" || !fs.Enabled(feature) {
				logger.Debug().Str("key", key).Str(ffslog.FieldFeature, feature).Msg("skipping libraries of disabled component")
				continue
			}
			kind = FeatureGated
		}

		for _, name := range linkTokens(value, target) {
			if seen[name] {
				continue
			}
			seen[name] = true
			libs = append(libs, LinkDirective{Name: name, Kind: kind, Feature: feature})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &StageError{Stage: StageRecordParse, Err: fmt.Errorf("reading record: %w", err)}
	}
	return libs, nil
}

// linkTokens extracts bare library names from a linker argument string.
func linkTokens(args string, target Target) []string {
	var names []string
	for _, tok := range strings.Fields(args) {
		var name string
		if target.IsWindows() {
			if !strings.HasSuffix(tok, ".lib") {
				continue
			}
			name = strings.TrimSuffix(tok, ".lib")
		} else {
			if !strings.HasPrefix(tok, "-l") {
				continue
			}
			name = strings.TrimPrefix(tok, "-l")
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

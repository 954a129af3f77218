package ffsys

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// FactKind classifies a build fact.
type FactKind string

const (
	// FactCfg is a conditional-compilation tag, rendered as a Go build tag.
	FactCfg FactKind = "cfg"
	// FactMeta is a key/value entry exported to dependent builds.
	FactMeta FactKind = "meta"
	// FactLinkLib asks the final link to include a library.
	FactLinkLib FactKind = "link-lib"
	// FactLinkSearch adds a library search directory.
	FactLinkSearch FactKind = "link-search"
)

// Fact is one line of the directive stream.
//
// For link facts Key is the library name or directory and Value the link
// mode or search kind.
type Fact struct {
	Kind  FactKind `json:"kind"`
	Key   string   `json:"key"`
	Value string   `json:"value,omitempty"`
}

func (f Fact) String() string {
	switch f.Kind {
	case FactCfg:
		return "cfg:" + f.Key
	case FactMeta:
		return "meta:" + f.Key + "=" + f.Value
	case FactLinkLib, FactLinkSearch:
		if f.Value == "" {
			return string(f.Kind) + ":" + f.Key
		}
		return string(f.Kind) + ":" + f.Value + "=" + f.Key
	default:
		return string(f.Kind) + ":" + f.Key
	}
}

// ParseFact decodes one directive stream line.
func ParseFact(line string) (Fact, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || rest == "" {
		return Fact{}, fmt.Errorf("malformed directive %q", line)
	}
	switch FactKind(kind) {
	case FactCfg:
		return Fact{Kind: FactCfg, Key: rest}, nil
	case FactMeta:
		k, v, ok := strings.Cut(rest, "=")
		if !ok || k == "" {
			return Fact{}, fmt.Errorf("malformed meta directive %q", line)
		}
		return Fact{Kind: FactMeta, Key: k, Value: v}, nil
	case FactLinkLib, FactLinkSearch:
		if v, k, ok := strings.Cut(rest, "="); ok {
			return Fact{Kind: FactKind(kind), Key: k, Value: v}, nil
		}
		return Fact{Kind: FactKind(kind), Key: rest}, nil
	default:
		return Fact{}, fmt.Errorf("unknown directive kind %q", kind)
	}
}

// LinkFacts renders a link plan as directive facts: search directories
// first, then libraries.
func LinkFacts(searchDirs []string, libs []LinkDirective) []Fact {
	facts := make([]Fact, 0, len(searchDirs)+len(libs))
	for _, d := range searchDirs {
		facts = append(facts, Fact{Kind: FactLinkSearch, Key: d, Value: "native"})
	}
	for _, l := range libs {
		facts = append(facts, Fact{Kind: FactLinkLib, Key: l.Name, Value: l.Mode})
	}
	return facts
}

// BuildTags returns the cfg facts as Go build tags, de-duplicated in order.
func BuildTags(facts []Fact) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, f := range facts {
		if f.Kind != FactCfg || seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		tags = append(tags, f.Key)
	}
	return tags
}

// WriteDirectives writes one directive per line.
func WriteDirectives(w io.Writer, facts []Fact) error {
	bw := bufio.NewWriter(w)
	for _, f := range facts {
		if _, err := fmt.Fprintln(bw, f.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeAtomic replaces path with whatever fn writes, or leaves it untouched
// when fn fails.
func writeAtomic(ctx context.Context, path string, fn func(io.Writer) error) error {
	logger := ffslog.FromContext(ctx)

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending %s: %w", path, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(ffslog.FieldPath, path).Msg("cleanup pending file")
		}
	}()

	if err := fn(pending); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	logger.Debug().Str(ffslog.FieldPath, path).Msg("wrote output")
	return nil
}

// WriteDirectivesFile atomically writes the directive stream to path.
func WriteDirectivesFile(ctx context.Context, path string, facts []Fact) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		return WriteDirectives(w, facts)
	})
}

// WriteTagsFile atomically writes the build tags as a single comma-separated
// line, ready for go build -tags "$(cat ffsys.tags)".
func WriteTagsFile(ctx context.Context, path string, facts []Fact) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, strings.Join(BuildTags(facts), ","))
		return err
	})
}

// CgoEnv is the cgo environment dependent builds need.
type CgoEnv struct {
	CFlags  []string
	LDFlags []string
}

// Vars returns the environment assignments in KEY=value form.
func (e CgoEnv) Vars() []string {
	return []string{
		"CGO_CFLAGS=" + strings.Join(e.CFlags, " "),
		"CGO_LDFLAGS=" + strings.Join(e.LDFlags, " "),
	}
}

// WriteEnvFile atomically writes the cgo environment as shell-quoted
// assignments that can be sourced.
func WriteEnvFile(ctx context.Context, path string, env CgoEnv) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		for _, kv := range env.Vars() {
			k, v, _ := strings.Cut(kv, "=")
			if _, err := fmt.Fprintf(w, "%s=%s\n", k, shellQuote(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteJSONFile atomically writes v as indented JSON.
func WriteJSONFile(ctx context.Context, path string, v any) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

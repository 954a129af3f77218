package ffsys

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	ffslog "github.com/leodido/ffsys/internal/log"
)

// BindingFileName is the generated binding file, written in the output
// directory.
const BindingFileName = "zffmpeg_cgo.go"

// NumericKind is the Go type given to an integer macro.
type NumericKind int

const (
	KindInt32 NumericKind = iota
	KindUint32
	KindInt64
	KindUint64
	KindUintptr
)

// GoType returns the Go spelling of the kind.
func (k NumericKind) GoType() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindUintptr:
		return "uintptr"
	default:
		return fmt.Sprintf("NumericKind(%d)", k)
	}
}

func (k NumericKind) String() string {
	return k.GoType()
}

// IntValue is an evaluated C integer constant: its 64-bit pattern and
// whether C gave it an unsigned type.
type IntValue struct {
	Bits     uint64
	Unsigned bool
}

// SignedValue returns the value of a signed C constant.
func SignedValue(v int64) IntValue {
	return IntValue{Bits: uint64(v)}
}

// UnsignedValue returns the value of an unsigned C constant.
func UnsignedValue(v uint64) IntValue {
	return IntValue{Bits: v, Unsigned: true}
}

// Negative reports whether v is below zero.
func (v IntValue) Negative() bool {
	return !v.Unsigned && int64(v.Bits) < 0
}

// In reports whether lo <= v <= hi.
func (v IntValue) In(lo int64, hi uint64) bool {
	if v.Negative() {
		return int64(v.Bits) >= lo
	}
	return v.Bits <= hi && (lo <= 0 || v.Bits >= uint64(lo))
}

func (v IntValue) String() string {
	if v.Negative() {
		return strconv.FormatInt(int64(v.Bits), 10)
	}
	return strconv.FormatUint(v.Bits, 10)
}

// NumericRule types the macros whose name matches Pattern and whose value
// satisfies Fits.
type NumericRule struct {
	Pattern *regexp.Regexp
	Kind    NumericKind
	// Fits reports whether the value is representable; nil accepts any.
	Fits func(IntValue) bool
}

// NumericPolicy decides how integer macros are represented.
// The first rule that matches both name and value wins; a macro no rule
// accepts is not bound.
type NumericPolicy struct {
	Rules []NumericRule
	// Deny lists macro and enumerator names never bound.
	Deny []string
	// BlockedTypes lists C type names never bound.
	BlockedTypes []string
}

func inRange(lo int64, hi uint64) func(IntValue) bool {
	return func(v IntValue) bool { return v.In(lo, hi) }
}

// DefaultNumericPolicy returns the FFmpeg policy: channel layouts are 64-bit
// masks, codec capability and flag bits are unsigned, the error string size
// is a size, and everything else is a C int when it fits. Wider values keep
// a 64-bit type of their own signedness.
func DefaultNumericPolicy() NumericPolicy {
	return NumericPolicy{
		Rules: []NumericRule{
			{Pattern: regexp.MustCompile(`^AV_CH`), Kind: KindUint64},
			{Pattern: regexp.MustCompile(`^AV_CODEC_CAP`), Kind: KindUint32, Fits: inRange(0, math.MaxUint32)},
			{Pattern: regexp.MustCompile(`^AV_CODEC_FLAG`), Kind: KindUint32, Fits: inRange(0, math.MaxUint32)},
			{Pattern: regexp.MustCompile(`^AV_ERROR_MAX_STRING_SIZE`), Kind: KindUintptr, Fits: inRange(0, math.MaxUint64)},
			{Pattern: regexp.MustCompile(``), Kind: KindInt32, Fits: inRange(math.MinInt32, math.MaxInt32)},
			{Pattern: regexp.MustCompile(``), Kind: KindInt64, Fits: inRange(math.MinInt64, math.MaxInt64)},
			{Pattern: regexp.MustCompile(``), Kind: KindUint64},
		},
		Deny:         []string{"FP_NAN", "FP_INFINITE", "FP_ZERO", "FP_SUBNORMAL", "FP_NORMAL"},
		BlockedTypes: []string{"max_align_t"},
	}
}

// Classify returns the kind for the macro, or false when it is denied or no
// rule accepts it.
func (p NumericPolicy) Classify(name string, value IntValue) (NumericKind, bool) {
	if slices.Contains(p.Deny, name) {
		return 0, false
	}
	for _, r := range p.Rules {
		if r.Pattern.MatchString(name) && (r.Fits == nil || r.Fits(value)) {
			return r.Kind, true
		}
	}
	return 0, false
}

// Literal renders value as a Go constant of kind k.
func (k NumericKind) Literal(value IntValue) string {
	if k == KindUint64 {
		return fmt.Sprintf("%#x", value.Bits)
	}
	return value.String()
}

// BindingOptions configures binding generation.
type BindingOptions struct {
	// Package is the package clause of the generated file; default "ffmpeg".
	Package string
	// OutDir receives [BindingFileName].
	OutDir  string
	Headers []Header
	// IncludeDirs become -I flags and must equal the probe include dirs.
	IncludeDirs []string
	LDFlags     []string
	// Policy defaults to [DefaultNumericPolicy].
	Policy *NumericPolicy
	// Scanner defaults to [CScanner] for the host.
	Scanner HeaderScanner
	Logger *zerolog.Logger
}

// BindingStats summarizes a generated binding file.
type BindingStats struct {
	Path        string `json:"path"`
	Headers     int    `json:"headers"`
	Enums       int    `json:"enums"`
	Enumerators int    `json:"enumerators"`
	Constants   int    `json:"constants"`
}

// GenerateBindings scans the headers and renders the cgo binding file.
//
// Every named enum becomes its own Go type over the cgo enum type with one
// typed constant per enumerator. Integer macros accepted by the policy become
// typed constants with their evaluated values.
func GenerateBindings(ctx context.Context, opts BindingOptions) ([]byte, *BindingStats, error) {
	policy := DefaultNumericPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	pkg := opts.Package
	if pkg == "" {
		pkg = "ffmpeg"
	}

	scanner := opts.Scanner
	if scanner == nil {
		scanner = CScanner{}
	}
	scan, err := scanner.Scan(ctx, opts.IncludeDirs, opts.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning headers: %w", err)
	}

	stats := &BindingStats{Headers: len(opts.Headers)}
	declared := make(map[string]bool)
	usable := func(name string) bool {
		if name == "" || strings.HasPrefix(name, "_") || token.IsKeyword(name) || declared[name] {
			return false
		}
		return !slices.Contains(policy.Deny, name)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by ffsys; DO NOT EDIT.\n\npackage %s\n\n/*\n", pkg)
	if len(opts.IncludeDirs) > 0 {
		fmt.Fprintf(&b, "#cgo CFLAGS: %s\n", joinFlags("-I", opts.IncludeDirs))
	}
	if len(opts.LDFlags) > 0 {
		fmt.Fprintf(&b, "#cgo LDFLAGS: %s\n", joinFlags("", opts.LDFlags))
	}
	for _, h := range opts.Headers {
		fmt.Fprintf(&b, "#include <%s>\n", h.Name)
	}
	b.WriteString("*/\nimport \"C\"\n")

	for _, e := range scan.Enums {
		if e.Name != "" && (slices.Contains(policy.BlockedTypes, e.Name) || !usable(e.Name)) {
			continue
		}
		goType := "int32"
		if e.Name != "" {
			declared[e.Name] = true
			goType = e.Name
			cName := e.CType
			if tag, ok := strings.CutPrefix(e.CType, "enum_"); ok {
				cName = "enum " + tag
			}
			fmt.Fprintf(&b, "\n// %s mirrors the C type %s.\ntype %s C.%s\n", e.Name, cName, e.Name, e.CType)
			stats.Enums++
		}
		var consts []string
		for _, name := range e.Enumerators {
			if !usable(name) {
				continue
			}
			declared[name] = true
			consts = append(consts, fmt.Sprintf("\t%s %s = C.%s\n", name, goType, name))
		}
		if len(consts) > 0 {
			b.WriteString("\nconst (\n")
			for _, c := range consts {
				b.WriteString(c)
			}
			b.WriteString(")\n")
			stats.Enumerators += len(consts)
		}
	}

	var consts []string
	for _, m := range scan.Macros {
		if !usable(m.Name) {
			continue
		}
		kind, ok := policy.Classify(m.Name, m.Value)
		if !ok {
			continue
		}
		declared[m.Name] = true
		consts = append(consts, fmt.Sprintf("\t%s %s = %s\n", m.Name, kind.GoType(), kind.Literal(m.Value)))
	}
	if len(consts) > 0 {
		b.WriteString("\n// Integer macros.\nconst (\n")
		for _, c := range consts {
			b.WriteString(c)
		}
		b.WriteString(")\n")
		stats.Constants = len(consts)
	}

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return src, stats, nil
}

// EmitBindings generates the binding file and atomically writes it to
// OutDir/[BindingFileName].
func EmitBindings(ctx context.Context, opts BindingOptions) (*BindingStats, error) {
	logger := loggerFor(ctx, opts.Logger)

	src, stats, err := GenerateBindings(ctx, opts)
	if err != nil {
		return nil, &StageError{Stage: StageBindings, Err: err}
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, &StageError{Stage: StageBindings, Err: err}
	}
	path := filepath.Join(opts.OutDir, BindingFileName)
	if err := writeAtomic(ctx, path, func(w io.Writer) error {
		_, err := w.Write(src)
		return err
	}); err != nil {
		return nil, &StageError{Stage: StageBindings, Err: err}
	}
	stats.Path = path

	logger.Info().
		Str(ffslog.FieldStage, string(StageBindings)).
		Str(ffslog.FieldPath, path).
		Int("enums", stats.Enums).
		Int("constants", stats.Constants).
		Msg("bindings written")
	return stats, nil
}

// joinFlags prefixes and quotes flags for a #cgo directive.
func joinFlags(prefix string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		v = prefix + v
		if strings.ContainsAny(v, " \t'\"") {
			v = "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

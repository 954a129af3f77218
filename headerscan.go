package ffsys

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"modernc.org/cc/v4"
)

// MacroDef is an object-like macro whose replacement is an integer
// constant expression.
type MacroDef struct {
	Name  string
	Value IntValue
}

// EnumDef is a C enum defined in a bound header.
type EnumDef struct {
	// Name is the enum tag, or the typedef name of an anonymous enum.
	// Empty for an anonymous enum without a typedef.
	Name string
	// CType is how cgo spells the type: "enum_<tag>" or the typedef name.
	CType string
	// Enumerators are listed in declaration order.
	Enumerators []string
}

// HeaderScan is what a header set declares once the preprocessor has
// resolved every conditional against the installed headers.
type HeaderScan struct {
	Macros []MacroDef
	Enums  []EnumDef
}

// HeaderScanner extracts the bindable declarations of a header set.
type HeaderScanner interface {
	Scan(ctx context.Context, includeDirs []string, headers []Header) (*HeaderScan, error)
}

// CScanner preprocesses and type checks the headers with a C front end.
//
// Conditionals are evaluated the way the compiler evaluates them, so a
// declaration gated by an FF_API_* macro is present exactly when the
// availability probe reports the macro as set. Only declarations located
// in one of the given headers are returned.
type CScanner struct {
	// GOOS and GOARCH select the ABI; empty means the host.
	GOOS   string
	GOARCH string
}

// Scan implements [HeaderScanner].
func (s CScanner) Scan(ctx context.Context, includeDirs []string, headers []Header) (*HeaderScan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goos, goarch := s.GOOS, s.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}

	cfg, err := cc.NewConfig(goos, goarch)
	if err != nil {
		return nil, fmt.Errorf("configuring C front end: %w", err)
	}
	cfg.IncludePaths = append(slices.Clone(includeDirs), cfg.IncludePaths...)
	cfg.SysIncludePaths = append(slices.Clone(includeDirs), cfg.SysIncludePaths...)

	var src strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&src, "#include <%s>\n", h.Name)
	}
	ast, err := cc.Translate(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: "ffsys_bindings.c", Value: src.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("parsing headers: %w", err)
	}

	owner := headerOwner(headers)
	return &HeaderScan{
		Macros: macroDefs(ast, owner),
		Enums:  enumDefs(ast, owner),
	}, nil
}

// headerOwner maps a file opened by the front end to its index in headers,
// or -1 when the file is not one of them.
func headerOwner(headers []Header) func(string) int {
	return func(file string) int {
		file = filepath.ToSlash(filepath.Clean(file))
		for i, h := range headers {
			if h.Path != "" && file == filepath.ToSlash(filepath.Clean(h.Path)) {
				return i
			}
			if strings.HasSuffix(file, "/"+h.Name) {
				return i
			}
		}
		return -1
	}
}

// macroDefs returns the integer constant macros of the bound headers in
// header then line order.
func macroDefs(ast *cc.AST, owner func(string) int) []MacroDef {
	type located struct {
		def          MacroDef
		header, line int
	}
	var found []located
	for name, m := range ast.Macros {
		if m.IsFnLike || !m.IsConst {
			continue
		}
		pos := m.Name.Position()
		h := owner(pos.Filename)
		if h < 0 {
			continue
		}
		var v IntValue
		switch x := m.Value().(type) {
		case cc.Int64Value:
			v = SignedValue(int64(x))
		case cc.UInt64Value:
			v = UnsignedValue(uint64(x))
		default:
			continue
		}
		found = append(found, located{def: MacroDef{Name: name, Value: v}, header: h, line: pos.Line})
	}
	slices.SortFunc(found, func(a, b located) int {
		if c := cmp.Compare(a.header, b.header); c != 0 {
			return c
		}
		if c := cmp.Compare(a.line, b.line); c != 0 {
			return c
		}
		return strings.Compare(a.def.Name, b.def.Name)
	})

	macros := make([]MacroDef, 0, len(found))
	for _, f := range found {
		macros = append(macros, f.def)
	}
	return macros
}

// enumDefs returns the enums defined at file scope in the bound headers,
// in translation unit order.
func enumDefs(ast *cc.AST, owner func(string) int) []EnumDef {
	var enums []EnumDef
	for l := ast.TranslationUnit; l != nil; l = l.TranslationUnit {
		ed := l.ExternalDeclaration
		if ed == nil || ed.Case != cc.ExternalDeclarationDecl || ed.Declaration == nil {
			continue
		}
		d := ed.Declaration

		typedef := false
		var spec *cc.EnumSpecifier
		for ds := d.DeclarationSpecifiers; ds != nil; ds = ds.DeclarationSpecifiers {
			switch ds.Case {
			case cc.DeclarationSpecifiersStorage:
				if ds.StorageClassSpecifier.Case == cc.StorageClassSpecifierTypedef {
					typedef = true
				}
			case cc.DeclarationSpecifiersTypeSpec:
				ts := ds.TypeSpecifier
				if ts.Case == cc.TypeSpecifierEnum && ts.EnumSpecifier.Case == cc.EnumSpecifierDef {
					spec = ts.EnumSpecifier
				}
			}
		}
		if spec == nil || owner(spec.Position().Filename) < 0 {
			continue
		}

		def := EnumDef{Name: spec.Token2.SrcStr()}
		switch {
		case def.Name != "":
			def.CType = "enum_" + def.Name
		case typedef:
			if name := firstDeclarator(d); name != "" {
				def.Name, def.CType = name, name
			}
		}
		for el := spec.EnumeratorList; el != nil; el = el.EnumeratorList {
			def.Enumerators = append(def.Enumerators, el.Enumerator.Token.SrcStr())
		}
		enums = append(enums, def)
	}
	return enums
}

func firstDeclarator(d *cc.Declaration) string {
	if d.InitDeclaratorList == nil || d.InitDeclaratorList.InitDeclarator == nil {
		return ""
	}
	if decl := d.InitDeclaratorList.InitDeclarator.Declarator; decl != nil {
		return decl.Name()
	}
	return ""
}

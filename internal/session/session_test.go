package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sparsego/internal/cast"
	"sparsego/internal/diag"
	"sparsego/internal/ident"
	"sparsego/internal/ir"
	"sparsego/internal/token"
	"sparsego/internal/types"
)

func TestParseArgsRecognizesOptions(t *testing.T) {
	opts, err := ParseArgs([]string{
		"-DFOO=1", "-DBAR", "-Ubaz", "-I/usr/include", "-m32",
		"-fshort-wchar", "-funsigned-char", "-std=c99", "-Wunused", "-Wno-extra",
		"-Werror", "-O2", "file.c",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts.Defines) != 2 || opts.Defines[0].Name != "FOO" || opts.Defines[0].Value != "1" {
		t.Fatalf("expected FOO=1 and BAR defines, got %+v", opts.Defines)
	}
	if opts.Defines[1].Name != "BAR" || opts.Defines[1].Value != "" {
		t.Fatalf("expected bare -DBAR to have no value, got %+v", opts.Defines[1])
	}
	if len(opts.Undefines) != 1 || opts.Undefines[0] != "baz" {
		t.Fatalf("expected one undefine baz, got %+v", opts.Undefines)
	}
	if len(opts.Includes) != 1 || opts.Includes[0] != "/usr/include" {
		t.Fatalf("expected one include path, got %+v", opts.Includes)
	}
	if opts.Bits != "32" {
		t.Fatalf("expected -m32 to set Bits to 32, got %q", opts.Bits)
	}
	if !opts.ShortWChar || !opts.UnsignedChar {
		t.Fatalf("expected -fshort-wchar and -funsigned-char both set")
	}
	if opts.Std != "c99" {
		t.Fatalf("expected std c99, got %q", opts.Std)
	}
	if !opts.Warnings["unused"] || opts.Warnings["extra"] {
		t.Fatalf("expected unused enabled and extra disabled, got %+v", opts.Warnings)
	}
	if !opts.Werror {
		t.Fatalf("expected Werror set")
	}
	if opts.OptLevel != 2 {
		t.Fatalf("expected -O2 to set OptLevel 2, got %d", opts.OptLevel)
	}
	if len(opts.Sources) != 1 || opts.Sources[0] != "file.c" {
		t.Fatalf("expected one source file.c, got %+v", opts.Sources)
	}
}

func TestParseArgsRejectsUnknownOption(t *testing.T) {
	if _, err := ParseArgs([]string{"-Zbogus"}); err == nil {
		t.Fatalf("expected an error for an unrecognized option")
	}
}

func TestParseArgsOsSetsOptLevelOne(t *testing.T) {
	opts, err := ParseArgs([]string{"-Os"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.OptLevel != 1 || !opts.OptSize {
		t.Fatalf("expected -Os to set OptLevel 1 and OptSize, got %+v", opts)
	}
}

func TestNewSessionWiresDefinesAndIncludePaths(t *testing.T) {
	opts, err := ParseArgs([]string{"-DN=42", "-Iinclude"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := New(opts)

	if len(s.PP.IncludePaths) != 1 || s.PP.IncludePaths[0] != "include" {
		t.Fatalf("expected the include path wired into the preprocessor, got %+v", s.PP.IncludePaths)
	}

	interner := s.Interner
	sc, err := token.NewScanner(strings.NewReader("int x = N;"), "<test>", interner, s.Bag)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	out := s.Preprocess(sc.Scan())

	found := false
	for _, tk := range token.ToSlice(out) {
		if tk.Kind == token.TokNumber && tk.Lexeme == "42" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected N to expand to the number 42")
	}
}

func TestTokenizeReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.c")
	if err := os.WriteFile(path, []byte("int x;"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	s := New(DefaultOptions())
	head, err := s.Tokenize(path)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	toks := token.ToSlice(head)
	if len(toks) == 0 {
		t.Fatalf("expected at least one token")
	}
}

func mkFn(name string, ret *types.Symbol, params []*types.Symbol, body *cast.Stmt) *types.Symbol {
	fnType := &types.Symbol{Kind: types.Fn, BaseType: ret, Arguments: params}
	return &types.Symbol{Kind: types.Node, Ident: &ident.Ident{Name: name}, BaseType: fnType, Body: body}
}

func TestLinearizeSymbolReturnsNilForNonFunction(t *testing.T) {
	s := New(DefaultOptions())
	v := &types.Symbol{Kind: types.Node, Ident: &ident.Ident{Name: "x"}, BaseType: s.Builtins.Int}
	if ep := s.LinearizeSymbol(v); ep != nil {
		t.Fatalf("expected nil entry point for a non-function symbol")
	}
}

func TestLinearizeSymbolReturnsNilForPrototype(t *testing.T) {
	s := New(DefaultOptions())
	proto := mkFn("f", s.Builtins.Int, nil, nil)
	if ep := s.LinearizeSymbol(proto); ep != nil {
		t.Fatalf("expected nil entry point for a bodyless prototype")
	}
}

func TestLinearizeAndOptimizeEndToEnd(t *testing.T) {
	opts, err := ParseArgs([]string{"-O1"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := New(opts)

	body := &cast.Stmt{Kind: cast.SCompound, Stmts: []*cast.Stmt{
		{Kind: cast.SReturn, ReturnExpr: &cast.Expr{Kind: cast.EValue, Value: 7, Ctype: s.Builtins.Int}},
	}}
	fn := mkFn("f", s.Builtins.Int, nil, body)

	ep := s.LinearizeSymbol(fn)
	if ep == nil {
		t.Fatalf("expected a non-nil entry point for a defined function")
	}
	s.Optimize(ep)

	var ret *ir.Instruction
	for _, bb := range ep.Bbs {
		for _, insn := range bb.Insns {
			if insn.Opcode == ir.OpRet {
				ret = insn
			}
		}
	}
	if ret == nil {
		t.Fatalf("expected a surviving return instruction")
	}
}

func TestExitCodeReflectsWerror(t *testing.T) {
	opts, err := ParseArgs([]string{"-Werror"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := New(opts)
	if s.ExitCode() != 0 {
		t.Fatalf("expected a clean exit code before any diagnostic")
	}
	s.Bag.Warn(diag.Position{}, "a warning with no errors")
	if s.ExitCode() != 1 {
		t.Fatalf("expected -Werror to escalate a bare warning to exit code 1")
	}
}

func TestExitCodeCleanWithoutWerror(t *testing.T) {
	s := New(DefaultOptions())
	s.Bag.Warn(diag.Position{}, "a warning with no errors")
	if s.ExitCode() != 0 {
		t.Fatalf("expected a warning alone to exit 0 without -Werror")
	}
}

package token

import (
	"strings"
	"testing"

	"sparsego/internal/diag"
	"sparsego/internal/ident"
)

func scanAll(t *testing.T, src string) ([]*Token, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag()
	interner := ident.NewTable()
	sc, err := NewScanner(strings.NewReader(src), "<test>", interner, bag)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	head := sc.Scan()
	return ToSlice(head), bag
}

func TestScanIdentifiersAndKeywordsShareInterner(t *testing.T) {
	toks, _ := scanAll(t, "int x = foo;")
	var kinds []Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	want := []Kind{TokIdent, TokIdent, TokSpecial, TokIdent, TokSpecial, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, kinds[i], want[i])
		}
	}
}

func TestLineSplicing(t *testing.T) {
	toks, _ := scanAll(t, "int x \\\n= 1;")
	// the splice should make this equivalent to "int x = 1;"
	var specials []Special
	for _, tk := range toks {
		if tk.Kind == TokSpecial {
			specials = append(specials, tk.Special)
		}
	}
	if len(specials) != 2 || specials[0] != OpAssign || specials[1] != OpSemicolon {
		t.Fatalf("expected [=, ;] after splicing, got %v", specials)
	}
}

func TestCommentsElided(t *testing.T) {
	toks, _ := scanAll(t, "int /* c */ x; // trailing\n")
	var kinds []Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	want := []Kind{TokIdent, TokIdent, TokSpecial, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v want %v", kinds, want)
	}
}

func TestMaximalMunchOperators(t *testing.T) {
	toks, _ := scanAll(t, "a <<= b; c->d; e...f")
	var ops []Special
	for _, tk := range toks {
		if tk.Kind == TokSpecial {
			ops = append(ops, tk.Special)
		}
	}
	want := []Special{OpShlAssign, OpSemicolon, OpArrow, OpSemicolon, OpEllipsis}
	if len(ops) != len(want) {
		t.Fatalf("got %v want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("op %d: got %v want %v", i, ops[i], want[i])
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks, bag := scanAll(t, `"a\nb\x41\0"`)
	if bag.HasError() {
		t.Fatalf("unexpected errors: %v", bag.Dump())
	}
	str := toks[0]
	if str.Kind != TokString {
		t.Fatalf("expected string token, got %v", str.Kind)
	}
	want := []byte{'a', '\n', 'b', 'A', 0, 0}
	if string(str.Str.Bytes) != string(want) {
		t.Fatalf("got %v want %v", str.Str.Bytes, want)
	}
}

func TestCharLiteralEscapeFlag(t *testing.T) {
	toks, _ := scanAll(t, `'\n'`)
	c := toks[0]
	if c.Kind != TokChar || !c.Escaped || c.Char != '\n' {
		t.Fatalf("unexpected char token: %+v", c)
	}
}

func TestUnknownEscapeWarns(t *testing.T) {
	_, bag := scanAll(t, `"\q"`)
	_, nerr := bag.Counts()
	if nerr != 0 {
		t.Fatalf("unknown escape should warn, not error")
	}
	warnings, _ := bag.Counts()
	if warnings == 0 {
		t.Fatalf("expected a warning for unknown escape")
	}
}

func TestNumberLexemeCaptured(t *testing.T) {
	toks, _ := scanAll(t, "1.5e+10f 0x1Aull")
	if toks[0].Kind != TokNumber || toks[0].Lexeme != "1.5e+10f" {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[1].Kind != TokNumber || toks[1].Lexeme != "0x1Aull" {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestNewlineAndWhitespaceFlags(t *testing.T) {
	toks, _ := scanAll(t, "a\n  b")
	if !toks[0].Position.Newline {
		t.Fatalf("expected first token to start a logical line")
	}
	if !toks[1].Position.Newline {
		t.Fatalf("expected second token to start its own line")
	}
	if !toks[1].Position.Whitespace {
		t.Fatalf("expected whitespace flag before indented token")
	}
}

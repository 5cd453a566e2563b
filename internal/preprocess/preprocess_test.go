package preprocess

import (
	"strings"
	"testing"

	"sparsego/internal/diag"
	"sparsego/internal/ident"
	"sparsego/internal/token"
)

func run(t *testing.T, src string, configure func(*Preprocessor)) (string, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag()
	interner := ident.NewTable()
	sc, err := token.NewScanner(strings.NewReader(src), "<test>", interner, bag)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	head := sc.Scan()
	pp := New(interner, bag)
	if configure != nil {
		configure(pp)
	}
	out := pp.Preprocess(head)
	var sb strings.Builder
	for _, tk := range token.ToSlice(out) {
		if tk.Kind == token.EOF {
			continue
		}
		sb.WriteString(spellToken(tk))
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String()), bag
}

func TestObjectLikeMacro(t *testing.T) {
	got, bag := run(t, "#define N 42\nint x = N;", nil)
	if bag.HasError() {
		t.Fatalf("unexpected errors: %s", bag.Dump())
	}
	want := "int x = 42 ;"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFunctionLikeMacro(t *testing.T) {
	got, _ := run(t, "#define ADD(a,b) ((a)+(b))\nint x = ADD(1,2);", nil)
	want := "int x = ( ( 1 ) + ( 2 ) ) ;"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestStringize(t *testing.T) {
	got, _ := run(t, "#define STR(x) #x\nchar *s = STR(hello);", nil)
	if !strings.Contains(got, `"hello"`) {
		t.Fatalf("got %q, expected stringized hello", got)
	}
}

func TestTokenPaste(t *testing.T) {
	got, _ := run(t, "#define CAT(a,b) a##b\nint CAT(fo,o);", nil)
	if !strings.Contains(got, "foo") {
		t.Fatalf("got %q, expected pasted identifier foo", got)
	}
}

func TestSelfRecursionGuarded(t *testing.T) {
	got, bag := run(t, "#define X X+1\nint y = X;", nil)
	if bag.HasError() {
		t.Fatalf("unexpected errors: %s", bag.Dump())
	}
	// X must not expand infinitely: it should appear once, unexpanded,
	// in the body of its own expansion.
	if strings.Count(got, "X") != 1 {
		t.Fatalf("expected self-recursive macro to stop after one level, got %q", got)
	}
}

func TestIfdefElseEndif(t *testing.T) {
	got, _ := run(t, "#define FOO\n#ifdef FOO\nint a;\n#else\nint b;\n#endif\n", nil)
	if strings.Contains(got, "b") || !strings.Contains(got, "a") {
		t.Fatalf("got %q, expected only the #ifdef branch", got)
	}
}

func TestIfConstantExpression(t *testing.T) {
	got, _ := run(t, "#if 1 + 1 == 2\nint ok;\n#endif\n", nil)
	if !strings.Contains(got, "ok") {
		t.Fatalf("expected constant #if to take the true branch, got %q", got)
	}
}

func TestIfDefinedOperator(t *testing.T) {
	got, _ := run(t, "#define FOO 1\n#if defined(FOO) && !defined(BAR)\nint yes;\n#endif\n", nil)
	if !strings.Contains(got, "yes") {
		t.Fatalf("expected defined() to gate the branch correctly, got %q", got)
	}
}

func TestUndef(t *testing.T) {
	got, _ := run(t, "#define FOO 1\n#undef FOO\n#ifdef FOO\nint bad;\n#else\nint good;\n#endif\n", nil)
	if strings.Contains(got, "bad") {
		t.Fatalf("expected #undef to remove the macro, got %q", got)
	}
	if !strings.Contains(got, "good") {
		t.Fatalf("expected else branch, got %q", got)
	}
}

func TestBuiltinLine(t *testing.T) {
	got, _ := run(t, "int l = __LINE__;", nil)
	if !strings.Contains(got, "1") {
		t.Fatalf("got %q, expected __LINE__ to expand to the current line", got)
	}
}

func TestUnmatchedIfWarns(t *testing.T) {
	_, bag := run(t, "#if 1\nint x;\n", nil)
	warnings, _ := bag.Counts()
	if warnings == 0 {
		t.Fatalf("expected a warning for an unmatched #if")
	}
}

func TestErrorDirectiveSetsHasError(t *testing.T) {
	_, bag := run(t, "#error boom\n", nil)
	if !bag.HasError() {
		t.Fatalf("expected #error to mark the bag as having an error")
	}
}

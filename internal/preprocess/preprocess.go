package preprocess

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sparsego/internal/diag"
	"sparsego/internal/ident"
	"sparsego/internal/token"
)

// condFrame is one entry of the conditional stack. The conditional nesting
// is tracked by two counters (trueNesting, falseNesting) plus a stack of
// frames (stack[0] is the outermost unmatched #if, when non-empty), so
// #else/#elif can flip a single frame's state without rescanning.
type condFrame struct {
	taken     bool // this branch (or an earlier sibling) has already been taken
	active    bool // currently-active branch: emit tokens
	sawElse   bool
	pos       diag.Position
}

// Preprocessor holds the macro table, conditional stack and include path
// list. All state is per-Session rather than a process-wide global.
type Preprocessor struct {
	Interner     *ident.Table
	Bag          *diag.Bag
	IncludePaths []string

	conds        []condFrame
	trueNesting  int
	falseNesting int

	// CurrentFunction feeds __func__/__FUNCTION__/__PRETTY_FUNCTION__
	// expansion. Nothing in the module assigns it: preprocessing finishes
	// before parsing starts, so unless a caller sets it beforehand these
	// identifiers expand to an empty string literal.
	CurrentFunction string

	readFile func(path string) ([]byte, error) // overridable for tests
}

// New creates a Preprocessor sharing interner and diagnostic bag with the
// rest of the Session.
func New(interner *ident.Table, bag *diag.Bag) *Preprocessor {
	return &Preprocessor{
		Interner: interner,
		Bag:      bag,
		readFile: func(path string) ([]byte, error) { return os.ReadFile(path) },
	}
}

// Define installs name as an object-like or function-like macro from
// already-tokenized body, used both by #define and by -D command-line
// predefines.
func (p *Preprocessor) Define(name string, functionLike bool, params []string, variadic bool, body []*token.Token) {
	id := p.Interner.Intern(name)
	define(id, &Macro{FunctionLike: functionLike, Params: params, Variadic: variadic, Body: body})
}

// DefineText parses `-D name=value` / `-Dname` shorthand into a Define
// call.
func (p *Preprocessor) DefineText(spec string) {
	name := spec
	value := "1"
	if i := strings.IndexByte(spec, '='); i >= 0 {
		name, value = spec[:i], spec[i+1:]
	}
	toks := p.tokenizeSnippet(value)
	p.Define(name, false, nil, false, toks)
}

// Undef implements -U / #undef.
func (p *Preprocessor) Undef(name string) {
	undef(p.Interner.Intern(name))
}

func (p *Preprocessor) tokenizeSnippet(s string) []*token.Token {
	sc, err := token.NewScanner(strings.NewReader(s), "<macro-expansion>", p.Interner, p.Bag)
	if err != nil {
		return nil
	}
	head := sc.Scan()
	toks := token.ToSlice(head)
	if len(toks) > 0 && toks[len(toks)-1].Kind == token.EOF {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// Preprocess walks head, rewriting `#` lines into directive handling and
// expanding macro-bound identifiers. On exit a diagnostic is emitted for
// each unmatched #if.
func (p *Preprocessor) Preprocess(head *token.Token) *token.Token {
	in := token.ToSlice(head)
	out := p.preprocessTokens(in)
	for range p.conds {
		p.Bag.Warn(diag.Position{}, "unmatched #if at end of file")
	}
	return token.NewList(out)
}

func (p *Preprocessor) active() bool {
	for _, f := range p.conds {
		if !f.active {
			return false
		}
	}
	return true
}

func (p *Preprocessor) preprocessTokens(in []*token.Token) []*token.Token {
	var out []*token.Token
	i := 0
	for i < len(in) {
		t := in[i]
		if t.Kind == token.TokSpecial && t.Special == token.OpHash && t.Position.Newline {
			j := i + 1
			for j < len(in) && !in[j].Position.Newline {
				j++
			}
			line := in[i+1 : j]
			out = append(out, p.directive(t.Position, line)...)
			i = j
			continue
		}
		if !p.active() {
			i++
			continue
		}
		if t.Kind == token.TokIdent {
			id := identOf(t)
			if built, ok := p.expandBuiltinIdent(id.Name, t.Position); ok {
				out = append(out, built...)
				i++
				continue
			}
			if m := lookupMacro(id); m != nil && !m.Busy {
				consumed, expanded := p.expandAt(in, i)
				out = append(out, expanded...)
				i += consumed
				continue
			}
		}
		out = append(out, t)
		i++
	}
	return out
}

func identOf(t *token.Token) *ident.Ident {
	return t.Ident.Any.(*ident.Ident)
}

func (p *Preprocessor) directive(pos diag.Position, line []*token.Token) []*token.Token {
	if len(line) == 0 {
		return nil
	}
	name := line[0]
	if name.Kind != token.TokIdent {
		if p.active() {
			p.Bag.Warn(pos, "invalid preprocessing directive")
		}
		return nil
	}
	kw := identOf(name).Name
	rest := line[1:]

	switch kw {
	case "ifdef", "ifndef":
		p.pushCond(pos, p.evalIfdef(kw == "ifdef", rest))
	case "if":
		p.pushCond(pos, p.active() && p.evalConstExpr(rest) != 0)
	case "elif":
		p.doElif(pos, rest)
	case "else":
		p.doElse(pos)
	case "endif":
		p.popCond(pos)
	default:
		if !p.active() {
			return nil
		}
		switch kw {
		case "define":
			p.doDefine(pos, rest)
		case "undef":
			if len(rest) > 0 && rest[0].Kind == token.TokIdent {
				undef(identOf(rest[0]))
			}
		case "include":
			return p.doInclude(pos, rest)
		case "warning":
			p.Bag.Warn(pos, "%s", renderLine(rest))
		case "error":
			p.Bag.Error(pos, "%s", renderLine(rest))
		default:
			p.Bag.Warn(pos, "unknown preprocessing directive #%s", kw)
		}
	}
	return nil
}

// doInclude resolves and splices in the contents of an #include: the
// include path list is consulted in order for both `<...>` and `"..."`
// forms, with `"..."` additionally trying the including file's own
// directory first.
func (p *Preprocessor) doInclude(pos diag.Position, rest []*token.Token) []*token.Token {
	name, angled, ok := parseIncludeOperand(rest)
	if !ok {
		p.Bag.Error(pos, "#include expects \"FILENAME\" or <FILENAME>")
		return nil
	}
	path, found := p.IncludePath(name, angled, filepath.Dir(pos.Stream))
	if !found {
		p.Bag.Error(pos, "cannot find include file %q", name)
		return nil
	}
	data, err := p.readFile(path)
	if err != nil {
		p.Bag.Error(pos, "cannot read include file %q: %v", path, err)
		return nil
	}
	sc, err := token.NewScanner(bytes.NewReader(data), path, p.Interner, p.Bag)
	if err != nil {
		p.Bag.Error(pos, "cannot tokenize include file %q: %v", path, err)
		return nil
	}
	head := sc.Scan()
	toks := token.ToSlice(head)
	if len(toks) > 0 && toks[len(toks)-1].Kind == token.EOF {
		toks = toks[:len(toks)-1]
	}
	return p.preprocessTokens(toks)
}

// parseIncludeOperand accepts either a quoted string literal token or a
// sequence of tokens between `<` and `>` re-spelled back into a path.
func parseIncludeOperand(rest []*token.Token) (name string, angled bool, ok bool) {
	if len(rest) == 0 {
		return "", false, false
	}
	if rest[0].Kind == token.TokString {
		b := rest[0].Str.Bytes
		if len(b) > 0 && b[len(b)-1] == 0 {
			b = b[:len(b)-1]
		}
		return string(b), false, true
	}
	if rest[0].Kind == token.TokSpecial && rest[0].Special == token.OpLt {
		var sb strings.Builder
		for _, t := range rest[1:] {
			if t.Kind == token.TokSpecial && t.Special == token.OpGt {
				return sb.String(), true, true
			}
			sb.WriteString(spellTokenRaw(t))
		}
	}
	return "", false, false
}

func renderLine(toks []*token.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(spellToken(t))
	}
	return sb.String()
}

func (p *Preprocessor) pushCond(pos diag.Position, cond bool) {
	active := p.active() && cond
	p.conds = append(p.conds, condFrame{taken: cond, active: active, pos: pos})
	if cond {
		p.trueNesting++
	} else {
		p.falseNesting++
	}
}

func (p *Preprocessor) popCond(pos diag.Position) {
	if len(p.conds) == 0 {
		p.Bag.Warn(pos, "#endif without matching #if")
		return
	}
	f := p.conds[len(p.conds)-1]
	p.conds = p.conds[:len(p.conds)-1]
	if f.taken {
		p.trueNesting--
	} else {
		p.falseNesting--
	}
}

func (p *Preprocessor) doElif(pos diag.Position, rest []*token.Token) {
	if len(p.conds) == 0 {
		p.Bag.Warn(pos, "#elif without matching #if")
		return
	}
	top := &p.conds[len(p.conds)-1]
	parentActive := true
	for _, f := range p.conds[:len(p.conds)-1] {
		parentActive = parentActive && f.active
	}
	if top.taken {
		top.active = false
		return
	}
	cond := parentActive && p.evalConstExpr(rest) != 0
	top.active = cond
	top.taken = cond
}

func (p *Preprocessor) doElse(pos diag.Position) {
	if len(p.conds) == 0 {
		p.Bag.Warn(pos, "#else without matching #if")
		return
	}
	top := &p.conds[len(p.conds)-1]
	if top.sawElse {
		p.Bag.Warn(pos, "#else after #else")
	}
	top.sawElse = true
	parentActive := true
	for _, f := range p.conds[:len(p.conds)-1] {
		parentActive = parentActive && f.active
	}
	if top.taken {
		top.active = false
		return
	}
	top.active = parentActive
	top.taken = parentActive
}

func (p *Preprocessor) evalIfdef(positive bool, rest []*token.Token) bool {
	if len(rest) == 0 || rest[0].Kind != token.TokIdent {
		return false
	}
	defined := lookupMacro(identOf(rest[0])) != nil
	return defined == positive
}

func (p *Preprocessor) doDefine(pos diag.Position, rest []*token.Token) {
	if len(rest) == 0 || rest[0].Kind != token.TokIdent {
		p.Bag.Error(pos, "macro name missing in #define")
		return
	}
	name := identOf(rest[0])
	rest = rest[1:]
	functionLike := false
	var params []string
	variadic := false
	if len(rest) > 0 && rest[0].Kind == token.TokSpecial && rest[0].Special == token.OpLParen && !rest[0].Position.Whitespace {
		functionLike = true
		rest = rest[1:]
		for len(rest) > 0 {
			if rest[0].Kind == token.TokSpecial && rest[0].Special == token.OpRParen {
				rest = rest[1:]
				break
			}
			if rest[0].Kind == token.TokSpecial && rest[0].Special == token.OpEllipsis {
				variadic = true
				rest = rest[1:]
				continue
			}
			if rest[0].Kind == token.TokIdent {
				params = append(params, identOf(rest[0]).Name)
			}
			rest = rest[1:]
			if len(rest) > 0 && rest[0].Kind == token.TokSpecial && rest[0].Special == token.OpComma {
				rest = rest[1:]
			}
		}
	}
	define(name, &Macro{FunctionLike: functionLike, Params: params, Variadic: variadic, Body: rest})
}

// IncludePath resolves name (quoted form uses fromDir first) against the
// include path list.
func (p *Preprocessor) IncludePath(name string, angled bool, fromDir string) (string, bool) {
	candidates := []string{}
	if !angled && fromDir != "" {
		candidates = append(candidates, filepath.Join(fromDir, name))
	}
	for _, dir := range p.IncludePaths {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	return "", false
}

// evalConstExpr evaluates a #if/#elif controlling expression, after
// expanding any macros in it (with `defined(X)`/`defined X` protected
// from macro expansion, as C99 requires).
func (p *Preprocessor) evalConstExpr(toks []*token.Token) int64 {
	toks = p.expandForIf(toks)
	pe := &ppExprParser{toks: toks, bag: p.Bag}
	v := pe.parseExpr()
	return v
}

func (p *Preprocessor) expandForIf(toks []*token.Token) []*token.Token {
	var out []*token.Token
	i := 0
	for i < len(toks) {
		t := toks[i]
		if t.Kind == token.TokIdent && identOf(t).Name == "defined" {
			i++
			paren := false
			if i < len(toks) && toks[i].Kind == token.TokSpecial && toks[i].Special == token.OpLParen {
				paren = true
				i++
			}
			if i < len(toks) && toks[i].Kind == token.TokIdent {
				defined := lookupMacro(identOf(toks[i])) != nil
				out = append(out, numberToken(toks[i].Position, boolToInt(defined)))
				i++
			}
			if paren && i < len(toks) && toks[i].Kind == token.TokSpecial && toks[i].Special == token.OpRParen {
				i++
			}
			continue
		}
		if t.Kind == token.TokIdent {
			if m := lookupMacro(identOf(t)); m != nil && !m.Busy {
				consumed, expanded := p.expandAt(toks, i)
				expanded = p.expandForIf(expanded)
				out = append(out, expanded...)
				i += consumed
				continue
			}
			// An undefined identifier in a constant expression is 0,
			// per C99's undefined-identifier policy.
			out = append(out, numberToken(t.Position, 0))
			i++
			continue
		}
		out = append(out, t)
		i++
	}
	return out
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func numberToken(pos diag.Position, v int64) *token.Token {
	return &token.Token{Kind: token.TokNumber, Position: pos, Lexeme: strconv.FormatInt(v, 10)}
}

func spellToken(t *token.Token) string {
	switch t.Kind {
	case token.TokIdent:
		return identOf(t).Name
	case token.TokNumber:
		return t.Lexeme
	case token.TokString:
		b := t.Str.Bytes
		if len(b) > 0 && b[len(b)-1] == 0 {
			b = b[:len(b)-1]
		}
		return fmt.Sprintf("%q", string(b))
	case token.TokChar:
		return fmt.Sprintf("'%c'", t.Char)
	case token.TokSpecial:
		return specialText(t.Special)
	default:
		return ""
	}
}

var specialSpellings = map[token.Special]string{
	token.OpLParen: "(", token.OpRParen: ")", token.OpLBrace: "{", token.OpRBrace: "}",
	token.OpLBracket: "[", token.OpRBracket: "]", token.OpSemicolon: ";", token.OpComma: ",",
	token.OpColon: ":", token.OpQuestion: "?", token.OpEllipsis: "...", token.OpDot: ".",
	token.OpArrow: "->", token.OpPlus: "+", token.OpMinus: "-", token.OpStar: "*",
	token.OpSlash: "/", token.OpPercent: "%", token.OpIncrement: "++", token.OpDecrement: "--",
	token.OpAmp: "&", token.OpPipe: "|", token.OpCaret: "^", token.OpTilde: "~", token.OpNot: "!",
	token.OpShl: "<<", token.OpShr: ">>", token.OpLt: "<", token.OpGt: ">", token.OpLe: "<=",
	token.OpGe: ">=", token.OpEq: "==", token.OpNe: "!=", token.OpAndAnd: "&&", token.OpOrOr: "||",
	token.OpAssign: "=", token.OpAddAssign: "+=", token.OpSubAssign: "-=", token.OpMulAssign: "*=",
	token.OpDivAssign: "/=", token.OpModAssign: "%=", token.OpShlAssign: "<<=", token.OpShrAssign: ">>=",
	token.OpAndAssign: "&=", token.OpOrAssign: "|=", token.OpXorAssign: "^=", token.OpHash: "#",
	token.OpHashHash: "##",
}

func specialText(sp token.Special) string {
	if s, ok := specialSpellings[sp]; ok {
		return s
	}
	return ""
}

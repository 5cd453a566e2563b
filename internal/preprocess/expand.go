package preprocess

import (
	"strconv"

	"sparsego/internal/diag"
	"sparsego/internal/token"
)

// expandAt expands the macro invocation starting at in[i], returning how
// many input tokens it consumed and the (recursively re-expanded) result.
// Handles both object-like and function-like macros, stringization (#)
// and token pasting (##); the builtin identifiers (__LINE__, __func__ and
// the like) are handled by preprocessTokens through expandBuiltinIdent.
func (p *Preprocessor) expandAt(in []*token.Token, i int) (int, []*token.Token) {
	t := in[i]
	id := identOf(t)

	m := lookupMacro(id)
	if m == nil {
		return 1, []*token.Token{t}
	}

	if !m.FunctionLike {
		m.Busy = true
		body := p.rescanPastes(m.Body)
		expanded := p.preprocessTokens(body)
		m.Busy = false
		return 1, expanded
	}

	// Function-like macro: the next non-whitespace token must be '('.
	j := i + 1
	if j >= len(in) || !(in[j].Kind == token.TokSpecial && in[j].Special == token.OpLParen) {
		// Not a call: the identifier passes through unexpanded, per C99.
		return 1, []*token.Token{t}
	}
	args, end := collectArgs(in, j)
	bound := p.bindArgs(m, args)

	substituted := substituteBody(m.Body, bound)
	substituted = p.rescanPastes(substituted)

	m.Busy = true
	expanded := p.preprocessTokens(substituted)
	m.Busy = false
	return end - i, expanded
}

// expandBuiltinIdent handles the built-in identifier conversions:
// __func__/__FUNCTION__/__PRETTY_FUNCTION__, __LINE__, __FILE__.
// __builtin_expect/__builtin_constant_p are explicitly NOT expanded here:
// they're pass-through wrappers consumed later by the evaluator, so the
// preprocessor must leave the identifier alone for internal/eval to
// recognize as a call.
func (p *Preprocessor) expandBuiltinIdent(name string, pos diag.Position) ([]*token.Token, bool) {
	switch name {
	case "__func__", "__FUNCTION__", "__PRETTY_FUNCTION__":
		name := p.CurrentFunction
		b := append([]byte(name), 0)
		return []*token.Token{{Kind: token.TokString, Position: pos, Str: token.StringLit{Bytes: b}}}, true
	case "__LINE__":
		return []*token.Token{{Kind: token.TokNumber, Position: pos, Lexeme: strconv.Itoa(pos.Line)}}, true
	case "__FILE__":
		b := append([]byte(pos.Stream), 0)
		return []*token.Token{{Kind: token.TokString, Position: pos, Str: token.StringLit{Bytes: b}}}, true
	}
	return nil, false
}

// collectArgs scans a balanced parenthesized argument list starting at
// in[lparen] (which must be '('), splitting top-level commas into
// separate arguments. Returns the arguments (each a token slice) and the
// index just past the closing ')'.
func collectArgs(in []*token.Token, lparen int) ([][]*token.Token, int) {
	depth := 0
	var args [][]*token.Token
	var cur []*token.Token
	i := lparen
	for i < len(in) {
		t := in[i]
		if t.Kind == token.TokSpecial {
			switch t.Special {
			case token.OpLParen:
				depth++
				if depth == 1 {
					i++
					continue
				}
			case token.OpRParen:
				depth--
				if depth == 0 {
					args = append(args, cur)
					i++
					return args, i
				}
			case token.OpComma:
				if depth == 1 {
					args = append(args, cur)
					cur = nil
					i++
					continue
				}
			}
		}
		cur = append(cur, t)
		i++
	}
	args = append(args, cur)
	return args, i
}

type boundArg struct {
	raw      []*token.Token // unexpanded, for # and as the literal operand of ##
	expanded []*token.Token // fully macro-expanded, for ordinary substitution
}

func (p *Preprocessor) bindArgs(m *Macro, args [][]*token.Token) map[string]boundArg {
	bound := make(map[string]boundArg)
	for i, name := range m.Params {
		var raw []*token.Token
		if i < len(args) {
			raw = args[i]
		}
		bound[name] = boundArg{raw: raw, expanded: p.preprocessTokens(raw)}
	}
	if m.Variadic {
		var rest []*token.Token
		for i := len(m.Params); i < len(args); i++ {
			if i > len(m.Params) {
				rest = append(rest, &token.Token{Kind: token.TokSpecial, Special: token.OpComma})
			}
			rest = append(rest, args[i]...)
		}
		bound["__VA_ARGS__"] = boundArg{raw: rest, expanded: p.preprocessTokens(rest)}
	}
	return bound
}

// substituteBody walks a macro body, replacing parameter references with
// their bound arguments, handling `#param` stringization inline (token
// pasting is left for rescanPastes, since it must see the post-
// substitution token sequence to merge lexemes across a substituted
// argument's boundary).
func substituteBody(body []*token.Token, bound map[string]boundArg) []*token.Token {
	var out []*token.Token
	for i := 0; i < len(body); i++ {
		t := body[i]
		if t.Kind == token.TokSpecial && t.Special == token.OpHash && i+1 < len(body) && body[i+1].Kind == token.TokIdent {
			pname := identOf(body[i+1]).Name
			if arg, ok := bound[pname]; ok {
				out = append(out, stringize(t.Position, arg.raw))
				i++
				continue
			}
		}
		if t.Kind == token.TokIdent {
			if arg, ok := bound[identOf(t).Name]; ok {
				out = append(out, arg.expanded...)
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func stringize(pos diag.Position, toks []*token.Token) *token.Token {
	s := renderLine(toks)
	b := append([]byte(s), 0)
	return &token.Token{Kind: token.TokString, Position: pos, Str: token.StringLit{Bytes: b}}
}

// rescanPastes resolves every `a ## b` in toks by concatenating the
// lexemes of a and b and re-lexing the result as a single token: token
// pasting concatenates the lexemes of adjacent tokens into a new token
// re-classified by a mini-tokenize of the result. Runs left to right so
// chained pastes (`a ## b ## c`) fold correctly.
func (p *Preprocessor) rescanPastes(toks []*token.Token) []*token.Token {
	var out []*token.Token
	for i := 0; i < len(toks); i++ {
		if toks[i].Kind == token.TokSpecial && toks[i].Special == token.OpHashHash && len(out) > 0 && i+1 < len(toks) {
			left := out[len(out)-1]
			right := toks[i+1]
			merged := p.pasteTokens(left, right)
			out[len(out)-1] = merged
			i++
			continue
		}
		out = append(out, toks[i])
	}
	return out
}

func (p *Preprocessor) pasteTokens(a, b *token.Token) *token.Token {
	text := spellTokenRaw(a) + spellTokenRaw(b)
	toks := p.tokenizeSnippet(text)
	if len(toks) == 0 {
		return &token.Token{Kind: token.TokError, Position: a.Position, Lexeme: "## produced no valid token"}
	}
	merged := toks[0]
	merged.Position = a.Position
	if len(toks) > 1 {
		p.Bag.Warn(a.Position, "pasting %q and %q does not give a valid preprocessing token", spellTokenRaw(a), spellTokenRaw(b))
	}
	return merged
}

func spellTokenRaw(t *token.Token) string {
	if t.Kind == token.TokIdent {
		return identOf(t).Name
	}
	return spellToken(t)
}

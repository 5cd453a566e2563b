// Scanner is a byte-stream tokenizer producing an EOF-terminated linked
// Token list with source positions: start/current/line cursors over an
// in-memory source string, a switch-driven scanOne, an emit helper,
// a full maximal-munch operator table, and C's literal escaping rules.
package token

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"sparsego/internal/diag"
	"sparsego/internal/ident"
)

// readChunkSize: source files are read in 8 KiB chunks.
const readChunkSize = 8192

// Scanner turns one source stream into a Token list. Line splicing,
// comment elision, and escape decoding all happen here so that later
// stages never see raw backslash-newlines or comment bytes.
type Scanner struct {
	stream string // stream name, for Position.Stream
	src    []byte
	pos    int
	line   int
	col    int
	newline    bool // true if no non-whitespace token has been seen on this line yet
	whitespace bool // true if whitespace (or an elided comment) preceded the next token

	interner *ident.Table
	bag      *diag.Bag

	tokens []*Token
}

// NewScanner creates a Scanner reading all of r under the given stream
// name (used only for diagnostics and Position.Stream).
func NewScanner(r io.Reader, stream string, interner *ident.Table, bag *diag.Bag) (*Scanner, error) {
	var buf strings.Builder
	br := bufio.NewReaderSize(r, readChunkSize)
	chunk := make([]byte, readChunkSize)
	for {
		n, err := br.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return &Scanner{
		stream:   stream,
		src:      spliceLines(buf.String()),
		line:     1,
		col:      1,
		newline:  true,
		interner: interner,
		bag:      bag,
	}, nil
}

// spliceLines performs transparent line splicing ("\\\n" becomes nothing)
// and \r normalization before any tokenizing happens, so every downstream
// offset is already in "logical" source.
func spliceLines(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if c == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		if c == '\r' {
			out = append(out, '\n')
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Scanner) pos0() diag.Position {
	return diag.Position{Stream: s.stream, Index: s.pos, Line: s.line, Column: s.col, Newline: s.newline, Whitespace: s.whitespace}
}

func (s *Scanner) atEnd() bool { return s.pos >= len(s.src) }

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.pos]
}

func (s *Scanner) peekAt(off int) byte {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}

func (s *Scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
		s.col = 1
		s.newline = true
	} else {
		s.col++
	}
	return c
}

func (s *Scanner) emit(tok *Token) {
	tok.Position.Newline = s.newline
	tok.Position.Whitespace = s.whitespace
	s.tokens = append(s.tokens, tok)
	s.newline = false
	s.whitespace = false
}

// Scan runs the tokenizer to completion and returns the head of an
// EOF-terminated linked Token list.
func (s *Scanner) Scan() *Token {
	for !s.atEnd() {
		s.skipWhitespaceAndComments()
		if s.atEnd() {
			break
		}
		s.scanOne()
	}
	eofPos := s.pos0()
	s.tokens = append(s.tokens, &Token{Kind: EOF, Position: eofPos})
	return NewList(s.tokens)
}

func (s *Scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\v' || c == '\f' || c == '\n':
			s.advance()
			s.whitespace = true
		case c == '/' && s.peekAt(1) == '/':
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
			s.whitespace = true
		case c == '/' && s.peekAt(1) == '*':
			s.advance()
			s.advance()
			for !s.atEnd() && !(s.peek() == '*' && s.peekAt(1) == '/') {
				s.advance()
			}
			if !s.atEnd() {
				s.advance()
				s.advance()
			}
			s.whitespace = true
		default:
			return
		}
	}
}

func (s *Scanner) scanOne() {
	start := s.pos0()
	c := s.peek()

	switch {
	case c >= 0x80:
		s.bag.Warn(start, "non-ASCII byte 0x%02x in source", c)
		s.advance()
		return
	case isIdentStart(c):
		s.scanIdent(start)
	case isDigit(c) || (c == '.' && isDigit(s.peekAt(1))):
		s.scanNumber(start)
	case c == '"':
		s.scanString(start)
	case c == '\'':
		s.scanChar(start)
	default:
		if op, n := MatchOperator(string(s.src[s.pos:min(s.pos+4, len(s.src))]), 0); n > 0 {
			for i := 0; i < n; i++ {
				s.advance()
			}
			s.emit(&Token{Kind: TokSpecial, Position: start, Special: op})
			return
		}
		s.advance()
		s.bag.Warn(start, "unrecognized character %q", rune(c))
		s.emit(&Token{Kind: TokError, Position: start, Lexeme: fmt.Sprintf("bad char %q", rune(c))})
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *Scanner) scanIdent(start diag.Position) {
	b := s.pos
	for !s.atEnd() && isIdentCont(s.peek()) {
		s.advance()
	}
	name := string(s.src[b:s.pos])
	id := s.interner.Intern(name)
	s.emit(&Token{Kind: TokIdent, Position: start, Ident: &IdentRef{Any: id}})
}

// scanNumber captures the raw lexeme only; semantic classification (int
// vs. float, suffix handling) is deferred to the evaluator in internal/eval.
func (s *Scanner) scanNumber(start diag.Position) {
	b := s.pos
	for !s.atEnd() {
		c := s.peek()
		if isDigit(c) || isIdentStart(c) || c == '.' {
			s.advance()
			continue
		}
		if (c == '+' || c == '-') && b < s.pos {
			prev := s.src[s.pos-1]
			if prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P' {
				s.advance()
				continue
			}
		}
		break
	}
	lexeme := string(s.src[b:s.pos])
	s.emit(&Token{Kind: TokNumber, Position: start, Lexeme: lexeme})
}

// decodeEscape interprets one `\...` escape starting after the backslash:
// \n \t \v \f \b \a \r \e \0 \ooo \xNN. Returns the decoded rune, whether
// it recognized the escape, and the number of source bytes consumed (not
// counting the leading backslash).
func (s *Scanner) decodeEscape() (rune, bool, int) {
	if s.atEnd() {
		return 0, false, 0
	}
	c := s.peek()
	simple := map[byte]rune{
		'n': '\n', 't': '\t', 'v': '\v', 'f': '\f', 'b': '\b',
		'a': '\a', 'r': '\r', 'e': 0x1b, '\\': '\\', '\'': '\'', '"': '"', '?': '?',
	}
	if r, ok := simple[c]; ok {
		s.advance()
		return r, true, 1
	}
	if c >= '0' && c <= '7' {
		n := 0
		val := 0
		for n < 3 && !s.atEnd() && s.peek() >= '0' && s.peek() <= '7' {
			val = val*8 + int(s.advance()-'0')
			n++
		}
		return rune(val), true, n
	}
	if c == 'x' {
		s.advance()
		val := 0
		n := 0
		for !s.atEnd() && isHex(s.peek()) {
			val = val*16 + hexVal(s.advance())
			n++
		}
		return rune(val), n > 0, n + 1
	}
	return 0, false, 0
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

func (s *Scanner) scanChar(start diag.Position) {
	s.advance() // opening '
	escaped := false
	var val rune
	if !s.atEnd() && s.peek() == '\\' {
		s.advance()
		escaped = true
		r, ok, _ := s.decodeEscape()
		if !ok {
			s.bag.Warn(start, "unknown escape sequence in character literal")
		}
		val = r
	} else if !s.atEnd() {
		val = rune(s.advance())
	}
	if !s.atEnd() && s.peek() == '\'' {
		s.advance()
	} else {
		s.bag.Warn(start, "unterminated character literal")
	}
	// "Was escaped" is modeled here as the Escaped flag rather than an
	// out-of-band bit on the value, since Token.Char is a rune; Escaped
	// carries the same information to the evaluator.
	s.emit(&Token{Kind: TokChar, Position: start, Char: val, Escaped: escaped})
}

func (s *Scanner) scanString(start diag.Position) {
	s.advance() // opening "
	var out []byte
	anyEscape := false
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			s.bag.Warn(start, "string literal too long: unterminated at newline")
			break
		}
		if s.peek() == '\\' {
			s.advance()
			anyEscape = true
			r, ok, _ := s.decodeEscape()
			if !ok {
				s.bag.Warn(start, "unknown escape sequence in string literal")
				continue
			}
			if r < 0x80 {
				out = append(out, byte(r))
			} else {
				out = append(out, string(r)...)
			}
			continue
		}
		out = append(out, s.advance())
	}
	if !s.atEnd() && s.peek() == '"' {
		s.advance()
	} else {
		s.bag.Warn(start, "unterminated string literal")
	}
	out = append(out, 0) // NUL terminator included in length
	s.emit(&Token{Kind: TokString, Position: start, Str: StringLit{Bytes: out}, Escaped: anyEscape})
}

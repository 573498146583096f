package parser

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/diag"
)

type tokenType int

const (
	tEOF tokenType = iota
	tIdent
	tString
	tNumber
	tDuration
	tExpr
	tLBrace
	tRBrace
	tLBrack
	tRBrack
	tComma
	tSemi
	tColon
	tEquals
	tDotDot
)

func (t tokenType) String() string {
	switch t {
	case tEOF:
		return "end of file"
	case tIdent:
		return "identifier"
	case tString:
		return "string"
	case tNumber:
		return "number"
	case tDuration:
		return "duration"
	case tExpr:
		return "expression"
	case tLBrace:
		return `"{"`
	case tRBrace:
		return `"}"`
	case tLBrack:
		return `"["`
	case tRBrack:
		return `"]"`
	case tComma:
		return `","`
	case tSemi:
		return `";"`
	case tColon:
		return `":"`
	case tEquals:
		return `"="`
	case tDotDot:
		return `".."`
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// strPart is a literal run or an interpolation inside a quoted string.
type strPart struct {
	expr bool
	text string
	rng  hcl.Range
}

type token struct {
	typ   tokenType
	text  string
	parts []strPart
	rng   hcl.Range
}

var punct = map[byte]tokenType{
	'{': tLBrace, '}': tRBrace, '[': tLBrack, ']': tRBrack,
	',': tComma, ';': tSemi, ':': tColon, '=': tEquals,
}

var durationUnits = map[string]bool{"us": true, "ms": true, "s": true, "m": true, "h": true, "d": true}

type lexer struct {
	filename string
	src      []byte
	off      int
	pos      hcl.Pos
}

func newLexer(filename string, src []byte) *lexer {
	return &lexer{filename: filename, src: src, pos: hcl.Pos{Line: 1, Column: 1, Byte: 0}}
}

// tokens scans the whole input. It stops at the first malformed token.
func (l *lexer) tokens() ([]token, *hcl.Diagnostic) {
	var out []token
	for {
		tok, d := l.next()
		if d != nil {
			return nil, d
		}
		out = append(out, tok)
		if tok.typ == tEOF {
			return out, nil
		}
	}
}

func (l *lexer) peekByte(ahead int) byte {
	if l.off+ahead < len(l.src) {
		return l.src[l.off+ahead]
	}
	return 0
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		b := l.src[l.off]
		l.off++
		l.pos.Byte++
		switch {
		case b == '\n':
			l.pos.Line++
			l.pos.Column = 1
		case b&0xC0 != 0x80:
			l.pos.Column++
		}
	}
}

func (l *lexer) rangeFrom(start hcl.Pos) hcl.Range {
	return hcl.Range{Filename: l.filename, Start: start, End: l.pos}
}

func (l *lexer) errorf(start hcl.Pos, summary, format string, args ...any) *hcl.Diagnostic {
	end := l.pos
	if end.Byte == start.Byte {
		end.Byte++
		end.Column++
	}
	return diag.Errorf(diag.SyntaxError, hcl.Range{Filename: l.filename, Start: start, End: end}, summary, format, args...)
}

func (l *lexer) skipSpaceAndComments() *hcl.Diagnostic {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		case c == '#' || (c == '/' && l.peekByte(1) == '/'):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance(1)
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.pos
			l.advance(2)
			for {
				if l.off >= len(l.src) {
					return l.errorf(start, "Unterminated comment", "A /* comment is never closed.")
				}
				if l.src[l.off] == '*' && l.peekByte(1) == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, *hcl.Diagnostic) {
	if d := l.skipSpaceAndComments(); d != nil {
		return token{}, d
	}
	start := l.pos
	if l.off >= len(l.src) {
		return token{typ: tEOF, rng: l.rangeFrom(start)}, nil
	}

	c := l.src[l.off]
	switch {
	case c == '.' && l.peekByte(1) == '.':
		l.advance(2)
		return token{typ: tDotDot, text: "..", rng: l.rangeFrom(start)}, nil
	case punct[c] != tEOF:
		l.advance(1)
		return token{typ: punct[c], text: string(c), rng: l.rangeFrom(start)}, nil
	case c == '"':
		return l.quoted()
	case c == '$' && l.peekByte(1) == '{':
		l.advance(2)
		src, srcRange, d := l.interpolation(start)
		if d != nil {
			return token{}, d
		}
		return token{typ: tExpr, text: src, rng: srcRange}, nil
	case isDigit(c) || (c == '-' && isDigit(l.peekByte(1))):
		return l.number(), nil
	case isIdentStart(c):
		l.word()
		return token{typ: tIdent, text: string(l.src[start.Byte:l.off]), rng: l.rangeFrom(start)}, nil
	default:
		l.advance(1)
		return token{}, l.errorf(start, "Invalid character", "Unexpected character %q.", rune(c))
	}
}

// number scans an integer or decimal literal. A trailing duration unit makes
// it a duration; any other trailing letters make it a bare word such as 100k.
func (l *lexer) number() token {
	start := l.pos
	if l.src[l.off] == '-' {
		l.advance(1)
	}
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.advance(1)
	}
	fractional := false
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		fractional = true
		l.advance(1)
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance(1)
		}
	}
	numEnd := l.off
	l.word()
	text := string(l.src[start.Byte:l.off])
	suffix := string(l.src[numEnd:l.off])
	switch {
	case suffix == "":
		return token{typ: tNumber, text: text, rng: l.rangeFrom(start)}
	case durationUnits[suffix] && !fractional && text[0] != '-':
		return token{typ: tDuration, text: text, rng: l.rangeFrom(start)}
	default:
		return token{typ: tIdent, text: text, rng: l.rangeFrom(start)}
	}
}

// interpolation scans the body of a ${...} whose opening was consumed at
// open, returning the raw source and its range.
func (l *lexer) interpolation(open hcl.Pos) (string, hcl.Range, *hcl.Diagnostic) {
	srcStart := l.pos
	depth := 0
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch c {
		case '\n':
			return "", hcl.Range{}, l.errorf(open, "Unterminated interpolation", "A ${ sequence must be closed with } on the same line.")
		case '"':
			l.advance(1)
			for l.off < len(l.src) && l.src[l.off] != '"' && l.src[l.off] != '\n' {
				if l.src[l.off] == '\\' {
					l.advance(1)
				}
				l.advance(1)
			}
			l.advance(1)
			continue
		case '{':
			depth++
		case '}':
			if depth == 0 {
				src := string(l.src[srcStart.Byte:l.off])
				rng := l.rangeFrom(srcStart)
				l.advance(1)
				if strings.TrimSpace(src) == "" {
					return "", hcl.Range{}, l.errorf(open, "Empty interpolation", "A ${} sequence must contain an expression.")
				}
				return src, rng, nil
			}
			depth--
		}
		l.advance(1)
	}
	return "", hcl.Range{}, l.errorf(open, "Unterminated interpolation", "A ${ sequence is never closed.")
}

func (l *lexer) quoted() (token, *hcl.Diagnostic) {
	start := l.pos
	l.advance(1)

	var parts []strPart
	var buf strings.Builder
	litStart := l.pos
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, strPart{text: buf.String(), rng: l.rangeFrom(litStart)})
			buf.Reset()
		}
	}

	for {
		if buf.Len() == 0 {
			litStart = l.pos
		}
		if l.off >= len(l.src) || l.src[l.off] == '\n' {
			return token{}, l.errorf(start, "Unterminated string", "A quoted string must end on the line it starts.")
		}
		c := l.src[l.off]
		switch {
		case c == '"':
			flush()
			l.advance(1)
			tok := token{typ: tString, parts: parts, rng: l.rangeFrom(start)}
			if len(parts) == 0 {
				tok.parts = []strPart{{text: "", rng: tok.rng}}
			}
			return tok, nil
		case c == '\\':
			escStart := l.pos
			l.advance(1)
			switch l.peekByte(0) {
			case '"':
				buf.WriteByte('"')
			case '\\':
				buf.WriteByte('\\')
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			default:
				l.advance(1)
				return token{}, l.errorf(escStart, "Invalid escape sequence", "Only \\\", \\\\, \\n and \\t are recognized in strings.")
			}
			l.advance(1)
		case c == '$' && l.peekByte(1) == '$' && l.peekByte(2) == '{':
			buf.WriteString("${")
			l.advance(3)
		case c == '$' && l.peekByte(1) == '{':
			flush()
			open := l.pos
			l.advance(2)
			src, rng, d := l.interpolation(open)
			if d != nil {
				return token{}, d
			}
			parts = append(parts, strPart{expr: true, text: src, rng: rng})
		default:
			buf.WriteByte(c)
			l.advance(1)
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}

// word consumes identifier characters. A dot is part of the word when
// another identifier character follows it, so TLSv1.2 and 10.0.0.1 are single
// words while 1..3 is not.
func (l *lexer) word() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		if isIdentPart(c) || (c == '.' && isIdentPart(l.peekByte(1))) {
			l.advance(1)
			continue
		}
		return
	}
}

package zon

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parse parses a ZON document and returns its root value.
// The root of a build.zig.zon manifest is always a *Struct, but Parse
// accepts any value so partial documents can be tested in isolation.
func Parse(src []byte) (Value, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s after top-level value", p.tok)
	}
	return v, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokDot
	tokLBrace
	tokRBrace
	tokEq
	tokComma
	tokString
	tokIdent
	tokQuotedIdent
	tokNumber
)

type token struct {
	kind tokenKind
	pos  Pos
	text string // decoded for strings and quoted idents
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	case tokIdent, tokQuotedIdent:
		return fmt.Sprintf("identifier %q", t.text)
	case tokNumber:
		return fmt.Sprintf("number %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() error {
	tok, err := p.lex.scan()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok.kind != kind {
		return p.errorf("expected %s, found %s", what, p.tok)
	}
	return p.next()
}

func (p *parser) parseValue() (Value, error) {
	switch p.tok.kind {
	case tokString:
		v := &String{Pos: p.tok.pos, Value: p.tok.text}
		return v, p.next()
	case tokNumber:
		pos := p.tok.pos
		n, err := parseInt(p.tok.text)
		if err != nil {
			return nil, &SyntaxError{Pos: pos, Msg: err.Error()}
		}
		return &Int{Pos: pos, Value: n}, p.next()
	case tokIdent:
		pos := p.tok.pos
		switch p.tok.text {
		case "true":
			return &Bool{Pos: pos, Value: true}, p.next()
		case "false":
			return &Bool{Pos: pos, Value: false}, p.next()
		}
		return nil, p.errorf("unexpected identifier %q", p.tok.text)
	case tokDot:
		return p.parseDotted()
	default:
		return nil, p.errorf("expected value, found %s", p.tok)
	}
}

// parseDotted handles everything that starts with '.': anonymous struct
// literals (.{ ... }) and enum literals (.name).
func (p *parser) parseDotted() (Value, error) {
	pos := p.tok.pos
	if err := p.next(); err != nil {
		return nil, err
	}
	switch p.tok.kind {
	case tokLBrace:
		return p.parseAggregate(pos)
	case tokIdent, tokQuotedIdent:
		v := &Enum{Pos: pos, Name: p.tok.text}
		return v, p.next()
	default:
		return nil, p.errorf("expected '{' or identifier after '.', found %s", p.tok)
	}
}

// parseAggregate parses the body of a .{ ... } literal. Whether it is a
// Struct or a List depends on the first element: '.name =' makes it a
// struct, anything else a positional list. An empty literal is a Struct.
func (p *parser) parseAggregate(pos Pos) (Value, error) {
	if err := p.next(); err != nil { // consume '{'
		return nil, err
	}
	if p.tok.kind == tokRBrace {
		return &Struct{Pos: pos}, p.next()
	}
	if p.tok.kind == tokDot && p.lex.peekFieldStart() {
		return p.parseStructBody(pos)
	}
	return p.parseListBody(pos)
}

func (p *parser) parseStructBody(pos Pos) (Value, error) {
	s := &Struct{Pos: pos}
	for {
		if err := p.expect(tokDot, "'.'"); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent && p.tok.kind != tokQuotedIdent {
			return nil, p.errorf("expected field name, found %s", p.tok)
		}
		name := p.tok.text
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expect(tokEq, "'='"); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, dup := s.Get(name); dup {
			return nil, &SyntaxError{Pos: v.Position(), Msg: fmt.Sprintf("duplicate field %q", name)}
		}
		s.Fields = append(s.Fields, Field{Name: name, Value: v})

		done, err := p.endOfElement()
		if err != nil {
			return nil, err
		}
		if done {
			return s, nil
		}
	}
}

func (p *parser) parseListBody(pos Pos) (Value, error) {
	l := &List{Pos: pos}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		l.Items = append(l.Items, v)

		done, err := p.endOfElement()
		if err != nil {
			return nil, err
		}
		if done {
			return l, nil
		}
	}
}

// endOfElement consumes a separating comma and reports whether the
// enclosing aggregate is closed. Trailing commas are allowed.
func (p *parser) endOfElement() (bool, error) {
	switch p.tok.kind {
	case tokComma:
		if err := p.next(); err != nil {
			return false, err
		}
		if p.tok.kind == tokRBrace {
			return true, p.next()
		}
		return false, nil
	case tokRBrace:
		return true, p.next()
	default:
		return false, p.errorf("expected ',' or '}', found %s", p.tok)
	}
}

func parseInt(text string) (uint64, error) {
	clean := strings.ReplaceAll(text, "_", "")
	n, err := strconv.ParseUint(clean, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", text)
	}
	return n, nil
}

type lexer struct {
	src  []byte
	off  int
	line int
	col  int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos {
	return Pos{Line: l.line, Col: l.col}
}

func (l *lexer) peekByte() (byte, bool) {
	if l.off >= len(l.src) {
		return 0, false
	}
	return l.src[l.off], true
}

func (l *lexer) advance() byte {
	b := l.src[l.off]
	l.off++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *lexer) skipSpaceAndComments() {
	for {
		b, ok := l.peekByte()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.advance()
		case b == '/' && l.off+1 < len(l.src) && l.src[l.off+1] == '/':
			for {
				b, ok := l.peekByte()
				if !ok || b == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

// peekFieldStart reports whether the upcoming input (after the current
// '.' token) looks like '.ident =' rather than an enum literal used as a
// positional list element. It scans ahead without consuming input.
func (l *lexer) peekFieldStart() bool {
	save := *l
	defer func() { *l = save }()

	tok, err := l.scan() // identifier (possibly quoted)
	if err != nil || (tok.kind != tokIdent && tok.kind != tokQuotedIdent) {
		return false
	}
	tok, err = l.scan()
	return err == nil && tok.kind == tokEq
}

func (l *lexer) scan() (token, error) {
	l.skipSpaceAndComments()
	pos := l.pos()
	b, ok := l.peekByte()
	if !ok {
		return token{kind: tokEOF, pos: pos}, nil
	}

	switch b {
	case '.':
		l.advance()
		return token{kind: tokDot, pos: pos, text: "."}, nil
	case '{':
		l.advance()
		return token{kind: tokLBrace, pos: pos, text: "{"}, nil
	case '}':
		l.advance()
		return token{kind: tokRBrace, pos: pos, text: "}"}, nil
	case '=':
		l.advance()
		return token{kind: tokEq, pos: pos, text: "="}, nil
	case ',':
		l.advance()
		return token{kind: tokComma, pos: pos, text: ","}, nil
	case '"':
		text, err := l.scanString(pos)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, pos: pos, text: text}, nil
	case '@':
		l.advance()
		if b, ok := l.peekByte(); !ok || b != '"' {
			return token{}, &SyntaxError{Pos: pos, Msg: "expected '\"' after '@'"}
		}
		text, err := l.scanString(l.pos())
		if err != nil {
			return token{}, err
		}
		return token{kind: tokQuotedIdent, pos: pos, text: text}, nil
	}

	if isIdentStart(b) {
		start := l.off
		for {
			b, ok := l.peekByte()
			if !ok || !isIdentPart(b) {
				break
			}
			l.advance()
		}
		return token{kind: tokIdent, pos: pos, text: string(l.src[start:l.off])}, nil
	}

	if b >= '0' && b <= '9' {
		start := l.off
		for {
			b, ok := l.peekByte()
			if !ok || !isNumberPart(b) {
				break
			}
			l.advance()
		}
		return token{kind: tokNumber, pos: pos, text: string(l.src[start:l.off])}, nil
	}

	return token{}, &SyntaxError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", b)}
}

func (l *lexer) scanString(pos Pos) (string, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		b, ok := l.peekByte()
		if !ok || b == '\n' {
			return "", &SyntaxError{Pos: pos, Msg: "unterminated string literal"}
		}
		l.advance()
		if b == '"' {
			return sb.String(), nil
		}
		if b != '\\' {
			sb.WriteByte(b)
			continue
		}

		esc, ok := l.peekByte()
		if !ok {
			return "", &SyntaxError{Pos: pos, Msg: "unterminated string literal"}
		}
		l.advance()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case 'x':
			h, err := l.take(2)
			if err != nil {
				return "", &SyntaxError{Pos: pos, Msg: "invalid \\x escape"}
			}
			n, err := strconv.ParseUint(h, 16, 8)
			if err != nil {
				return "", &SyntaxError{Pos: pos, Msg: "invalid \\x escape"}
			}
			sb.WriteByte(byte(n))
		case 'u':
			if b, ok := l.peekByte(); !ok || b != '{' {
				return "", &SyntaxError{Pos: pos, Msg: "invalid \\u escape"}
			}
			l.advance()
			var hex strings.Builder
			for {
				b, ok := l.peekByte()
				if !ok {
					return "", &SyntaxError{Pos: pos, Msg: "invalid \\u escape"}
				}
				l.advance()
				if b == '}' {
					break
				}
				hex.WriteByte(b)
			}
			n, err := strconv.ParseUint(hex.String(), 16, 32)
			if err != nil || !utf8.ValidRune(rune(n)) {
				return "", &SyntaxError{Pos: pos, Msg: "invalid \\u escape"}
			}
			sb.WriteRune(rune(n))
		default:
			return "", &SyntaxError{Pos: pos, Msg: fmt.Sprintf("unknown escape \\%c", esc)}
		}
	}
}

func (l *lexer) take(n int) (string, error) {
	if l.off+n > len(l.src) {
		return "", fmt.Errorf("unexpected end of input")
	}
	var sb strings.Builder
	for range n {
		sb.WriteByte(l.advance())
	}
	return sb.String(), nil
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isNumberPart(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') ||
		(b >= 'A' && b <= 'F') || b == 'x' || b == 'X' || b == '_' || b == 'o'
}

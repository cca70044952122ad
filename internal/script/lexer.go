package script

import (
	"strings"

	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokAt
	tokIdent
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokSemi
	tokComma
	tokEquals
	tokString
	tokVariable
)

type token struct {
	kind  tokenKind
	text  string
	parts []StringPart // populated for tokString
	pos   Position
}

// lexer turns source bytes into a flat token stream. A `;` inside a string
// literal is part of that string token; everywhere else it is emitted as
// tokSemi. The lexer keeps no nesting state: the emitted tokLParen/tokRParen
// bracket a key/value argument block for the parser, which accepts only
// key=value pairs separated by commas between them.
type lexer struct {
	src        []rune
	pos        int
	row, col   int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), row: 1, col: 1}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() (rune, bool) {
	r, ok := l.peekRune()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.row++
		l.col = 1
	} else {
		l.col++
	}
	return r, true
}

func (l *lexer) here() Position { return Position{Row: l.row, Col: l.col} }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-' || r == '.'
}

func (l *lexer) skipTrivia() {
	for {
		r, ok := l.peekRune()
		if !ok {
			return
		}
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			l.advance()
			continue
		}
		if r == '#' {
			for {
				r, ok := l.peekRune()
				if !ok || r == '\n' {
					break
				}
				l.advance()
			}
			continue
		}
		return
	}
}

func (l *lexer) tokens() ([]token, *pkgid.Error) {
	var out []token
	for {
		l.skipTrivia()
		pos := l.here()
		r, ok := l.peekRune()
		if !ok {
			out = append(out, token{kind: tokEOF, pos: pos})
			return out, nil
		}
		switch {
		case r == '@':
			l.advance()
			out = append(out, token{kind: tokAt, pos: pos})
		case r == '{':
			l.advance()
			out = append(out, token{kind: tokLBrace, pos: pos})
		case r == '}':
			l.advance()
			out = append(out, token{kind: tokRBrace, pos: pos})
		case r == '(':
			l.advance()
			out = append(out, token{kind: tokLParen, pos: pos})
		case r == ')':
			l.advance()
			out = append(out, token{kind: tokRParen, pos: pos})
		case r == ';':
			l.advance()
			out = append(out, token{kind: tokSemi, pos: pos})
		case r == ',':
			l.advance()
			out = append(out, token{kind: tokComma, pos: pos})
		case r == '=':
			l.advance()
			out = append(out, token{kind: tokEquals, pos: pos})
		case r == '$':
			l.advance()
			var sb strings.Builder
			for {
				r, ok := l.peekRune()
				if !ok || !isIdentCont(r) {
					break
				}
				sb.WriteRune(r)
				l.advance()
			}
			if sb.Len() == 0 {
				return nil, pkgid.NewParseError(pos.Row, pos.Col, "expected identifier after '$'")
			}
			out = append(out, token{kind: tokVariable, text: sb.String(), pos: pos})
		case r == '"':
			tok, err := l.lexString(pos)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
		case isIdentStart(r):
			var sb strings.Builder
			for {
				r, ok := l.peekRune()
				if !ok || !isIdentCont(r) {
					break
				}
				sb.WriteRune(r)
				l.advance()
			}
			out = append(out, token{kind: tokIdent, text: sb.String(), pos: pos})
		default:
			return nil, pkgid.NewParseError(pos.Row, pos.Col, "unexpected character '"+string(r)+"'")
		}
	}
}

func (l *lexer) lexString(start Position) (token, *pkgid.Error) {
	l.advance() // consume opening quote
	var parts []StringPart
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, StringPart{Literal: literal.String()})
			literal.Reset()
		}
	}
	for {
		r, ok := l.advance()
		if !ok {
			return token{}, pkgid.NewParseError(start.Row, start.Col, "unterminated string literal")
		}
		switch r {
		case '"':
			flush()
			return token{kind: tokString, parts: parts, pos: start}, nil
		case '\\':
			esc, ok := l.advance()
			if !ok {
				return token{}, pkgid.NewParseError(start.Row, start.Col, "unterminated escape sequence")
			}
			switch esc {
			case '"':
				literal.WriteRune('"')
			case '\\':
				literal.WriteRune('\\')
			case '$':
				literal.WriteRune('$')
			default:
				return token{}, pkgid.NewParseError(start.Row, start.Col, "invalid escape sequence '\\"+string(esc)+"'")
			}
		case '$':
			if nr, ok := l.peekRune(); ok && nr == '{' {
				l.advance()
				var name strings.Builder
				for {
					r, ok := l.peekRune()
					if !ok {
						return token{}, pkgid.NewParseError(start.Row, start.Col, "unterminated substitution")
					}
					if r == '}' {
						l.advance()
						break
					}
					name.WriteRune(r)
					l.advance()
				}
				flush()
				parts = append(parts, StringPart{VarName: name.String()})
			} else {
				literal.WriteRune('$')
			}
		default:
			literal.WriteRune(r)
		}
	}
}

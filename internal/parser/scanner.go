package parser

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/arolang/aro/internal/lang"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokString
	tokNumber
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokColon
	tokComma
	tokEquals
	tokDot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "end of line"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokColon:
		return "':'"
	case tokComma:
		return "','"
	case tokEquals:
		return "'='"
	case tokDot:
		return "'.'"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string  // ident text or raw number text
	str  string  // decoded string literal
	num  float64 // decoded number
	pos  lang.Position
}

func (t token) describe() string {
	switch t.kind {
	case tokIdent:
		return fmt.Sprintf("'%s'", t.text)
	case tokString:
		return fmt.Sprintf("%q", t.str)
	case tokNumber:
		return fmt.Sprintf("number %s", t.text)
	default:
		return t.kind.String()
	}
}

// scanner turns source text into a token stream, tracking line and column
// for diagnostics. Newlines are significant: they terminate statements.
type scanner struct {
	file string
	src  []rune
	off  int
	line int
	col  int
}

func newScanner(file, src string) *scanner {
	return &scanner{file: file, src: []rune(src), line: 1, col: 1}
}

func (s *scanner) pos() lang.Position {
	return lang.Position{File: s.file, Line: s.line, Column: s.col}
}

func (s *scanner) peek() rune {
	if s.off >= len(s.src) {
		return 0
	}
	return s.src[s.off]
}

func (s *scanner) advance() rune {
	r := s.src[s.off]
	s.off++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

// next returns the next token. Comments (// to end of line) are skipped;
// the newline that ends them is still reported.
func (s *scanner) next() (token, error) {
	for s.off < len(s.src) {
		r := s.peek()
		if r == ' ' || r == '\t' || r == '\r' {
			s.advance()
			continue
		}
		if r == '/' && s.off+1 < len(s.src) && s.src[s.off+1] == '/' {
			for s.off < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
			continue
		}
		break
	}
	if s.off >= len(s.src) {
		return token{kind: tokEOF, pos: s.pos()}, nil
	}

	pos := s.pos()
	r := s.peek()
	switch {
	case r == '\n':
		s.advance()
		return token{kind: tokNewline, pos: pos}, nil
	case r == '{':
		s.advance()
		return token{kind: tokLBrace, pos: pos}, nil
	case r == '}':
		s.advance()
		return token{kind: tokRBrace, pos: pos}, nil
	case r == '[':
		s.advance()
		return token{kind: tokLBracket, pos: pos}, nil
	case r == ']':
		s.advance()
		return token{kind: tokRBracket, pos: pos}, nil
	case r == ':':
		s.advance()
		return token{kind: tokColon, pos: pos}, nil
	case r == ',':
		s.advance()
		return token{kind: tokComma, pos: pos}, nil
	case r == '=':
		s.advance()
		return token{kind: tokEquals, pos: pos}, nil
	case r == '.':
		s.advance()
		return token{kind: tokDot, pos: pos}, nil
	case r == '"':
		return s.scanString(pos)
	case unicode.IsDigit(r) || (r == '-' && s.off+1 < len(s.src) && unicode.IsDigit(s.src[s.off+1])):
		return s.scanNumber(pos)
	case unicode.IsLetter(r) || r == '_':
		return s.scanIdent(pos), nil
	}
	return token{}, &ParseError{Pos: pos, Expected: "a statement, name, or literal", Got: fmt.Sprintf("character %q", r)}
}

func (s *scanner) scanString(pos lang.Position) (token, error) {
	s.advance() // opening quote
	var out []rune
	for s.off < len(s.src) {
		r := s.advance()
		switch r {
		case '"':
			return token{kind: tokString, str: string(out), pos: pos}, nil
		case '\n':
			return token{}, &ParseError{Pos: pos, Expected: "closing '\"' before end of line", Got: "unterminated string"}
		case '\\':
			if s.off >= len(s.src) {
				break
			}
			esc := s.advance()
			switch esc {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '"', '\\':
				out = append(out, esc)
			default:
				return token{}, &ParseError{Pos: pos, Expected: "a valid escape (\\n, \\t, \\\", \\\\)", Got: fmt.Sprintf("'\\%c'", esc)}
			}
		default:
			out = append(out, r)
		}
	}
	return token{}, &ParseError{Pos: pos, Expected: "closing '\"'", Got: "end of file"}
}

func (s *scanner) scanNumber(pos lang.Position) (token, error) {
	var out []rune
	if s.peek() == '-' {
		out = append(out, s.advance())
	}
	for s.off < len(s.src) && (unicode.IsDigit(s.peek()) || s.peek() == '.') {
		// A dot only belongs to the number when a digit follows; otherwise it
		// starts a qualifier path (e.g. repository.0.total).
		if s.peek() == '.' {
			if s.off+1 >= len(s.src) || !unicode.IsDigit(s.src[s.off+1]) {
				break
			}
			if containsDot(out) {
				break
			}
		}
		out = append(out, s.advance())
	}
	text := string(out)
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, &ParseError{Pos: pos, Expected: "a number", Got: fmt.Sprintf("'%s'", text)}
	}
	return token{kind: tokNumber, text: text, num: num, pos: pos}, nil
}

func containsDot(rs []rune) bool {
	for _, r := range rs {
		if r == '.' {
			return true
		}
	}
	return false
}

func (s *scanner) scanIdent(pos lang.Position) token {
	var out []rune
	for s.off < len(s.src) {
		r := s.peek()
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			out = append(out, s.advance())
			continue
		}
		break
	}
	return token{kind: tokIdent, text: string(out), pos: pos}
}

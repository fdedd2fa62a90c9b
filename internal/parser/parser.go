// Package parser converts ARO source text into feature-set and statement
// trees, and enforces the program-level structural invariants after all
// units are loaded.
package parser

import (
	"fmt"

	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/value"
)

// prepositions valid in the object position of a statement.
var prepositions = map[string]bool{
	"from": true,
	"to":   true,
	"into": true,
	"with": true,
	"of":   true,
	"at":   true,
}

type parser struct {
	sc  *scanner
	tok token
}

// ParseUnit parses one source unit into its feature sets. The file name is
// carried into every position for diagnostics.
func ParseUnit(file, src string) ([]*lang.FeatureSet, error) {
	p := &parser{sc: newScanner(file, src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var sets []*lang.FeatureSet
	for {
		p.skipNewlines()
		if p.tok.kind == tokEOF {
			return sets, nil
		}
		fs, err := p.parseFeatureSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, fs)
	}
}

func (p *parser) advance() error {
	tok, err := p.sc.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) skipNewlines() {
	for p.tok.kind == tokNewline {
		if err := p.advance(); err != nil {
			return
		}
	}
}

func (p *parser) fail(expected string) error {
	return &ParseError{Pos: p.tok.pos, Expected: expected, Got: p.tok.describe()}
}

func (p *parser) expect(kind tokenKind, expected string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.fail(expected)
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) atKeyword(word string) bool {
	return p.tok.kind == tokIdent && p.tok.text == word
}

func (p *parser) parseFeatureSet() (*lang.FeatureSet, error) {
	pos := p.tok.pos
	if !p.atKeyword("feature-set") {
		return nil, p.fail("'feature-set'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	name, err := p.expect(tokString, "a quoted feature-set name")
	if err != nil {
		return nil, err
	}

	fs := &lang.FeatureSet{Name: name.str, Pos: pos}

	if p.atKeyword("for") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		activity, err := p.expect(tokString, "a quoted business-activity label")
		if err != nil {
			return nil, err
		}
		fs.Activity = activity.str
	}

	if p.atKeyword("when") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		guard, err := p.parseGuard()
		if err != nil {
			return nil, err
		}
		fs.Guard = guard
	}

	if _, err := p.expect(tokLBrace, "'{' opening the feature set"); err != nil {
		return nil, err
	}

	for {
		p.skipNewlines()
		if p.tok.kind == tokRBrace {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return fs, nil
		}
		if p.tok.kind == tokEOF {
			return nil, p.fail(fmt.Sprintf("'}' closing feature set %q", fs.Name))
		}
		stmt, err := p.parseStatement(len(fs.Statements))
		if err != nil {
			return nil, err
		}
		fs.Statements = append(fs.Statements, stmt)
	}
}

func (p *parser) parseGuard() (*lang.StateGuard, error) {
	guard := &lang.StateGuard{}
	for {
		field, err := p.expect(tokIdent, "a guard field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokEquals, "'=' in the state guard"); err != nil {
			return nil, err
		}
		clause := lang.GuardClause{Field: field.text}
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			clause.Values = append(clause.Values, lit)
			if p.tok.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		guard.Clauses = append(guard.Clauses, clause)
		if !p.atKeyword("and") {
			return guard, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseStatement(index int) (*lang.Statement, error) {
	pos := p.tok.pos
	verb, err := p.expect(tokIdent, "a verb starting a statement")
	if err != nil {
		return nil, err
	}

	result, err := p.parseReference("a result name")
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokIdent || !prepositions[p.tok.text] {
		return nil, p.fail("a preposition (from, to, into, with, of, at)")
	}
	prep := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	stmt := &lang.Statement{
		Index:       index,
		Verb:        verb.text,
		Result:      result,
		Preposition: prep,
		Pos:         pos,
	}

	switch p.tok.kind {
	case tokString:
		lit := p.tok.str
		stmt.ObjectLiteral = &lit
		if err := p.advance(); err != nil {
			return nil, err
		}
	case tokIdent:
		obj, err := p.parseReference("an object reference")
		if err != nil {
			return nil, err
		}
		stmt.Object = obj
	default:
		return nil, p.fail("an object reference or quoted string")
	}

	for p.atKeyword("where") || p.atKeyword("with") {
		word := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if word == "where" {
			if stmt.Where != nil {
				return nil, p.fail("a single where clause per statement")
			}
			clauses, err := p.parseWhere()
			if err != nil {
				return nil, err
			}
			stmt.Where = clauses
		} else {
			if stmt.With != nil {
				return nil, p.fail("a single with clause per statement")
			}
			operand, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			stmt.With = &operand
		}
	}

	switch p.tok.kind {
	case tokNewline:
		return stmt, p.advance()
	case tokRBrace, tokEOF:
		return stmt, nil
	}
	return nil, p.fail("end of statement")
}

func (p *parser) parseWhere() ([]lang.WhereClause, error) {
	var clauses []lang.WhereClause
	for {
		field, err := p.expect(tokIdent, "a field name in the where clause")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokEquals, "'=' in the where clause"); err != nil {
			return nil, err
		}
		operand, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, lang.WhereClause{Field: field.text, Operand: operand})
		if !p.atKeyword("and") {
			return clauses, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

// parseReference reads an identifier with an optional dotted qualifier path.
func (p *parser) parseReference(expected string) (lang.Reference, error) {
	name, err := p.expect(tokIdent, expected)
	if err != nil {
		return lang.Reference{}, err
	}
	ref := lang.Reference{Name: name.text}
	for p.tok.kind == tokDot {
		if err := p.advance(); err != nil {
			return lang.Reference{}, err
		}
		switch p.tok.kind {
		case tokIdent:
			ref.Path = append(ref.Path, p.tok.text)
		case tokNumber:
			// Consecutive numeric segments scan as one number ("0.5");
			// split them back into path segments.
			for _, seg := range splitNumberPath(p.tok.text) {
				ref.Path = append(ref.Path, seg)
			}
		default:
			return lang.Reference{}, p.fail("a qualifier segment after '.'")
		}
		if err := p.advance(); err != nil {
			return lang.Reference{}, err
		}
	}
	return ref, nil
}

func splitNumberPath(text string) value.Path {
	var segs value.Path
	start := 0
	for i, r := range text {
		if r == '.' {
			segs = append(segs, text[start:i])
			start = i + 1
		}
	}
	return append(segs, text[start:])
}

// parseOperand reads a literal or a reference.
func (p *parser) parseOperand() (lang.Operand, error) {
	switch {
	case p.tok.kind == tokIdent && p.tok.text != "true" && p.tok.text != "false":
		ref, err := p.parseReference("a reference")
		if err != nil {
			return lang.Operand{}, err
		}
		return lang.Operand{Ref: &ref}, nil
	default:
		lit, err := p.parseLiteral()
		if err != nil {
			return lang.Operand{}, err
		}
		return lang.Operand{Literal: lit}, nil
	}
}

// parseLiteral reads a literal value: string, number, bool, object, or list.
func (p *parser) parseLiteral() (any, error) {
	switch p.tok.kind {
	case tokString:
		v := p.tok.str
		return v, p.advance()
	case tokNumber:
		v := p.tok.num
		return v, p.advance()
	case tokIdent:
		switch p.tok.text {
		case "true":
			return true, p.advance()
		case "false":
			return false, p.advance()
		}
		return nil, p.fail("a literal value")
	case tokLBrace:
		return p.parseObjectLiteral()
	case tokLBracket:
		return p.parseListLiteral()
	}
	return nil, p.fail("a literal value")
}

func (p *parser) parseObjectLiteral() (any, error) {
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	obj := make(map[string]any)
	p.skipNewlines()
	for p.tok.kind != tokRBrace {
		var key string
		switch p.tok.kind {
		case tokIdent:
			key = p.tok.text
		case tokString:
			key = p.tok.str
		default:
			return nil, p.fail("an object key")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':' after the object key"); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		obj[key] = val
		p.skipNewlines()
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			p.skipNewlines()
		}
	}
	return obj, p.advance() // consume '}'
}

func (p *parser) parseListLiteral() (any, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	list := []any{}
	p.skipNewlines()
	for p.tok.kind != tokRBracket {
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		list = append(list, val)
		p.skipNewlines()
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			p.skipNewlines()
		}
	}
	return list, p.advance() // consume ']'
}

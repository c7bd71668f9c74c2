package server

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
)

// --------------------------------------------------------------------------
// Tokenizer
// --------------------------------------------------------------------------

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case r == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case r == '\'':
			var sb strings.Builder
			start := i
			i++
			for {
				if i >= len(runes) {
					return nil, errs.Newf(errs.CodeQuery, "unterminated string at %d in %q", start, expr)
				}
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			tokens = append(tokens, token{tokString, sb.String(), start})
		case strings.ContainsRune("=!<>", r):
			start := i
			i++
			if i < len(runes) && strings.ContainsRune("=>", runes[i]) {
				i++
			}
			op := string(runes[start:i])
			switch op {
			case "=", "==", "!=", "<>", "<", "<=", ">", ">=":
			default:
				return nil, errs.Newf(errs.CodeQuery, "unknown operator %q at %d in %q", op, start, expr)
			}
			tokens = append(tokens, token{tokOp, op, start})
		case unicode.IsDigit(r) || (r == '-' || r == '.') && i+1 < len(runes) && unicode.IsDigit(runes[i+1]):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || strings.ContainsRune(".eE", runes[i]) ||
				(runes[i] == '-' || runes[i] == '+') && (runes[i-1] == 'e' || runes[i-1] == 'E')) {
				i++
			}
			tokens = append(tokens, token{tokNumber, string(runes[start:i]), start})
		case unicode.IsLetter(r) || r == '_' || r == '$':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || strings.ContainsRune("_$.", runes[i])) {
				i++
			}
			tokens = append(tokens, token{tokIdent, string(runes[start:i]), start})
		default:
			return nil, errs.Newf(errs.CodeQuery, "unexpected character %q at %d in %q", r, i, expr)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// sqlParser is a recursive descent parser for the sql predicate dialect:
//
//	expr      = and { OR and }
//	and       = not { AND not }
//	not       = NOT not | primary
//	primary   = "(" expr ")" | TRUE | FALSE | condition
//	condition = attr op literal
//	          | attr [NOT] BETWEEN literal AND literal
//	          | attr [NOT] IN "(" literal { "," literal } ")"
//	          | attr [NOT] (LIKE | ILIKE | REGEX) string
type sqlParser struct {
	expr   string
	tokens []token
	pos    int
}

// parseSQL parses a sql expression into a predicate tree
func parseSQL(expr string) (predicate.Predicate, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &sqlParser{expr: expr, tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, errs.New(errs.CodeQuery, "empty sql expression")
	}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return pred, nil
}

func (p *sqlParser) peek() token {
	return p.tokens[p.pos]
}

func (p *sqlParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// keyword consumes the next token if it is the keyword kw
func (p *sqlParser) keyword(kw string) bool {
	if t := p.peek(); t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *sqlParser) unexpected(t token) error {
	if t.kind == tokEOF {
		return errs.Newf(errs.CodeQuery, "unexpected end of %q", p.expr)
	}
	return errs.Newf(errs.CodeQuery, "unexpected %q at %d in %q", t.text, t.pos, p.expr)
}

func (p *sqlParser) parseOr() (predicate.Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = predicate.Or(left, right)
	}
	return left, nil
}

func (p *sqlParser) parseAnd() (predicate.Predicate, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = predicate.And(left, right)
	}
	return left, nil
}

func (p *sqlParser) parseNot() (predicate.Predicate, error) {
	if p.keyword("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return predicate.Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *sqlParser) parsePrimary() (predicate.Predicate, error) {
	t := p.peek()
	switch {
	case t.kind == tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, p.unexpected(t)
		}
		return inner, nil
	case p.keyword("true"):
		return predicate.True(), nil
	case p.keyword("false"):
		return predicate.False(), nil
	case t.kind == tokIdent:
		return p.parseCondition()
	default:
		return nil, p.unexpected(t)
	}
}

func (p *sqlParser) parseCondition() (predicate.Predicate, error) {
	attr := p.next().text

	if t := p.peek(); t.kind == tokOp {
		p.next()
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		switch t.text {
		case "=", "==":
			return predicate.Equal(attr, value), nil
		case "!=", "<>":
			return predicate.NotEqual(attr, value), nil
		case "<":
			return predicate.LessThan(attr, value), nil
		case "<=":
			return predicate.LessEqual(attr, value), nil
		case ">":
			return predicate.GreaterThan(attr, value), nil
		default:
			return predicate.GreaterEqual(attr, value), nil
		}
	}

	negate := p.keyword("not")
	var pred predicate.Predicate
	switch {
	case p.keyword("between"):
		from, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if !p.keyword("and") {
			return nil, p.unexpected(p.peek())
		}
		to, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		pred = predicate.Between(attr, from, to)
	case p.keyword("in"):
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		pred = predicate.In(attr, values...)
	case p.keyword("like"):
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		pred = predicate.Like(attr, s)
	case p.keyword("ilike"):
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		pred = predicate.ILike(attr, s)
	case p.keyword("regex"):
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		pred = predicate.Regex(attr, s)
	default:
		return nil, p.unexpected(p.peek())
	}

	if negate {
		return predicate.Not(pred), nil
	}
	return pred, nil
}

func (p *sqlParser) parseList() ([]interface{}, error) {
	if t := p.next(); t.kind != tokLParen {
		return nil, p.unexpected(t)
	}
	var values []interface{}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		switch t := p.next(); t.kind {
		case tokComma:
		case tokRParen:
			return values, nil
		default:
			return nil, p.unexpected(t)
		}
	}
}

func (p *sqlParser) parseString() (string, error) {
	t := p.next()
	if t.kind != tokString {
		return "", p.unexpected(t)
	}
	return t.text, nil
}

func (p *sqlParser) parseLiteral() (interface{}, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errs.Newf(errs.CodeQuery, "invalid number %q at %d in %q", t.text, t.pos, p.expr)
		}
		return f, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
	}
	return nil, p.unexpected(t)
}

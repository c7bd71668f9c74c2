package server

import (
	"regexp"
	"strings"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
)

// queryEntry is a stored entry with its decoded key and value
type queryEntry struct {
	keyData   serialization.Data
	valueData serialization.Data
	key       interface{}
	value     interface{}
}

// attribute resolves an attribute path against the entry. "this" is the
// value and "__key" the key, other names are looked up on the value.
func (e *queryEntry) attribute(name string) (interface{}, error) {
	target, path := e.value, name
	switch {
	case name == "" || name == "this":
		return e.value, nil
	case name == "__key":
		return e.key, nil
	case strings.HasPrefix(name, "__key."):
		target, path = e.key, name[len("__key."):]
	case strings.HasPrefix(name, "this."):
		path = name[len("this."):]
	}

	x, ok := target.(predicate.Extractable)
	if !ok {
		return nil, errs.Newf(errs.CodeQuery, "unknown attribute %q on %T", name, target)
	}
	v, ok := x.Attribute(path)
	if !ok {
		return nil, errs.Newf(errs.CodeQuery, "unknown attribute %q on %T", name, target)
	}
	return v, nil
}

// matcher evaluates a compiled predicate against one entry
type matcher func(e *queryEntry) (bool, error)

func matchAll(*queryEntry) (bool, error) { return true, nil }

// compile turns a predicate tree into a matcher. Patterns and sql
// expressions are parsed here so that malformed queries fail before the scan.
func compile(p predicate.Predicate) (matcher, error) {
	switch p := p.(type) {
	case nil:
		return matchAll, nil
	case *predicate.TruePredicate:
		return matchAll, nil
	case *predicate.FalsePredicate:
		return func(*queryEntry) (bool, error) { return false, nil }, nil
	case *predicate.SqlPredicate:
		parsed, err := parseSQL(p.Expression)
		if err != nil {
			return nil, err
		}
		return compile(parsed)

	case *predicate.EqualPredicate:
		return attributeMatcher(p.Attribute, func(v interface{}) bool {
			return equalValues(v, p.Value)
		}), nil
	case *predicate.NotEqualPredicate:
		return attributeMatcher(p.Attribute, func(v interface{}) bool {
			return !equalValues(v, p.Value)
		}), nil
	case *predicate.GreaterLessPredicate:
		return attributeMatcher(p.Attribute, func(v interface{}) bool {
			c, ok := compareValues(v, p.Value)
			switch {
			case !ok:
				return false
			case p.Equal && c == 0:
				return true
			case p.Less:
				return c < 0
			default:
				return c > 0
			}
		}), nil
	case *predicate.BetweenPredicate:
		return attributeMatcher(p.Attribute, func(v interface{}) bool {
			lo, ok1 := compareValues(v, p.From)
			hi, ok2 := compareValues(v, p.To)
			return ok1 && ok2 && lo >= 0 && hi <= 0
		}), nil
	case *predicate.InPredicate:
		return attributeMatcher(p.Attribute, func(v interface{}) bool {
			for _, candidate := range p.Values {
				if equalValues(v, candidate) {
					return true
				}
			}
			return false
		}), nil

	case *predicate.LikePredicate:
		re, err := likePattern(p.Expression, false)
		if err != nil {
			return nil, err
		}
		return regexMatcher(p.Attribute, re), nil
	case *predicate.ILikePredicate:
		re, err := likePattern(p.Expression, true)
		if err != nil {
			return nil, err
		}
		return regexMatcher(p.Attribute, re), nil
	case *predicate.RegexPredicate:
		re, err := regexp.Compile(`^(?:` + p.Regex + `)$`)
		if err != nil {
			return nil, errs.Wrap(errs.CodeQuery, err, "invalid regex")
		}
		return regexMatcher(p.Attribute, re), nil
	case *predicate.InstanceOfPredicate:
		return func(e *queryEntry) (bool, error) {
			return serialization.ClassName(e.valueData.TypeID()) == p.ClassName, nil
		}, nil

	case *predicate.AndPredicate:
		children, err := compileAll(p.Predicates)
		if err != nil {
			return nil, err
		}
		return func(e *queryEntry) (bool, error) {
			for _, child := range children {
				if ok, err := child(e); err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		}, nil
	case *predicate.OrPredicate:
		children, err := compileAll(p.Predicates)
		if err != nil {
			return nil, err
		}
		return func(e *queryEntry) (bool, error) {
			for _, child := range children {
				if ok, err := child(e); err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}, nil
	case *predicate.NotPredicate:
		child, err := compile(p.Predicate)
		if err != nil {
			return nil, err
		}
		return func(e *queryEntry) (bool, error) {
			ok, err := child(e)
			return !ok && err == nil, err
		}, nil

	case *predicate.PagingPredicate:
		return nil, errs.New(errs.CodeQuery, "paging predicates cannot be nested")
	default:
		return nil, errs.Newf(errs.CodeQuery, "unsupported predicate %T", p)
	}
}

func compileAll(predicates []predicate.Predicate) ([]matcher, error) {
	out := make([]matcher, 0, len(predicates))
	for _, p := range predicates {
		m, err := compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func attributeMatcher(attribute string, test func(v interface{}) bool) matcher {
	return func(e *queryEntry) (bool, error) {
		v, err := e.attribute(attribute)
		if err != nil {
			return false, err
		}
		return test(v), nil
	}
}

// regexMatcher matches string attributes, any other value does not match
func regexMatcher(attribute string, re *regexp.Regexp) matcher {
	return attributeMatcher(attribute, func(v interface{}) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	})
}

// likePattern converts a LIKE expression to a regular expression. % matches
// any sequence, _ one character and \ escapes the next character.
func likePattern(expression string, ignoreCase bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?s)")
	if ignoreCase {
		sb.WriteString("(?i)")
	}
	sb.WriteString("^")

	escaped := false
	for _, r := range expression {
		switch {
		case escaped:
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, errs.Newf(errs.CodeQuery, "like expression %q ends with an escape", expression)
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errs.Wrap(errs.CodeQuery, err, "invalid like expression")
	}
	return re, nil
}

// --------------------------------------------------------------------------
// Scan
// --------------------------------------------------------------------------

// scan returns the entries of map name matching pred. Members share the
// record stores of their cluster, so one member answers for all partitions.
func (m *Member) scan(name string, pred predicate.Predicate) ([]*queryEntry, error) {
	match, err := compile(pred)
	if err != nil {
		return nil, err
	}

	var out []*queryEntry
	var failure error
	m.cluster.recordStore(name).Range(func(_ int32, key, value serialization.Data) bool {
		e := &queryEntry{keyData: key, valueData: value}
		if e.key, failure = m.ser.ToObject(key); failure != nil {
			return false
		}
		if e.value, failure = m.ser.ToObject(value); failure != nil {
			return false
		}
		ok, err := match(e)
		if err != nil {
			failure = err
			return false
		}
		if ok {
			out = append(out, e)
		}
		return true
	})
	return out, failure
}

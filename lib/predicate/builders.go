package predicate

// Sql wraps an expression that is parsed and evaluated by the cluster. The
// client does not validate it.
func Sql(expression string) Predicate {
	return &SqlPredicate{Expression: expression}
}

// And matches when all predicates match. It panics on a nil operand.
func And(predicates ...Predicate) Predicate {
	mustNotBeNil("and", predicates...)
	return &AndPredicate{Predicates: predicates}
}

// Or matches when any predicate matches. It panics on a nil operand.
func Or(predicates ...Predicate) Predicate {
	mustNotBeNil("or", predicates...)
	return &OrPredicate{Predicates: predicates}
}

// Not negates p. It panics if p is nil.
func Not(p Predicate) Predicate {
	mustNotBeNil("not", p)
	return &NotPredicate{Predicate: p}
}

func Equal(attribute string, value interface{}) Predicate {
	return &EqualPredicate{Attribute: attribute, Value: value}
}

func NotEqual(attribute string, value interface{}) Predicate {
	return &NotEqualPredicate{Attribute: attribute, Value: value}
}

func GreaterThan(attribute string, value interface{}) Predicate {
	return &GreaterLessPredicate{Attribute: attribute, Value: value}
}

func GreaterEqual(attribute string, value interface{}) Predicate {
	return &GreaterLessPredicate{Attribute: attribute, Value: value, Equal: true}
}

func LessThan(attribute string, value interface{}) Predicate {
	return &GreaterLessPredicate{Attribute: attribute, Value: value, Less: true}
}

func LessEqual(attribute string, value interface{}) Predicate {
	return &GreaterLessPredicate{Attribute: attribute, Value: value, Equal: true, Less: true}
}

// Between matches from <= attribute <= to.
func Between(attribute string, from, to interface{}) Predicate {
	return &BetweenPredicate{Attribute: attribute, From: from, To: to}
}

func In(attribute string, values ...interface{}) Predicate {
	return &InPredicate{Attribute: attribute, Values: values}
}

// Like uses % for any sequence and _ for a single character.
func Like(attribute, expression string) Predicate {
	return &LikePredicate{Attribute: attribute, Expression: expression}
}

func ILike(attribute, expression string) Predicate {
	return &ILikePredicate{Attribute: attribute, Expression: expression}
}

// Regex matches when the whole attribute value matches regex.
func Regex(attribute, regex string) Predicate {
	return &RegexPredicate{Attribute: attribute, Regex: regex}
}

// InstanceOf matches values of a cluster-side class, e.g. "java.lang.Integer".
func InstanceOf(className string) Predicate {
	return &InstanceOfPredicate{ClassName: className}
}

func True() Predicate {
	return &TruePredicate{}
}

func False() Predicate {
	return &FalsePredicate{}
}

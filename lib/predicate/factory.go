package predicate

import "github.com/dgrid/dgrid/lib/serialization"

// Factory creates zero predicates by class id.
func Factory(classID int32) serialization.IdentifiedDataSerializable {
	switch classID {
	case SqlClassID:
		return &SqlPredicate{}
	case AndClassID:
		return &AndPredicate{}
	case BetweenClassID:
		return &BetweenPredicate{}
	case EqualClassID:
		return &EqualPredicate{}
	case GreaterLessClassID:
		return &GreaterLessPredicate{}
	case LikeClassID:
		return &LikePredicate{}
	case ILikeClassID:
		return &ILikePredicate{}
	case InClassID:
		return &InPredicate{}
	case InstanceOfClassID:
		return &InstanceOfPredicate{}
	case NotEqualClassID:
		return &NotEqualPredicate{}
	case NotClassID:
		return &NotPredicate{}
	case OrClassID:
		return &OrPredicate{}
	case RegexClassID:
		return &RegexPredicate{}
	case FalseClassID:
		return &FalsePredicate{}
	case TrueClassID:
		return &TruePredicate{}
	case PagingClassID:
		return &PagingPredicate{}
	}
	return nil
}

// Register adds the predicate factory to a serialization service.
func Register(s *serialization.Service) error {
	return s.RegisterFactory(FactoryID, Factory)
}

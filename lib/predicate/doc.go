// Package predicate provides the query predicates the grid client sends to
// the cluster, the comparators that order query results, and the paging
// predicate that walks a result set one page at a time.
//
// Predicates are a closed set of variants. Every variant is an
// identified data serializable value of the predicate factory (id -20) with a
// fixed class id; adding a variant means touching the class id table and the
// factory, which keeps the wire tag table exhaustive.
//
// Building predicates:
//
//	p := predicate.And(
//		predicate.GreaterEqual("this", int32(10)),
//		predicate.Not(predicate.Equal("this", int32(12))),
//	)
//
// Passing a nil operand to And, Or or Not is a programming error and panics.
//
// Paging:
//
//	paging := predicate.Paging(predicate.GreaterEqual("this", int32(40)), 2, nil)
//	values, _ := m.ValuesWithPredicate(ctx, paging) // page 0
//	paging.NextPage()
//	values, _ = m.ValuesWithPredicate(ctx, paging) // page 1
//
// A PagingPredicate is stateful and mutated in place by the navigation
// methods and by the queries executed with it. It must not be shared between
// concurrent queries without external synchronization.
package predicate

// Package aggregator provides the server-side aggregations of the grid
// client. Aggregators are identified data serializable values of factory -29;
// the cluster runs them over the matching entries and returns a single
// result.
//
//	count, err := m.Aggregate(ctx, aggregator.Count())
//	avg, err := m.AggregateWithPredicate(ctx, aggregator.DoubleAvg("price"), predicate.Equal("active", true))
//
// An empty attribute path aggregates the entry value itself.
package aggregator

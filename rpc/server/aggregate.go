package server

import (
	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// aggregate runs agg over the matched entries. Averages, Max and Min of an
// empty input are nil. Null attribute values are skipped by every kind but
// Count.
func aggregate(ser *serialization.Service, agg aggregator.Aggregator, entries []*queryEntry) (interface{}, error) {
	if agg.Kind() == aggregator.KindCount {
		return int64(len(entries)), nil
	}

	values := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		v, err := e.attribute(agg.AttributePath())
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}

	switch agg.Kind() {
	case aggregator.KindDistinct:
		seen := make(map[string]struct{}, len(values))
		out := make([]interface{}, 0)
		for _, v := range values {
			data, err := ser.ToData(v)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[data.Identity()]; !dup {
				seen[data.Identity()] = struct{}{}
				out = append(out, v)
			}
		}
		return out, nil

	case aggregator.KindDoubleAvg, aggregator.KindIntegerAvg, aggregator.KindLongAvg, aggregator.KindNumberAvg:
		if len(values) == 0 {
			return nil, nil
		}
		var sum float64
		for _, v := range values {
			_, f, _, err := numeric(agg, v)
			if err != nil {
				return nil, err
			}
			sum += f
		}
		return sum / float64(len(values)), nil

	case aggregator.KindDoubleSum, aggregator.KindFloatingPointSum:
		var sum float64
		for _, v := range values {
			_, f, _, err := numeric(agg, v)
			if err != nil {
				return nil, err
			}
			sum += f
		}
		return sum, nil

	case aggregator.KindFixedPointSum, aggregator.KindIntegerSum, aggregator.KindLongSum:
		var sum int64
		for _, v := range values {
			i, _, isInt, err := numeric(agg, v)
			if err != nil {
				return nil, err
			}
			if !isInt && agg.Kind() != aggregator.KindFixedPointSum {
				return nil, errs.Newf(errs.CodeQuery, "%s needs integral values, got %T", agg.Kind(), v)
			}
			sum += i
		}
		return sum, nil

	case aggregator.KindMax, aggregator.KindMin:
		var best interface{}
		for _, v := range values {
			if best == nil {
				best = v
				continue
			}
			c, ok := compareValues(v, best)
			if !ok {
				return nil, errs.Newf(errs.CodeQuery, "%s cannot compare %T with %T", agg.Kind(), v, best)
			}
			if (agg.Kind() == aggregator.KindMax && c > 0) || (agg.Kind() == aggregator.KindMin && c < 0) {
				best = v
			}
		}
		return best, nil
	}
	return nil, errs.Newf(errs.CodeQuery, "unsupported aggregator %s", agg.Kind())
}

func numeric(agg aggregator.Aggregator, v interface{}) (int64, float64, bool, error) {
	i, f, isInt, ok := number(v)
	if !ok {
		return 0, 0, false, errs.Newf(errs.CodeQuery, "%s needs numeric values, got %T", agg.Kind(), v)
	}
	return i, f, isInt, nil
}

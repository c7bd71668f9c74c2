package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
)

// reverseComparator orders entries by descending value
type reverseComparator struct{}

func (reverseComparator) FactoryID() int32                                { return 66 }
func (reverseComparator) ClassID() int32                                  { return 1 }
func (reverseComparator) WriteData(*serialization.ObjectDataOutput) error { return nil }
func (reverseComparator) ReadData(*serialization.ObjectDataInput) error   { return nil }
func (reverseComparator) Compare(a, b predicate.Entry) int {
	c, _ := compareValues(b.Value, a.Value)
	return c
}

// person exposes attributes to queries
type person struct {
	name string
	age  int32
}

func (p person) Attribute(name string) (interface{}, bool) {
	switch name {
	case "name":
		return p.name, true
	case "age":
		return p.age, true
	}
	return nil, false
}

func newEntry(t *testing.T, ser *serialization.Service, key, value interface{}) *queryEntry {
	t.Helper()
	e := &queryEntry{key: key, value: value}
	var err error
	e.keyData, err = ser.ToData(key)
	require.NoError(t, err)
	if _, ok := value.(person); ok {
		e.valueData = serialization.Data{0, 0, 0, 0, 0, 0, 0, 0}
		return e
	}
	e.valueData, err = ser.ToData(value)
	require.NoError(t, err)
	return e
}

// numbers returns the entries key0..keyN-1 holding float64(i)
func numbers(t *testing.T, n int) []*queryEntry {
	ser := serialization.NewService()
	out := make([]*queryEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, newEntry(t, ser, fmt.Sprintf("key%d", i), float64(i)))
	}
	return out
}

func filter(t *testing.T, p predicate.Predicate, entries []*queryEntry) []interface{} {
	t.Helper()
	match, err := compile(p)
	require.NoError(t, err)
	out := []interface{}{}
	for _, e := range entries {
		ok, err := match(e)
		require.NoError(t, err)
		if ok {
			out = append(out, e.value)
		}
	}
	return out
}

func TestParseSQL(t *testing.T) {
	testCases := map[string]predicate.Predicate{
		"this == 10":          predicate.Equal("this", int64(10)),
		"this = 'a''b'":       predicate.Equal("this", "a'b"),
		"age <> 3":            predicate.NotEqual("age", int64(3)),
		"age >= 2.5":          predicate.GreaterEqual("age", 2.5),
		"age < -1":            predicate.LessThan("age", int64(-1)),
		"active = true":       predicate.Equal("active", true),
		"x = null":            predicate.Equal("x", nil),
		"age BETWEEN 1 AND 5": predicate.Between("age", int64(1), int64(5)),
		"age not in (1, 2)":   predicate.Not(predicate.In("age", int64(1), int64(2))),
		"name LIKE 'J%'":      predicate.Like("name", "J%"),
		"name ilike 'j_'":     predicate.ILike("name", "j_"),
		"name regex '^a.*'":   predicate.Regex("name", "^a.*"),
		"true":                predicate.True(),
		"a = 1 or b = 2 and c = 3": predicate.Or(
			predicate.Equal("a", int64(1)),
			predicate.And(predicate.Equal("b", int64(2)), predicate.Equal("c", int64(3))),
		),
		"not (a = 1 or b > 2)": predicate.Not(predicate.Or(
			predicate.Equal("a", int64(1)), predicate.GreaterThan("b", int64(2)),
		)),
		"__key.id = 'x'": predicate.Equal("__key.id", "x"),
	}

	for expr, want := range testCases {
		t.Run(expr, func(t *testing.T) {
			got, err := parseSQL(expr)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseSQLErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"this ==",
		"this = 'open",
		"(a = 1",
		"a = 1 b = 2",
		"a between 1 or 2",
		"a in 1, 2",
		"a like 3",
		"a =! 3",
		"a # 3",
	} {
		_, err := parseSQL(expr)
		require.Error(t, err, expr)
		assert.True(t, errors.Is(err, errs.ErrQuery), "%q: %v", expr, err)
	}
}

func TestPredicateEvaluation(t *testing.T) {
	entries := numbers(t, 50)

	testCases := []struct {
		name string
		pred predicate.Predicate
		want []interface{}
	}{
		{"sql equal", predicate.Sql("this == 10"), []interface{}{10.0}},
		{"in", predicate.In("this", 48, 49, 50, 51, 52), []interface{}{48.0, 49.0}},
		{"between", predicate.Between("this", 3, 5), []interface{}{3.0, 4.0, 5.0}},
		{"less equal", predicate.LessEqual("this", 1), []interface{}{0.0, 1.0}},
		{"greater than", predicate.GreaterThan("this", 48.5), []interface{}{49.0}},
		{"not equal", predicate.And(predicate.LessThan("this", 3), predicate.NotEqual("this", 1)), []interface{}{0.0, 2.0}},
		{"or", predicate.Or(predicate.Equal("this", 0), predicate.Equal("this", 49)), []interface{}{0.0, 49.0}},
		{"not", predicate.Not(predicate.GreaterEqual("this", 2)), []interface{}{0.0, 1.0}},
		{"key", predicate.Equal("__key", "key7"), []interface{}{7.0}},
		{"false", predicate.False(), []interface{}{}},
		{"string against number", predicate.Equal("this", "10"), []interface{}{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, filter(t, tc.pred, entries))
		})
	}

	assert.Len(t, filter(t, predicate.InstanceOf("java.lang.Double"), entries), 50)
	assert.Empty(t, filter(t, predicate.InstanceOf("java.lang.String"), entries))
}

func TestStringPredicates(t *testing.T) {
	ser := serialization.NewService()
	entries := []*queryEntry{
		newEntry(t, ser, "a", "tempval"),
		newEntry(t, ser, "b", "TEMPVAL"),
		newEntry(t, ser, "c", "antalya"),
		newEntry(t, ser, "d", "50% off"),
		newEntry(t, ser, "e", int32(1)),
	}

	assert.Equal(t, []interface{}{"tempval"}, filter(t, predicate.Like("this", "tempv%"), entries))
	assert.Equal(t, []interface{}{"tempval", "TEMPVAL"}, filter(t, predicate.ILike("this", "tempv%"), entries))
	assert.Equal(t, []interface{}{"antalya"}, filter(t, predicate.Regex("this", "^.*ya$"), entries))
	assert.Equal(t, []interface{}{"antalya"}, filter(t, predicate.Regex("this", "ant.*"), entries))
	assert.Equal(t, []interface{}{"50% off"}, filter(t, predicate.Like("this", `50\% ___`), entries))
	assert.Equal(t, []interface{}{"tempval"}, filter(t, predicate.Sql("this like 'temp_al'"), entries))
}

func TestAttributeExtraction(t *testing.T) {
	ser := serialization.NewService()
	entries := []*queryEntry{
		newEntry(t, ser, "1", person{name: "Jane", age: 31}),
		newEntry(t, ser, "2", person{name: "John", age: 17}),
	}

	got := filter(t, predicate.Sql("age >= 18 and name like 'J%'"), entries)
	assert.Equal(t, []interface{}{person{name: "Jane", age: 31}}, got)
	got = filter(t, predicate.Equal("this.name", "John"), entries)
	assert.Equal(t, []interface{}{person{name: "John", age: 17}}, got)

	match, err := compile(predicate.Equal("height", 3))
	require.NoError(t, err)
	_, err = match(entries[0])
	assert.True(t, errors.Is(err, errs.ErrQuery))
}

func TestCompileErrors(t *testing.T) {
	for name, p := range map[string]predicate.Predicate{
		"bad regex":    predicate.Regex("this", "("),
		"bad sql":      predicate.Sql("this = "),
		"nested paged": predicate.And(predicate.Paging(nil, 2, nil)),
		"dangling esc": predicate.Like("this", `abc\`),
	} {
		_, err := compile(p)
		assert.True(t, errors.Is(err, errs.ErrQuery), "%s: %v", name, err)
	}
}

func TestAggregate(t *testing.T) {
	ser := serialization.NewService()
	all := numbers(t, 50)
	atLeast := func(n float64) []*queryEntry {
		var out []*queryEntry
		for _, e := range all {
			if e.value.(float64) >= n {
				out = append(out, e)
			}
		}
		return out
	}
	atMost := func(n float64) []*queryEntry {
		var out []*queryEntry
		for _, e := range all {
			if e.value.(float64) <= n {
				out = append(out, e)
			}
		}
		return out
	}

	testCases := []struct {
		name    string
		agg     aggregator.Aggregator
		entries []*queryEntry
		want    interface{}
	}{
		{"count", aggregator.Count(), all, int64(50)},
		{"count filtered", aggregator.Count(), atLeast(1), int64(49)},
		{"double avg", aggregator.DoubleAvg(), all, 24.5},
		{"double avg filtered", aggregator.DoubleAvg(), atLeast(47), 48.0},
		{"double sum", aggregator.DoubleSum(), all, 1225.0},
		{"double sum filtered", aggregator.DoubleSum(), atLeast(47), 144.0},
		{"floating point sum", aggregator.FloatingPointSum(), all, 1225.0},
		{"number avg", aggregator.NumberAvg(), all, 24.5},
		{"number avg filtered", aggregator.NumberAvg(), atLeast(47), 48.0},
		{"max", aggregator.Max(), all, 49.0},
		{"max filtered", aggregator.Max(), atMost(3), 3.0},
		{"min", aggregator.Min(), all, 0.0},
		{"min filtered", aggregator.Min(), atLeast(3), 3.0},
		{"fixed point sum truncates", aggregator.FixedPointSum(), atMost(3), int64(6)},
		{"empty avg", aggregator.DoubleAvg(), nil, nil},
		{"empty max", aggregator.Max(), nil, nil},
		{"empty sum", aggregator.DoubleSum(), nil, 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := aggregate(ser, tc.agg, tc.entries)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAggregateTypes(t *testing.T) {
	ser := serialization.NewService()
	ints := []*queryEntry{
		newEntry(t, ser, "a", int32(2)),
		newEntry(t, ser, "b", int32(2)),
		newEntry(t, ser, "c", int32(5)),
	}

	got, err := aggregate(ser, aggregator.IntegerSum(), ints)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)

	got, err = aggregate(ser, aggregator.IntegerAvg(), ints)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	got, err = aggregate(ser, aggregator.Distinct(), ints)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{int32(2), int32(5)}, got)

	got, err = aggregate(ser, aggregator.Max(), ints)
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	_, err = aggregate(ser, aggregator.LongSum(), numbers(t, 3))
	assert.True(t, errors.Is(err, errs.ErrQuery))

	words := []*queryEntry{newEntry(t, ser, "a", "x")}
	_, err = aggregate(ser, aggregator.DoubleSum(), words)
	assert.True(t, errors.Is(err, errs.ErrQuery))
}

func values(entries []*queryEntry) []interface{} {
	out := []interface{}{}
	for _, e := range entries {
		out = append(out, e.value)
	}
	return out
}

// runPaged runs p over the matching entries the way a client does, merging
// the returned anchors back into the predicate
func runPaged(t *testing.T, p *predicate.PagingPredicate, entries []*queryEntry) []interface{} {
	t.Helper()
	ser := serialization.NewService()
	matching, err := compile(p.Predicate())
	require.NoError(t, err)

	var in []*queryEntry
	for _, e := range entries {
		if ok, _ := matching(e); ok {
			in = append(in, e)
		}
	}
	got, anchors := page(in, p)

	decoded := make([]predicate.Anchor, 0, len(anchors))
	for _, a := range anchors {
		k, err := ser.ToObject(a.Key)
		require.NoError(t, err)
		v, err := ser.ToObject(a.Value)
		require.NoError(t, err)
		decoded = append(decoded, predicate.Anchor{Page: int(a.Page), Key: k, Value: v})
	}
	p.MergeAnchors(decoded)
	return values(got)
}

func TestPaging(t *testing.T) {
	entries := numbers(t, 50)

	p := predicate.Paging(predicate.GreaterEqual("this", 40), 2, nil)
	assert.Equal(t, []interface{}{40.0, 41.0}, runPaged(t, p, entries))
	p.NextPage()
	assert.Equal(t, []interface{}{42.0, 43.0}, runPaged(t, p, entries))

	require.NoError(t, p.SetPage(4))
	assert.Equal(t, []interface{}{48.0, 49.0}, runPaged(t, p, entries))
	p.PreviousPage()
	assert.Equal(t, []interface{}{46.0, 47.0}, runPaged(t, p, entries))

	require.NoError(t, p.SetPage(10))
	assert.Empty(t, runPaged(t, p, entries))

	p = predicate.Paging(predicate.GreaterEqual("this", 41), 2, nil)
	require.NoError(t, p.SetPage(4))
	assert.Equal(t, []interface{}{49.0}, runPaged(t, p, entries))

	p = predicate.Paging(predicate.LessThan("this", 0), 2, nil)
	assert.Empty(t, runPaged(t, p, entries))

	p = predicate.Paging(nil, 2, nil)
	assert.Equal(t, []interface{}{0.0, 1.0}, runPaged(t, p, entries))

	p = predicate.Paging(predicate.LessThan("this", 10), 3, reverseComparator{})
	assert.Equal(t, []interface{}{9.0, 8.0, 7.0}, runPaged(t, p, entries))
	p.NextPage()
	assert.Equal(t, []interface{}{6.0, 5.0, 4.0}, runPaged(t, p, entries))
}

func TestPagingAnchors(t *testing.T) {
	entries := numbers(t, 10)
	p := predicate.Paging(nil, 3, nil)
	require.NoError(t, p.SetPage(2))
	assert.Equal(t, []interface{}{6.0, 7.0, 8.0}, runPaged(t, p, entries))

	anchors := p.Anchors()
	require.Len(t, anchors, 3)
	for i, want := range []float64{2, 5, 8} {
		assert.Equal(t, i, anchors[i].Page)
		assert.Equal(t, want, anchors[i].Value)
	}

	// an anchor survives the removal of its entry
	trimmed := append(append([]*queryEntry{}, entries[:5]...), entries[6:]...)
	assert.Equal(t, []interface{}{6.0, 7.0, 8.0}, runPaged(t, p, trimmed))
}

func TestPagingByKey(t *testing.T) {
	ser := serialization.NewService()
	entries := []*queryEntry{
		newEntry(t, ser, "c", 1.0),
		newEntry(t, ser, "a", 3.0),
		newEntry(t, ser, "b", 2.0),
	}
	p := predicate.Paging(nil, 2, nil)
	p.SetIterationType(predicate.IterationKey)
	assert.Equal(t, []interface{}{3.0, 2.0}, runPaged(t, p, entries))
}

package server

import (
	"sort"

	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/rpc/common"
)

// entryOrder orders (key, value) pairs of a paged query
type entryOrder func(aKey, aValue, bKey, bValue interface{}) int

func newEntryOrder(p *predicate.PagingPredicate) entryOrder {
	byKey := func(aKey, bKey interface{}) int {
		c, _ := compareValues(aKey, bKey)
		return c
	}

	if cmp := p.Comparator(); cmp != nil {
		return func(aKey, aValue, bKey, bValue interface{}) int {
			if c := cmp.Compare(predicate.Entry{Key: aKey, Value: aValue}, predicate.Entry{Key: bKey, Value: bValue}); c != 0 {
				return c
			}
			return byKey(aKey, bKey)
		}
	}
	if p.IterationType() == predicate.IterationKey {
		return func(aKey, _, bKey, _ interface{}) int {
			return byKey(aKey, bKey)
		}
	}
	return func(aKey, aValue, bKey, bValue interface{}) int {
		if c, _ := compareValues(aValue, bValue); c != 0 {
			return c
		}
		return byKey(aKey, bKey)
	}
}

// page orders the matched entries and cuts out the requested page. It
// resumes after the nearest known anchor and returns an anchor for every
// page it passed on the way, the requested page included.
func page(entries []*queryEntry, p *predicate.PagingPredicate) ([]*queryEntry, []common.DataAnchor) {
	order := newEntryOrder(p)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		return order(a.key, a.value, b.key, b.value) < 0
	})

	start, base := 0, 0
	if anchor, ok := p.NearestAnchor(); ok {
		start = sort.Search(len(entries), func(i int) bool {
			return order(anchor.Key, anchor.Value, entries[i].key, entries[i].value) < 0
		})
		base = anchor.Page + 1
	}

	size := p.PageSize()
	var anchors []common.DataAnchor
	var result []*queryEntry
	for n := base; n <= p.Page(); n++ {
		from := start + (n-base)*size
		if from >= len(entries) {
			break
		}
		to := min(from+size, len(entries))
		last := entries[to-1]
		anchors = append(anchors, common.DataAnchor{Page: int32(n), Key: last.keyData, Value: last.valueData})
		if n == p.Page() {
			result = entries[from:to]
		}
	}
	if result == nil {
		result = []*queryEntry{}
	}
	return result, anchors
}

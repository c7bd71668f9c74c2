package imap

import (
	"context"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/predicate"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IMap is the client side view of one distributed map. Keys and values are
// any values the client's serialization service can encode. Every operation
// encodes its arguments, invokes the cluster and decodes the answer; errors
// carry an lib/errs code.
type IMap interface {
	// Name returns the name of the map in the cluster.
	Name() string
	// Get returns the value for key, nil if the key is not present.
	Get(ctx context.Context, key interface{}) (value interface{}, err error)
	// Put stores value under key and returns the previous value (nil if none).
	Put(ctx context.Context, key, value interface{}) (previous interface{}, err error)
	// PutAll stores all entries. Entries are grouped by partition and sent in parallel.
	PutAll(ctx context.Context, entries map[interface{}]interface{}) (err error)
	// Remove removes key and returns the removed value (nil if none).
	Remove(ctx context.Context, key interface{}) (previous interface{}, err error)
	// RemoveIfSame removes key only if it is mapped to value.
	RemoveIfSame(ctx context.Context, key, value interface{}) (removed bool, err error)
	// Delete removes key without returning the old value.
	Delete(ctx context.Context, key interface{}) (err error)
	// Clear removes all entries.
	Clear(ctx context.Context) (err error)
	// Size returns the number of entries.
	Size(ctx context.Context) (size int32, err error)
	// IsEmpty reports whether the map has no entries.
	IsEmpty(ctx context.Context) (empty bool, err error)
	// ContainsKey reports whether key is present.
	ContainsKey(ctx context.Context, key interface{}) (found bool, err error)
	// ContainsValue reports whether any key is mapped to value.
	ContainsValue(ctx context.Context, value interface{}) (found bool, err error)
	// ValuesWithPredicate returns the values of matching entries. A paging
	// predicate returns one page and is updated with the anchors of the result.
	ValuesWithPredicate(ctx context.Context, p predicate.Predicate) (values []interface{}, err error)
	// KeySetWithPredicate returns the keys of matching entries.
	KeySetWithPredicate(ctx context.Context, p predicate.Predicate) (keys []interface{}, err error)
	// EntrySetWithPredicate returns the matching entries.
	EntrySetWithPredicate(ctx context.Context, p predicate.Predicate) (entries []predicate.Entry, err error)
	// Aggregate runs agg over all entries.
	Aggregate(ctx context.Context, agg aggregator.Aggregator) (result interface{}, err error)
	// AggregateWithPredicate runs agg over the entries matching p.
	AggregateWithPredicate(ctx context.Context, agg aggregator.Aggregator, p predicate.Predicate) (result interface{}, err error)
	// Destroy removes the map and its data from the cluster.
	Destroy(ctx context.Context) (err error)
}

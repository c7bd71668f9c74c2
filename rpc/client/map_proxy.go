package client

import (
	"context"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/invocation"
)

// mapProxy implements imap.IMap on top of the invocation service
type mapProxy struct {
	name   string
	client *Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see imap.IMap)
// --------------------------------------------------------------------------

func (m *mapProxy) Name() string {
	return m.name
}

func (m *mapProxy) Get(ctx context.Context, key interface{}) (interface{}, error) {
	resp, err := m.invokeKey(ctx, common.MsgTMapGet, key)
	if err != nil {
		return nil, err
	}
	return m.toObject(resp.Value)
}

func (m *mapProxy) Put(ctx context.Context, key, value interface{}) (interface{}, error) {
	k, p, err := m.keyData(ctx, key)
	if err != nil {
		return nil, err
	}
	v, err := m.valueData(value)
	if err != nil {
		return nil, err
	}
	resp, err := m.invoke(ctx, common.NewMapPutRequest(m.name, k, v, p), invocation.PartitionTarget(p))
	if err != nil {
		return nil, err
	}
	return m.toObject(resp.Value)
}

func (m *mapProxy) PutAll(ctx context.Context, entries map[interface{}]interface{}) error {
	groups := make(map[int32][]common.DataEntry)
	for key, value := range entries {
		k, p, err := m.keyData(ctx, key)
		if err != nil {
			return err
		}
		v, err := m.valueData(value)
		if err != nil {
			return err
		}
		groups[p] = append(groups[p], common.DataEntry{Key: k, Value: v})
	}

	g, gctx := errgroup.WithContext(ctx)
	for p, group := range groups {
		p, group := p, group
		g.Go(func() error {
			_, err := m.invoke(gctx, common.NewMapPutAllRequest(m.name, group, p), invocation.PartitionTarget(p))
			return err
		})
	}
	return g.Wait()
}

func (m *mapProxy) Remove(ctx context.Context, key interface{}) (interface{}, error) {
	resp, err := m.invokeKey(ctx, common.MsgTMapRemove, key)
	if err != nil {
		return nil, err
	}
	return m.toObject(resp.Value)
}

func (m *mapProxy) RemoveIfSame(ctx context.Context, key, value interface{}) (bool, error) {
	k, p, err := m.keyData(ctx, key)
	if err != nil {
		return false, err
	}
	v, err := m.valueData(value)
	if err != nil {
		return false, err
	}
	resp, err := m.invoke(ctx, common.NewMapRemoveIfSameRequest(m.name, k, v, p), invocation.PartitionTarget(p))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (m *mapProxy) Delete(ctx context.Context, key interface{}) error {
	_, err := m.invokeKey(ctx, common.MsgTMapDelete, key)
	return err
}

func (m *mapProxy) Clear(ctx context.Context) error {
	_, err := m.invoke(ctx, common.NewMapRequest(common.MsgTMapClear, m.name), invocation.AnyTarget())
	return err
}

func (m *mapProxy) Size(ctx context.Context) (int32, error) {
	resp, err := m.invoke(ctx, common.NewMapRequest(common.MsgTMapSize, m.name), invocation.AnyTarget())
	if err != nil {
		return 0, err
	}
	return int32(resp.Num), nil
}

func (m *mapProxy) IsEmpty(ctx context.Context) (bool, error) {
	resp, err := m.invoke(ctx, common.NewMapRequest(common.MsgTMapIsEmpty, m.name), invocation.AnyTarget())
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (m *mapProxy) ContainsKey(ctx context.Context, key interface{}) (bool, error) {
	resp, err := m.invokeKey(ctx, common.MsgTMapContainsKey, key)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (m *mapProxy) ContainsValue(ctx context.Context, value interface{}) (bool, error) {
	v, err := m.valueData(value)
	if err != nil {
		return false, err
	}
	resp, err := m.invoke(ctx, common.NewMapContainsValueRequest(m.name, v), invocation.AnyTarget())
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (m *mapProxy) ValuesWithPredicate(ctx context.Context, p predicate.Predicate) ([]interface{}, error) {
	resp, err := m.query(ctx, p, common.MsgTMapValuesWithPredicate, common.MsgTMapValuesWithPagingPredicate, predicate.IterationValue)
	if err != nil {
		return nil, err
	}
	return m.toObjects(resp.Values)
}

func (m *mapProxy) KeySetWithPredicate(ctx context.Context, p predicate.Predicate) ([]interface{}, error) {
	resp, err := m.query(ctx, p, common.MsgTMapKeySetWithPredicate, common.MsgTMapKeySetWithPagingPredicate, predicate.IterationKey)
	if err != nil {
		return nil, err
	}
	return m.toObjects(resp.Values)
}

func (m *mapProxy) EntrySetWithPredicate(ctx context.Context, p predicate.Predicate) ([]predicate.Entry, error) {
	resp, err := m.query(ctx, p, common.MsgTMapEntriesWithPredicate, common.MsgTMapEntriesWithPagingPredicate, predicate.IterationEntry)
	if err != nil {
		return nil, err
	}
	entries := make([]predicate.Entry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		var entry predicate.Entry
		if entry.Key, err = m.toObject(e.Key); err != nil {
			return nil, err
		}
		if entry.Value, err = m.toObject(e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *mapProxy) Aggregate(ctx context.Context, agg aggregator.Aggregator) (interface{}, error) {
	return m.aggregate(ctx, agg, nil)
}

func (m *mapProxy) AggregateWithPredicate(ctx context.Context, agg aggregator.Aggregator, p predicate.Predicate) (interface{}, error) {
	if isNil(p) {
		return nil, errs.New(errs.CodeIllegalState, "predicate must not be nil")
	}
	if _, paging := p.(*predicate.PagingPredicate); paging {
		return nil, errs.New(errs.CodeIllegalArgument, "paging predicates cannot be used with aggregations")
	}
	return m.aggregate(ctx, agg, p)
}

func (m *mapProxy) Destroy(ctx context.Context) error {
	_, err := m.invoke(ctx, common.NewDestroyProxyRequest(m.name), invocation.AnyTarget())
	if err != nil {
		return err
	}
	m.client.proxies.Delete(m.name)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *mapProxy) invoke(ctx context.Context, req *common.Message, target invocation.Target) (*common.Message, error) {
	return m.client.invocation.Invoke(ctx, req, target)
}

// invokeKey sends a request that carries only a key to the partition of the key
func (m *mapProxy) invokeKey(ctx context.Context, t common.MessageType, key interface{}) (*common.Message, error) {
	k, p, err := m.keyData(ctx, key)
	if err != nil {
		return nil, err
	}
	return m.invoke(ctx, common.NewMapKeyRequest(t, m.name, k, p), invocation.PartitionTarget(p))
}

// keyData encodes a key and computes its partition
func (m *mapProxy) keyData(ctx context.Context, key interface{}) (serialization.Data, int32, error) {
	if key == nil {
		return nil, 0, errs.New(errs.CodeIllegalArgument, "key must not be nil")
	}
	data, err := m.client.ser.ToData(key)
	if err != nil {
		return nil, 0, err
	}
	if m.client.partitions.Count() == 0 {
		if err := m.client.refreshView(ctx); err != nil {
			return nil, 0, err
		}
	}
	return data, m.client.partitions.PartitionForKey(data), nil
}

func (m *mapProxy) valueData(value interface{}) (serialization.Data, error) {
	if value == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "value must not be nil")
	}
	return m.client.ser.ToData(value)
}

// toObject decodes a response value, nil data is a missing value
func (m *mapProxy) toObject(data serialization.Data) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	return m.client.ser.ToObject(data)
}

func (m *mapProxy) toObjects(values []serialization.Data) ([]interface{}, error) {
	out := make([]interface{}, 0, len(values))
	for _, d := range values {
		v, err := m.toObject(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// query runs a predicate query. A paging predicate is sent with the paged
// message type and learns the anchors of the response.
func (m *mapProxy) query(
	ctx context.Context,
	p predicate.Predicate,
	plain, paged common.MessageType,
	iterationType predicate.IterationType,
) (*common.Message, error) {
	if isNil(p) {
		return nil, errs.New(errs.CodeIllegalState, "predicate must not be nil")
	}

	t := plain
	paging, isPaging := p.(*predicate.PagingPredicate)
	if isPaging {
		paging.SetIterationType(iterationType)
		t = paged
	}

	data, err := m.client.ser.ToData(p)
	if err != nil {
		return nil, err
	}
	resp, err := m.invoke(ctx, common.NewMapQueryRequest(t, m.name, data), invocation.AnyTarget())
	if err != nil {
		return nil, err
	}

	if isPaging {
		anchors := make([]predicate.Anchor, 0, len(resp.Anchors))
		for _, a := range resp.Anchors {
			anchor := predicate.Anchor{Page: int(a.Page)}
			if anchor.Key, err = m.toObject(a.Key); err != nil {
				return nil, err
			}
			if anchor.Value, err = m.toObject(a.Value); err != nil {
				return nil, err
			}
			anchors = append(anchors, anchor)
		}
		paging.MergeAnchors(anchors)
	}
	return resp, nil
}

func (m *mapProxy) aggregate(ctx context.Context, agg aggregator.Aggregator, p predicate.Predicate) (interface{}, error) {
	if agg == nil || reflect.ValueOf(agg).IsNil() {
		return nil, errs.New(errs.CodeIllegalArgument, "aggregator must not be nil")
	}
	aggData, err := m.client.ser.ToData(agg)
	if err != nil {
		return nil, err
	}
	var predData serialization.Data
	if p != nil {
		if predData, err = m.client.ser.ToData(p); err != nil {
			return nil, err
		}
	}
	resp, err := m.invoke(ctx, common.NewMapAggregateRequest(m.name, aggData, predData), invocation.AnyTarget())
	if err != nil {
		return nil, err
	}
	return m.toObject(resp.Value)
}

// isNil reports a nil interface or a typed nil pointer
func isNil(p predicate.Predicate) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

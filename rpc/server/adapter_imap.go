package server

import (
	"fmt"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
)

func newMapAdapter(m *Member) IRPCServerAdapter {
	return &mapAdapterImpl{member: m}
}

// mapAdapterImpl translates map requests to record store calls
type mapAdapterImpl struct {
	member *Member
}

func (a *mapAdapterImpl) Handle(req *common.Message) *common.Message {
	resp, err := a.handle(req)
	if err != nil {
		return common.NewErrorResponse(req, err)
	}
	return resp
}

func (a *mapAdapterImpl) handle(req *common.Message) (*common.Message, error) {
	m := a.member
	st := m.cluster.recordStore(req.Name)
	p := req.PartitionID

	// Partition bound operations
	switch req.MsgType {
	case common.MsgTMapPut, common.MsgTMapGet, common.MsgTMapRemove, common.MsgTMapDelete,
		common.MsgTMapContainsKey, common.MsgTMapRemoveIfSame:
		if err := m.checkPartition(req, req.Key); err != nil {
			return nil, err
		}
	case common.MsgTMapPutAll:
		keys := make([]serialization.Data, 0, len(req.Entries))
		for _, e := range req.Entries {
			keys = append(keys, e.Key)
		}
		if err := m.checkPartition(req, keys...); err != nil {
			return nil, err
		}
	}

	switch req.MsgType {
	case common.MsgTMapPut:
		return common.NewValueResponse(req, st.Put(p, req.Key, req.Value)), nil
	case common.MsgTMapGet:
		value, _ := st.Get(p, req.Key)
		return common.NewValueResponse(req, value), nil
	case common.MsgTMapRemove:
		old, _ := st.Remove(p, req.Key)
		return common.NewValueResponse(req, old), nil
	case common.MsgTMapDelete:
		st.Remove(p, req.Key)
		return common.NewResponse(req), nil
	case common.MsgTMapContainsKey:
		return common.NewBoolResponse(req, st.ContainsKey(p, req.Key)), nil
	case common.MsgTMapRemoveIfSame:
		return common.NewBoolResponse(req, st.RemoveIfSame(p, req.Key, req.Value)), nil
	case common.MsgTMapPutAll:
		for _, e := range req.Entries {
			st.Put(p, e.Key, e.Value)
		}
		return common.NewResponse(req), nil

	case common.MsgTMapContainsValue:
		found := false
		st.Range(func(_ int32, _, value serialization.Data) bool {
			found = value.Equal(req.Value)
			return !found
		})
		return common.NewBoolResponse(req, found), nil
	case common.MsgTMapSize:
		return common.NewNumResponse(req, int64(st.Size())), nil
	case common.MsgTMapIsEmpty:
		return common.NewBoolResponse(req, st.Size() == 0), nil
	case common.MsgTMapClear:
		st.Clear()
		return common.NewResponse(req), nil

	case common.MsgTMapKeySetWithPredicate, common.MsgTMapValuesWithPredicate, common.MsgTMapEntriesWithPredicate,
		common.MsgTMapKeySetWithPagingPredicate, common.MsgTMapValuesWithPagingPredicate, common.MsgTMapEntriesWithPagingPredicate:
		return a.query(req)

	case common.MsgTMapAggregate, common.MsgTMapAggregateWithPredicate:
		return a.aggregate(req)

	default:
		return nil, errs.New(errs.CodeIllegalArgument, fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
}

func (a *mapAdapterImpl) query(req *common.Message) (*common.Message, error) {
	pred, err := a.decodePredicate(req.Predicate)
	if err != nil {
		return nil, err
	}

	var anchors []common.DataAnchor
	var entries []*queryEntry
	if paging, ok := pred.(*predicate.PagingPredicate); ok {
		all, err := a.member.scan(req.Name, paging.Predicate())
		if err != nil {
			return nil, err
		}
		entries, anchors = page(all, paging)
	} else {
		entries, err = a.member.scan(req.Name, pred)
		if err != nil {
			return nil, err
		}
	}

	switch req.MsgType {
	case common.MsgTMapKeySetWithPredicate, common.MsgTMapKeySetWithPagingPredicate:
		keys := make([]serialization.Data, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.keyData)
		}
		return common.NewValuesResponse(req, keys, anchors), nil
	case common.MsgTMapValuesWithPredicate, common.MsgTMapValuesWithPagingPredicate:
		values := make([]serialization.Data, 0, len(entries))
		for _, e := range entries {
			values = append(values, e.valueData)
		}
		return common.NewValuesResponse(req, values, anchors), nil
	default:
		out := make([]common.DataEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, common.DataEntry{Key: e.keyData, Value: e.valueData})
		}
		return common.NewEntriesResponse(req, out, anchors), nil
	}
}

func (a *mapAdapterImpl) aggregate(req *common.Message) (*common.Message, error) {
	obj, err := a.member.ser.ToObject(req.Aggregator)
	if err != nil {
		return nil, err
	}
	agg, ok := obj.(aggregator.Aggregator)
	if !ok {
		return nil, errs.Newf(errs.CodeIllegalArgument, "expected an aggregator, got %T", obj)
	}

	var pred predicate.Predicate
	if req.MsgType == common.MsgTMapAggregateWithPredicate {
		if pred, err = a.decodePredicate(req.Predicate); err != nil {
			return nil, err
		}
	}

	entries, err := a.member.scan(req.Name, pred)
	if err != nil {
		return nil, err
	}
	result, err := aggregate(a.member.ser, agg, entries)
	if err != nil {
		return nil, err
	}
	data, err := a.member.ser.ToData(result)
	if err != nil {
		return nil, err
	}
	return common.NewValueResponse(req, data), nil
}

func (a *mapAdapterImpl) decodePredicate(data serialization.Data) (predicate.Predicate, error) {
	if data == nil {
		return nil, errs.New(errs.CodeIllegalArgument, "predicate is missing")
	}
	obj, err := a.member.ser.ToObject(data)
	if err != nil {
		return nil, err
	}
	pred, ok := obj.(predicate.Predicate)
	if !ok {
		return nil, errs.Newf(errs.CodeIllegalArgument, "expected a predicate, got %T", obj)
	}
	return pred, nil
}

// partitionOf computes the partition of a serialized key
func partitionOf(key serialization.Data, count int32) int32 {
	return cluster.PartitionID(key, count)
}

// registerQueryFactories registers the built-in predicate and aggregator factories
func registerQueryFactories(s *serialization.Service) error {
	if err := predicate.Register(s); err != nil {
		return err
	}
	return aggregator.Register(s)
}

package server

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/transport"
)

// fakeTransport records broadcasts and lets tests call the handler directly
type fakeTransport struct {
	mu         sync.Mutex
	handler    transport.ServerHandleFunc
	broadcasts [][]byte
	closed     bool
}

func (f *fakeTransport) RegisterHandler(h transport.ServerHandleFunc) { f.handler = h }

func (f *fakeTransport) Listen(common.MemberConfig) (net.Addr, error) {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5701}, nil
}

func (f *fakeTransport) Broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, payload)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type memberFixture struct {
	t       *testing.T
	cluster *Cluster
	member  *Member
	ft      *fakeTransport
	ser     *serialization.Service
	codec   serializer.IRPCSerializer
}

func newMemberFixture(t *testing.T) *memberFixture {
	c := NewCluster("dev", 7, nil)
	ft := &fakeTransport{}
	config := common.DefaultMemberConfig()
	config.IdentifiedFactories = map[int32]serialization.IdentifiedFactory{
		66: func(int32) serialization.IdentifiedDataSerializable { return reverseComparator{} },
	}
	m, err := NewMember(config, c, ft, serializer.NewBinarySerializer())
	require.NoError(t, err)
	require.NoError(t, m.Start())

	ser := serialization.NewService()
	require.NoError(t, registerQueryFactories(ser))
	return &memberFixture{t: t, cluster: c, member: m, ft: ft, ser: ser, codec: serializer.NewBinarySerializer()}
}

// call sends req through the transport handler like a connection would
func (f *memberFixture) call(req *common.Message) *common.Message {
	f.t.Helper()
	payload, err := f.codec.Serialize(req)
	require.NoError(f.t, err)
	out := f.ft.handler(req.PartitionID, payload)
	resp := common.Message{PartitionID: req.PartitionID}
	require.NoError(f.t, f.codec.Deserialize(out, &resp))
	return &resp
}

func (f *memberFixture) data(v interface{}) serialization.Data {
	d, err := f.ser.ToData(v)
	require.NoError(f.t, err)
	return d
}

func (f *memberFixture) object(d serialization.Data) interface{} {
	v, err := f.ser.ToObject(d)
	require.NoError(f.t, err)
	return v
}

func (f *memberFixture) put(name string, key, value interface{}) *common.Message {
	k := f.data(key)
	return f.call(common.NewMapPutRequest(name, k, f.data(value), cluster.PartitionID(k, 7)))
}

func (f *memberFixture) keyRequest(t common.MessageType, key interface{}) *common.Message {
	k := f.data(key)
	return common.NewMapKeyRequest(t, "m", k, cluster.PartitionID(k, 7))
}

func TestAuthentication(t *testing.T) {
	f := newMemberFixture(t)

	resp := f.call(common.NewAuthenticationRequest("dev"))
	require.NoError(t, resp.Error())
	assert.Equal(t, f.member.UUID(), resp.MemberUUID)
	assert.Equal(t, int64(7), resp.Num)

	resp = f.call(common.NewAuthenticationRequest("prod"))
	assert.True(t, errors.Is(resp.Error(), errs.ErrAuthentication))
}

func TestClusterView(t *testing.T) {
	f := newMemberFixture(t)
	second, err := NewMember(common.DefaultMemberConfig(), f.cluster, &fakeTransport{}, serializer.NewBinarySerializer())
	require.NoError(t, err)
	require.NoError(t, second.Start())

	resp := f.call(common.NewClusterViewRequest())
	require.NoError(t, resp.Error())
	assert.Equal(t, int32(2), resp.Version)
	require.Len(t, resp.Members, 2)
	assert.Equal(t, f.member.UUID(), resp.Members[0].UUID)
	require.Len(t, resp.PartitionOwners, 7)
	for p, owner := range resp.PartitionOwners {
		assert.Equal(t, f.cluster.OwnerOf(int32(p)), owner)
		assert.NotEqual(t, uuid.Nil, owner)
	}

	// the first member pushed both views
	f.ft.mu.Lock()
	assert.Len(t, f.ft.broadcasts, 2)
	f.ft.mu.Unlock()

	ok, err := second.Shutdown()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), f.cluster.Version())
	for p := int32(0); p < 7; p++ {
		assert.Equal(t, f.member.UUID(), f.cluster.OwnerOf(p))
	}

	ok, err = second.Shutdown()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapOperations(t *testing.T) {
	f := newMemberFixture(t)

	resp := f.put("m", "a", 1.0)
	require.NoError(t, resp.Error())
	assert.Nil(t, resp.Value)

	resp = f.put("m", "a", 2.0)
	require.NoError(t, resp.Error())
	assert.Equal(t, 1.0, f.object(resp.Value))

	resp = f.call(f.keyRequest(common.MsgTMapGet, "a"))
	assert.Equal(t, 2.0, f.object(resp.Value))
	resp = f.call(f.keyRequest(common.MsgTMapGet, "missing"))
	assert.Nil(t, resp.Value)

	resp = f.call(f.keyRequest(common.MsgTMapContainsKey, "a"))
	assert.True(t, resp.Ok)
	resp = f.call(common.NewMapContainsValueRequest("m", f.data(2.0)))
	assert.True(t, resp.Ok)
	resp = f.call(common.NewMapContainsValueRequest("m", f.data(3.0)))
	assert.False(t, resp.Ok)

	k := f.data("a")
	resp = f.call(common.NewMapRemoveIfSameRequest("m", k, f.data(1.0), cluster.PartitionID(k, 7)))
	assert.False(t, resp.Ok)
	resp = f.call(common.NewMapRemoveIfSameRequest("m", k, f.data(2.0), cluster.PartitionID(k, 7)))
	assert.True(t, resp.Ok)

	f.put("m", "b", 1.0)
	resp = f.call(f.keyRequest(common.MsgTMapRemove, "b"))
	assert.Equal(t, 1.0, f.object(resp.Value))

	resp = f.call(common.NewMapRequest(common.MsgTMapIsEmpty, "m"))
	assert.True(t, resp.Ok)

	for _, key := range []string{"x", "y", "z"} {
		f.put("m", key, key)
	}
	resp = f.call(common.NewMapRequest(common.MsgTMapSize, "m"))
	assert.Equal(t, int64(3), resp.Num)

	resp = f.call(f.keyRequest(common.MsgTMapDelete, "x"))
	require.NoError(t, resp.Error())
	resp = f.call(common.NewMapRequest(common.MsgTMapSize, "m"))
	assert.Equal(t, int64(2), resp.Num)

	// maps are separate
	resp = f.call(common.NewMapRequest(common.MsgTMapSize, "other"))
	assert.Equal(t, int64(0), resp.Num)

	resp = f.call(common.NewMapRequest(common.MsgTMapClear, "m"))
	require.NoError(t, resp.Error())
	resp = f.call(common.NewMapRequest(common.MsgTMapSize, "m"))
	assert.Equal(t, int64(0), resp.Num)
}

func TestPutAll(t *testing.T) {
	f := newMemberFixture(t)

	k1 := f.data("k1")
	p := cluster.PartitionID(k1, 7)
	resp := f.call(common.NewMapPutAllRequest("m", []common.DataEntry{{Key: k1, Value: f.data(1.0)}}, p))
	require.NoError(t, resp.Error())

	// find a key of another partition
	var other serialization.Data
	for i := 0; other == nil; i++ {
		k := f.data(i)
		if cluster.PartitionID(k, 7) != p {
			other = k
		}
	}
	resp = f.call(common.NewMapPutAllRequest("m", []common.DataEntry{{Key: other, Value: f.data(1.0)}}, p))
	assert.True(t, errors.Is(resp.Error(), errs.ErrIllegalArgument))
}

func TestPartitionChecks(t *testing.T) {
	f := newMemberFixture(t)
	k := f.data("a")
	p := cluster.PartitionID(k, 7)

	resp := f.call(common.NewMapKeyRequest(common.MsgTMapGet, "m", k, 9))
	assert.True(t, errors.Is(resp.Error(), errs.ErrIllegalArgument))

	f.cluster.SetMigrating(p, true)
	resp = f.call(common.NewMapKeyRequest(common.MsgTMapGet, "m", k, p))
	assert.True(t, errors.Is(resp.Error(), errs.ErrPartitionMigrating))
	assert.True(t, errs.IsRetryable(resp.Error()))

	f.cluster.SetMigrating(p, false)
	resp = f.call(common.NewMapKeyRequest(common.MsgTMapGet, "m", k, p))
	require.NoError(t, resp.Error())
	assert.Equal(t, int64(1), f.member.OwnedOps())
}

func TestQueries(t *testing.T) {
	f := newMemberFixture(t)
	for i := 0; i < 50; i++ {
		f.put("m", "key"+string(rune('A'+i)), float64(i))
	}

	query := func(t common.MessageType, p predicate.Predicate) *common.Message {
		resp := f.call(common.NewMapQueryRequest(t, "m", f.data(p)))
		require.NoError(f.t, resp.Error())
		return resp
	}

	resp := query(common.MsgTMapValuesWithPredicate, predicate.Sql("this >= 47"))
	var got []interface{}
	for _, v := range resp.Values {
		got = append(got, f.object(v))
	}
	assert.ElementsMatch(t, []interface{}{47.0, 48.0, 49.0}, got)

	resp = query(common.MsgTMapKeySetWithPredicate, predicate.Equal("this", 0))
	require.Len(t, resp.Values, 1)
	assert.Equal(t, "keyA", f.object(resp.Values[0]))

	resp = query(common.MsgTMapEntriesWithPredicate, predicate.LessThan("this", 2))
	assert.Len(t, resp.Entries, 2)

	resp = query(common.MsgTMapEntriesWithPredicate, predicate.False())
	assert.NotNil(t, resp.Entries)
	assert.Empty(t, resp.Entries)

	paging := predicate.Paging(predicate.GreaterEqual("this", 40), 2, nil)
	resp = query(common.MsgTMapValuesWithPagingPredicate, paging)
	require.Len(t, resp.Values, 2)
	assert.Equal(t, 40.0, f.object(resp.Values[0]))
	assert.Equal(t, 41.0, f.object(resp.Values[1]))
	require.Len(t, resp.Anchors, 1)
	assert.Equal(t, 41.0, f.object(resp.Anchors[0].Value))

	paging = predicate.Paging(predicate.LessThan("this", 10), 3, reverseComparator{})
	resp = query(common.MsgTMapValuesWithPagingPredicate, paging)
	require.Len(t, resp.Values, 3)
	assert.Equal(t, 9.0, f.object(resp.Values[0]))

	resp = f.call(common.NewMapQueryRequest(common.MsgTMapValuesWithPredicate, "m", f.data(predicate.Regex("this", "("))))
	assert.True(t, errors.Is(resp.Error(), errs.ErrQuery))

	resp = f.call(common.NewMapQueryRequest(common.MsgTMapValuesWithPredicate, "m", f.data("not a predicate")))
	assert.True(t, errors.Is(resp.Error(), errs.ErrIllegalArgument))
}

func TestAggregateRequests(t *testing.T) {
	f := newMemberFixture(t)
	for i := 0; i < 50; i++ {
		f.put("m", i, float64(i))
	}

	aggregate := func(agg aggregator.Aggregator, p predicate.Predicate) interface{} {
		var pd serialization.Data
		if p != nil {
			pd = f.data(p)
		}
		resp := f.call(common.NewMapAggregateRequest("m", f.data(agg), pd))
		require.NoError(t, resp.Error())
		return f.object(resp.Value)
	}

	assert.Equal(t, int64(50), aggregate(aggregator.Count(), nil))
	assert.Equal(t, int64(49), aggregate(aggregator.Count(), predicate.GreaterEqual("this", 1)))
	assert.Equal(t, 24.5, aggregate(aggregator.DoubleAvg(), nil))
	assert.Equal(t, 144.0, aggregate(aggregator.DoubleSum(), predicate.GreaterEqual("this", 47)))
	assert.Equal(t, 3.0, aggregate(aggregator.Max(), predicate.LessEqual("this", 3)))
	assert.Nil(t, aggregate(aggregator.Min(), predicate.False()))
}

func TestDestroyProxy(t *testing.T) {
	f := newMemberFixture(t)
	f.put("m", "a", 1.0)

	resp := f.call(common.NewDestroyProxyRequest("m"))
	require.NoError(t, resp.Error())
	resp = f.call(common.NewMapRequest(common.MsgTMapSize, "m"))
	assert.Equal(t, int64(0), resp.Num)
}

func TestMalformedRequest(t *testing.T) {
	f := newMemberFixture(t)
	out := f.ft.handler(-1, []byte{1, 2})
	var resp common.Message
	require.NoError(t, f.codec.Deserialize(out, &resp))
	assert.True(t, errors.Is(resp.Error(), errs.ErrSerialization))

	ping := f.call(common.NewPingRequest())
	require.NoError(t, ping.Error())
	assert.Equal(t, common.MsgTClientPing.Response(), ping.MsgType)
}

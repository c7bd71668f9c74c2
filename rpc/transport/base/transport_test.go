package base

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/transport"
)

// --------------------------------------------------------------------------
// Test Connectors
// --------------------------------------------------------------------------

type testConnector struct{}

func (testConnector) GetName() string { return "test" }

func (testConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", endpoint)
}

func (testConnector) Listen(config common.MemberConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Address)
}

func (testConnector) UpgradeConnection(net.Conn, common.SocketConfig) error { return nil }

// testMember answers the handshake and pings. Map gets block until release
// is closed, every other request is answered with an empty response.
type testMember struct {
	uuid        uuid.UUID
	clusterName string
	answerPings bool
	release     chan struct{}
	server      transport.IRPCServerTransport
	addr        string
}

func startTestMember(t *testing.T, answerPings bool) *testMember {
	t.Helper()
	m := &testMember{
		uuid:        uuid.New(),
		clusterName: "dev",
		answerPings: answerPings,
		release:     make(chan struct{}),
		server:      NewBaseServerTransport(testConnector{}),
	}
	s := serializer.NewBinarySerializer()
	m.server.RegisterHandler(func(partitionID int32, data []byte) []byte {
		req := &common.Message{PartitionID: partitionID}
		if err := s.Deserialize(data, req); err != nil {
			t.Errorf("member failed to decode request: %v", err)
			return nil
		}
		var resp *common.Message
		switch req.MsgType {
		case common.MsgTClientAuthentication:
			if req.Name != m.clusterName {
				resp = common.NewErrorResponse(req, errs.New(errs.CodeAuthentication, "cluster name mismatch"))
			} else {
				resp = common.NewAuthenticationResponse(req, m.uuid, 271)
			}
		case common.MsgTClientPing:
			if !m.answerPings {
				<-m.release
			}
			resp = common.NewResponse(req)
		case common.MsgTMapGet:
			<-m.release
			resp = common.NewResponse(req)
		default:
			resp = common.NewResponse(req)
		}
		out, err := s.Serialize(resp)
		if err != nil {
			t.Errorf("member failed to encode response: %v", err)
		}
		return out
	})

	cfg := common.DefaultMemberConfig()
	cfg.Address = "127.0.0.1:0"
	addr, err := m.server.Listen(cfg)
	require.NoError(t, err)
	m.addr = addr.String()

	t.Cleanup(func() {
		m.unblock()
		_ = m.server.Close()
	})
	return m
}

func (m *testMember) unblock() {
	select {
	case <-m.release:
	default:
		close(m.release)
	}
}

func testClientConfig(addr string) common.ClientConfig {
	cfg := common.DefaultClientConfig()
	cfg.Addresses = []string{addr}
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

// eventRecorder collects connection events
type eventRecorder struct {
	mu     sync.Mutex
	events []transport.ConnectionEvent
}

func (r *eventRecorder) listen(e transport.ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []transport.ConnectionEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []transport.ConnectionEventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// --------------------------------------------------------------------------
// Frame Tests
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("grid payload")
	go func() {
		_ = writeFrame(client, frameHeader{correlationID: 1 << 40, partitionID: 17, flags: FlagUnfragmented | FlagEvent}, payload)
	}()

	h, data, err := readFrame(server, make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), h.correlationID)
	assert.Equal(t, int32(17), h.partitionID)
	assert.True(t, h.isEvent())
	assert.Equal(t, payload, data)
}

func TestFrameEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = writeFrame(client, frameHeader{correlationID: 3, partitionID: -1, flags: FlagUnfragmented}, nil)
	}()

	h, data, err := readFrame(server, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), h.partitionID)
	assert.False(t, h.isEvent())
	assert.Empty(t, data)
}

func TestFrameTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := make([]byte, frameHeaderSize)
		header[13], header[14], header[15], header[16] = 0x7F, 0xFF, 0xFF, 0xFF
		_, _ = client.Write(header)
	}()

	_, _, err := readFrame(server, nil)
	assert.Error(t, err)
}

// --------------------------------------------------------------------------
// Pool Tests
// --------------------------------------------------------------------------

func TestPoolHandshake(t *testing.T) {
	member := startTestMember(t, true)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), nil, nil)
	defer pool.CloseAll()

	rec := &eventRecorder{}
	pool.AddListener(rec.listen)

	c, err := pool.ConnectToAddress(context.Background(), member.addr)
	require.NoError(t, err)
	assert.Equal(t, member.uuid, c.MemberUUID())
	assert.Equal(t, int32(271), c.PartitionCount())
	assert.True(t, c.IsAlive())
	assert.Equal(t, []transport.ConnectionEventType{transport.ConnectionEstablished}, rec.types())

	// the same address reuses the connection
	again, err := pool.ConnectToAddress(context.Background(), member.addr)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.Len(t, pool.Connections(), 1)
}

func TestPoolConcurrentConnectsShareOneConnection(t *testing.T) {
	member := startTestMember(t, true)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), nil, nil)
	defer pool.CloseAll()

	const n = 8
	conns := make([]*Connection, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.ConnectToAddress(context.Background(), member.addr)
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}
	assert.Len(t, pool.Connections(), 1)
}

func TestPoolAuthenticationFailure(t *testing.T) {
	member := startTestMember(t, true)
	cfg := testClientConfig(member.addr)
	cfg.ClusterName = "other"
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), cfg, nil, nil)
	defer pool.CloseAll()

	_, err := pool.AnyConnection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAuthentication))
	assert.Empty(t, pool.Connections())
}

func TestPoolConnectionForWrongMember(t *testing.T) {
	member := startTestMember(t, true)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), nil, nil)
	defer pool.CloseAll()

	_, err := pool.ConnectionFor(context.Background(), cluster.Member{UUID: uuid.New(), Address: member.addr})
	assert.True(t, errors.Is(err, errs.ErrTargetNotMember))

	c, err := pool.ConnectionFor(context.Background(), cluster.Member{UUID: member.uuid, Address: member.addr})
	require.NoError(t, err)
	assert.Equal(t, member.uuid, c.MemberUUID())
}

func TestPoolUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(addr), nil, nil)
	defer pool.CloseAll()

	_, err = pool.AnyConnection(context.Background())
	assert.True(t, errors.Is(err, errs.ErrTargetDisconnected))
}

func TestSendReceivesResponse(t *testing.T) {
	member := startTestMember(t, true)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), nil, nil)
	defer pool.CloseAll()

	conn, err := pool.AnyConnection(context.Background())
	require.NoError(t, err)

	w := newWaiter()
	require.NoError(t, conn.Send(pool.NextCorrelationID(), common.NewMapRequest(common.MsgTMapSize, "m"), w))

	select {
	case r := <-w.ch:
		require.NoError(t, r.err)
		assert.Equal(t, common.MsgTMapSize.Response(), r.msg.MsgType)
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
	}
}

func TestCloseAllFailsPendingInvocations(t *testing.T) {
	member := startTestMember(t, true)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), nil, nil)

	conn, err := pool.AnyConnection(context.Background())
	require.NoError(t, err)

	w := newWaiter()
	require.NoError(t, conn.Send(pool.NextCorrelationID(), common.NewMapKeyRequest(common.MsgTMapGet, "m", nil, 1), w))

	pool.CloseAll()
	select {
	case r := <-w.ch:
		assert.True(t, errors.Is(r.err, errs.ErrClientNotActive))
	case <-time.After(5 * time.Second):
		t.Fatal("pending invocation was not notified")
	}
	assert.False(t, conn.IsAlive())

	// a closed connection refuses new registrations
	err = conn.Send(pool.NextCorrelationID(), common.NewPingRequest(), newWaiter())
	assert.True(t, errors.Is(err, errs.ErrTargetDisconnected))

	_, err = pool.ConnectToAddress(context.Background(), member.addr)
	assert.True(t, errors.Is(err, errs.ErrClientNotActive))
}

func TestHeartbeatTimeoutClosesConnection(t *testing.T) {
	member := startTestMember(t, false)
	cfg := testClientConfig(member.addr)
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.HeartbeatTimeout = 100 * time.Millisecond
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), cfg, nil, nil)
	defer pool.CloseAll()

	rec := &eventRecorder{}
	pool.AddListener(rec.listen)

	conn, err := pool.AnyConnection(context.Background())
	require.NoError(t, err)

	w := newWaiter()
	require.NoError(t, conn.Send(pool.NextCorrelationID(), common.NewMapKeyRequest(common.MsgTMapGet, "m", nil, 1), w))
	pool.StartHeartbeat()

	select {
	case r := <-w.ch:
		assert.True(t, errors.Is(r.err, errs.ErrTargetDisconnected))
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat timeout did not close the connection")
	}

	require.Eventually(t, func() bool { return len(rec.types()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []transport.ConnectionEventType{
		transport.ConnectionEstablished,
		transport.ConnectionHeartbeatTimeout,
		transport.ConnectionClosed,
	}, rec.types())
	assert.Empty(t, pool.Connections())
}

func TestBroadcastDeliversEvents(t *testing.T) {
	member := startTestMember(t, true)
	events := make(chan *common.Message, 1)
	pool := NewPool(testConnector{}, serializer.NewBinarySerializer(), testClientConfig(member.addr), func(msg *common.Message) {
		events <- msg
	}, nil)
	defer pool.CloseAll()

	_, err := pool.AnyConnection(context.Background())
	require.NoError(t, err)

	owners := []uuid.UUID{member.uuid, member.uuid}
	payload, err := serializer.NewBinarySerializer().Serialize(common.NewClusterView(nil, 3, []common.MemberInfo{{UUID: member.uuid, Address: member.addr}}, owners))
	require.NoError(t, err)
	member.server.Broadcast(payload)

	select {
	case msg := <-events:
		assert.Equal(t, common.MsgTClientClusterViewEvent, msg.MsgType)
		assert.Equal(t, int32(3), msg.Version)
		assert.Equal(t, owners, msg.PartitionOwners)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

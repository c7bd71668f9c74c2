package base

import (
	"context"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/transport"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.SocketConfig) error
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection is one authenticated connection to a member. Requests are
// written under a mutex; responses are read by a dedicated goroutine and
// handed to the pending invocation registered under their correlation id.
type Connection struct {
	id             uint64
	conn           net.Conn
	address        string
	memberUUID     atomic.Pointer[uuid.UUID]
	partitionCount atomic.Int32
	pending        *xsync.MapOf[int64, transport.PendingInvocation]
	writeMu        sync.Mutex // Protects writes to the connection
	lastRead       atomic.Int64
	lastWrite      atomic.Int64
	established    atomic.Bool
	closed         atomic.Bool
	closeOnce      sync.Once
	pool           *Pool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

// Send registers p and writes msg. It returns an error only if p was not
// registered; once registered, every failure is reported through p.
func (c *Connection) Send(correlationID int64, msg *common.Message, p transport.PendingInvocation) error {
	if c.closed.Load() {
		return errs.Newf(errs.CodeTargetDisconnected, "connection to %s is closed", c.address)
	}
	payload, err := c.pool.serializer.Serialize(msg)
	if err != nil {
		return err
	}

	c.pending.Store(correlationID, p)
	if c.closed.Load() {
		// closed concurrently, the close may have missed the entry
		if _, ok := c.pending.LoadAndDelete(correlationID); ok {
			return errs.Newf(errs.CodeTargetDisconnected, "connection to %s is closed", c.address)
		}
		return nil
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.pool.config.ConnectTimeout))
	err = writeFrame(c.conn, frameHeader{
		correlationID: correlationID,
		partitionID:   msg.PartitionID,
		flags:         FlagUnfragmented,
	}, payload)
	c.writeMu.Unlock()

	if err != nil {
		cause := errs.Wrap(errs.CodeTargetDisconnected, err, "write to "+c.address)
		if p, ok := c.pending.LoadAndDelete(correlationID); ok {
			p.NotifyError(cause)
		}
		c.Close(cause)
		return nil
	}
	c.lastWrite.Store(time.Now().UnixNano())
	return nil
}

func (c *Connection) Deregister(correlationID int64) {
	c.pending.Delete(correlationID)
}

func (c *Connection) MemberUUID() uuid.UUID {
	if id := c.memberUUID.Load(); id != nil {
		return *id
	}
	return uuid.Nil
}

func (c *Connection) Address() string {
	return c.address
}

func (c *Connection) IsAlive() bool {
	return !c.closed.Load()
}

// PartitionCount returns the partition count announced in the handshake
func (c *Connection) PartitionCount() int32 {
	return c.partitionCount.Load()
}

// Close closes the connection and fails every pending invocation with cause
func (c *Connection) Close(cause error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.Close()

		c.pending.Range(func(id int64, _ transport.PendingInvocation) bool {
			if p, ok := c.pending.LoadAndDelete(id); ok {
				p.NotifyError(cause)
			}
			return true
		})
		c.pool.remove(c, cause)
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLoop reads frames in a loop and distributes them to waiting requests
func (c *Connection) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		h, payload, err := readFrame(c.conn, buf)
		if err != nil {
			c.Close(errs.Wrap(errs.CodeTargetDisconnected, err, "read from "+c.address))
			return
		}
		c.lastRead.Store(time.Now().UnixNano())

		msg := &common.Message{PartitionID: h.partitionID}
		if err := c.pool.serializer.Deserialize(payload, msg); err != nil {
			Logger.Errorf("Failed to decode frame %d from %s: %v", h.correlationID, c.address, err)
			if p, ok := c.pending.LoadAndDelete(h.correlationID); ok {
				p.NotifyError(err)
			}
			continue
		}

		if h.isEvent() {
			c.pool.handleEvent(msg)
			continue
		}

		if p, ok := c.pending.LoadAndDelete(h.correlationID); ok {
			p.NotifyResponse(msg)
		} else {
			Logger.Debugf("Received %s for unknown correlation id %d from %s", msg.MsgType, h.correlationID, c.address)
		}
	}
}

// authenticate runs the handshake and returns the authentication response
func (c *Connection) authenticate(ctx context.Context) (*common.Message, error) {
	w := newWaiter()
	id := c.pool.NextCorrelationID()
	if err := c.Send(id, common.NewAuthenticationRequest(c.pool.config.ClusterName), w); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.Deregister(id)
		return nil, errs.Wrap(errs.CodeTargetDisconnected, ctx.Err(), "authentication with "+c.address)
	case r := <-w.ch:
		if r.err != nil {
			return nil, r.err
		}
		if err := r.msg.Error(); err != nil {
			return nil, err
		}
		if r.msg.MsgType != common.MsgTClientAuthentication.Response() {
			return nil, errs.Newf(errs.CodeIllegalState, "unexpected handshake response %s", r.msg.MsgType)
		}
		return r.msg, nil
	}
}

// waiter is a pending invocation that hands its result to a channel
type waiter struct {
	ch chan waiterResult
}

type waiterResult struct {
	msg *common.Message
	err error
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan waiterResult, 1)}
}

func (w *waiter) NotifyResponse(resp *common.Message) {
	select {
	case w.ch <- waiterResult{msg: resp}:
	default:
	}
}

func (w *waiter) NotifyError(err error) {
	select {
	case w.ch <- waiterResult{err: err}:
	default:
	}
}

// ignored drops its notifications; used for heartbeats
type ignored struct{}

func (ignored) NotifyResponse(*common.Message) {}
func (ignored) NotifyError(error)              {}

// -----------------------------------------------------------
// Pool
// -----------------------------------------------------------

// Pool owns all connections of one client, at most one per member.
type Pool struct {
	connector  IClientConnector
	serializer serializer.IRPCSerializer
	config     common.ClientConfig
	conns      *xsync.MapOf[uuid.UUID, *Connection]
	connecting singleflight.Group
	addresses  atomic.Pointer[func() []string]
	events     transport.EventHandler

	listenersMu sync.RWMutex
	listeners   []transport.ConnectionListener

	nextConnID        atomic.Uint64
	nextConnIndex     atomic.Uint64 // Atomic counter for Round Robin
	nextCorrelationID atomic.Int64  // Atomic counter for unique correlation ids

	stopCh chan struct{}
	closed atomic.Bool

	opened     *metrics.Counter
	closedConn *metrics.Counter
}

// NewPool creates a connection pool. events receives messages pushed by
// members; set collects the connection metrics and may be nil.
func NewPool(
	connector IClientConnector,
	serializer serializer.IRPCSerializer,
	config common.ClientConfig,
	events transport.EventHandler,
	set *metrics.Set,
) *Pool {
	if set == nil {
		set = metrics.NewSet()
	}
	return &Pool{
		connector:  connector,
		serializer: serializer,
		config:     config,
		conns:      xsync.NewMapOf[uuid.UUID, *Connection](),
		events:     events,
		stopCh:     make(chan struct{}),
		opened:     set.GetOrCreateCounter("dgrid_client_connections_opened_total"),
		closedConn: set.GetOrCreateCounter("dgrid_client_connections_closed_total"),
	}
}

// SetAddressProvider sets the source of member addresses used when no
// connection is active, typically the addresses of the known member list
func (p *Pool) SetAddressProvider(f func() []string) {
	p.addresses.Store(&f)
}

// AddListener registers a connection life cycle listener
func (p *Pool) AddListener(l transport.ConnectionListener) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, l)
}

// ConnectToAddress connects and authenticates to address. Concurrent calls
// for the same address share one connection attempt. If the member behind
// address is already connected, the existing connection is returned.
func (p *Pool) ConnectToAddress(ctx context.Context, address string) (*Connection, error) {
	if p.closed.Load() {
		return nil, errs.New(errs.CodeClientNotActive, "connection pool is closed")
	}
	v, err, _ := p.connecting.Do(address, func() (interface{}, error) {
		return p.connect(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnectionManager)
// --------------------------------------------------------------------------

func (p *Pool) ConnectionFor(ctx context.Context, member cluster.Member) (transport.IConnection, error) {
	if c, ok := p.conns.Load(member.UUID); ok && c.IsAlive() {
		return c, nil
	}
	c, err := p.ConnectToAddress(ctx, member.Address)
	if err != nil {
		return nil, err
	}
	if c.MemberUUID() != member.UUID {
		return nil, errs.Newf(errs.CodeTargetNotMember, "member at %s is %s, expected %s", member.Address, c.MemberUUID(), member.UUID)
	}
	return c, nil
}

func (p *Pool) AnyConnection(ctx context.Context) (transport.IConnection, error) {
	if c := p.nextConnection(); c != nil {
		return c, nil
	}

	var lastErr error = errs.New(errs.CodeTargetDisconnected, "no member address known")
	for _, addr := range p.knownAddresses() {
		c, err := p.ConnectToAddress(ctx, addr)
		if err == nil {
			return c, nil
		}
		if errs.CodeOf(err) == errs.CodeAuthentication || errs.CodeOf(err) == errs.CodeClientNotActive {
			return nil, err
		}
		Logger.Debugf("Failed to connect to %s: %v", addr, err)
		lastErr = err
	}
	return nil, lastErr
}

func (p *Pool) NextCorrelationID() int64 {
	return p.nextCorrelationID.Add(1)
}

// Connections returns the active connections ordered by creation
func (p *Pool) Connections() []*Connection {
	var out []*Connection
	p.conns.Range(func(_ uuid.UUID, c *Connection) bool {
		if c.IsAlive() {
			out = append(out, c)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// StartHeartbeat starts the heartbeat goroutine. It stops with CloseAll.
func (p *Pool) StartHeartbeat() {
	go func() {
		ticker := time.NewTicker(p.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case now := <-ticker.C:
				p.checkHeartbeats(now)
			}
		}
	}()
}

// CloseAll closes every connection. Pending invocations fail with a
// ClientNotActive error and no new connections are created.
func (p *Pool) CloseAll() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	for _, c := range p.Connections() {
		c.Close(errs.New(errs.CodeClientNotActive, "client is shutting down"))
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (p *Pool) connect(ctx context.Context, address string) (*Connection, error) {
	for _, c := range p.Connections() {
		if c.address == address {
			return c, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	netConn, err := p.connector.Connect(ctx, address)
	if err != nil {
		return nil, errs.Wrap(errs.CodeTargetDisconnected, err, "connect to "+address)
	}
	if err := p.connector.UpgradeConnection(netConn, p.config.Socket); err != nil {
		_ = netConn.Close()
		return nil, errs.Wrap(errs.CodeTargetDisconnected, err, "upgrade connection to "+address)
	}

	now := time.Now().UnixNano()
	c := &Connection{
		id:      p.nextConnID.Add(1),
		conn:    netConn,
		address: address,
		pending: xsync.NewMapOf[int64, transport.PendingInvocation](),
		pool:    p,
	}
	c.lastRead.Store(now)
	c.lastWrite.Store(now)
	go c.readLoop()

	resp, err := c.authenticate(ctx)
	if err != nil {
		c.Close(err)
		return nil, err
	}
	member := resp.MemberUUID
	c.memberUUID.Store(&member)
	c.partitionCount.Store(int32(resp.Num))

	if existing, ok := p.conns.Load(member); ok && existing.IsAlive() {
		c.Close(errs.Newf(errs.CodeIllegalState, "duplicate connection to %s", member))
		return existing, nil
	}
	p.conns.Store(member, c)
	c.established.Store(true)
	if p.closed.Load() {
		c.Close(errs.New(errs.CodeClientNotActive, "client is shutting down"))
		return nil, errs.New(errs.CodeClientNotActive, "connection pool is closed")
	}

	p.opened.Inc()
	Logger.Infof("Connected to member %s at %s using %s transport", member, address, p.connector.GetName())
	p.fire(transport.ConnectionEvent{Type: transport.ConnectionEstablished, MemberUUID: member, Address: address})
	return c, nil
}

// nextConnection selects the next connection via Round Robin
func (p *Pool) nextConnection() *Connection {
	conns := p.Connections()
	if len(conns) == 0 {
		return nil
	}
	if len(conns) == 1 {
		return conns[0]
	}
	return conns[p.nextConnIndex.Add(1)%uint64(len(conns))]
}

// knownAddresses merges the provider's addresses with the configured ones
func (p *Pool) knownAddresses() []string {
	var addrs []string
	seen := make(map[string]bool)
	if f := p.addresses.Load(); f != nil {
		addrs = append(addrs, (*f)()...)
	}
	addrs = append(addrs, p.config.Addresses...)

	out := addrs[:0]
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// remove drops a closed connection from the pool
func (p *Pool) remove(c *Connection, cause error) {
	if member := c.MemberUUID(); member != uuid.Nil {
		p.conns.Compute(member, func(old *Connection, loaded bool) (*Connection, bool) {
			return old, !loaded || old == c
		})
	}
	if !c.established.Load() {
		return
	}
	p.closedConn.Inc()
	Logger.Infof("Connection to member %s at %s closed: %v", c.MemberUUID(), c.address, cause)
	p.fire(transport.ConnectionEvent{Type: transport.ConnectionClosed, MemberUUID: c.MemberUUID(), Address: c.address, Err: cause})
}

func (p *Pool) checkHeartbeats(now time.Time) {
	for _, c := range p.Connections() {
		if now.Sub(time.Unix(0, c.lastRead.Load())) > p.config.HeartbeatTimeout {
			Logger.Warningf("Heartbeat to member %s at %s timed out", c.MemberUUID(), c.address)
			p.fire(transport.ConnectionEvent{Type: transport.ConnectionHeartbeatTimeout, MemberUUID: c.MemberUUID(), Address: c.address})
			c.Close(errs.Newf(errs.CodeTargetDisconnected, "heartbeat to %s timed out", c.address))
			continue
		}
		if now.Sub(time.Unix(0, c.lastWrite.Load())) >= p.config.HeartbeatInterval {
			if err := c.Send(p.NextCorrelationID(), common.NewPingRequest(), ignored{}); err != nil {
				Logger.Debugf("Failed to send heartbeat to %s: %v", c.address, err)
			}
		}
	}
}

func (p *Pool) handleEvent(msg *common.Message) {
	if p.events != nil {
		p.events(msg)
	}
}

func (p *Pool) fire(event transport.ConnectionEvent) {
	p.listenersMu.RLock()
	listeners := append([]transport.ConnectionListener(nil), p.listeners...)
	p.listenersMu.RUnlock()
	for _, l := range listeners {
		l(event)
	}
}

package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dgrid/dgrid/lib/aggregator"
	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/lib/imap"
	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/invocation"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/transport"
	"github.com/dgrid/dgrid/rpc/transport/base"
	"github.com/dgrid/dgrid/rpc/transport/tcp"
)

var Logger = logger.GetLogger("client")

// Client is a connected grid client. It keeps the member list and the
// partition table up to date from the cluster view events the members push
// and hands out map proxies.
type Client struct {
	config     common.ClientConfig
	ser        *serialization.Service
	pool       *base.Pool
	invocation *invocation.Service
	partitions *cluster.PartitionTable
	members    *cluster.MemberList
	metrics    *metrics.Set
	proxies    *xsync.MapOf[string, *mapProxy]

	events     chan *common.Message
	stopCh     chan struct{}
	wg         sync.WaitGroup
	active     atomic.Bool
	refreshing atomic.Bool
}

// NewClient creates a client, connects to the first reachable address of
// the configuration and loads the cluster view.
//
// Usage:
//
//	config := common.DefaultClientConfig()
//	c, err := client.NewClient(ctx, config)
//	if err != nil {
//		panic(err)
//	}
//	defer c.Shutdown()
//	m := c.GetMap("users")
func NewClient(ctx context.Context, config common.ClientConfig) (*Client, error) {
	return newClient(ctx, config, tcp.NewClientConnector())
}

func newClient(ctx context.Context, config common.ClientConfig, connector base.IClientConnector) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ser, err := newSerializationService(config.IdentifiedFactories)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		ser:        ser,
		partitions: cluster.NewPartitionTable(),
		members:    cluster.NewMemberList(),
		metrics:    metrics.NewSet(),
		proxies:    xsync.NewMapOf[string, *mapProxy](),
		events:     make(chan *common.Message, 16),
		stopCh:     make(chan struct{}),
	}
	c.pool = base.NewPool(connector, serializer.NewBinarySerializer(), config, c.onEvent, c.metrics)
	c.pool.SetAddressProvider(c.addresses)
	c.pool.AddListener(c.onConnectionEvent)
	c.invocation = invocation.NewService(c.pool, c.partitions, c.members, config, c.triggerRefresh, c.metrics)
	c.active.Store(true)

	c.wg.Add(1)
	go c.eventLoop()

	if _, err := c.pool.AnyConnection(ctx); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("unable to connect to cluster %s: %w", config.ClusterName, err)
	}
	if err := c.refreshView(ctx); err != nil {
		c.Shutdown()
		return nil, err
	}
	c.pool.StartHeartbeat()

	Logger.Infof("Client connected to cluster %s with %d members and %d partitions",
		config.ClusterName, len(c.members.Members()), c.partitions.Count())
	return c, nil
}

// GetMap returns the proxy of the distributed map name. Proxies are cached,
// the map itself is created by the cluster on first use.
func (c *Client) GetMap(name string) imap.IMap {
	p, _ := c.proxies.LoadOrCompute(name, func() *mapProxy {
		return &mapProxy{name: name, client: c}
	})
	return p
}

// Shutdown closes all connections. Outstanding and later invocations fail
// with a ClientNotActive error.
func (c *Client) Shutdown() {
	if !c.active.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	c.invocation.Shutdown()
	c.pool.CloseAll()
	c.wg.Wait()
	Logger.Infof("Client of cluster %s shut down", c.config.ClusterName)
}

// IsActive reports whether the client has not been shut down
func (c *Client) IsActive() bool {
	return c.active.Load()
}

// Members returns the last known member list
func (c *Client) Members() []cluster.Member {
	return c.members.Members()
}

// PartitionCount returns the partition count of the cluster
func (c *Client) PartitionCount() int32 {
	return c.partitions.Count()
}

// Metrics returns the metrics of this client
func (c *Client) Metrics() *metrics.Set {
	return c.metrics
}

// SerializationService returns the service used to encode keys, values,
// predicates and aggregators
func (c *Client) SerializationService() *serialization.Service {
	return c.ser
}

// --------------------------------------------------------------------------
// Cluster View
// --------------------------------------------------------------------------

// refreshView requests the cluster view and applies it
func (c *Client) refreshView(ctx context.Context) error {
	resp, err := c.invocation.Invoke(ctx, common.NewClusterViewRequest(), invocation.AnyTarget())
	if err != nil {
		return err
	}
	c.applyView(resp)
	return nil
}

// triggerRefresh refreshes the view in the background, at most one refresh
// runs at a time
func (c *Client) triggerRefresh() {
	if !c.active.Load() || !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), c.config.InvocationTimeout)
		defer cancel()
		if err := c.refreshView(ctx); err != nil {
			Logger.Warningf("Failed to refresh the cluster view: %v", err)
		}
	}()
}

func (c *Client) applyView(msg *common.Message) {
	members := make([]cluster.Member, 0, len(msg.Members))
	for _, m := range msg.Members {
		members = append(members, cluster.Member{UUID: m.UUID, Address: m.Address, Version: m.Version})
	}

	if applied, joined, left := c.members.Apply(msg.Version, members); applied {
		for _, m := range joined {
			Logger.Infof("Member joined: %s", m)
		}
		for _, m := range left {
			Logger.Infof("Member left: %s", m)
		}
	}
	if _, err := c.partitions.ApplyUpdate(msg.Version, msg.PartitionOwners); err != nil {
		Logger.Errorf("Rejected partition table version %d: %v", msg.Version, err)
	}
}

// onEvent is called by the reader goroutines of the connections
func (c *Client) onEvent(msg *common.Message) {
	if msg.MsgType != common.MsgTClientClusterViewEvent {
		Logger.Debugf("Ignoring event %s", msg.MsgType)
		return
	}
	select {
	case c.events <- msg:
	case <-c.stopCh:
	}
}

func (c *Client) eventLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case msg := <-c.events:
			c.applyView(msg)
		}
	}
}

func (c *Client) onConnectionEvent(event transport.ConnectionEvent) {
	switch event.Type {
	case transport.ConnectionEstablished:
		Logger.Infof("Connected to member %s at %s", event.MemberUUID, event.Address)
	case transport.ConnectionHeartbeatTimeout:
		Logger.Warningf("Heartbeat of member %s at %s timed out", event.MemberUUID, event.Address)
	case transport.ConnectionClosed:
		Logger.Infof("Connection to member %s at %s closed: %v", event.MemberUUID, event.Address, event.Err)
		if c.active.Load() {
			c.triggerRefresh()
		}
	}
}

// addresses returns the addresses of the known members followed by the
// configured addresses
func (c *Client) addresses() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	for _, m := range c.members.Members() {
		add(m.Address)
	}
	for _, addr := range c.config.Addresses {
		add(addr)
	}
	return out
}

// newSerializationService creates the serialization service of a client
func newSerializationService(factories map[int32]serialization.IdentifiedFactory) (*serialization.Service, error) {
	s := serialization.NewService()
	if err := predicate.Register(s); err != nil {
		return nil, err
	}
	if err := aggregator.Register(s); err != nil {
		return nil, err
	}
	for id, f := range factories {
		if err := s.RegisterFactory(id, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

package server

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/lib/store"
	"github.com/dgrid/dgrid/lib/store/lstore"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
)

// clusterView is an immutable snapshot of membership and partition ownership
type clusterView struct {
	version int32
	members []common.MemberInfo
	owners  []uuid.UUID
}

// Cluster is the state shared by the members of one in-process cluster:
// membership, partition ownership and the record stores of all maps.
//
// The members of a cluster share their record stores, so a change of
// ownership needs no data migration. A member still serves a partition
// request for a partition it does not own, the way a real member forwards
// it to the owner, and counts it as forwarded.
type Cluster struct {
	name           string
	partitionCount int32
	storeFactory   store.Factory
	serializer     serializer.IRPCSerializer

	mu      sync.Mutex // serializes membership changes
	members []*Member
	view    atomic.Pointer[clusterView]

	maps      *xsync.MapOf[string, store.IRecordStore]
	migrating *xsync.MapOf[int32, struct{}]
}

// NewCluster creates an empty cluster. A nil storeFactory uses the local
// in-memory store.
func NewCluster(name string, partitionCount int32, storeFactory store.Factory) *Cluster {
	if storeFactory == nil {
		storeFactory = lstore.NewLocalStore
	}
	c := &Cluster{
		name:           name,
		partitionCount: partitionCount,
		storeFactory:   storeFactory,
		serializer:     serializer.NewBinarySerializer(),
		maps:           xsync.NewMapOf[string, store.IRecordStore](),
		migrating:      xsync.NewMapOf[int32, struct{}](),
	}
	c.view.Store(&clusterView{owners: make([]uuid.UUID, partitionCount)})
	return c
}

func (c *Cluster) Name() string {
	return c.name
}

func (c *Cluster) PartitionCount() int32 {
	return c.partitionCount
}

// Members returns the running members in join order
func (c *Cluster) Members() []*Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Member(nil), c.members...)
}

// Version returns the version of the current cluster view
func (c *Cluster) Version() int32 {
	return c.view.Load().version
}

// OwnerOf returns the owner of partition p, uuid.Nil if there is none
func (c *Cluster) OwnerOf(p int32) uuid.UUID {
	v := c.view.Load()
	if p < 0 || int(p) >= len(v.owners) {
		return uuid.Nil
	}
	return v.owners[p]
}

// SetMigrating marks partition p as migrating. Requests for a migrating
// partition fail with PartitionMigrating until the mark is removed.
func (c *Cluster) SetMigrating(p int32, migrating bool) {
	if migrating {
		c.migrating.Store(p, struct{}{})
	} else {
		c.migrating.Delete(p)
	}
}

func (c *Cluster) isMigrating(p int32) bool {
	_, ok := c.migrating.Load(p)
	return ok
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// recordStore returns the store of a map, creating it on first access
func (c *Cluster) recordStore(name string) store.IRecordStore {
	st, _ := c.maps.LoadOrCompute(name, func() store.IRecordStore {
		Logger.Debugf("Creating record store for map %q", name)
		return c.storeFactory(c.partitionCount)
	})
	return st
}

// destroyMap drops the store of a map
func (c *Cluster) destroyMap(name string) {
	c.maps.Delete(name)
}

func (c *Cluster) join(m *Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, m)
	c.publish()
}

func (c *Cluster) leave(m *Member) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.members {
		if other == m {
			c.members = append(c.members[:i], c.members[i+1:]...)
			c.publish()
			return true
		}
	}
	return false
}

// publish assigns the partitions round robin over the members, installs the
// new view and pushes it to all clients. Must be called with mu held.
func (c *Cluster) publish() {
	old := c.view.Load()
	v := &clusterView{
		version: old.version + 1,
		members: make([]common.MemberInfo, 0, len(c.members)),
		owners:  make([]uuid.UUID, c.partitionCount),
	}
	for _, m := range c.members {
		v.members = append(v.members, m.Info())
	}
	if len(c.members) > 0 {
		for p := range v.owners {
			v.owners[p] = c.members[p%len(c.members)].UUID()
		}
	}
	c.view.Store(v)
	Logger.Infof("Cluster %s view version %d with %d members", c.name, v.version, len(v.members))

	payload, err := c.serializer.Serialize(common.NewClusterView(nil, v.version, v.members, v.owners))
	if err != nil {
		Logger.Errorf("Failed to encode cluster view: %v", err)
		return
	}
	for _, m := range c.members {
		m.transport.Broadcast(payload)
	}
}

// newSerializationService creates the serialization service of a member
func newSerializationService(factories map[int32]serialization.IdentifiedFactory) (*serialization.Service, error) {
	s := serialization.NewService()
	if err := registerQueryFactories(s); err != nil {
		return nil, err
	}
	for id, f := range factories {
		if err := s.RegisterFactory(id, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

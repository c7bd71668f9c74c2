package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
	"github.com/dgrid/dgrid/rpc/serializer"
	"github.com/dgrid/dgrid/rpc/transport"
)

var Logger = logger.GetLogger("member")

// Member is one in-process cluster member. It serves the client protocol on
// its transport against the state of its Cluster.
type Member struct {
	uuid       uuid.UUID
	config     common.MemberConfig
	cluster    *Cluster
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	ser        *serialization.Service

	clientAdapter IRPCServerAdapter
	mapAdapter    IRPCServerAdapter

	address atomic.Pointer[string]
	running atomic.Bool

	ownedOps     atomic.Int64
	forwardedOps atomic.Int64
}

// NewMember creates a member of cluster
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	cluster := server.NewCluster("dev", 271, nil)
//	m, err := server.NewMember(config, cluster, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		panic(err)
//	}
//	if err := m.Start(); err != nil {
//		panic(err)
//	}
func NewMember(
	config common.MemberConfig,
	cluster *Cluster,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) (*Member, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	config.ClusterName = cluster.Name()
	config.PartitionCount = cluster.PartitionCount()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ser, err := newSerializationService(config.IdentifiedFactories)
	if err != nil {
		return nil, err
	}

	m := &Member{
		uuid:       uuid.New(),
		config:     config,
		cluster:    cluster,
		transport:  transport,
		serializer: serializer,
		ser:        ser,
	}
	m.clientAdapter = newClientAdapter(m)
	m.mapAdapter = newMapAdapter(m)
	return m, nil
}

// Start binds the transport and joins the cluster
func (m *Member) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return errs.New(errs.CodeIllegalState, "member is already running")
	}
	m.registerTransportHandler()

	addr, err := m.transport.Listen(m.config)
	if err != nil {
		m.running.Store(false)
		return fmt.Errorf("member %s failed to listen: %w", m.uuid, err)
	}
	a := addr.String()
	m.address.Store(&a)

	Logger.Infof("Member %s of cluster %s listening on %s", m.uuid, m.cluster.Name(), a)
	m.cluster.join(m)
	return nil
}

// Shutdown leaves the cluster and closes the transport. It reports whether
// the member was running.
func (m *Member) Shutdown() (bool, error) {
	if !m.running.CompareAndSwap(true, false) {
		return false, nil
	}
	m.cluster.leave(m)
	Logger.Infof("Member %s of cluster %s shut down", m.uuid, m.cluster.Name())
	return true, m.transport.Close()
}

func (m *Member) UUID() uuid.UUID {
	return m.uuid
}

// Address returns the bound address, empty before Start
func (m *Member) Address() string {
	if a := m.address.Load(); a != nil {
		return *a
	}
	return ""
}

func (m *Member) Info() common.MemberInfo {
	return common.MemberInfo{UUID: m.uuid, Address: m.Address()}
}

// IsRunning reports whether the member is started and not shut down
func (m *Member) IsRunning() bool {
	return m.running.Load()
}

// OwnedOps returns the number of partition requests for partitions this
// member owns
func (m *Member) OwnedOps() int64 {
	return m.ownedOps.Load()
}

// ForwardedOps returns the number of partition requests for partitions
// owned by another member
func (m *Member) ForwardedOps() int64 {
	return m.forwardedOps.Load()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *Member) registerTransportHandler() {
	m.transport.RegisterHandler(func(partitionID int32, data []byte) []byte {
		req := common.Message{PartitionID: partitionID}
		var resp *common.Message

		if err := m.serializer.Deserialize(data, &req); err != nil {
			resp = common.NewErrorResponse(&req, err)
		} else if req.MsgType < common.MsgTMapPut {
			resp = m.clientAdapter.Handle(&req)
		} else {
			resp = m.mapAdapter.Handle(&req)
		}

		out, err := m.serializer.Serialize(resp)
		if err != nil {
			Logger.Errorf("Failed to encode response to %s: %v", req.MsgType, err)
			out, _ = m.serializer.Serialize(common.NewErrorResponse(&req, errs.Wrap(errs.CodeSerialization, err, "encode response")))
		}
		return out
	})
}

// checkPartition validates the partition of a partition bound request
func (m *Member) checkPartition(req *common.Message, keys ...serialization.Data) error {
	p := req.PartitionID
	if p < 0 || p >= m.cluster.PartitionCount() {
		return errs.Newf(errs.CodeIllegalArgument, "partition id %d is out of range", p)
	}
	for _, key := range keys {
		if want := partitionOf(key, m.cluster.PartitionCount()); want != p {
			return errs.Newf(errs.CodeIllegalArgument, "key belongs to partition %d, request was sent for %d", want, p)
		}
	}
	if m.cluster.isMigrating(p) {
		return errs.Newf(errs.CodePartitionMigrating, "partition %d is migrating", p)
	}
	if m.cluster.OwnerOf(p) == m.uuid {
		m.ownedOps.Add(1)
	} else {
		m.forwardedOps.Add(1)
	}
	return nil
}

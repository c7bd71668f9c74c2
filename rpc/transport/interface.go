package transport

import (
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/dgrid/dgrid/lib/cluster"
	"github.com/dgrid/dgrid/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the partition id of the frame and the request payload and returns
// the response payload
type ServerHandleFunc func(partitionID int32, req []byte) (resp []byte)

// IRPCServerTransport is the member side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called for every request frame
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the listener and starts accepting connections in the
	// background. It returns the bound address.
	Listen(config common.MemberConfig) (net.Addr, error)
	// Broadcast pushes an event payload to every open connection
	Broadcast(payload []byte)
	// Close stops accepting, closes all connections and waits for the workers
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// PendingInvocation is an outstanding request registered on a connection.
// The connection notifies it once, with the response or with the failure
// that made a response impossible.
type PendingInvocation interface {
	NotifyResponse(resp *common.Message)
	NotifyError(err error)
}

// IConnection is one authenticated connection to a member
type IConnection interface {
	// Send registers p under correlationID and writes msg
	Send(correlationID int64, msg *common.Message, p PendingInvocation) error
	// Deregister forgets a pending invocation without notifying it
	Deregister(correlationID int64)
	// MemberUUID returns the member learned in the handshake
	MemberUUID() uuid.UUID
	// Address returns the remote address
	Address() string
	// IsAlive reports whether the connection is still open
	IsAlive() bool
}

// IConnectionManager hands out connections to the invocation layer
type IConnectionManager interface {
	// ConnectionFor returns the connection to member, creating it on demand
	ConnectionFor(ctx context.Context, member cluster.Member) (IConnection, error)
	// AnyConnection returns any active connection, connecting to a known
	// address if there is none
	AnyConnection(ctx context.Context) (IConnection, error)
	// NextCorrelationID returns a client wide unique correlation id
	NextCorrelationID() int64
}

// --------------------------------------------------------------------------
// Connection Events
// --------------------------------------------------------------------------

// ConnectionEventType is the kind of a connection life cycle event
type ConnectionEventType int

const (
	ConnectionEstablished ConnectionEventType = iota
	ConnectionHeartbeatTimeout
	ConnectionClosed
)

func (t ConnectionEventType) String() string {
	switch t {
	case ConnectionEstablished:
		return "established"
	case ConnectionHeartbeatTimeout:
		return "heartbeat timeout"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionEvent describes a change of one connection
type ConnectionEvent struct {
	Type       ConnectionEventType
	MemberUUID uuid.UUID
	Address    string
	Err        error // cause of a close, nil otherwise
}

// ConnectionListener is notified about connection events. Listeners are
// called synchronously and must not block.
type ConnectionListener func(event ConnectionEvent)

// EventHandler receives messages pushed by members on event frames
type EventHandler func(msg *common.Message)

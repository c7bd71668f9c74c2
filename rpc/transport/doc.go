// Package transport defines the contracts between the invocation layer and
// the network: pending invocations registered on a connection, the
// connection manager handing out member connections, connection life cycle
// events and the member side server transport.
//
// Key Components:
//
//   - IConnectionManager / IConnection: client side connection pool and the
//     connections it owns. Implemented by the base package.
//
//   - PendingInvocation: the callback a connection notifies exactly once per
//     registered request, either with the response or with the failure.
//
//   - ConnectionListener: life cycle events (established, heartbeat timeout,
//     closed).
//
//   - IRPCServerTransport: member side transport used by the in-process member.
package transport

// Package base provides the protocol independent part of the grid transport:
// framing, the client connection pool and the member side server. It is
// extended with protocol-specific connectors (see the tcp package).
//
// Frames:
//
//	[int64 correlation id][int32 partition id][uint8 flags][uint32 length][payload]
//
// All integers are big endian. Frames flagged as events carry correlation id 0
// and are pushed by members without a request (cluster view changes).
//
// Key Components:
//
//   - Pool: owns at most one authenticated Connection per member. Concurrent
//     requests for a missing connection share a single dial and handshake
//     (singleflight). AnyConnection balances round robin over the active
//     connections and falls back to the known member addresses.
//
//   - Connection: registers pending invocations under their correlation id
//     and completes them from a dedicated reader goroutine. Closing a
//     connection fails every pending invocation with TargetDisconnected.
//
//   - serverTransport: accepts connections and runs requests on a bounded
//     number of workers per connection, reusing read buffers from a
//     sync.Pool.
//
// Heartbeats:
//
//	The pool pings connections that were idle for writing for one heartbeat
//	interval and closes connections that received nothing for the heartbeat
//	timeout, exactly like a transport failure.
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Writes on one
//	connection are serialized by a mutex.
package base

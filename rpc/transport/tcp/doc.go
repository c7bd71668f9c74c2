// Package tcp implements the TCP transport of the grid protocol. It provides
// concrete implementations of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, see the
// base package documentation for the framing and the connection life cycle.
//
// Key Components:
//
//   - clientConnector: dials members for the client connection pool and
//     applies the configured socket options
//
//   - serverConnector: listens for clients on the member side
//
// Socket options (no delay, buffer sizes, keep-alive, linger) come from
// common.SocketConfig and are applied to both sides of a connection.
package tcp

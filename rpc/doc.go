// Package rpc contains the network side of the grid: the client that talks to
// the cluster, the in-process member that answers it and the layers both
// share.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - serializer: The binary payload codec converting Message objects to
//     bytes and back.
//
//   - transport: Connection contracts with the framed TCP implementation in
//     base and tcp, including the client connection pool and heartbeats.
//
//   - invocation: Routes requests to partition owners, correlates responses
//     and retries on topology changes until a deadline.
//
//   - client: The grid client and its map proxies.
//
//   - server: The in-process cluster member with its map and query
//     adapters, started by lib/rc.
package rpc

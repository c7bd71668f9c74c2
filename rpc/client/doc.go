// Package client implements the grid client. A Client authenticates against a
// cluster, keeps its member list and partition table in sync with the cluster
// view and hands out map proxies implementing imap.IMap.
//
// Key Components:
//
//   - NewClient: Connects to the first reachable configured address, fetches
//     the cluster view and starts the heartbeat. Fails with an Authentication
//     error if the cluster name does not match.
//
//   - GetMap: Returns the cached proxy of a named map. Key based operations are
//     routed to the owner of the key's partition, queries and aggregations go
//     to any member.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Addresses = []string{"127.0.0.1:5701"}
//
//	c, err := client.NewClient(ctx, config)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Shutdown()
//
//	m := c.GetMap("orders")
//	m.Put(ctx, "order-1", 24.5)
//	values, _ := m.ValuesWithPredicate(ctx, predicate.GreaterThan("this", 10))
//
//	// paging
//	p := predicate.Paging(predicate.True(), 10, nil)
//	page0, _ := m.ValuesWithPredicate(ctx, p)
//	p.NextPage()
//	page1, _ := m.ValuesWithPredicate(ctx, p)
//
// Membership changes are pushed by the cluster as view events. A closed
// connection triggers a view refresh, in-flight invocations on it are retried
// by the invocation service.
//
// Thread Safety:
//
//	A Client and its map proxies are safe for concurrent use. A paging
//	predicate is not and must not be shared between goroutines.
package client

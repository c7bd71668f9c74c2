// Package server implements an in-process grid member that speaks the client
// protocol. It is used by the remote controller, the serve command and the
// end to end tests of the client.
//
// A Cluster holds the state shared by its members: the member list, the
// partition ownership and one record store per distributed map. A Member
// binds a server transport and answers requests through two adapters:
//
//   - the client adapter handles the handshake, heartbeats, cluster view
//     requests and proxy destruction
//   - the map adapter translates map requests to store.IRecordStore calls and
//     evaluates predicates, paging predicates and aggregators
//
// Every membership change assigns the partitions round robin over the
// members, increments the view version and pushes the new view to all
// connected clients.
//
// Usage Example:
//
//	c := server.NewCluster("dev", 271, nil)
//	m, err := server.NewMember(
//	  common.DefaultMemberConfig(),
//	  c,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if err := m.Start(); err != nil {
//	  log.Fatal(err)
//	}
//	defer m.Shutdown()
//
// Queries:
//
//	Sql predicates are parsed by the member. The dialect supports AND, OR,
//	NOT, parentheses, the comparison operators = == != <> < <= > >=,
//	BETWEEN, IN, LIKE, ILIKE and REGEX. Attributes are "this" for the value,
//	"__key" for the key and any other name for an attribute of a value that
//	implements predicate.Extractable.
//
// Thread Safety:
//
//	Members and clusters are safe for concurrent use. Requests of one
//	connection are processed by a pool of workers.
package server

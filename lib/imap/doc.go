// Package imap defines IMap, the operations a client can run against one
// distributed map. The implementation lives in rpc/client; lib/imap keeps the
// contract free of transport details so that callers and tests can depend on
// the interface alone.
package imap

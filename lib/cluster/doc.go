// Package cluster holds the client's view of the cluster: the member list and
// the partition table. Both are immutable snapshots replaced atomically, so
// readers never lock and always see one consistent version.
package cluster

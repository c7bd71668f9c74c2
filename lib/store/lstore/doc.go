// Package lstore implements a local, in-memory record store based on the
// store.IRecordStore interface. Data is stored entirely in memory and is not
// persisted between process restarts.
//
// Implementation Details:
//
//   - Partitioning: the store keeps one xsync.MapOf per partition, so that
//     operations on different partitions never contend.
//
//   - Key identity: records are keyed by the type id and payload of the
//     serialized key. The original key is kept next to the value and handed
//     back by Range.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. RemoveIfSame is atomic with
//	respect to concurrent writers of the same key.
package lstore

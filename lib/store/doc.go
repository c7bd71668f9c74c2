// Package store provides the record storage used by members for the entries
// of distributed maps.
//
// The package focuses on:
//   - A unified interface (IRecordStore) for record operations
//   - Pluggable storage backends through the Factory pattern
//
// Key Components:
//
//   - IRecordStore Interface: stores serialized keys and values grouped by
//     partition. Keys compare by their serialized form, the partition hash
//     header takes no part in equality.
//
//   - Factory: creates the store of one map for a given partition count.
//     The member creates a store lazily on the first access to a map.
//
// Implementations:
//
//   - lstore: local in-memory store (see package lstore)
package store

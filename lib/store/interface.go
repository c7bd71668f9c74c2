package store

import (
	"github.com/dgrid/dgrid/lib/serialization"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory is a function type that creates the record store of one map.
// This is used to abstract the creation of the store from the member.
type Factory func(partitionCount int32) IRecordStore

// IRecordStore holds the records of one distributed map on one member. The
// records are grouped by partition. Keys are compared by their serialized
// form (see serialization.Data.Equal).
//
// The partition id passed to any method must be in [0, partition count).
type IRecordStore interface {
	// Put inserts or updates a record and returns the previous value (nil if there was none)
	Put(partitionID int32, key, value serialization.Data) (old serialization.Data)
	// PutIfAbsent inserts a record if the key is missing. It returns the
	// present value and true if the key already existed.
	PutIfAbsent(partitionID int32, key, value serialization.Data) (present serialization.Data, loaded bool)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(partitionID int32, key serialization.Data) (value serialization.Data, loaded bool)
	// Remove deletes a record and returns its value
	Remove(partitionID int32, key serialization.Data) (old serialization.Data, loaded bool)
	// RemoveIfSame deletes a record only if its value equals value
	RemoveIfSame(partitionID int32, key, value serialization.Data) (removed bool)
	// ContainsKey reports whether a record for key exists
	ContainsKey(partitionID int32, key serialization.Data) bool
	// Size returns the number of records over all partitions
	Size() int
	// Clear removes every record
	Clear()
	// Range calls fn for every record until fn returns false. The order is
	// unspecified. fn must not modify the store.
	Range(fn func(partitionID int32, key, value serialization.Data) bool)
}

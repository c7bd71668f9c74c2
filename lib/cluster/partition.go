package cluster

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

type partitionSnapshot struct {
	version int32
	owners  []uuid.UUID
}

// PartitionTable maps partition ids to owner members.
type PartitionTable struct {
	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[partitionSnapshot]
}

// NewPartitionTable creates an empty table. The partition count is learned
// from the first update.
func NewPartitionTable() *PartitionTable {
	t := &PartitionTable{}
	t.snapshot.Store(&partitionSnapshot{version: -1})
	return t
}

// ApplyUpdate replaces the ownership if version is newer than the current
// one. An update that changes a known partition count is rejected.
func (t *PartitionTable) ApplyUpdate(version int32, owners []uuid.UUID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.snapshot.Load()
	if version <= old.version {
		return false, nil
	}
	if len(owners) == 0 {
		return false, errs.New(errs.CodeIllegalArgument, "partition table update without partitions")
	}
	if len(old.owners) > 0 && len(owners) != len(old.owners) {
		return false, errs.Newf(errs.CodeIllegalState, "partition count changed from %d to %d", len(old.owners), len(owners))
	}
	t.snapshot.Store(&partitionSnapshot{
		version: version,
		owners:  append([]uuid.UUID(nil), owners...),
	})
	return true, nil
}

// Count returns the partition count, 0 before the first update.
func (t *PartitionTable) Count() int32 {
	return int32(len(t.snapshot.Load().owners))
}

// Version returns the version of the current table, -1 if none was received.
func (t *PartitionTable) Version() int32 {
	return t.snapshot.Load().version
}

// OwnerOf returns the last known owner of partition p.
func (t *PartitionTable) OwnerOf(p int32) (uuid.UUID, bool) {
	owners := t.snapshot.Load().owners
	if p < 0 || int(p) >= len(owners) || owners[p] == uuid.Nil {
		return uuid.Nil, false
	}
	return owners[p], true
}

// PartitionForKey returns the partition of a serialized key, or -1 while the
// partition count is unknown.
func (t *PartitionTable) PartitionForKey(key serialization.Data) int32 {
	return PartitionID(key, t.Count())
}

// PartitionID maps a serialized key onto one of count partitions. The result
// depends only on the key bytes and count.
func PartitionID(key serialization.Data, count int32) int32 {
	if count <= 0 {
		return -1
	}
	hash := key.PartitionHash()
	if hash == math.MinInt32 {
		return 0
	}
	if hash < 0 {
		hash = -hash
	}
	return hash % count
}

package lstore

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/lib/store"
)

// record keeps the original key next to the value, the map key only holds
// its identity
type record struct {
	key   serialization.Data
	value serialization.Data
}

type storeImpl struct {
	partitions []*xsync.MapOf[string, record]
}

// NewLocalStore creates a new local store instance with one concurrent map per partition.
// It satisfies store.Factory.
func NewLocalStore(partitionCount int32) store.IRecordStore {
	s := &storeImpl{partitions: make([]*xsync.MapOf[string, record], partitionCount)}
	for i := range s.partitions {
		s.partitions[i] = xsync.NewMapOf[string, record]()
	}
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(partitionID int32, key, value serialization.Data) serialization.Data {
	old, loaded := s.partitions[partitionID].LoadAndStore(key.Identity(), record{key: key, value: value})
	if !loaded {
		return nil
	}
	return old.value
}

func (s *storeImpl) PutIfAbsent(partitionID int32, key, value serialization.Data) (serialization.Data, bool) {
	present, loaded := s.partitions[partitionID].LoadOrStore(key.Identity(), record{key: key, value: value})
	if !loaded {
		return nil, false
	}
	return present.value, true
}

func (s *storeImpl) Get(partitionID int32, key serialization.Data) (serialization.Data, bool) {
	r, ok := s.partitions[partitionID].Load(key.Identity())
	return r.value, ok
}

func (s *storeImpl) Remove(partitionID int32, key serialization.Data) (serialization.Data, bool) {
	r, ok := s.partitions[partitionID].LoadAndDelete(key.Identity())
	return r.value, ok
}

func (s *storeImpl) RemoveIfSame(partitionID int32, key, value serialization.Data) bool {
	removed := false
	s.partitions[partitionID].Compute(key.Identity(), func(old record, loaded bool) (record, bool) {
		if !loaded {
			return old, true
		}
		removed = old.value.Equal(value)
		return old, removed
	})
	return removed
}

func (s *storeImpl) ContainsKey(partitionID int32, key serialization.Data) bool {
	_, ok := s.partitions[partitionID].Load(key.Identity())
	return ok
}

func (s *storeImpl) Size() int {
	n := 0
	for _, p := range s.partitions {
		n += p.Size()
	}
	return n
}

func (s *storeImpl) Clear() {
	for _, p := range s.partitions {
		p.Clear()
	}
}

func (s *storeImpl) Range(fn func(partitionID int32, key, value serialization.Data) bool) {
	for i, p := range s.partitions {
		cont := true
		p.Range(func(_ string, r record) bool {
			cont = fn(int32(i), r.key, r.value)
			return cont
		})
		if !cont {
			return
		}
	}
}

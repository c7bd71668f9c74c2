package lstore

import (
	"sort"
	"testing"

	"github.com/dgrid/dgrid/lib/serialization"
)

func mustData(t *testing.T, s *serialization.Service, v interface{}) serialization.Data {
	t.Helper()
	d, err := s.ToData(v)
	if err != nil {
		t.Fatalf("ToData(%v) failed: %v", v, err)
	}
	return d
}

func TestPutGetRemove(t *testing.T) {
	ser := serialization.NewService()
	st := NewLocalStore(4)
	key, v1, v2 := mustData(t, ser, "k"), mustData(t, ser, int32(1)), mustData(t, ser, int32(2))

	if old := st.Put(1, key, v1); old != nil {
		t.Fatalf("expected no previous value, got %v", old)
	}
	if old := st.Put(1, key, v2); !old.Equal(v1) {
		t.Fatalf("expected previous value %v, got %v", v1, old)
	}
	if got, ok := st.Get(1, key); !ok || !got.Equal(v2) {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := st.Get(2, key); ok {
		t.Fatal("key must only exist in its partition")
	}
	if !st.ContainsKey(1, key) {
		t.Fatal("ContainsKey returned false")
	}
	if st.Size() != 1 {
		t.Fatalf("expected size 1, got %d", st.Size())
	}

	old, ok := st.Remove(1, key)
	if !ok || !old.Equal(v2) {
		t.Fatalf("Remove returned %v, %v", old, ok)
	}
	if _, ok := st.Remove(1, key); ok {
		t.Fatal("second Remove must report a missing key")
	}
}

func TestPutIfAbsent(t *testing.T) {
	ser := serialization.NewService()
	st := NewLocalStore(1)
	key := mustData(t, ser, "k")

	if _, loaded := st.PutIfAbsent(0, key, mustData(t, ser, "a")); loaded {
		t.Fatal("first PutIfAbsent must store")
	}
	present, loaded := st.PutIfAbsent(0, key, mustData(t, ser, "b"))
	if !loaded || !present.Equal(mustData(t, ser, "a")) {
		t.Fatalf("PutIfAbsent returned %v, %v", present, loaded)
	}
}

func TestRemoveIfSame(t *testing.T) {
	ser := serialization.NewService()
	st := NewLocalStore(1)
	key := mustData(t, ser, "k")
	st.Put(0, key, mustData(t, ser, int32(7)))

	testCases := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"different value", int32(8), false},
		{"different type", int64(7), false},
		{"same value", int32(7), true},
		{"already removed", int32(7), false},
	}

	for _, tc := range testCases {
		if got := st.RemoveIfSame(0, key, mustData(t, ser, tc.value)); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
	if st.Size() != 0 {
		t.Fatalf("expected empty store, got size %d", st.Size())
	}
}

func TestRangeAndClear(t *testing.T) {
	ser := serialization.NewService()
	st := NewLocalStore(3)
	for i := int32(0); i < 9; i++ {
		st.Put(i%3, mustData(t, ser, i), mustData(t, ser, i*10))
	}

	var values []int
	st.Range(func(partitionID int32, key, value serialization.Data) bool {
		k, _ := ser.ToObject(key)
		v, _ := ser.ToObject(value)
		if k.(int32)%3 != partitionID {
			t.Errorf("key %v reported in partition %d", k, partitionID)
		}
		values = append(values, int(v.(int32)))
		return true
	})
	sort.Ints(values)
	if len(values) != 9 || values[0] != 0 || values[8] != 80 {
		t.Fatalf("unexpected values %v", values)
	}

	visited := 0
	st.Range(func(int32, serialization.Data, serialization.Data) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("Range must stop when fn returns false, visited %d", visited)
	}

	st.Clear()
	if st.Size() != 0 {
		t.Fatalf("expected empty store after Clear, got %d", st.Size())
	}
}

func TestPartitionHashIgnored(t *testing.T) {
	st := NewLocalStore(1)
	a := serialization.Data{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xF9, 0, 0, 0, 1}
	b := serialization.Data{0, 0, 0, 5, 0xFF, 0xFF, 0xFF, 0xF9, 0, 0, 0, 1}

	st.Put(0, a, a)
	if !st.ContainsKey(0, b) {
		t.Fatal("keys differing only in the partition hash must be equal")
	}
}

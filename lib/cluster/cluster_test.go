package cluster

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

func TestMemberListApply(t *testing.T) {
	l := NewMemberList()
	assert.Equal(t, int32(-1), l.Version())

	a := Member{UUID: uuid.New(), Address: "127.0.0.1:5701"}
	b := Member{UUID: uuid.New(), Address: "127.0.0.1:5702"}
	c := Member{UUID: uuid.New(), Address: "127.0.0.1:5703"}

	applied, joined, left := l.Apply(1, []Member{a, b})
	assert.True(t, applied)
	assert.Equal(t, []Member{a, b}, joined)
	assert.Empty(t, left)

	applied, _, _ = l.Apply(1, []Member{c})
	assert.False(t, applied, "equal version is discarded")
	applied, _, _ = l.Apply(0, []Member{c})
	assert.False(t, applied, "older version is discarded")

	applied, joined, left = l.Apply(2, []Member{b, c})
	assert.True(t, applied)
	assert.Equal(t, []Member{c}, joined)
	assert.Equal(t, []Member{a}, left)

	_, ok := l.Get(a.UUID)
	assert.False(t, ok)
	got, ok := l.Get(c.UUID)
	assert.True(t, ok)
	assert.Equal(t, c, got)
	assert.Equal(t, []Member{b, c}, l.Members())
	assert.Equal(t, int32(2), l.Version())
}

func TestPartitionTableUpdates(t *testing.T) {
	pt := NewPartitionTable()
	_, ok := pt.OwnerOf(0)
	assert.False(t, ok, "no owner before the first update")

	m1, m2 := uuid.New(), uuid.New()
	applied, err := pt.ApplyUpdate(3, []uuid.UUID{m1, m2, m1})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int32(3), pt.Count())

	owner, ok := pt.OwnerOf(1)
	assert.True(t, ok)
	assert.Equal(t, m2, owner)

	applied, err = pt.ApplyUpdate(2, []uuid.UUID{m2, m2, m2})
	require.NoError(t, err)
	assert.False(t, applied, "older version is discarded")
	owner, _ = pt.OwnerOf(0)
	assert.Equal(t, m1, owner)

	_, err = pt.ApplyUpdate(4, []uuid.UUID{m1})
	assert.Equal(t, errs.CodeIllegalState, errs.CodeOf(err), "partition count is fixed")

	applied, err = pt.ApplyUpdate(4, []uuid.UUID{m2, uuid.Nil, m2})
	require.NoError(t, err)
	assert.True(t, applied)
	_, ok = pt.OwnerOf(1)
	assert.False(t, ok, "unassigned partition")
	_, ok = pt.OwnerOf(3)
	assert.False(t, ok, "out of range")
	_, ok = pt.OwnerOf(-1)
	assert.False(t, ok)
}

func TestPartitionForKeyIsPure(t *testing.T) {
	s := serialization.NewService()
	pt := NewPartitionTable()

	key, err := s.ToData("key42")
	require.NoError(t, err)
	assert.Equal(t, int32(-1), pt.PartitionForKey(key), "count unknown")

	owners := make([]uuid.UUID, 271)
	for i := range owners {
		owners[i] = uuid.New()
	}
	_, err = pt.ApplyUpdate(1, owners)
	require.NoError(t, err)

	p := pt.PartitionForKey(key)
	assert.GreaterOrEqual(t, p, int32(0))
	assert.Less(t, p, int32(271))

	// same bytes, same partition, whatever the table version
	_, err = pt.ApplyUpdate(2, owners)
	require.NoError(t, err)
	again, err := s.ToData("key42")
	require.NoError(t, err)
	assert.Equal(t, p, pt.PartitionForKey(again))
	assert.Equal(t, p, PartitionID(key, 271))
}

func TestPartitionIDEdgeCases(t *testing.T) {
	withHash := func(h int32) serialization.Data {
		d := make(serialization.Data, 8)
		binary.BigEndian.PutUint32(d, uint32(h))
		binary.BigEndian.PutUint32(d[4:], uint32(serialization.TypeNull))
		return d
	}

	assert.Equal(t, int32(0), PartitionID(withHash(math.MinInt32), 271))
	assert.Equal(t, int32(10), PartitionID(withHash(-10), 271))
	assert.Equal(t, int32(2), PartitionID(withHash(273), 271))
	assert.Equal(t, int32(-1), PartitionID(withHash(5), 0))
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	pt := NewPartitionTable()
	a, b := uuid.New(), uuid.New()
	all := func(id uuid.UUID) []uuid.UUID { return []uuid.UUID{id, id, id, id} }
	_, err := pt.ApplyUpdate(0, all(a))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := int32(1); v < 200; v++ {
			id := a
			if v%2 == 1 {
				id = b
			}
			_, _ = pt.ApplyUpdate(v, all(id))
		}
	}()
	for i := 0; i < 200; i++ {
		snap := pt.snapshot.Load()
		for _, o := range snap.owners {
			assert.Equal(t, snap.owners[0], o)
		}
	}
	wg.Wait()
}

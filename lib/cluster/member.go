package cluster

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Member is one cluster member as announced by the cluster.
type Member struct {
	UUID    uuid.UUID
	Address string
	Version int32
}

func (m Member) String() string {
	return fmt.Sprintf("Member[%s]:%s", m.Address, m.UUID)
}

type memberSnapshot struct {
	version int32
	members []Member
	byUUID  map[uuid.UUID]Member
}

// MemberList is the last member list received from the cluster.
type MemberList struct {
	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[memberSnapshot]
}

// NewMemberList creates an empty member list with version -1.
func NewMemberList() *MemberList {
	l := &MemberList{}
	l.snapshot.Store(&memberSnapshot{version: -1, byUUID: map[uuid.UUID]Member{}})
	return l
}

// Apply replaces the member list if version is newer than the current one.
// It returns the members that joined and left with this update.
func (l *MemberList) Apply(version int32, members []Member) (applied bool, joined, left []Member) {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.snapshot.Load()
	if version <= old.version {
		return false, nil, nil
	}

	next := &memberSnapshot{
		version: version,
		members: append([]Member(nil), members...),
		byUUID:  make(map[uuid.UUID]Member, len(members)),
	}
	for _, m := range members {
		next.byUUID[m.UUID] = m
		if _, ok := old.byUUID[m.UUID]; !ok {
			joined = append(joined, m)
		}
	}
	for _, m := range old.members {
		if _, ok := next.byUUID[m.UUID]; !ok {
			left = append(left, m)
		}
	}
	l.snapshot.Store(next)
	return true, joined, left
}

// Get returns the member with the given id.
func (l *MemberList) Get(id uuid.UUID) (Member, bool) {
	m, ok := l.snapshot.Load().byUUID[id]
	return m, ok
}

// Members returns a copy of the current members in cluster order.
func (l *MemberList) Members() []Member {
	return append([]Member(nil), l.snapshot.Load().members...)
}

// Version returns the version of the current member list, -1 if none was
// received.
func (l *MemberList) Version() int32 {
	return l.snapshot.Load().version
}

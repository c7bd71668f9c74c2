package invocation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dgrid/dgrid/rpc/transport"
)

type targetKind uint8

const (
	targetAny targetKind = iota
	targetPartition
	targetMember
	targetConnection
)

// Target selects the member an invocation is sent to
type Target struct {
	kind        targetKind
	partitionID int32
	member      uuid.UUID
	conn        transport.IConnection
}

// PartitionTarget routes to the owner of partition p. If the owner is
// unknown, or smart routing is disabled, any member is used.
func PartitionTarget(p int32) Target {
	return Target{kind: targetPartition, partitionID: p}
}

// MemberTarget routes to one member of the current member list
func MemberTarget(id uuid.UUID) Target {
	return Target{kind: targetMember, member: id}
}

// AnyTarget routes to any connected member
func AnyTarget() Target {
	return Target{kind: targetAny}
}

// ConnectionTarget pins the invocation to one connection. Such invocations
// are never retried.
func ConnectionTarget(conn transport.IConnection) Target {
	return Target{kind: targetConnection, conn: conn}
}

func (t Target) String() string {
	switch t.kind {
	case targetPartition:
		return fmt.Sprintf("partition %d", t.partitionID)
	case targetMember:
		return "member " + t.member.String()
	case targetConnection:
		return "connection " + t.conn.Address()
	default:
		return "any member"
	}
}

package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for requests, responses and
// cluster events. Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType

	// PartitionID travels in the frame header, -1 if the message is not bound
	// to a partition. It is not part of the serialized payload.
	PartitionID int32

	// Request fields
	Name       string               // Used for: map operations (map name), authentication (cluster name)
	Key        serialization.Data   // Used for: Get, Put, Remove, RemoveIfSame, Delete, ContainsKey
	Value      serialization.Data   // Used for: Put, RemoveIfSame, ContainsValue (request); Get, Put, Remove, Aggregate (response)
	Predicate  serialization.Data   // Used for: query and aggregate-with-predicate requests
	Aggregator serialization.Data   // Used for: aggregate requests
	Values     []serialization.Data // Used for: key set / values responses
	Entries    []DataEntry          // Used for: PutAll (request), entry set and paging responses
	Anchors    []DataAnchor         // Used for: paging responses

	// Response fields
	Ok      bool   // Used for: RemoveIfSame, ContainsKey, ContainsValue, IsEmpty responses
	Num     int64  // Used for: Size response, partition count in the authentication response
	ErrCode int32  // errs.Code of an error response
	Err     string // Empty if no error, otherwise contains the error message

	// Cluster view fields
	Members         []MemberInfo // Used for: cluster view response and event
	PartitionOwners []uuid.UUID  // Used for: cluster view response and event
	Version         int32        // Used for: cluster view response and event
	MemberUUID      uuid.UUID    // Used for: authentication response
}

// DataEntry is a serialized key/value pair.
type DataEntry struct {
	Key   serialization.Data
	Value serialization.Data
}

// DataAnchor is a serialized paging anchor.
type DataAnchor struct {
	Page  int32
	Key   serialization.Data
	Value serialization.Data
}

// MemberInfo describes a cluster member on the wire.
type MemberInfo struct {
	UUID    uuid.UUID
	Address string
	Version int32
}

// Error returns the error carried by an error response, nil otherwise.
func (m *Message) Error() error {
	if m.MsgType != MsgTError {
		return nil
	}
	code := errs.Code(m.ErrCode)
	if code == errs.CodeUnknown {
		code = errs.CodeRemote
	}
	return errs.New(code, m.Err)
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewAuthenticationRequest creates the handshake request of a connection
func NewAuthenticationRequest(clusterName string) *Message {
	return &Message{MsgType: MsgTClientAuthentication, PartitionID: -1, Name: clusterName}
}

// NewClusterViewRequest asks a member for the member list and partition table
func NewClusterViewRequest() *Message {
	return &Message{MsgType: MsgTClientClusterView, PartitionID: -1}
}

// NewPingRequest creates a heartbeat
func NewPingRequest() *Message {
	return &Message{MsgType: MsgTClientPing, PartitionID: -1}
}

// NewDestroyProxyRequest destroys a distributed object
func NewDestroyProxyRequest(name string) *Message {
	return &Message{MsgType: MsgTClientDestroyProxy, PartitionID: -1, Name: name}
}

// NewMapKeyRequest creates a request of a key bound map operation
// (Get, Remove, Delete, ContainsKey)
func NewMapKeyRequest(t MessageType, name string, key serialization.Data, partitionID int32) *Message {
	return &Message{MsgType: t, PartitionID: partitionID, Name: name, Key: key}
}

// NewMapPutRequest creates a Put request
func NewMapPutRequest(name string, key, value serialization.Data, partitionID int32) *Message {
	return &Message{MsgType: MsgTMapPut, PartitionID: partitionID, Name: name, Key: key, Value: value}
}

// NewMapRemoveIfSameRequest creates a conditional remove request
func NewMapRemoveIfSameRequest(name string, key, value serialization.Data, partitionID int32) *Message {
	return &Message{MsgType: MsgTMapRemoveIfSame, PartitionID: partitionID, Name: name, Key: key, Value: value}
}

// NewMapPutAllRequest creates a PutAll request for entries of one partition
func NewMapPutAllRequest(name string, entries []DataEntry, partitionID int32) *Message {
	return &Message{MsgType: MsgTMapPutAll, PartitionID: partitionID, Name: name, Entries: entries}
}

// NewMapRequest creates a request of a map wide operation
// (Size, IsEmpty, Clear)
func NewMapRequest(t MessageType, name string) *Message {
	return &Message{MsgType: t, PartitionID: -1, Name: name}
}

// NewMapContainsValueRequest creates a ContainsValue request
func NewMapContainsValueRequest(name string, value serialization.Data) *Message {
	return &Message{MsgType: MsgTMapContainsValue, PartitionID: -1, Name: name, Value: value}
}

// NewMapQueryRequest creates one of the predicate query requests
func NewMapQueryRequest(t MessageType, name string, predicate serialization.Data) *Message {
	return &Message{MsgType: t, PartitionID: -1, Name: name, Predicate: predicate}
}

// NewMapAggregateRequest creates an aggregation request. predicate may be nil.
func NewMapAggregateRequest(name string, aggregator, predicate serialization.Data) *Message {
	t := MsgTMapAggregate
	if predicate != nil {
		t = MsgTMapAggregateWithPredicate
	}
	return &Message{MsgType: t, PartitionID: -1, Name: name, Aggregator: aggregator, Predicate: predicate}
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// NewResponse creates an empty response to req
func NewResponse(req *Message) *Message {
	return &Message{MsgType: req.MsgType.Response(), PartitionID: req.PartitionID}
}

// NewValueResponse creates a response carrying one value
func NewValueResponse(req *Message, value serialization.Data) *Message {
	resp := NewResponse(req)
	resp.Value = value
	return resp
}

// NewBoolResponse creates a response carrying a flag
func NewBoolResponse(req *Message, ok bool) *Message {
	resp := NewResponse(req)
	resp.Ok = ok
	return resp
}

// NewNumResponse creates a response carrying a number
func NewNumResponse(req *Message, n int64) *Message {
	resp := NewResponse(req)
	resp.Num = n
	return resp
}

// NewValuesResponse creates a response carrying a list of keys or values
func NewValuesResponse(req *Message, values []serialization.Data, anchors []DataAnchor) *Message {
	resp := NewResponse(req)
	resp.Values = values
	resp.Anchors = anchors
	return resp
}

// NewEntriesResponse creates a response carrying entries
func NewEntriesResponse(req *Message, entries []DataEntry, anchors []DataAnchor) *Message {
	resp := NewResponse(req)
	resp.Entries = entries
	resp.Anchors = anchors
	return resp
}

// NewAuthenticationResponse answers a handshake
func NewAuthenticationResponse(req *Message, member uuid.UUID, partitionCount int32) *Message {
	resp := NewResponse(req)
	resp.MemberUUID = member
	resp.Num = int64(partitionCount)
	return resp
}

// NewClusterView creates a cluster view response (or event if req is nil)
func NewClusterView(req *Message, version int32, members []MemberInfo, owners []uuid.UUID) *Message {
	var msg *Message
	if req == nil {
		msg = &Message{MsgType: MsgTClientClusterViewEvent, PartitionID: -1}
	} else {
		msg = NewResponse(req)
	}
	msg.Version = version
	msg.Members = members
	msg.PartitionOwners = owners
	return msg
}

// NewErrorResponse creates an error response. The code of err is kept so that
// the client can classify the failure.
func NewErrorResponse(req *Message, err error) *Message {
	text := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		// the client prefixes the code again
		text = strings.TrimPrefix(text, e.Code.String()+": ")
	}
	msg := &Message{MsgType: MsgTError, PartitionID: -1, ErrCode: int32(errs.CodeOf(err)), Err: text}
	if req != nil {
		msg.PartitionID = req.PartitionID
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in the client protocol. The
// response of a request type is the request type + 1.
type MessageType uint32

// Response returns the message type of the response to t.
func (t MessageType) Response() MessageType {
	return t + 1
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	if name, ok := messageTypeNames[t-1]; ok && t&0xFF == 1 {
		return name + ".response"
	}
	return fmt.Sprintf("unknown(0x%06x)", uint32(t))
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTError MessageType = 0x000000 // Indicates an error occurred

	// Client operations

	MsgTClientAuthentication   MessageType = 0x000100 // Connection handshake
	MsgTClientClusterView      MessageType = 0x000200 // Member list and partition table
	MsgTClientClusterViewEvent MessageType = 0x000202 // Pushed cluster view
	MsgTClientDestroyProxy     MessageType = 0x000500 // Destroy a distributed object
	MsgTClientPing             MessageType = 0x000B00 // Heartbeat

	// IMap operations

	MsgTMapPut                        MessageType = 0x010100
	MsgTMapGet                        MessageType = 0x010200
	MsgTMapRemove                     MessageType = 0x010300
	MsgTMapContainsKey                MessageType = 0x010600
	MsgTMapContainsValue              MessageType = 0x010700
	MsgTMapRemoveIfSame               MessageType = 0x010800
	MsgTMapDelete                     MessageType = 0x010900
	MsgTMapKeySetWithPredicate        MessageType = 0x012500
	MsgTMapValuesWithPredicate        MessageType = 0x012600
	MsgTMapEntriesWithPredicate       MessageType = 0x012700
	MsgTMapSize                       MessageType = 0x012A00
	MsgTMapIsEmpty                    MessageType = 0x012B00
	MsgTMapPutAll                     MessageType = 0x012C00
	MsgTMapClear                      MessageType = 0x012D00
	MsgTMapKeySetWithPagingPredicate  MessageType = 0x013400
	MsgTMapValuesWithPagingPredicate  MessageType = 0x013500
	MsgTMapEntriesWithPagingPredicate MessageType = 0x013600
	MsgTMapAggregate                  MessageType = 0x013900
	MsgTMapAggregateWithPredicate     MessageType = 0x013A00
)

var messageTypeNames = map[MessageType]string{
	MsgTError:                         "error",
	MsgTClientAuthentication:          "client.authentication",
	MsgTClientClusterView:             "client.clusterView",
	MsgTClientClusterViewEvent:        "client.clusterViewEvent",
	MsgTClientDestroyProxy:            "client.destroyProxy",
	MsgTClientPing:                    "client.ping",
	MsgTMapPut:                        "map.put",
	MsgTMapGet:                        "map.get",
	MsgTMapRemove:                     "map.remove",
	MsgTMapContainsKey:                "map.containsKey",
	MsgTMapContainsValue:              "map.containsValue",
	MsgTMapRemoveIfSame:               "map.removeIfSame",
	MsgTMapDelete:                     "map.delete",
	MsgTMapKeySetWithPredicate:        "map.keySetWithPredicate",
	MsgTMapValuesWithPredicate:        "map.valuesWithPredicate",
	MsgTMapEntriesWithPredicate:       "map.entriesWithPredicate",
	MsgTMapSize:                       "map.size",
	MsgTMapIsEmpty:                    "map.isEmpty",
	MsgTMapPutAll:                     "map.putAll",
	MsgTMapClear:                      "map.clear",
	MsgTMapKeySetWithPagingPredicate:  "map.keySetWithPagingPredicate",
	MsgTMapValuesWithPagingPredicate:  "map.valuesWithPagingPredicate",
	MsgTMapEntriesWithPagingPredicate: "map.entriesWithPagingPredicate",
	MsgTMapAggregate:                  "map.aggregate",
	MsgTMapAggregateWithPredicate:     "map.aggregateWithPredicate",
}

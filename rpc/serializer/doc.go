// Package serializer provides the message payload codec of the grid client
// protocol. It defines a common interface and the binary implementation used
// by both the client and the in-process member.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that serializer implementations must satisfy.
//
//   - binarySerializerImpl: the binary payload format. The payload starts with the
//     uint32 message type and a uint32 presence mask; only fields whose bit is
//     set follow, in bit order. Serialized values (keys, values, predicates,
//     aggregators) are opaque length prefixed byte slices here; their content is
//     produced by lib/serialization.
//
// Thread Safety:
//
//	The serializer is stateless and safe for concurrent use across multiple
//	goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	payload, err := serializer.Serialize(msg)
//	// ... frame and send payload ...
//	var received common.Message
//	err = serializer.Deserialize(receivedPayload, &received)
package serializer

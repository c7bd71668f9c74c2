// Package serialization implements the binary serialization registry of the
// grid client. It turns typed Go values into the byte layout understood by
// the cluster members and back.
//
// The package focuses on:
//   - Data: the immutable serialized form of a value, carrying a partition hash
//     header, a type id and the payload.
//   - Service: a per-client registry mapping type ids, Go types and
//     (factory id, class id) descriptors to codecs. Lookups are O(1) map reads.
//   - ObjectDataOutput / ObjectDataInput: big endian primitive writers and
//     readers used by codecs and by IdentifiedDataSerializable implementations.
//   - Partition hashing: MurmurHash3 (x86, 32 bit) over the payload, exactly as
//     the members compute it.
//
// Data layout:
//
//	offset 0: int32 partition hash (0 = derive from the payload)
//	offset 4: int32 type id
//	offset 8: payload
//
// Registration happens before the service is shared. After that the service
// is read-only and safe for concurrent use.
//
// Usage:
//
//	s := serialization.NewService()
//	_ = s.RegisterFactory(66, myFactory)
//
//	data, err := s.ToData(int32(42))
//	value, err := s.ToObject(data)
package serialization

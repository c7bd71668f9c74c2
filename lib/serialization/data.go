package serialization

import (
	"bytes"
	"encoding/binary"

	"github.com/twmb/murmur3"
)

const (
	partitionHashOffset = 0
	typeOffset          = 4
	// DataOffset is the position of the payload inside a Data
	DataOffset = 8

	// murmurSeed is the seed the members use for partition hashing
	murmurSeed uint32 = 0x01000193
)

// Data is the serialized form of a value. A Data is never mutated after it
// was created; whoever holds it may share it freely.
type Data []byte

// TypeID returns the type id stored in the header.
func (d Data) TypeID() int32 {
	if len(d) < DataOffset {
		return TypeNull
	}
	return int32(binary.BigEndian.Uint32(d[typeOffset:]))
}

// Payload returns the bytes after the header.
func (d Data) Payload() []byte {
	if len(d) < DataOffset {
		return nil
	}
	return d[DataOffset:]
}

// HasPartitionHash reports whether an explicit partition hash was written.
func (d Data) HasPartitionHash() bool {
	return len(d) >= DataOffset && binary.BigEndian.Uint32(d[partitionHashOffset:]) != 0
}

// PartitionHash returns the hash used to route the value to a partition. It
// is the explicit hash if one was written and the murmur hash of the payload
// otherwise.
func (d Data) PartitionHash() int32 {
	if d.HasPartitionHash() {
		return int32(binary.BigEndian.Uint32(d[partitionHashOffset:]))
	}
	return murmurHash(d.Payload())
}

// IsNull reports whether the data encodes a nil value (or is empty).
func (d Data) IsNull() bool {
	return d.TypeID() == TypeNull
}

// Equal compares type id and payload. The partition hash header takes no part
// in equality, mirroring how members compare keys.
func (d Data) Equal(other Data) bool {
	return d.TypeID() == other.TypeID() && bytes.Equal(d.Payload(), other.Payload())
}

// Identity returns the type id and payload of d as a string. Two Data with the
// same identity are Equal, which makes it usable as a map key.
func (d Data) Identity() string {
	if len(d) < DataOffset {
		return ""
	}
	return string(d[typeOffset:])
}

// murmurHash computes MurmurHash3 x86_32 with the member seed.
func murmurHash(b []byte) int32 {
	return int32(murmur3.SeedSum32(murmurSeed, b))
}

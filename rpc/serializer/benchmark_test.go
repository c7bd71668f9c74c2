package serializer

import (
	"testing"

	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	large := make([]serialization.Data, 100)
	for i := range large {
		large[i] = data(0xF9, 0, 0, 0, byte(i))
	}
	return map[string]common.Message{
		"Ping": {
			MsgType: common.MsgTClientPing,
		},
		"Get": {
			MsgType: common.MsgTMapGet,
			Name:    "map",
			Key:     data(0xF5, 0, 0, 0, 5, 'k', 'e', 'y', '4', '2'),
		},
		"PutLargeValue": {
			MsgType: common.MsgTMapPut,
			Name:    "map",
			Key:     data(0xF5, 0, 0, 0, 1, 'k'),
			Value:   append(data(0xF4), make([]byte, 16*1024)...),
		},
		"ValuesResponse": {
			MsgType: common.MsgTMapValuesWithPredicate.Response(),
			Values:  large,
		},
	}
}

// BenchmarkSerialize benchmarks serialization with various message types
func BenchmarkSerialize(b *testing.B) {
	serializer := NewBinarySerializer()
	for name, msg := range benchmarkMessages() {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := serializer.Serialize(&msg); err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
			}
		})
	}
}

// BenchmarkDeserialize benchmarks deserialization with various message types
func BenchmarkDeserialize(b *testing.B) {
	serializer := NewBinarySerializer()
	for name, msg := range benchmarkMessages() {
		encoded, err := serializer.Serialize(&msg)
		if err != nil {
			b.Fatalf("Failed to serialize: %v", err)
		}
		b.Run(name, func(b *testing.B) {
			var result common.Message
			for i := 0; i < b.N; i++ {
				if err := serializer.Deserialize(encoded, &result); err != nil {
					b.Fatalf("Failed to deserialize: %v", err)
				}
			}
		})
	}
}
